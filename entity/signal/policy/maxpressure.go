package policy

import "github.com/tsinghua-fib-lab/intersection-sim/utils/config"

// MaxPressure 最大压力策略
// 功能：压力为南北轴与东西轴排队之差，红灯轴压力领先达到滞回阈值时切换
type MaxPressure struct {
	cfg config.MaxPressure
}

// NewMaxPressure 创建最大压力策略
func NewMaxPressure(cfg config.MaxPressure) (*MaxPressure, error) {
	if cfg.HysteresisMargin < 0 {
		return nil, invalidParams("max_pressure.hysteresis_margin must not be negative")
	}
	if !(cfg.MaxGreen > 0) {
		return nil, invalidParams("max_pressure.max_green_s must be positive")
	}
	return &MaxPressure{cfg: cfg}, nil
}

func (p *MaxPressure) Name() string { return config.PolicyMaxPressure }

func (p *MaxPressure) Reset() {}

// Decide 最大压力决策
// 算法说明：
// 1. 绿灯达到安全上限：SWITCH
// 2. 路口全空：KEEP
// 3. diff=ns-ew，南北绿灯时-diff≥阈值切换，东西绿灯时diff≥阈值切换
func (p *MaxPressure) Decide(obs Observation) (Action, error) {
	if err := obs.Validate(); err != nil {
		return Keep, err
	}
	if obs.ElapsedGreen >= p.cfg.MaxGreen {
		return Switch, nil
	}
	if obs.Empty() {
		return Keep, nil
	}
	diff := obs.NS() - obs.EW()
	if obs.Phase == PhaseNS {
		diff = -diff
	}
	if diff >= p.cfg.HysteresisMargin {
		return Switch, nil
	}
	return Keep, nil
}
