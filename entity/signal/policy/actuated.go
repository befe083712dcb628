package policy

import "github.com/tsinghua-fib-lab/intersection-sim/utils/config"

// Actuated 阈值感应策略
// 功能：根据两个相位轴的排队差异与空闲程度决定是否切换
type Actuated struct {
	cfg config.Actuated
}

// NewActuated 创建阈值感应策略
func NewActuated(cfg config.Actuated) (*Actuated, error) {
	if cfg.ImbalanceSwitch <= 0 || cfg.CurrentEmptyThreshold < 0 || cfg.OpposingMinToSwitch <= 0 {
		return nil, invalidParams("actuated thresholds must be positive (empty threshold non-negative)")
	}
	if !(cfg.MaxGreen > 0) {
		return nil, invalidParams("actuated.max_green_s must be positive")
	}
	return &Actuated{cfg: cfg}, nil
}

func (p *Actuated) Name() string { return config.PolicyActuated }

func (p *Actuated) Reset() {}

// Decide 阈值感应决策
// 算法说明：
// 1. 绿灯达到安全上限：SWITCH
// 2. 路口全空：KEEP
// 3. 绿灯轴几乎为空且红灯轴排队达到下限：SWITCH
// 4. 红灯轴比绿灯轴多出不平衡阈值：SWITCH
// 5. 其余情况：KEEP
func (p *Actuated) Decide(obs Observation) (Action, error) {
	if err := obs.Validate(); err != nil {
		return Keep, err
	}
	if obs.ElapsedGreen >= p.cfg.MaxGreen {
		return Switch, nil
	}
	if obs.Empty() {
		return Keep, nil
	}
	current, other := obs.Current(), obs.Other()
	if current <= p.cfg.CurrentEmptyThreshold && other >= p.cfg.OpposingMinToSwitch {
		return Switch, nil
	}
	if other-current >= p.cfg.ImbalanceSwitch {
		return Switch, nil
	}
	return Keep, nil
}
