package policy

import "github.com/tsinghua-fib-lab/intersection-sim/utils/config"

// FixedTime 固定配时策略
// 功能：绿灯持续达到固定间隔即切换，与排队无关
type FixedTime struct {
	switchEvery float64
}

// NewFixedTime 创建固定配时策略
func NewFixedTime(cfg config.FixedTime) (*FixedTime, error) {
	if !(cfg.SwitchEvery > 0) {
		return nil, invalidParams("fixed_time.switch_every_s must be positive")
	}
	return &FixedTime{switchEvery: cfg.SwitchEvery}, nil
}

func (p *FixedTime) Name() string { return config.PolicyFixedTime }

func (p *FixedTime) Reset() {}

func (p *FixedTime) Decide(obs Observation) (Action, error) {
	if err := obs.Validate(); err != nil {
		return Keep, err
	}
	if obs.ElapsedGreen >= p.switchEvery {
		return Switch, nil
	}
	return Keep, nil
}
