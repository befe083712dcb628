package policy

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

// 规则输出：low/medium/high对应的紧迫程度
const (
	urgencyLow    = 0.1
	urgencyMedium = 0.5
	urgencyHigh   = 0.9

	dominanceWeight = 0.3
	tieNudge        = 0.05
)

// membership 排队数在low/medium/high三个模糊集上的隶属度
type membership struct {
	Low, Medium, High float64
}

// Fuzzy 模糊逻辑策略
// 功能：将两个相位轴的排队数模糊化，经规则库得到[0,1]的优先得分，红灯轴得分领先达到阈值时切换
type Fuzzy struct {
	cfg config.Fuzzy

	lastGreen, lastRed float64 // 最近一次决策的得分
}

// NewFuzzy 创建模糊逻辑策略
// 说明：要求0≤low<med<high
func NewFuzzy(cfg config.Fuzzy) (*Fuzzy, error) {
	if !(0 <= cfg.Low && cfg.Low < cfg.Med && cfg.Med < cfg.High) {
		return nil, invalidParams("fuzzy breakpoints must satisfy 0 <= low < med < high, got %v/%v/%v", cfg.Low, cfg.Med, cfg.High)
	}
	if cfg.SwitchMargin < 0 || !(cfg.MaxGreen > 0) {
		return nil, invalidParams("fuzzy.switch_margin must not be negative and max_green_s must be positive")
	}
	return &Fuzzy{cfg: cfg}, nil
}

func (p *Fuzzy) Name() string { return config.PolicyFuzzy }

func (p *Fuzzy) Reset() {
	p.lastGreen, p.lastRed = 0, 0
}

// Scores 最近一次决策中绿灯轴与红灯轴的得分
func (p *Fuzzy) Scores() (green, red float64) {
	return p.lastGreen, p.lastRed
}

// fuzzify 模糊化
// 算法说明：
// low为左肩梯形（≤low时为1，到med降为0）；medium为以med为顶点、low与high为底的三角形；
// high为右肩梯形（≤med时为0，到high升为1）
func (p *Fuzzy) fuzzify(q float64) (m membership) {
	low, med, high := p.cfg.Low, p.cfg.Med, p.cfg.High
	switch {
	case q <= low:
		m.Low = 1
	case q < med:
		m.Low = (med - q) / (med - low)
		m.Medium = (q - low) / (med - low)
	case q < high:
		m.Medium = (high - q) / (high - med)
		m.High = (q - med) / (high - med)
	default:
		m.High = 1
	}
	return
}

// score 一个相位轴相对于另一相位轴的优先得分
// 算法说明：
// 1. 紧迫度：low/medium/high隶属度加权平均
// 2. 压制度：本轴high对另一轴low、本轴high对另一轴medium（半权）、本轴medium对另一轴low（半权）取最大
// 3. 得分=紧迫度+压制度×权重，原始排队更多的一方加一个小的倾斜，结果截断到[0,1]
func (p *Fuzzy) score(self, other float64) float64 {
	a, b := p.fuzzify(self), p.fuzzify(other)
	urgency := urgencyLow*a.Low + urgencyMedium*a.Medium + urgencyHigh*a.High
	dominance := lo.Max([]float64{
		min(a.High, b.Low),
		0.5 * min(a.High, b.Medium),
		0.5 * min(a.Medium, b.Low),
	})
	s := urgency + dominanceWeight*dominance
	if self > other {
		s += tieNudge
	}
	return lo.Clamp(s, 0, 1)
}

// Decide 模糊逻辑决策
func (p *Fuzzy) Decide(obs Observation) (Action, error) {
	if err := obs.Validate(); err != nil {
		return Keep, err
	}
	if obs.ElapsedGreen >= p.cfg.MaxGreen {
		return Switch, nil
	}
	if obs.Empty() {
		return Keep, nil
	}
	current, other := float64(obs.Current()), float64(obs.Other())
	p.lastGreen = p.score(current, other)
	p.lastRed = p.score(other, current)
	log.Tracef("fuzzy scores green=%.3f red=%.3f", p.lastGreen, p.lastRed)
	if p.lastRed-p.lastGreen >= p.cfg.SwitchMargin {
		return Switch, nil
	}
	return Keep, nil
}
