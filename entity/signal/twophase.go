package signal

import (
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

// TwoPhase 两相位信控
// 功能：南北轴与东西轴交替放行，绿灯→黄灯→全红→另一轴绿灯
// 说明：绿灯时长受最短绿灯（不得提前切换）与最长绿灯（强制切换）约束，黄灯与全红除抢占外不可中断
type TwoPhase struct {
	cfg     config.Signal
	initial entity.Axis

	phase    Phase
	elapsed  float64 // 当前子状态已持续时长（秒）
	policy   policy.Policy
	switches int // 完成的相位切换次数
	failures int // 决策策略失败（错误或panic）次数
}

var _ entity.ISignalController = (*TwoPhase)(nil)

// NewTwoPhase 创建两相位信控
// 参数：cfg-信号配置
// 返回：初始为initial_axis绿灯的信控，配置非法时返回错误
func NewTwoPhase(cfg config.Signal) (*TwoPhase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	axis, err := entity.ParseAxis(cfg.InitialAxis)
	if err != nil {
		return nil, err
	}
	t := &TwoPhase{cfg: cfg, initial: axis}
	t.Reset()
	return t, nil
}

// Reset 回到初始绿灯轴，计时与计数清零，已挂载的策略同时重置
func (t *TwoPhase) Reset() {
	t.phase = Phase{Axis: t.initial, Stage: StageGreen}
	t.elapsed = 0
	t.switches = 0
	t.failures = 0
	if t.policy != nil {
		t.policy.Reset()
	}
}

// SetPolicy 挂载决策策略
// 参数：p-决策策略，nil表示卸载并使用内置启发式
// 说明：挂载时重置策略内部状态
func (t *TwoPhase) SetPolicy(p policy.Policy) error {
	t.policy = p
	if p != nil {
		p.Reset()
		log.Infof("policy %s attached", p.Name())
	}
	return nil
}

// Policy 当前挂载的决策策略
func (t *TwoPhase) Policy() policy.Policy {
	return t.policy
}

// Preempt 优先车辆抢占
// 功能：有优先车辆等待时跳过正常配时，直接给出绿灯
// 参数：stats-本步排队统计
// 返回：是否有优先车辆等待（true时本步不再执行Update）
// 算法说明：
// 1. 没有优先车辆：返回false
// 2. 只有一个轴有优先车辆：该轴立即绿灯（跳过黄灯与全红），绿灯计时清零
// 3. 两个轴都有：保持当前（或刚结束绿灯的）轴为绿灯
func (t *TwoPhase) Preempt(stats entity.QueueStats) bool {
	ns, ew := stats.AxisPriority(entity.AxisNS), stats.AxisPriority(entity.AxisEW)
	if ns == 0 && ew == 0 {
		return false
	}
	target := t.phase.Axis
	switch {
	case ns > 0 && ew == 0:
		target = entity.AxisNS
	case ew > 0 && ns == 0:
		target = entity.AxisEW
	}
	if target != t.phase.Axis {
		t.switches++
		log.Debugf("preempt: %v -> %v_GREEN", t.phase, target)
	}
	t.phase = Phase{Axis: target, Stage: StageGreen}
	t.elapsed = 0
	return true
}

// Update 正常配时更新
// 功能：推进计时并按状态机规则转移
// 参数：stats-本步排队统计，dt-步长（秒）
// 算法说明：
// 1. 绿灯：达到最长绿灯强制进入黄灯；达到最短绿灯后询问策略（每步至多一次）
// 2. 黄灯：达到黄灯时长进入全红
// 3. 全红：达到全红时长切换到另一轴绿灯，绿灯计时清零
func (t *TwoPhase) Update(stats entity.QueueStats, dt float64) {
	t.elapsed += dt
	switch t.phase.Stage {
	case StageGreen:
		if t.elapsed >= t.cfg.MaxGreen || (t.elapsed >= t.cfg.MinGreen && t.shouldSwitch(stats)) {
			t.transit(StageYellow)
		}
	case StageYellow:
		if t.elapsed >= t.cfg.Amber {
			t.transit(StageAllRed)
		}
	case StageAllRed:
		if t.elapsed >= t.cfg.AllRed {
			t.phase.Axis = t.phase.Axis.Other()
			t.switches++
			t.transit(StageGreen)
		}
	}
}

func (t *TwoPhase) transit(stage Stage) {
	t.phase.Stage = stage
	t.elapsed = 0
	log.Debugf("phase -> %v", t.phase)
}

// shouldSwitch 是否切换当前绿灯
// 算法说明：
// 1. 路口全空：不切换，也不询问策略
// 2. 未挂载策略：使用内置启发式
// 3. 策略返回错误或panic：记录告警，本步使用内置启发式
func (t *TwoPhase) shouldSwitch(stats entity.QueueStats) bool {
	if stats.Sum() == 0 {
		return false
	}
	current, other := stats.AxisTotal(t.phase.Axis), stats.AxisTotal(t.phase.Axis.Other())
	if t.policy == nil {
		return fallbackSwitch(current, other)
	}
	a, err := safeDecide(t.policy, t.observation(stats))
	if err != nil {
		t.failures++
		log.Warnf("policy %s failed, fallback to imbalance heuristic: %v", t.policy.Name(), err)
		return fallbackSwitch(current, other)
	}
	return a == policy.Switch
}

func (t *TwoPhase) observation(stats entity.QueueStats) policy.Observation {
	return policy.Observation{
		QN:           stats.Total[entity.North],
		QS:           stats.Total[entity.South],
		QE:           stats.Total[entity.East],
		QW:           stats.Total[entity.West],
		Phase:        int(t.phase.Axis),
		ElapsedGreen: t.elapsed,
	}
}

// LightState 进口道灯色
func (t *TwoPhase) LightState(a entity.Approach) entity.LightState {
	if a.Axis() != t.phase.Axis {
		return entity.LightRed
	}
	switch t.phase.Stage {
	case StageGreen:
		return entity.LightGreen
	case StageYellow:
		return entity.LightYellow
	}
	return entity.LightRed
}

// RemainingTime 当前子状态剩余时长
// 说明：绿灯时为距最长绿灯的时长
func (t *TwoPhase) RemainingTime() float64 {
	switch t.phase.Stage {
	case StageGreen:
		return remaining(t.cfg.MaxGreen, t.elapsed)
	case StageYellow:
		return remaining(t.cfg.Amber, t.elapsed)
	}
	return remaining(t.cfg.AllRed, t.elapsed)
}

// Phase 当前状态
func (t *TwoPhase) Phase() Phase {
	return t.phase
}

// Elapsed 当前子状态已持续时长
func (t *TwoPhase) Elapsed() float64 {
	return t.elapsed
}

// ActivePhase 0=南北轴，1=东西轴
func (t *TwoPhase) ActivePhase() int {
	return int(t.phase.Axis)
}

func (t *TwoPhase) State() string {
	return t.phase.String()
}

func (t *TwoPhase) Switches() int {
	return t.switches
}

// Failures 决策策略失败次数
func (t *TwoPhase) Failures() int {
	return t.failures
}
