package vehicle

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
)

// Action 单步运动约束
// 功能：一条策略给出的目标速度上限与本步位置上限，多条策略取最严格者
type Action struct {
	V     float64 // 目标速度
	Limit float64 // 本步允许到达的最远位置
}

// Update 与另一条约束合并，取更严格者
func (a *Action) Update(other Action) {
	a.V = lo.Min([]float64{a.V, other.V})
	a.Limit = lo.Min([]float64{a.Limit, other.Limit})
}

// policyFree 策略1：自由流
// 功能：没有前车与信号约束时以最高速度行驶
func (m *Manager) policyFree() Action {
	return Action{V: m.cfg.MaxSpeed, Limit: math.Inf(1)}
}

// policyCarFollow 策略2：前车跟车策略
// 功能：根据与前车的间距限制目标速度
// 参数：veh-当前车辆，ahead-前车（可能已在本步驶离），为nil表示队首
// 算法说明：
// 1. 间距小于最小车距：目标速度为0
// 2. 间距小于两倍最小车距：目标速度减半
// 3. 位置上限为前车位置减最小车距（不低于当前位置），保证不追尾、不超车
func (m *Manager) policyCarFollow(veh, ahead *Vehicle) (ac Action) {
	ac = m.policyFree()
	if ahead == nil {
		return
	}
	gap := ahead.s - veh.s
	switch {
	case gap < m.cfg.MinGap:
		ac.V = 0
	case gap < 2*m.cfg.MinGap:
		ac.V = m.cfg.MaxSpeed / 2
	}
	ac.Limit = math.Max(veh.s, ahead.s-m.cfg.MinGap)
	return
}

// policyStopLine 策略3：停车线策略
// 功能：未驶入路口且本进口非绿灯时在停车位置前减速停车
// 参数：veh-当前车辆，ahead-前车，light-本进口灯色
// 算法说明：
// 1. 停车位置=min(停车线, 前车位置-最小车距)
// 2. 已到达停车位置：目标速度为0
// 3. 距离小于减速距离：目标速度随距离线性下降
// 4. 位置上限为停车位置，黄灯与红灯一样不可过线
func (m *Manager) policyStopLine(veh, ahead *Vehicle, light entity.LightState) (ac Action) {
	ac = m.policyFree()
	if veh.committed || light == entity.LightGreen {
		return
	}
	stopPos := m.cfg.StopLine
	if ahead != nil {
		stopPos = math.Min(stopPos, ahead.s-m.cfg.MinGap)
	}
	dist := stopPos - veh.s
	switch {
	case dist <= 0:
		ac.V = 0
	case dist < m.cfg.SlowdownDistance:
		ac.V = m.cfg.MaxSpeed * dist / m.cfg.SlowdownDistance
	}
	ac.Limit = math.Max(veh.s, stopPos)
	return
}

// tryCommit 驶入路口判定
// 说明：绿灯时到达停车线，或已越过路口出口，即视为驶入路口
func (m *Manager) tryCommit(veh *Vehicle, light entity.LightState) {
	if veh.committed {
		return
	}
	if (light == entity.LightGreen && veh.s >= m.cfg.StopLine) || veh.s >= m.cfg.IntersectionEnd {
		veh.committed = true
		log.Tracef("vehicle %d on %v committed at %.1f", veh.id, veh.approach, veh.s)
	}
}

// step 单车单步更新
// 功能：合并各策略约束，平滑调整速度并前进
// 参数：veh-当前车辆，ahead-前车，light-本进口灯色，dt-步长
// 算法说明：
// 1. 驶入路口判定
// 2. 合并自由流、跟车、停车线三条策略的约束
// 3. 速度一阶平滑：v += (目标-v)·(1-exp(-dt/τ))
// 4. 位置前进并截断到位置上限，位置不后退；被截断时速度按实际位移折算
// 5. 前进后再次进行驶入路口判定
func (m *Manager) step(veh, ahead *Vehicle, light entity.LightState, dt float64) {
	m.tryCommit(veh, light)

	ac := m.policyFree()
	ac.Update(m.policyCarFollow(veh, ahead))
	ac.Update(m.policyStopLine(veh, ahead, light))

	veh.v += (ac.V - veh.v) * (1 - math.Exp(-dt/m.cfg.SpeedTau))
	veh.v = math.Max(veh.v, 0)
	next := veh.s + veh.v*dt
	if next > ac.Limit {
		next = math.Max(ac.Limit, veh.s)
		veh.v = (next - veh.s) / dt
	}
	veh.s = next

	m.tryCommit(veh, light)
}
