package vehicle

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

// Manager 车辆管理器
// 功能：维护四个进口道的先进先出车辆队列，负责生成、推进、排队统计与移除
// 说明：队列按位置有序（队首在最前方），车辆之间不会超车，跟车只看前一辆车
type Manager struct {
	cfg    config.Vehicle
	queues [entity.NumApproaches][]*Vehicle
	nextID int32
}

var _ entity.IVehicleManager = (*Manager)(nil)

// NewManager 创建车辆管理器
// 参数：cfg-车辆运动学配置
// 返回：车辆管理器，配置非法时返回错误
func NewManager(cfg config.Vehicle) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg}, nil
}

// Spawn 在进口道队尾生成车辆
// 功能：在位置0处加入一辆车，初速度为自由流速度（紧贴队尾时为0）
// 参数：a-进口道，priority-是否为优先车辆
// 返回：是否生成成功，超过进口道容量时静默丢弃并返回false
func (m *Manager) Spawn(a entity.Approach, priority bool) bool {
	q := m.queues[a]
	if m.cfg.MaxQueue > 0 && len(q) >= m.cfg.MaxQueue {
		log.Debugf("approach %v full (%d), vehicle dropped", a, len(q))
		return false
	}
	v := m.cfg.MaxSpeed
	if n := len(q); n > 0 && q[n-1].s < m.cfg.MinGap {
		v = 0
	}
	m.nextID++
	m.queues[a] = append(q, &Vehicle{
		id:       m.nextID,
		approach: a,
		v:        v,
		priority: priority,
	})
	return true
}

// Advance 推进所有车辆
// 功能：对每个进口道从队首到队尾逐车更新，移除越过驶离位置的车辆
// 参数：lights-按进口道查询灯色，dt-步长（秒）
// 返回：本步驶离的车辆数
// 说明：本步驶离的车辆仍作为其后车的前车参与跟车计算
func (m *Manager) Advance(lights entity.LightGetter, dt float64) int {
	exited := 0
	for _, a := range entity.Approaches {
		light := lights(a)
		q := m.queues[a]
		kept := q[:0]
		var ahead *Vehicle
		for _, veh := range q {
			m.step(veh, ahead, light, dt)
			ahead = veh
			if veh.s > m.cfg.Exit {
				exited++
				continue
			}
			kept = append(kept, veh)
		}
		for i := len(kept); i < len(q); i++ {
			q[i] = nil
		}
		m.queues[a] = kept
	}
	return exited
}

// QueueCount 进口道排队车辆数
// 参数：a-进口道，priorityOnly-是否只统计优先车辆
// 返回：停车线及其之前且未驶入路口的车辆数
func (m *Manager) QueueCount(a entity.Approach, priorityOnly bool) int {
	return lo.CountBy(m.queues[a], func(v *Vehicle) bool {
		return v.Queued(m.cfg.StopLine) && (!priorityOnly || v.priority)
	})
}

// Snapshot 全部进口道的排队统计
func (m *Manager) Snapshot() (s entity.QueueStats) {
	for _, a := range entity.Approaches {
		s.Total[a] = m.QueueCount(a, false)
		s.Priority[a] = m.QueueCount(a, true)
	}
	return
}

// Len 进口道上（含路口内）的车辆数
func (m *Manager) Len(a entity.Approach) int {
	return len(m.queues[a])
}

// Vehicles 进口道车辆的只读副本，按队首到队尾排列
func (m *Manager) Vehicles(a entity.Approach) []Vehicle {
	return lo.Map(m.queues[a], func(v *Vehicle, _ int) Vehicle { return *v })
}

// Positions 进口道上车辆的位置，按队首到队尾排列
func (m *Manager) Positions(a entity.Approach) []float64 {
	return lo.Map(m.queues[a], func(v *Vehicle, _ int) float64 { return v.s })
}

// Reset 清空所有车辆，车辆ID重新从1开始
func (m *Manager) Reset() {
	for i := range m.queues {
		m.queues[i] = nil
	}
	m.nextID = 0
}
