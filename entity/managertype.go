package entity

import (
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
)

// Manager依赖倒置

// entity/vehicle/manager.go的依赖倒置
type IVehicleManager interface {
	// 在进口道队尾生成车辆，超过容量时静默丢弃并返回false
	Spawn(a Approach, priority bool) bool
	// 按灯色推进所有车辆，返回本步驶离路口的车辆数
	Advance(lights LightGetter, dt float64) int
	// 停车线前未进入路口的车辆数
	QueueCount(a Approach, priorityOnly bool) int
	// 全部进口道的排队统计
	Snapshot() QueueStats
	// 进口道上（含路口内）的车辆数
	Len(a Approach) int
	// 进口道上车辆的位置，按队首到队尾排列
	Positions(a Approach) []float64

	Reset() // 清空所有车辆
}

// entity/signal的依赖倒置，两相位与四相位信控共同实现
type ISignalController interface {
	// 优先车辆抢占，返回true表示本步已被抢占接管（跳过正常配时与策略）
	Preempt(stats QueueStats) bool
	// 正常配时更新：询问决策策略并推进相位
	Update(stats QueueStats, dt float64)

	LightState(a Approach) LightState // 进口道当前灯色
	RemainingTime() float64           // 当前子状态剩余时长（秒）
	ActivePhase() int                 // 当前相位（两相位：0=NS 1=EW；四相位：绿灯进口道下标）
	State() string                    // 当前信号状态名
	Switches() int                    // 累计切换次数

	SetPolicy(p policy.Policy) error // 挂载决策策略（nil表示使用内置启发式）
	Reset()                          // 回到初始相位
}
