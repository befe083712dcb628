package vehicle

import "github.com/tsinghua-fib-lab/intersection-sim/entity"

// Vehicle 进口道上的一辆车
// 功能：记录一维运动状态（距生成点的位置与速度）以及是否已驶入路口
// 说明：committed一旦置位不再撤销，此后车辆不受信号灯约束，位置单调不减直到驶离
type Vehicle struct {
	id        int32
	approach  entity.Approach
	s         float64 // 距生成点的距离
	v         float64 // 速度
	committed bool    // 已越过停车线（绿灯时）或已驶出路口
	priority  bool    // 优先车辆（VIP/紧急车辆）
}

// ID 车辆ID，同一仿真内单调递增
func (v *Vehicle) ID() int32 {
	return v.id
}

// Approach 所在进口道
func (v *Vehicle) Approach() entity.Approach {
	return v.approach
}

// Position 距生成点的距离
func (v *Vehicle) Position() float64 {
	return v.s
}

// Speed 当前速度
func (v *Vehicle) Speed() float64 {
	return v.v
}

// Committed 是否已驶入路口
func (v *Vehicle) Committed() bool {
	return v.committed
}

// Priority 是否为优先车辆
func (v *Vehicle) Priority() bool {
	return v.priority
}

// Queued 是否计入排队：在停车线及其之前且未驶入路口
func (v *Vehicle) Queued(stopLine float64) bool {
	return !v.committed && v.s <= stopLine
}
