package entity

import (
	"fmt"
	"strings"
)

// Approach 路口进口道
// 功能：标识一个方向的进口车道组，每个进口道拥有一条先进先出的车辆队列
type Approach int

// 进口道常量，顺序即队列统计数组的下标
const (
	North Approach = iota // 北进口
	South                 // 南进口
	East                  // 东进口
	West                  // 西进口
)

// NumApproaches 进口道数量
const NumApproaches = 4

// Approaches 按下标顺序排列的全部进口道
var Approaches = [NumApproaches]Approach{North, South, East, West}

var approachNames = [NumApproaches]string{"north", "south", "east", "west"}

func (a Approach) String() string {
	if a < 0 || int(a) >= NumApproaches {
		return fmt.Sprintf("Approach(%d)", int(a))
	}
	return approachNames[a]
}

// Axis 获取进口道所属的相位轴
// 功能：南北进口属于NS轴，东西进口属于EW轴
func (a Approach) Axis() Axis {
	if a == North || a == South {
		return AxisNS
	}
	return AxisEW
}

// ParseApproach 将名字（north/south/east/west或N/S/E/W）解析为进口道
func ParseApproach(s string) (Approach, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n":
		return North, nil
	case "south", "s":
		return South, nil
	case "east", "e":
		return East, nil
	case "west", "w":
		return West, nil
	}
	return 0, fmt.Errorf("unknown approach %q", s)
}

// Axis 两相位信控中的相位轴
type Axis int

const (
	AxisNS Axis = iota // 南北轴
	AxisEW             // 东西轴
)

func (x Axis) String() string {
	if x == AxisNS {
		return "NS"
	}
	return "EW"
}

// Other 另一相位轴
func (x Axis) Other() Axis {
	if x == AxisNS {
		return AxisEW
	}
	return AxisNS
}

// Approaches 相位轴包含的两个进口道
func (x Axis) Approaches() [2]Approach {
	if x == AxisNS {
		return [2]Approach{North, South}
	}
	return [2]Approach{East, West}
}

// ParseAxis 将ns/ew解析为相位轴
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ns", "":
		return AxisNS, nil
	case "ew":
		return AxisEW, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// LightState 车道信号灯状态
type LightState int

const (
	LightRed    LightState = iota // 红灯
	LightYellow                   // 黄灯
	LightGreen                    // 绿灯
)

func (l LightState) String() string {
	switch l {
	case LightGreen:
		return "green"
	case LightYellow:
		return "yellow"
	default:
		return "red"
	}
}

// LightGetter 按进口道查询当前灯色
type LightGetter func(a Approach) LightState

// QueueStats 每个进口道的排队统计
// 功能：每步由车辆模型重新计算，对信控与决策策略只读，不跨步保存
type QueueStats struct {
	Total    [NumApproaches]int // 停车线前未进入路口的车辆数
	Priority [NumApproaches]int // 其中优先车辆（VIP/紧急车辆）数
}

// AxisTotal 相位轴上的排队车辆总数
func (s QueueStats) AxisTotal(x Axis) int {
	as := x.Approaches()
	return s.Total[as[0]] + s.Total[as[1]]
}

// AxisPriority 相位轴上的排队优先车辆总数
func (s QueueStats) AxisPriority(x Axis) int {
	as := x.Approaches()
	return s.Priority[as[0]] + s.Priority[as[1]]
}

// Sum 全部进口道排队车辆总数
func (s QueueStats) Sum() int {
	n := 0
	for _, q := range s.Total {
		n += q
	}
	return n
}

// PrioritySum 全部进口道排队优先车辆总数
func (s QueueStats) PrioritySum() int {
	n := 0
	for _, q := range s.Priority {
		n += q
	}
	return n
}
