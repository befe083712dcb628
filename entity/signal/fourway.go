package signal

import (
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/container"
)

// FourWay 四相位信控
// 功能：每次只放行一个进口道，绿灯→黄灯→全红→下一个进口道绿灯
// 说明：下一个放行的进口道按排队数取最大者（同数取下标最小），不是简单轮转
type FourWay struct {
	cfg     config.Signal
	initial entity.Approach

	current  entity.Approach // 当前（或刚结束绿灯的）进口道
	next     entity.Approach // 黄灯与全红之后放行的进口道
	stage    Stage
	elapsed  float64
	switches int
}

var _ entity.ISignalController = (*FourWay)(nil)

// NewFourWay 创建四相位信控
// 参数：cfg-信号配置，使用initial_approach、min_green、max_green、amber、all_red与switch_margin
// 返回：初始为initial_approach绿灯的信控，配置非法时返回错误
func NewFourWay(cfg config.Signal) (*FourWay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := cfg.InitialApproach
	if name == "" {
		name = entity.North.String()
	}
	a, err := entity.ParseApproach(name)
	if err != nil {
		return nil, err
	}
	f := &FourWay{cfg: cfg, initial: a}
	f.Reset()
	return f, nil
}

func (f *FourWay) Reset() {
	f.current = f.initial
	f.next = f.initial
	f.stage = StageGreen
	f.elapsed = 0
	f.switches = 0
}

// SetPolicy 四相位信控只使用内置的排队比较规则，不支持挂载决策策略
func (f *FourWay) SetPolicy(p policy.Policy) error {
	if p == nil {
		return nil
	}
	return ErrPolicyUnsupported
}

// Preempt 优先车辆抢占
// 算法说明：
// 1. 只有一个进口道有优先车辆：该进口道立即绿灯
// 2. 多个进口道有优先车辆：当前进口道有则保持，否则取下标最小者
func (f *FourWay) Preempt(stats entity.QueueStats) bool {
	waiting := lo.Filter(entity.Approaches[:], func(a entity.Approach, _ int) bool {
		return stats.Priority[a] > 0
	})
	if len(waiting) == 0 {
		return false
	}
	target := waiting[0]
	if len(waiting) > 1 && stats.Priority[f.current] > 0 {
		target = f.current
	}
	if target != f.current {
		f.switches++
		log.Debugf("preempt: %v -> %v green", f.current, target)
	}
	f.current, f.next = target, target
	f.stage = StageGreen
	f.elapsed = 0
	return true
}

// Update 正常配时更新
// 算法说明：
// 1. 绿灯：全部进口道无排队时从不切换
// 2. 达到最长绿灯时强制切换到其他进口道中排队最多者，其他进口道均无排队时重新计时
// 3. 达到最短绿灯后按排队比较请求切换
// 4. 黄灯、全红：达到时长后依次转移，全红结束时放行next
func (f *FourWay) Update(stats entity.QueueStats, dt float64) {
	f.elapsed += dt
	switch f.stage {
	case StageGreen:
		if stats.Sum() == 0 {
			if f.elapsed >= f.cfg.MaxGreen {
				f.elapsed = 0
			}
			return
		}
		if f.elapsed >= f.cfg.MaxGreen {
			next, q := f.argmax(stats, true)
			if q == 0 {
				f.elapsed = 0
				return
			}
			f.next = next
			f.transit(StageYellow)
		} else if f.elapsed >= f.cfg.MinGreen && f.wantsSwitch(stats) {
			if next, _ := f.argmax(stats, false); next != f.current {
				f.next = next
				f.transit(StageYellow)
			}
		}
	case StageYellow:
		if f.elapsed >= f.cfg.Amber {
			f.transit(StageAllRed)
		}
	case StageAllRed:
		if f.elapsed >= f.cfg.AllRed {
			if f.next != f.current {
				f.switches++
			}
			f.current = f.next
			f.transit(StageGreen)
		}
	}
}

func (f *FourWay) transit(stage Stage) {
	f.stage = stage
	f.elapsed = 0
	log.Debugf("four-way -> %s", f.State())
}

// wantsSwitch 其他进口道排队超过当前进口道switch_margin，或当前进口道为空而其他不为空
func (f *FourWay) wantsSwitch(stats entity.QueueStats) bool {
	cur := stats.Total[f.current]
	return lo.SomeBy(entity.Approaches[:], func(a entity.Approach) bool {
		if a == f.current {
			return false
		}
		q := stats.Total[a]
		return q >= cur+f.cfg.SwitchMargin || (cur == 0 && q > 0)
	})
}

// argmax 排队最多的进口道
// 参数：stats-排队统计，excludeCurrent-是否排除当前进口道
// 返回：进口道及其排队数，同数时取下标最小者
func (f *FourWay) argmax(stats entity.QueueStats, excludeCurrent bool) (entity.Approach, int) {
	ranking := container.NewRanking[entity.Approach]()
	for _, a := range entity.Approaches {
		if excludeCurrent && a == f.current {
			continue
		}
		ranking.Push(a, float64(stats.Total[a]))
	}
	a, q, _ := ranking.Peek()
	return a, int(q)
}

func (f *FourWay) LightState(a entity.Approach) entity.LightState {
	if a != f.current {
		return entity.LightRed
	}
	switch f.stage {
	case StageGreen:
		return entity.LightGreen
	case StageYellow:
		return entity.LightYellow
	}
	return entity.LightRed
}

func (f *FourWay) RemainingTime() float64 {
	switch f.stage {
	case StageGreen:
		return remaining(f.cfg.MaxGreen, f.elapsed)
	case StageYellow:
		return remaining(f.cfg.Amber, f.elapsed)
	}
	return remaining(f.cfg.AllRed, f.elapsed)
}

// ActivePhase 当前进口道下标
func (f *FourWay) ActivePhase() int {
	return int(f.current)
}

// Next 黄灯与全红之后放行的进口道
func (f *FourWay) Next() entity.Approach {
	return f.next
}

// State 状态名，如NORTH_GREEN、NORTH_AMBER、ALL_RED_THEN_EAST
func (f *FourWay) State() string {
	switch f.stage {
	case StageGreen:
		return strings.ToUpper(f.current.String()) + "_GREEN"
	case StageYellow:
		return strings.ToUpper(f.current.String()) + "_AMBER"
	}
	return "ALL_RED_THEN_" + strings.ToUpper(f.next.String())
}

func (f *FourWay) Switches() int {
	return f.switches
}
