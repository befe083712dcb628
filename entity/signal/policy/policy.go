// 信号决策策略：每个控制步根据排队观测决定保持或切换当前绿灯轴
package policy

import (
	"errors"
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

var (
	ErrInvalidObservation = errors.New("policy: invalid observation")
	ErrUnknownPolicy      = errors.New("policy: unknown policy")
	ErrNoTable            = errors.New("policy: q_learning requires a decision table")
)

// Action 决策结果
type Action int

const (
	Keep   Action = iota // 保持当前绿灯
	Switch               // 切换到另一相位轴
)

func (a Action) String() string {
	if a == Switch {
		return "SWITCH"
	}
	return "KEEP"
}

// 当前绿灯轴
const (
	PhaseNS = 0
	PhaseEW = 1
)

// Observation 决策输入
// 功能：一个控制步内各进口道排队数、当前绿灯轴与绿灯已持续时长
type Observation struct {
	QN, QS, QE, QW int
	Phase          int     // 0=南北绿灯，1=东西绿灯
	ElapsedGreen   float64 // 当前绿灯已持续时长（秒）
}

// NS 南北轴排队总数
func (o Observation) NS() int { return o.QN + o.QS }

// EW 东西轴排队总数
func (o Observation) EW() int { return o.QE + o.QW }

// Current 绿灯轴排队总数
func (o Observation) Current() int {
	if o.Phase == PhaseNS {
		return o.NS()
	}
	return o.EW()
}

// Other 红灯轴排队总数
func (o Observation) Other() int {
	if o.Phase == PhaseNS {
		return o.EW()
	}
	return o.NS()
}

// Empty 所有进口道均无排队
func (o Observation) Empty() bool {
	return o.NS()+o.EW() == 0
}

// Validate 检查观测是否合法
func (o Observation) Validate() error {
	if o.QN < 0 || o.QS < 0 || o.QE < 0 || o.QW < 0 {
		return fmt.Errorf("%w: negative queue %+v", ErrInvalidObservation, o)
	}
	if o.Phase != PhaseNS && o.Phase != PhaseEW {
		return fmt.Errorf("%w: phase %d", ErrInvalidObservation, o.Phase)
	}
	if math.IsNaN(o.ElapsedGreen) || o.ElapsedGreen < 0 {
		return fmt.Errorf("%w: elapsed green %v", ErrInvalidObservation, o.ElapsedGreen)
	}
	return nil
}

// Policy 决策策略
// 功能：根据观测返回KEEP或SWITCH，结果只取决于输入与策略自身的私有状态
// 说明：策略被挂载到信控上时调用Reset；Decide返回错误或panic时由信控回退到内置启发式
type Policy interface {
	Name() string
	Reset()
	Decide(obs Observation) (Action, error)
}

func invalidParams(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{config.ErrInvalidConfig}, args...)...)
}

// New 按名字创建决策策略
// 参数：cfg-策略配置，table-q_learning使用的决策表（其他策略忽略）
// 返回：策略实例；名字未知、参数非法或缺少决策表时返回错误
func New(cfg config.Policy, table *Table) (Policy, error) {
	switch cfg.Name {
	case config.PolicyFixedTime:
		return NewFixedTime(cfg.FixedTime)
	case config.PolicyActuated:
		return NewActuated(cfg.Actuated)
	case config.PolicyMaxPressure:
		return NewMaxPressure(cfg.MaxPressure)
	case config.PolicyFuzzy:
		return NewFuzzy(cfg.Fuzzy)
	case config.PolicyQLearning:
		if table == nil {
			return nil, ErrNoTable
		}
		return NewTablePolicy(table), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, cfg.Name)
}
