package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// 信号运行模式
const (
	ModeTwoPhase = "two_phase"
	ModeFourWay  = "four_way"
)

// 决策策略名
const (
	PolicyFixedTime   = "fixed_time"
	PolicyActuated    = "actuated"
	PolicyMaxPressure = "max_pressure"
	PolicyFuzzy       = "fuzzy"
	PolicyQLearning   = "q_learning"
)

// PolicyNames 全部可选策略名
var PolicyNames = []string{PolicyFixedTime, PolicyActuated, PolicyMaxPressure, PolicyFuzzy, PolicyQLearning}

// ErrInvalidConfig 配置错误，所有校验错误均包装该错误
var ErrInvalidConfig = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

// Default 默认配置
// 功能：返回一份可直接运行的完整配置
// 说明：时长、几何与到达率为标定值
func Default() Config {
	return Config{
		Control: Control{
			Step: ControlStep{Start: 0, Total: 36000, Interval: 0.1},
			Seed: 42,
		},
		Signal: Signal{
			Mode:            ModeTwoPhase,
			InitialAxis:     "ns",
			InitialApproach: "north",
			MinGreen:        10,
			MaxGreen:        60,
			Amber:           3,
			AllRed:          1,
			SwitchMargin:    2,
		},
		Vehicle: Vehicle{
			StopLine:         290,
			IntersectionEnd:  450,
			Exit:             800,
			MaxSpeed:         400,
			MinGap:           40,
			SlowdownDistance: 80,
			SpeedTau:         0.15,
			MaxQueue:         0,
		},
		Arrival: Arrival{
			North:          0.10,
			South:          0.08,
			East:           0.12,
			West:           0.08,
			VIPProbability: 0.03,
			Multiplier:     1,
		},
		Policy: Policy{
			FixedTime: FixedTime{SwitchEvery: 30},
			Actuated: Actuated{
				ImbalanceSwitch:       6,
				CurrentEmptyThreshold: 1,
				OpposingMinToSwitch:   3,
				MaxGreen:              60,
			},
			MaxPressure: MaxPressure{HysteresisMargin: 2, MaxGreen: 60},
			Fuzzy:       Fuzzy{Low: 2, Med: 5, High: 9, SwitchMargin: 0.15, MaxGreen: 60},
		},
		Batch: Batch{
			Loads: []Load{
				{Name: "light", Multiplier: 0.5, Duration: 600},
				{Name: "normal", Multiplier: 1, Duration: 600},
				{Name: "heavy", Multiplier: 2, Duration: 600},
			},
			Policies: []string{PolicyFixedTime, PolicyActuated, PolicyMaxPressure, PolicyFuzzy},
		},
	}
}

// Validate 校验信号配置
// 功能：检查运行模式与各时长参数
// 返回：所有错误的合并（errors.Join），无错误时为nil
func (s Signal) Validate() error {
	var errs []error
	switch s.Mode {
	case "", ModeTwoPhase, ModeFourWay:
	default:
		errs = append(errs, invalid("signal.mode %q must be %s or %s", s.Mode, ModeTwoPhase, ModeFourWay))
	}
	for _, d := range []struct {
		name string
		v    float64
	}{
		{"min_green", s.MinGreen},
		{"max_green", s.MaxGreen},
		{"amber", s.Amber},
		{"all_red", s.AllRed},
	} {
		if !(d.v > 0) || math.IsInf(d.v, 0) {
			errs = append(errs, invalid("signal.%s must be positive, got %v", d.name, d.v))
		}
	}
	if s.MinGreen > s.MaxGreen {
		errs = append(errs, invalid("signal.min_green %v exceeds max_green %v", s.MinGreen, s.MaxGreen))
	}
	if s.SwitchMargin < 0 {
		errs = append(errs, invalid("signal.switch_margin must not be negative"))
	}
	return errors.Join(errs...)
}

// Validate 校验车辆运动学配置
func (v Vehicle) Validate() error {
	var errs []error
	if !(v.StopLine > 0) {
		errs = append(errs, invalid("vehicle.stop_line must be positive"))
	}
	if !(v.IntersectionEnd > v.StopLine) {
		errs = append(errs, invalid("vehicle.intersection_end must be beyond stop_line"))
	}
	if v.Exit < v.IntersectionEnd {
		errs = append(errs, invalid("vehicle.exit must not precede intersection_end"))
	}
	if !(v.MaxSpeed > 0) {
		errs = append(errs, invalid("vehicle.max_speed must be positive"))
	}
	if !(v.MinGap > 0) {
		errs = append(errs, invalid("vehicle.min_gap must be positive"))
	}
	if v.SlowdownDistance < 0 {
		errs = append(errs, invalid("vehicle.slowdown_distance must not be negative"))
	}
	if !(v.SpeedTau > 0) {
		errs = append(errs, invalid("vehicle.speed_tau must be positive"))
	}
	if v.MaxQueue < 0 {
		errs = append(errs, invalid("vehicle.max_queue must not be negative"))
	}
	return errors.Join(errs...)
}

// Validate 校验到达配置
func (a Arrival) Validate() error {
	var errs []error
	for i, r := range a.Rates() {
		if r < 0 {
			errs = append(errs, invalid("arrival rate #%d must not be negative", i))
		}
	}
	if a.VIPProbability < 0 || a.VIPProbability > 1 {
		errs = append(errs, invalid("arrival.vip_probability must be within [0,1]"))
	}
	if a.Multiplier < 0 {
		errs = append(errs, invalid("arrival.multiplier must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidPolicyName 策略名是否合法（空名表示不挂载策略）
func ValidPolicyName(name string) bool {
	if name == "" {
		return true
	}
	for _, n := range PolicyNames {
		if n == name {
			return true
		}
	}
	return false
}

// Validate 校验整个配置
// 功能：依次检查各配置段，返回全部错误
// 说明：构造仿真实例前必须通过校验，配置错误对实例是致命的
func (c Config) Validate() error {
	var errs []error
	if !(c.Control.Step.Interval > 0) {
		errs = append(errs, invalid("control.step.interval must be positive"))
	}
	if c.Control.Step.Total < 0 || c.Control.Step.Start < 0 {
		errs = append(errs, invalid("control.step.start/total must not be negative"))
	}
	errs = append(errs, c.Signal.Validate(), c.Vehicle.Validate(), c.Arrival.Validate())
	if !ValidPolicyName(c.Policy.Name) {
		errs = append(errs, invalid("policy.name %q must be one of %s", c.Policy.Name, strings.Join(PolicyNames, "|")))
	}
	for _, l := range c.Batch.Loads {
		if l.Multiplier < 0 || !(l.Duration > 0) {
			errs = append(errs, invalid("batch load %q needs a non-negative multiplier and a positive duration", l.Name))
		}
	}
	for _, p := range c.Batch.Policies {
		if p == "" || !ValidPolicyName(p) {
			errs = append(errs, invalid("batch policy %q must be one of %s", p, strings.Join(PolicyNames, "|")))
		}
	}
	if c.Batch.Workers < 0 {
		errs = append(errs, invalid("batch.workers must not be negative"))
	}
	return errors.Join(errs...)
}

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息
// 说明：将YAML配置转换为运行时可用的配置对象
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：校验配置并创建运行时配置对象
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针，配置非法时返回错误
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Signal.Mode == "" {
		config.Signal.Mode = ModeTwoPhase
	}
	return &RuntimeConfig{All: config, C: config.Control}, nil
}

// StepsFor 将时长（秒）换算为步数，向上取整
func (rc *RuntimeConfig) StepsFor(seconds float64) int32 {
	return int32(math.Ceil(seconds/rc.C.Step.Interval - 1e-9))
}
