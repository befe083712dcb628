// 路口信号控制：相位状态机（绿灯/黄灯/全红、最短/最长绿灯、优先车辆抢占）
package signal

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

var (
	ErrPolicyUnsupported = errors.New("signal: four-way controller does not accept a decision policy")
	ErrPolicyPanic       = errors.New("signal: decision policy panicked")
)

// Stage 相位内的子状态
type Stage int

const (
	StageGreen  Stage = iota // 绿灯
	StageYellow              // 黄灯
	StageAllRed              // 全红清空
)

func (s Stage) String() string {
	switch s {
	case StageGreen:
		return "GREEN"
	case StageYellow:
		return "YELLOW"
	default:
		return "ALL_RED"
	}
}

// Phase 两相位信控状态
// 说明：Axis为当前（或刚结束）绿灯的相位轴，全红时下一个绿灯轴为Axis.Other()
type Phase struct {
	Axis  entity.Axis
	Stage Stage
}

// String 状态名：NS_GREEN、NS_YELLOW、ALL_RED_THEN_EW、EW_GREEN、EW_YELLOW、ALL_RED_THEN_NS
func (p Phase) String() string {
	if p.Stage == StageAllRed {
		return "ALL_RED_THEN_" + p.Axis.Other().String()
	}
	return p.Axis.String() + "_" + p.Stage.String()
}

// New 按运行模式创建信控
// 参数：cfg-信号配置
// 返回：两相位或四相位信控，配置非法时返回错误
func New(cfg config.Signal) (entity.ISignalController, error) {
	switch cfg.Mode {
	case config.ModeFourWay:
		return NewFourWay(cfg)
	case "", config.ModeTwoPhase:
		return NewTwoPhase(cfg)
	}
	return nil, fmt.Errorf("%w: signal.mode %q", config.ErrInvalidConfig, cfg.Mode)
}

// safeDecide 调用决策策略，将panic转为错误
func safeDecide(p policy.Policy, obs policy.Observation) (a policy.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			a, err = policy.Keep, fmt.Errorf("%w: %v", ErrPolicyPanic, r)
		}
	}()
	return p.Decide(obs)
}

// fallbackSwitch 内置不平衡启发式
// 功能：红灯轴排队超过绿灯轴两倍且至少3辆时切换
func fallbackSwitch(current, other int) bool {
	return other >= 3 && other > 2*current
}

// remaining 子状态剩余时长，不小于0
func remaining(total, elapsed float64) float64 {
	return max(total-elapsed, 0)
}
