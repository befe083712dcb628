package task

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/clock"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/intersection-sim/recorder"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/randengine"
)

// Context 仿真任务上下文
// 功能：包含一个路口仿真实例的所有变量和状态
// 说明：实例之间不共享任何可变状态（决策表只读共享），单线程逐步推进，不同实例可并行运行
type Context struct {
	// 实例ID
	runID string
	// 停止指令
	closed atomic.Bool
	// 指标输出已关闭
	sinkClosed bool

	// 时钟
	clock *clock.Clock
	// 运行时配置
	runtimeConfig *config.RuntimeConfig

	// 车辆管理器
	vehicleManager entity.IVehicleManager
	// 信控
	signal entity.ISignalController
	// 挂载的决策策略（可为nil）
	policy policy.Policy
	// q_learning使用的只读决策表
	table *policy.Table

	// 到达流随机数引擎与种子
	generator *randengine.Engine
	seed      uint64

	// 指标输出
	sink    recorder.Sink
	sinkErr error

	// 最近一次快照与累计统计
	stats     entity.QueueStats
	counters  Counters
	queueLog  []float64 // 每步排队总数
	vipLog    []float64 // 每步优先车辆排队数
	lastState string
}

// Counters 累计计数
type Counters struct {
	Spawned int // 成功生成的车辆数
	VIP     int // 其中优先车辆数
	Dropped int // 超过容量被丢弃的车辆数
	Exited  int // 驶离路口的车辆数
}

// Option 创建上下文的可选项
type Option func(*Context)

// WithRunID 指定实例ID（默认随机UUID）
func WithRunID(id string) Option {
	return func(ctx *Context) { ctx.runID = id }
}

// WithSink 指定指标输出（默认丢弃）
func WithSink(s recorder.Sink) Option {
	return func(ctx *Context) { ctx.sink = s }
}

// WithPolicy 直接挂载决策策略，优先于配置中的policy.name
func WithPolicy(p policy.Policy) Option {
	return func(ctx *Context) { ctx.policy = p }
}

// WithTable 指定q_learning策略使用的决策表
func WithTable(t *policy.Table) Option {
	return func(ctx *Context) { ctx.table = t }
}

// NewContext 创建新的仿真任务上下文
// 功能：校验配置并创建时钟、车辆管理器、信控、决策策略与随机数引擎
// 参数：
//   - c: 配置对象
//   - opts: 可选项
//
// 返回：初始化完成的Context实例；配置错误时返回错误（对实例是致命的）
func NewContext(c config.Config, opts ...Option) (*Context, error) {
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		return nil, err
	}
	vm, err := vehicle.NewManager(rc.All.Vehicle)
	if err != nil {
		return nil, err
	}
	sig, err := signal.New(rc.All.Signal)
	if err != nil {
		return nil, err
	}
	ctx := &Context{
		runID:          uuid.New().String(),
		clock:          clock.New(rc.C.Step),
		runtimeConfig:  rc,
		vehicleManager: vm,
		signal:         sig,
		seed:           rc.C.Seed,
		generator:      randengine.New(rc.C.Seed),
		sink:           recorder.Discard{},
	}
	for _, opt := range opts {
		opt(ctx)
	}
	if ctx.policy == nil && rc.All.Policy.Name != "" {
		if ctx.policy, err = policy.New(rc.All.Policy, ctx.table); err != nil {
			return nil, err
		}
	}
	if ctx.policy != nil {
		if err := ctx.signal.SetPolicy(ctx.policy); err != nil {
			return nil, err
		}
	}
	ctx.lastState = ctx.signal.State()
	return ctx, nil
}

func (ctx *Context) RunID() string {
	return ctx.runID
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) VehicleManager() entity.IVehicleManager {
	return ctx.vehicleManager
}

func (ctx *Context) Signal() entity.ISignalController {
	return ctx.signal
}

// Policy 当前挂载的决策策略
func (ctx *Context) Policy() policy.Policy {
	return ctx.policy
}

// Counters 累计计数
func (ctx *Context) Counters() Counters {
	return ctx.counters
}

// Dropped 超过容量被丢弃的车辆数
func (ctx *Context) Dropped() int {
	return ctx.counters.Dropped
}

// QueueSnapshot 当前各进口道排队统计（总数与优先车辆数）
func (ctx *Context) QueueSnapshot() entity.QueueStats {
	return ctx.vehicleManager.Snapshot()
}

// LightState 进口道当前灯色
func (ctx *Context) LightState(a entity.Approach) entity.LightState {
	return ctx.signal.LightState(a)
}

// PhaseTimeRemaining 当前信号子状态剩余时长（秒）
func (ctx *Context) PhaseTimeRemaining() float64 {
	return ctx.signal.RemainingTime()
}

// Positions 进口道上车辆的位置，供渲染层轮询
func (ctx *Context) Positions(a entity.Approach) []float64 {
	return ctx.vehicleManager.Positions(a)
}

// Spawn 在进口道生成车辆
// 参数：a-进口道，priority-是否为优先车辆
// 返回：是否生成成功；超过容量时静默丢弃并计数
func (ctx *Context) Spawn(a entity.Approach, priority bool) bool {
	if !ctx.vehicleManager.Spawn(a, priority) {
		ctx.counters.Dropped++
		return false
	}
	ctx.counters.Spawned++
	if priority {
		ctx.counters.VIP++
	}
	return true
}

// SpawnVIP 生成一辆优先车辆，进口道按各进口道到达率随机抽取
// 返回：生成的进口道与是否成功；到达率全为0时各进口道等概率
func (ctx *Context) SpawnVIP() (entity.Approach, bool) {
	rates := ctx.runtimeConfig.All.Arrival.Rates()
	weights := rates[:]
	if lo.Sum(weights) <= 0 {
		weights = []float64{1, 1, 1, 1}
	}
	a := entity.Approaches[ctx.generator.DiscreteDistribution(weights)]
	return a, ctx.Spawn(a, true)
}

// AttachPolicy 挂载决策策略
// 参数：p-决策策略，nil表示卸载
// 说明：策略挂载时被重置；四相位信控不支持挂载策略
func (ctx *Context) AttachPolicy(p policy.Policy) error {
	if err := ctx.signal.SetPolicy(p); err != nil {
		return err
	}
	ctx.policy = p
	return nil
}

// Reset 回到初始状态
// 功能：清空车辆、信控回到初始相位、策略重置、随机数以原种子重新开始、计数清零
// 说明：Reset后的仿真与新建实例的仿真逐步一致
func (ctx *Context) Reset() {
	ctx.clock.Init()
	ctx.vehicleManager.Reset()
	ctx.signal.Reset()
	ctx.generator.Reseed(ctx.seed)
	ctx.stats = entity.QueueStats{}
	ctx.counters = Counters{}
	ctx.queueLog = ctx.queueLog[:0]
	ctx.vipLog = ctx.vipLog[:0]
	ctx.lastState = ctx.signal.State()
	ctx.sinkErr = nil
	ctx.sinkClosed = false
	ctx.closed.Store(false)
}

// Stop 请求Run循环在当前步结束后退出，可在其他goroutine中调用
func (ctx *Context) Stop() {
	ctx.closed.Store(true)
}

// Close 关闭指标输出，重复调用无副作用
func (ctx *Context) Close() error {
	if ctx.sinkClosed {
		return nil
	}
	ctx.sinkClosed = true
	return ctx.sink.Close()
}
