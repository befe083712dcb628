package task

import (
	"context"
	"flag"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/recorder"
	"gonum.org/v1/gonum/stat"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 1000, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：推进时钟并注入本步到达的车辆
// 算法说明：
// 1. 更新时钟：增加内部步数并计算当前时间
// 2. 心跳日志：定期输出系统状态信息
// 3. 车辆到达：每个进口道按泊松分布（到达率×倍率×步长）生成车辆，每辆车按概率成为优先车辆
func (ctx *Context) prepare(dt float64) {
	ctx.clock.Advance(dt)

	if *heartBeatInterval > 0 && ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) run=%s queue=%d state=%s exited=%d",
			ctx.clock.InternalStep,
			hour, minute, second,
			ctx.runID, ctx.stats.Sum(), ctx.signal.State(), ctx.counters.Exited,
		)
	}

	arrival := ctx.runtimeConfig.All.Arrival
	for i, rate := range arrival.Rates() {
		n := ctx.generator.Poisson(rate * arrival.Multiplier * dt)
		for j := 0; j < n; j++ {
			ctx.Spawn(entity.Approaches[i], ctx.generator.PTrue(arrival.VIPProbability))
		}
	}
}

// update 更新阶段，每步执行一次
// 功能：抢占检查、信控决策与相位推进、车辆运动、统计快照与指标输出
// 算法说明：
// 1. 读取排队快照
// 2. 有优先车辆等待时由抢占接管，跳过正常配时与策略
// 3. 否则信控按配时规则更新（必要时询问策略）
// 4. 车辆按新的灯色前进，统计驶离数
// 5. 重新快照并写入指标输出
func (ctx *Context) update(dt float64) {
	stats := ctx.vehicleManager.Snapshot()
	if !ctx.signal.Preempt(stats) {
		ctx.signal.Update(stats, dt)
	}
	if state := ctx.signal.State(); state != ctx.lastState {
		log.Debugf("t=%.1f %s -> %s", ctx.clock.T, ctx.lastState, state)
		ctx.lastState = state
	}
	ctx.counters.Exited += ctx.vehicleManager.Advance(ctx.signal.LightState, dt)

	ctx.stats = ctx.vehicleManager.Snapshot()
	ctx.queueLog = append(ctx.queueLog, float64(ctx.stats.Sum()))
	ctx.vipLog = append(ctx.vipLog, float64(ctx.stats.PrioritySum()))

	r := recorder.NewRecord(ctx.runID, ctx.clock.InternalStep, ctx.clock.T, ctx.stats)
	r.ActivePhase = ctx.signal.ActivePhase()
	r.State = ctx.signal.State()
	r.Exited = ctx.counters.Exited
	if err := ctx.sink.Write(r); err != nil && ctx.sinkErr == nil {
		ctx.sinkErr = err
		log.Errorf("run %s: metrics sink failed: %v", ctx.runID, err)
	}
}

// Advance 按给定步长推进一步
// 参数：dt-步长（秒），可来自墙上时间或固定步长
func (ctx *Context) Advance(dt float64) {
	ctx.prepare(dt)
	ctx.update(dt)
}

// Step 按配置的固定步长推进一步
func (ctx *Context) Step() {
	ctx.Advance(ctx.clock.DT)
}

// Run 运行
// 功能：逐步推进直到结束步、Stop被调用或goCtx取消，结束后关闭指标输出
// 返回：goCtx取消时返回其错误，否则返回指标输出的错误
func (ctx *Context) Run(goCtx context.Context) error {
	log.Infof("run %s start: policy=%s mode=%s", ctx.runID, ctx.policyName(), ctx.runtimeConfig.All.Signal.Mode)
	var err error
	for !ctx.clock.Finished() && !ctx.closed.Load() {
		if err = goCtx.Err(); err != nil {
			break
		}
		ctx.Step()
	}
	if cerr := ctx.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.sinkErr
	}
	s := ctx.Summary()
	log.Infof("run %s complete at %s: steps=%d mean_queue=%.2f max_queue=%d throughput=%d switches=%d",
		ctx.runID, ctx.clock, s.Steps, s.MeanQueue, s.MaxQueue, s.Throughput, s.Switches)
	return err
}

func (ctx *Context) policyName() string {
	if ctx.policy == nil {
		return "builtin"
	}
	return ctx.policy.Name()
}

// Summary 仿真汇总
type Summary struct {
	RunID        string
	Steps        int
	MeanQueue    float64 // 每步排队总数的均值
	StdQueue     float64 // 每步排队总数的标准差
	MaxQueue     int     // 每步排队总数的最大值
	MeanPriority float64 // 每步优先车辆排队数的均值
	Throughput   int     // 驶离车辆数
	Switches     int     // 相位切换次数
	Counters
}

// Summary 当前为止的汇总
func (ctx *Context) Summary() Summary {
	s := Summary{
		RunID:      ctx.runID,
		Steps:      len(ctx.queueLog),
		Throughput: ctx.counters.Exited,
		Switches:   ctx.signal.Switches(),
		Counters:   ctx.counters,
	}
	if len(ctx.queueLog) == 0 {
		return s
	}
	s.MeanQueue, s.StdQueue = stat.MeanStdDev(ctx.queueLog, nil)
	s.MaxQueue = int(lo.Max(ctx.queueLog))
	s.MeanPriority = stat.Mean(ctx.vipLog, nil)
	return s
}
