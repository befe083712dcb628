package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
	"github.com/tsinghua-fib-lab/intersection-sim/recorder"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"golang.org/x/sync/errgroup"
)

// Result 批量实验中一次仿真的结果
type Result struct {
	Load   string
	Policy string
	Seed   uint64
	Summary
}

// RunBatch 批量实验
// 功能：对每个负载等级与每个策略的组合独立运行一次无界面仿真并汇总
// 参数：
//   - goCtx: 取消信号
//   - c: 基础配置，batch段给出负载等级、策略列表与并发数
//   - table: q_learning使用的只读决策表，可为nil
//   - db: 指标数据库，nil时不保存逐步指标与汇总
//
// 返回：按负载等级、策略顺序排列的结果
// 算法说明：
// 1. 同一负载等级下所有策略使用相同种子（基础种子+负载序号），到达流一致，策略之间可比
// 2. 每个组合是独立的仿真实例，只共享只读的决策表与串行化写入的数据库，可并行运行
// 3. 任一实例失败时取消其余实例并返回第一个错误
func RunBatch(goCtx context.Context, c config.Config, table *policy.Table, db *recorder.DB) ([]Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	loads, policies := c.Batch.Loads, c.Batch.Policies
	results := make([]Result, len(loads)*len(policies))

	g, gCtx := errgroup.WithContext(goCtx)
	if c.Batch.Workers > 0 {
		g.SetLimit(c.Batch.Workers)
	}
	for i, load := range loads {
		for j, name := range policies {
			load, name := load, name
			idx := i*len(policies) + j
			rc := c
			rc.Control.Seed = c.Control.Seed + uint64(i)
			rc.Arrival.Multiplier = load.Multiplier
			rc.Policy.Name = name
			rc.Control.Step.Start = 0
			rc.Control.Step.Total = stepsFor(load.Duration, c.Control.Step.Interval)

			g.Go(func() error {
				runID := uuid.New().String()
				var sink recorder.Sink = recorder.Discard{}
				if db != nil {
					sink = db.NewSink()
				}
				ctx, err := NewContext(rc, WithRunID(runID), WithSink(sink), WithTable(table))
				if err != nil {
					return fmt.Errorf("batch %s/%s: %w", load.Name, name, err)
				}
				if err := ctx.Run(gCtx); err != nil {
					return fmt.Errorf("batch %s/%s: %w", load.Name, name, err)
				}
				r := Result{Load: load.Name, Policy: name, Seed: rc.Control.Seed, Summary: ctx.Summary()}
				results[idx] = r
				if db != nil {
					if err := db.RecordRun(r.Run()); err != nil {
						return fmt.Errorf("batch %s/%s: record run: %w", load.Name, name, err)
					}
				}
				log.Infof("batch %s/%s: mean_queue=%.2f throughput=%d", load.Name, name, r.MeanQueue, r.Throughput)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Run 转换为数据库中的汇总行
func (r Result) Run() recorder.Run {
	return recorder.Run{
		RunID:        r.RunID,
		Load:         r.Load,
		Policy:       r.Policy,
		Seed:         r.Seed,
		Steps:        r.Steps,
		MeanQueue:    r.MeanQueue,
		StdQueue:     r.StdQueue,
		MaxQueue:     r.MaxQueue,
		MeanPriority: r.MeanPriority,
		Throughput:   r.Throughput,
		Switches:     r.Switches,
	}
}

func stepsFor(seconds, interval float64) int32 {
	rc := config.RuntimeConfig{C: config.Control{Step: config.ControlStep{Interval: interval}}}
	return rc.StepsFor(seconds)
}
