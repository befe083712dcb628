package task_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
	"github.com/tsinghua-fib-lab/intersection-sim/recorder"
	"github.com/tsinghua-fib-lab/intersection-sim/task"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

func quiet() config.Config {
	c := config.Default()
	c.Control.Step.Total = 100
	c.Arrival = config.Arrival{Multiplier: 1}
	return c
}

func TestNewContext(t *testing.T) {
	ctx, err := task.NewContext(quiet(), task.WithRunID("r"))
	require.NoError(t, err)
	assert.Equal(t, "r", ctx.RunID())
	assert.Equal(t, "NS_GREEN", ctx.Signal().State())
	assert.Equal(t, entity.LightGreen, ctx.LightState(entity.North))
	assert.Equal(t, entity.LightGreen, ctx.LightState(entity.South))
	assert.Equal(t, entity.LightRed, ctx.LightState(entity.East))
	assert.Nil(t, ctx.Policy())
	assert.InDelta(t, 60, ctx.PhaseTimeRemaining(), 1e-9)

	bad := quiet()
	bad.Signal.MinGreen = 100
	_, err = task.NewContext(bad)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestPolicyFromConfig(t *testing.T) {
	c := quiet()
	c.Policy.Name = config.PolicyMaxPressure
	ctx, err := task.NewContext(c)
	require.NoError(t, err)
	require.NotNil(t, ctx.Policy())
	assert.Equal(t, config.PolicyMaxPressure, ctx.Policy().Name())

	c.Policy.Name = config.PolicyQLearning
	_, err = task.NewContext(c)
	assert.ErrorIs(t, err, policy.ErrNoTable)
}

func TestAttachPolicy(t *testing.T) {
	ctx, err := task.NewContext(quiet())
	require.NoError(t, err)
	p, err := policy.NewFixedTime(config.FixedTime{SwitchEvery: 12})
	require.NoError(t, err)
	require.NoError(t, ctx.AttachPolicy(p))
	assert.Equal(t, p, ctx.Policy())
	require.NoError(t, ctx.AttachPolicy(nil))
	assert.Nil(t, ctx.Policy())

	c := quiet()
	c.Signal.Mode = config.ModeFourWay
	four, err := task.NewContext(c)
	require.NoError(t, err)
	assert.ErrorIs(t, four.AttachPolicy(p), signal.ErrPolicyUnsupported)
	_, err = task.NewContext(c, task.WithPolicy(p))
	assert.ErrorIs(t, err, signal.ErrPolicyUnsupported)
}

func TestSpawnCapacity(t *testing.T) {
	c := quiet()
	c.Vehicle.MaxQueue = 2
	ctx, err := task.NewContext(c)
	require.NoError(t, err)
	assert.True(t, ctx.Spawn(entity.North, false))
	assert.True(t, ctx.Spawn(entity.North, true))
	assert.False(t, ctx.Spawn(entity.North, false))
	assert.True(t, ctx.Spawn(entity.East, false))
	assert.Equal(t, task.Counters{Spawned: 3, VIP: 1, Dropped: 1}, ctx.Counters())
	assert.Equal(t, 1, ctx.Dropped())
	assert.Equal(t, 2, ctx.QueueSnapshot().Total[entity.North])
}

func TestPreemptSameStep(t *testing.T) {
	ctx, err := task.NewContext(quiet())
	require.NoError(t, err)
	require.True(t, ctx.Spawn(entity.East, true))
	ctx.Step()
	assert.Equal(t, "EW_GREEN", ctx.Signal().State())
	assert.Equal(t, entity.LightGreen, ctx.LightState(entity.East))
	assert.Equal(t, entity.LightRed, ctx.LightState(entity.North))
	assert.Equal(t, 1, ctx.Signal().Switches())
}

func TestNeverConflictingGreens(t *testing.T) {
	c := config.Default()
	c.Arrival.Multiplier = 3
	c.Arrival.VIPProbability = 0.1
	for _, mode := range []string{config.ModeTwoPhase, config.ModeFourWay} {
		c.Signal.Mode = mode
		ctx, err := task.NewContext(c)
		require.NoError(t, err)
		for k := 0; k < 6000; k++ {
			ctx.Step()
			ns := ctx.LightState(entity.North) == entity.LightGreen || ctx.LightState(entity.South) == entity.LightGreen
			ew := ctx.LightState(entity.East) == entity.LightGreen || ctx.LightState(entity.West) == entity.LightGreen
			require.False(t, ns && ew, "%s: conflicting greens at step %d", mode, ctx.Clock().InternalStep)
			if mode == config.ModeFourWay {
				green := 0
				for _, a := range entity.Approaches {
					if ctx.LightState(a) == entity.LightGreen {
						green++
					}
				}
				require.LessOrEqual(t, green, 1)
			}
		}
	}
}

func TestResetReproducesRun(t *testing.T) {
	c := config.Default()
	c.Control.Step.Total = 3000
	c.Arrival.Multiplier = 2
	c.Policy.Name = config.PolicyFuzzy

	mem := recorder.NewMemory()
	ctx, err := task.NewContext(c, task.WithRunID("det"), task.WithSink(mem))
	require.NoError(t, err)
	for k := 0; k < 3000; k++ {
		ctx.Step()
	}
	first := mem.Records()
	firstSummary := ctx.Summary()
	require.Len(t, first, 3000)
	assert.Positive(t, firstSummary.Spawned)

	mem.Reset()
	ctx.Reset()
	assert.Equal(t, task.Counters{}, ctx.Counters())
	assert.Equal(t, entity.QueueStats{}, ctx.QueueSnapshot())
	assert.Equal(t, "NS_GREEN", ctx.Signal().State())
	for _, a := range entity.Approaches {
		assert.Zero(t, ctx.VehicleManager().Len(a), "approach %v", a)
	}
	for k := 0; k < 3000; k++ {
		ctx.Step()
	}
	if diff := cmp.Diff(first, mem.Records()); diff != "" {
		t.Errorf("reset run differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, firstSummary, ctx.Summary())

	fresh := recorder.NewMemory()
	other, err := task.NewContext(c, task.WithRunID("det"), task.WithSink(fresh))
	require.NoError(t, err)
	require.NoError(t, other.Run(context.Background()))
	if diff := cmp.Diff(first, fresh.Records()); diff != "" {
		t.Errorf("fresh run differs (-first +fresh):\n%s", diff)
	}
}

func TestRunToEnd(t *testing.T) {
	c := config.Default()
	c.Control.Step.Total = 100
	mem := recorder.NewMemory()
	ctx, err := task.NewContext(c, task.WithSink(mem))
	require.NoError(t, err)
	require.NoError(t, ctx.Run(context.Background()))
	assert.Equal(t, int32(100), ctx.Clock().InternalStep)
	assert.InDelta(t, 10, ctx.Clock().T, 1e-9)
	assert.Len(t, mem.Records(), 100)
	assert.Equal(t, 100, ctx.Summary().Steps)
	assert.NoError(t, ctx.Close())
}

func TestRunCancelled(t *testing.T) {
	ctx, err := task.NewContext(quiet())
	require.NoError(t, err)
	goCtx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ctx.Run(goCtx), context.Canceled)
	assert.Equal(t, 0, ctx.Summary().Steps)
}

func TestRunStopped(t *testing.T) {
	c := quiet()
	c.Control.Step.Total = 0
	ctx, err := task.NewContext(c)
	require.NoError(t, err)
	ctx.Stop()
	require.NoError(t, ctx.Run(context.Background()))
	assert.Equal(t, int32(0), ctx.Clock().InternalStep)
}

func TestRunBatch(t *testing.T) {
	c := config.Default()
	c.Batch = config.Batch{
		Loads: []config.Load{
			{Name: "light", Multiplier: 0.5, Duration: 10},
			{Name: "heavy", Multiplier: 2, Duration: 10},
		},
		Policies: []string{config.PolicyFixedTime, config.PolicyActuated},
		Workers:  2,
	}
	db, err := recorder.OpenDB(filepath.Join(t.TempDir(), "batch.db"))
	require.NoError(t, err)
	defer db.Close()

	results, err := task.RunBatch(context.Background(), c, nil, db)
	require.NoError(t, err)
	require.Len(t, results, 4)

	var got [][2]string
	for _, r := range results {
		got = append(got, [2]string{r.Load, r.Policy})
		assert.Equal(t, 100, r.Steps)
	}
	assert.Equal(t, [][2]string{
		{"light", config.PolicyFixedTime}, {"light", config.PolicyActuated},
		{"heavy", config.PolicyFixedTime}, {"heavy", config.PolicyActuated},
	}, got)

	// 同一负载等级的到达流一致
	assert.Equal(t, results[0].Seed, results[1].Seed)
	assert.Equal(t, results[0].Spawned, results[1].Spawned)
	assert.Equal(t, c.Control.Seed+1, results[2].Seed)

	runs, err := db.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 4)
	ticks, err := db.Ticks(results[3].RunID)
	require.NoError(t, err)
	assert.Len(t, ticks, 100)
}

func TestRunBatchRejectsFourWay(t *testing.T) {
	c := config.Default()
	c.Signal.Mode = config.ModeFourWay
	c.Batch.Loads = []config.Load{{Name: "x", Multiplier: 1, Duration: 1}}
	_, err := task.RunBatch(context.Background(), c, nil, nil)
	assert.ErrorIs(t, err, signal.ErrPolicyUnsupported)
}

func TestRunAfterResetFlushesSink(t *testing.T) {
	c := config.Default()
	c.Control.Step.Total = 100
	db, err := recorder.OpenDB(filepath.Join(t.TempDir(), "again.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx, err := task.NewContext(c, task.WithRunID("again"), task.WithSink(db.NewSink()))
	require.NoError(t, err)
	require.NoError(t, ctx.Run(context.Background()))
	first, err := db.Ticks("again")
	require.NoError(t, err)
	require.Len(t, first, 100)

	_, err = db.Exec("DELETE FROM ticks")
	require.NoError(t, err)
	ctx.Reset()
	require.NoError(t, ctx.Run(context.Background()))
	second, err := db.Ticks("again")
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run ticks differ (-first +second):\n%s", diff)
	}
}

func TestMixedStepTimeMonotonic(t *testing.T) {
	mem := recorder.NewMemory()
	ctx, err := task.NewContext(quiet(), task.WithSink(mem))
	require.NoError(t, err)
	ctx.Advance(1.0)
	ctx.Advance(1.0)
	ctx.Step()
	ctx.Advance(0.5)

	records := mem.Records()
	require.Len(t, records, 4)
	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].T, records[i-1].T, "step %d", records[i].Step)
	}
	assert.InDelta(t, 2.6, ctx.Clock().T, 1e-9)
}

func TestSpawnVIP(t *testing.T) {
	c := quiet()
	c.Arrival.East = 0.5
	ctx, err := task.NewContext(c)
	require.NoError(t, err)
	for k := 0; k < 5; k++ {
		a, ok := ctx.SpawnVIP()
		assert.True(t, ok)
		assert.Equal(t, entity.East, a)
	}
	assert.Equal(t, 5, ctx.QueueSnapshot().Priority[entity.East])
	assert.Equal(t, task.Counters{Spawned: 5, VIP: 5}, ctx.Counters())

	empty, err := task.NewContext(quiet())
	require.NoError(t, err)
	seen := map[entity.Approach]bool{}
	for k := 0; k < 200; k++ {
		a, ok := empty.SpawnVIP()
		require.True(t, ok)
		seen[a] = true
	}
	assert.Len(t, seen, entity.NumApproaches)
}
