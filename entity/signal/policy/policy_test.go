package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

func defaults() config.Policy {
	return config.Default().Policy
}

func decide(t *testing.T, p policy.Policy, obs policy.Observation) policy.Action {
	t.Helper()
	a, err := p.Decide(obs)
	require.NoError(t, err)
	return a
}

func TestNewByName(t *testing.T) {
	cfg := defaults()
	for _, name := range []string{config.PolicyFixedTime, config.PolicyActuated, config.PolicyMaxPressure, config.PolicyFuzzy} {
		cfg.Name = name
		p, err := policy.New(cfg, nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name())
	}

	cfg.Name = config.PolicyQLearning
	_, err := policy.New(cfg, nil)
	assert.ErrorIs(t, err, policy.ErrNoTable)
	p, err := policy.New(cfg, policy.NewTable(nil))
	require.NoError(t, err)
	assert.Equal(t, config.PolicyQLearning, p.Name())

	cfg.Name = "dqn"
	_, err = policy.New(cfg, nil)
	assert.ErrorIs(t, err, policy.ErrUnknownPolicy)
}

func TestInvalidObservation(t *testing.T) {
	p, err := policy.NewMaxPressure(defaults().MaxPressure)
	require.NoError(t, err)
	_, err = p.Decide(policy.Observation{QN: -1})
	assert.ErrorIs(t, err, policy.ErrInvalidObservation)
	_, err = p.Decide(policy.Observation{Phase: 2})
	assert.ErrorIs(t, err, policy.ErrInvalidObservation)
}

func TestFixedTime(t *testing.T) {
	p, err := policy.NewFixedTime(config.FixedTime{SwitchEvery: 30})
	require.NoError(t, err)
	obs := policy.Observation{QN: 3, QE: 3, Phase: policy.PhaseNS, ElapsedGreen: 15}
	assert.Equal(t, policy.Keep, decide(t, p, obs))
	obs.ElapsedGreen = 30
	assert.Equal(t, policy.Switch, decide(t, p, obs))

	_, err = policy.NewFixedTime(config.FixedTime{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestActuated(t *testing.T) {
	p, err := policy.NewActuated(defaults().Actuated)
	require.NoError(t, err)

	// 绿灯轴为空、红灯轴达到下限
	obs := policy.Observation{QN: 0, QS: 0, QE: 2, QW: 2, Phase: policy.PhaseNS, ElapsedGreen: 12}
	assert.Equal(t, policy.Switch, decide(t, p, obs))

	// 全空
	assert.Equal(t, policy.Keep, decide(t, p, policy.Observation{Phase: policy.PhaseEW, ElapsedGreen: 20}))

	// 不平衡
	obs = policy.Observation{QN: 2, QS: 2, QE: 5, QW: 5, Phase: policy.PhaseNS, ElapsedGreen: 12}
	assert.Equal(t, policy.Switch, decide(t, p, obs))
	obs = policy.Observation{QN: 2, QS: 2, QE: 4, QW: 5, Phase: policy.PhaseNS, ElapsedGreen: 12}
	assert.Equal(t, policy.Keep, decide(t, p, obs))

	// 安全上限
	obs.ElapsedGreen = 60
	assert.Equal(t, policy.Switch, decide(t, p, obs))
}

func TestMaxPressure(t *testing.T) {
	p, err := policy.NewMaxPressure(config.MaxPressure{HysteresisMargin: 2, MaxGreen: 60})
	require.NoError(t, err)
	assert.Equal(t, policy.Keep, decide(t, p, policy.Observation{QN: 3, QS: 2, QE: 3, QW: 2, Phase: policy.PhaseNS, ElapsedGreen: 15}))
	assert.Equal(t, policy.Switch, decide(t, p, policy.Observation{QN: 1, QS: 1, QE: 3, QW: 2, Phase: policy.PhaseNS, ElapsedGreen: 15}))
	assert.Equal(t, policy.Keep, decide(t, p, policy.Observation{QN: 1, QS: 1, QE: 3, QW: 2, Phase: policy.PhaseEW, ElapsedGreen: 15}))
	assert.Equal(t, policy.Switch, decide(t, p, policy.Observation{QN: 4, QS: 2, QE: 2, QW: 2, Phase: policy.PhaseEW, ElapsedGreen: 15}))
	assert.Equal(t, policy.Switch, decide(t, p, policy.Observation{QN: 5, Phase: policy.PhaseNS, ElapsedGreen: 60}))
	assert.Equal(t, policy.Keep, decide(t, p, policy.Observation{Phase: policy.PhaseNS, ElapsedGreen: 30}))
}

func TestFuzzy(t *testing.T) {
	p, err := policy.NewFuzzy(defaults().Fuzzy)
	require.NoError(t, err)

	assert.Equal(t, policy.Switch, decide(t, p, policy.Observation{QE: 6, QW: 5, Phase: policy.PhaseNS, ElapsedGreen: 12}))
	green, red := p.Scores()
	assert.Less(t, green, red)
	assert.GreaterOrEqual(t, green, 0.0)
	assert.LessOrEqual(t, red, 1.0)

	// 负载相同不切换
	assert.Equal(t, policy.Keep, decide(t, p, policy.Observation{QN: 3, QS: 2, QE: 2, QW: 3, Phase: policy.PhaseNS, ElapsedGreen: 12}))
	green, red = p.Scores()
	assert.Equal(t, green, red)

	// 绿灯轴更拥堵时保持
	assert.Equal(t, policy.Keep, decide(t, p, policy.Observation{QN: 6, QS: 5, QE: 1, Phase: policy.PhaseNS, ElapsedGreen: 12}))

	p.Reset()
	green, red = p.Scores()
	assert.Zero(t, green)
	assert.Zero(t, red)

	_, err = policy.NewFuzzy(config.Fuzzy{Low: 5, Med: 5, High: 9, MaxGreen: 60})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
