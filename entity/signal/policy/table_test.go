package policy_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
)

func TestParseStateKey(t *testing.T) {
	k, err := policy.ParseStateKey("(0, 1, 0, 2, 0, 1, -1)")
	require.NoError(t, err)
	if diff := cmp.Diff(policy.StateKey{0, 1, 0, 2, 0, 1, -1}, k); diff != "" {
		t.Errorf("ParseStateKey mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "(0, 1, 0, 2, 0, 1, -1)", k.String())

	for _, bad := range []string{"0, 1, 0, 2, 0, 1, -1", "(0, 1, 0, 2, 0, 1)", "(0, 1, 0, 3, 0, 1, 0)", "(a, 1, 0, 2, 0, 1, 0)", "(0, 1, 0, 2, 2, 1, 0)"} {
		_, err := policy.ParseStateKey(bad)
		assert.ErrorIs(t, err, policy.ErrMalformedTable, bad)
	}
}

func TestDiscretize(t *testing.T) {
	assert.Equal(t, []int8{0, 0, 1, 1, 2}, []int8{
		policy.DiscretizeQueue(0), policy.DiscretizeQueue(2), policy.DiscretizeQueue(3),
		policy.DiscretizeQueue(5), policy.DiscretizeQueue(6),
	})
	assert.Equal(t, []int8{0, 0, 1, 1, 2}, []int8{
		policy.DiscretizeGreen(0), policy.DiscretizeGreen(3.9), policy.DiscretizeGreen(4),
		policy.DiscretizeGreen(8.5), policy.DiscretizeGreen(9),
	})
	assert.Equal(t, []int8{-1, 0, 0, 1}, []int8{
		policy.DiscretizeDiff(-3), policy.DiscretizeDiff(-2), policy.DiscretizeDiff(2), policy.DiscretizeDiff(3),
	})

	k := policy.KeyOf(policy.Observation{QN: 1, QS: 4, QE: 0, QW: 7, Phase: 0, ElapsedGreen: 5})
	assert.Equal(t, policy.StateKey{0, 1, 0, 2, 0, 1, 0}, k)
}

func TestReadTable(t *testing.T) {
	table, err := policy.ReadTable(strings.NewReader(`{
		"(0, 0, 2, 2, 0, 2, 1)": [0.1, 0.9],
		"(2, 2, 0, 0, 0, 2, -1)": [0.8, 0.2]
	}`))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	p := policy.NewTablePolicy(table)
	a, err := p.Decide(policy.Observation{QE: 6, QW: 6, Phase: 0, ElapsedGreen: 12})
	require.NoError(t, err)
	assert.Equal(t, policy.Switch, a)

	a, err = p.Decide(policy.Observation{QN: 6, QS: 6, Phase: 0, ElapsedGreen: 12})
	require.NoError(t, err)
	assert.Equal(t, policy.Keep, a)
	assert.Equal(t, 0, p.Misses())
}

func TestTableUnseenKeepsAndEqualKeeps(t *testing.T) {
	table := policy.NewTable(map[policy.StateKey]policy.Values{
		{0, 0, 0, 0, 0, 0, 0}: {0.5, 0.5},
	})
	p := policy.NewTablePolicy(table)
	a, err := p.Decide(policy.Observation{QN: 9, QE: 9, Phase: 1, ElapsedGreen: 20})
	require.NoError(t, err)
	assert.Equal(t, policy.Keep, a)
	assert.Equal(t, 1, p.Misses())

	a, err = p.Decide(policy.Observation{})
	require.NoError(t, err)
	assert.Equal(t, policy.Keep, a)

	p.Reset()
	assert.Equal(t, 0, p.Misses())
}

func TestReadTableMalformed(t *testing.T) {
	for name, data := range map[string]string{
		"arity":       `{"(0, 0, 0, 0, 0, 0, 0)": [1]}`,
		"non-numeric": `{"(0, 0, 0, 0, 0, 0, 0)": ["x", 1]}`,
		"bad key":     `{"zero": [1, 2]}`,
		"duplicate":   `{"(0, 0, 0, 0, 0, 0, 0)": [1, 2], "(0,0,0,0,0,0,0)": [2, 1]}`,
		"not json":    `[`,
	} {
		_, err := policy.ReadTable(strings.NewReader(data))
		assert.ErrorIs(t, err, policy.ErrMalformedTable, name)
	}
}
