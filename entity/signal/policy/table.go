package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

var ErrMalformedTable = errors.New("policy: malformed decision table")

// StateKey 离散化状态
// 功能：(qN, qS, qE, qW, 绿灯轴, 绿灯时长档, 排队差档)，直接作为查表键
type StateKey [7]int8

// 各分量的取值范围（闭区间）
var stateKeyRanges = [7][2]int8{
	{0, 2}, {0, 2}, {0, 2}, {0, 2}, // 排队档
	{0, 1},  // 绿灯轴
	{0, 2},  // 绿灯时长档
	{-1, 1}, // 排队差档
}

func (k StateKey) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = strconv.Itoa(int(v))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ParseStateKey 解析持久化格式的状态键，如"(0, 1, 0, 2, 0, 1, -1)"
func ParseStateKey(s string) (k StateKey, err error) {
	body := strings.TrimSpace(s)
	if !strings.HasPrefix(body, "(") || !strings.HasSuffix(body, ")") {
		return k, fmt.Errorf("%w: key %q is not a tuple", ErrMalformedTable, s)
	}
	fields := strings.Split(body[1:len(body)-1], ",")
	if len(fields) != len(k) {
		return k, fmt.Errorf("%w: key %q has %d elements, want %d", ErrMalformedTable, s, len(fields), len(k))
	}
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return k, fmt.Errorf("%w: key %q: %v", ErrMalformedTable, s, err)
		}
		k[i] = int8(max(-128, min(127, v)))
		if int(k[i]) != v || k[i] < stateKeyRanges[i][0] || k[i] > stateKeyRanges[i][1] {
			return k, fmt.Errorf("%w: key %q element %d out of range", ErrMalformedTable, s, i)
		}
	}
	return k, nil
}

// Values 一个状态下两个动作的价值
type Values [2]float64

// Table 决策表
// 功能：离散状态到(保持价值, 切换价值)的映射，由离线训练产生
// 说明：加载后只读，可在多个仿真实例间共享
type Table struct {
	entries map[StateKey]Values
}

// NewTable 由已解析的条目创建决策表（复制一份）
func NewTable(entries map[StateKey]Values) *Table {
	t := &Table{entries: make(map[StateKey]Values, len(entries))}
	for k, v := range entries {
		t.entries[k] = v
	}
	return t
}

// Lookup 查表，未见过的状态返回(0,0)与false
func (t *Table) Lookup(k StateKey) (Values, bool) {
	v, ok := t.entries[k]
	return v, ok
}

// Len 条目数
func (t *Table) Len() int {
	return len(t.entries)
}

// ReadTable 读取JSON格式的决策表
// 功能：解析{"(0, 1, 0, 2, 0, 1, -1)": [keep, switch], ...}
// 返回：决策表；键无法解析、值不是两个数、不同写法的键落到同一状态时返回ErrMalformedTable
func ReadTable(r io.Reader) (*Table, error) {
	var raw map[string][]float64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	t := &Table{entries: make(map[StateKey]Values, len(raw))}
	for s, vs := range raw {
		k, err := ParseStateKey(s)
		if err != nil {
			return nil, err
		}
		if len(vs) != 2 {
			return nil, fmt.Errorf("%w: key %q has %d values, want 2", ErrMalformedTable, s, len(vs))
		}
		if _, dup := t.entries[k]; dup {
			return nil, fmt.Errorf("%w: duplicate key %v", ErrMalformedTable, k)
		}
		t.entries[k] = Values{vs[0], vs[1]}
	}
	return t, nil
}

// DiscretizeQueue 排队档：≤2→0，≤5→1，其余→2
func DiscretizeQueue(q int) int8 {
	switch {
	case q <= 2:
		return 0
	case q <= 5:
		return 1
	}
	return 2
}

// DiscretizeGreen 绿灯时长档（整秒）：≤3→0，≤8→1，其余→2
func DiscretizeGreen(elapsed float64) int8 {
	switch s := int(elapsed); {
	case s <= 3:
		return 0
	case s <= 8:
		return 1
	}
	return 2
}

// DiscretizeDiff 有符号排队差档：≤-3→-1，≥3→1，其余→0
func DiscretizeDiff(d int) int8 {
	switch {
	case d <= -3:
		return -1
	case d >= 3:
		return 1
	}
	return 0
}

// KeyOf 观测对应的状态键，排队差为ew-ns
func KeyOf(obs Observation) StateKey {
	return StateKey{
		DiscretizeQueue(obs.QN),
		DiscretizeQueue(obs.QS),
		DiscretizeQueue(obs.QE),
		DiscretizeQueue(obs.QW),
		int8(obs.Phase),
		DiscretizeGreen(obs.ElapsedGreen),
		DiscretizeDiff(obs.EW() - obs.NS()),
	}
}

// TablePolicy 查表策略
// 功能：离散化观测后查决策表，切换价值严格大于保持价值时切换
type TablePolicy struct {
	table  *Table
	misses int // 未见过的状态次数
}

// NewTablePolicy 创建查表策略，table为共享只读决策表
func NewTablePolicy(table *Table) *TablePolicy {
	return &TablePolicy{table: table}
}

func (p *TablePolicy) Name() string { return config.PolicyQLearning }

func (p *TablePolicy) Reset() {
	p.misses = 0
}

// Misses 自上次Reset以来查表未命中的次数
func (p *TablePolicy) Misses() int {
	return p.misses
}

func (p *TablePolicy) Decide(obs Observation) (Action, error) {
	if err := obs.Validate(); err != nil {
		return Keep, err
	}
	k := KeyOf(obs)
	v, ok := p.table.Lookup(k)
	if !ok {
		p.misses++
		log.Tracef("state %v not in table, keep", k)
	}
	if v[1] > v[0] {
		return Switch, nil
	}
	return Keep, nil
}
