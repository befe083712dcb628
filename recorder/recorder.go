// 逐步指标输出：每个仿真步的排队、相位与通过量
package recorder

import (
	"sync"

	"github.com/tsinghua-fib-lab/intersection-sim/entity"
)

// Record 一个仿真步的指标
type Record struct {
	RunID       string                    // 仿真实例ID
	Step        int32                     // 步数
	T           float64                   // 仿真时间（秒）
	Queues      [entity.NumApproaches]int // 各进口道排队数（N/S/E/W）
	Total       int                       // 排队总数
	Priority    int                       // 优先车辆排队总数
	ActivePhase int                       // 当前相位
	State       string                    // 信号状态名
	Exited      int                       // 累计驶离车辆数
}

// NewRecord 由排队统计生成记录
func NewRecord(runID string, step int32, t float64, stats entity.QueueStats) Record {
	return Record{
		RunID:    runID,
		Step:     step,
		T:        t,
		Queues:   stats.Total,
		Total:    stats.Sum(),
		Priority: stats.PrioritySum(),
	}
}

// Sink 指标输出
// 说明：由单个仿真实例在仿真线程中调用，不要求并发安全
type Sink interface {
	Write(r Record) error
	Close() error
}

// Memory 内存输出，保存全部记录
type Memory struct {
	mtx     sync.Mutex
	records []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Write(r Record) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *Memory) Close() error { return nil }

// Records 已写入记录的副本
func (m *Memory) Records() []Record {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return append([]Record(nil), m.records...)
}

// Reset 清空记录
func (m *Memory) Reset() {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.records = nil
}

// Discard 丢弃所有记录
type Discard struct{}

func (Discard) Write(Record) error { return nil }
func (Discard) Close() error       { return nil }

// Tee 同时写入多个输出
type Tee []Sink

func (t Tee) Write(r Record) error {
	for _, s := range t {
		if err := s.Write(r); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee) Close() error {
	var first error
	for _, s := range t {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
