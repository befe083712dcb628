package container

import "container/heap"

// item 排名堆中单个元素
type item[T any] struct {
	Value T       // 元素的值（任意类型）
	Score float64 // 元素得分（越大越优先）
	seq   int     // 插入序号，得分相同时先插入者优先
	index int     // 项在堆中的索引，由heap.Interface方法维护
}

// rankingHeap 实现了heap.Interface的大顶堆
type rankingHeap[T any] []*item[T]

func (h rankingHeap[T]) Len() int { return len(h) }

// Less 比较两个元素的优先级
// 说明：得分高者优先；得分相同时插入序号小者优先，保证结果确定
func (h rankingHeap[T]) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].seq < h[j].seq
}

func (h rankingHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *rankingHeap[T]) Push(x any) {
	it := x.(*item[T])
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *rankingHeap[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // 避免内存泄漏
	it.index = -1
	*h = old[0 : n-1]
	return it
}

// Ranking 按得分排序的优先队列
// 功能：用于从若干候选中选出得分最高者（如排队最长的进口道）
// 说明：基于标准库container/heap，同分时按插入顺序，结果与输入顺序一致可复现
type Ranking[T any] struct {
	h   rankingHeap[T]
	seq int
}

// NewRanking 创建排名队列
func NewRanking[T any]() *Ranking[T] {
	return &Ranking[T]{h: make(rankingHeap[T], 0)}
}

// Len 获取当前元素数量
func (r *Ranking[T]) Len() int {
	return len(r.h)
}

// Push 加入候选
// 参数：value-候选值，score-得分
func (r *Ranking[T]) Push(value T, score float64) {
	heap.Push(&r.h, &item[T]{Value: value, Score: score, seq: r.seq})
	r.seq++
}

// Peek 查看得分最高的候选，队列为空时ok为false
func (r *Ranking[T]) Peek() (value T, score float64, ok bool) {
	if len(r.h) == 0 {
		return value, 0, false
	}
	return r.h[0].Value, r.h[0].Score, true
}

// Pop 弹出得分最高的候选
// 说明：队列为空时panic，调用方需先检查Len
func (r *Ranking[T]) Pop() (value T, score float64) {
	if len(r.h) == 0 {
		panic("container: Pop from empty Ranking")
	}
	it := heap.Pop(&r.h).(*item[T])
	return it.Value, it.Score
}
