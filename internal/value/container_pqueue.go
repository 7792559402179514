package value

import "container/heap"

// PriorityQueue is a mutable min-priority queue Value variant (spec §3).
// Grounded on the original source's binary-heap priority queue; no
// domain-specific behavior beyond ordering is needed, so this wraps
// container/heap the way a library-first Go codebase does.
type PriorityQueue struct {
	items pqItems
	less  func(a, b Value) bool
}

// NewPriorityQueue builds an empty queue ordered by less.
func NewPriorityQueue(less func(a, b Value) bool) *PriorityQueue {
	pq := &PriorityQueue{less: less}
	heap.Init(&pq.items)
	return pq
}

func (pq *PriorityQueue) TypeName() string { return "priority-queue" }
func (pq *PriorityQueue) String() string   { return "#[priority-queue]" }

// Push inserts v.
func (pq *PriorityQueue) Push(v Value) {
	pq.items.less = pq.less
	heap.Push(&pq.items, v)
}

// Pop removes and returns the minimum element, or (nil, false) when empty.
func (pq *PriorityQueue) Pop() (Value, bool) {
	if len(pq.items.vs) == 0 {
		return nil, false
	}
	pq.items.less = pq.less
	return heap.Pop(&pq.items).(Value), true
}

// Len returns the number of queued elements.
func (pq *PriorityQueue) Len() int { return len(pq.items.vs) }

type pqItems struct {
	vs   []Value
	less func(a, b Value) bool
}

func (p pqItems) Len() int            { return len(p.vs) }
func (p pqItems) Less(i, j int) bool  { return p.less(p.vs[i], p.vs[j]) }
func (p pqItems) Swap(i, j int)       { p.vs[i], p.vs[j] = p.vs[j], p.vs[i] }
func (p *pqItems) Push(x interface{}) { p.vs = append(p.vs, x.(Value)) }
func (p *pqItems) Pop() interface{} {
	old := p.vs
	n := len(old)
	item := old[n-1]
	p.vs = old[:n-1]
	return item
}
