// Package queue provides the value-based bounded heap behind the Top-K selector.
package queue

// PriorityQueueItem represents an item in the priority queue.
type PriorityQueueItem struct {
	ID    uint32  // ID is the output unit the value belongs to.
	Value float32 // Value is the priority of the item in the queue.
	Seq   uint64  // Seq is the insertion sequence number, used to break ties.
}

// PriorityQueue is a min-heap on Value. Among equal values the item inserted
// last sits on top, so it is evicted before older ones.
type PriorityQueue struct {
	items []PriorityQueueItem
}

// NewMin initializes a new min priority queue.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{
		items: make([]PriorityQueueItem, 0, capacity),
	}
}

// TopItem returns the top (minimum) element of the heap.
func (pq *PriorityQueue) TopItem() (PriorityQueueItem, bool) {
	if len(pq.items) == 0 {
		return PriorityQueueItem{}, false
	}
	return pq.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) PushItem(item PriorityQueueItem) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// ReplaceTop overwrites the minimum with item and restores the heap invariant.
func (pq *PriorityQueue) ReplaceTop(item PriorityQueueItem) {
	if len(pq.items) == 0 {
		pq.PushItem(item)
		return
	}
	pq.items[0] = item
	pq.siftDown(0)
}

// Items returns the backing slice in heap order. The slice is owned by the queue.
func (pq *PriorityQueue) Items() []PriorityQueueItem { return pq.items }

func (pq *PriorityQueue) less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	return a.Seq > b.Seq
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}
