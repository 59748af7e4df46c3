// Package queue provides the bounded Top-K selector used to cap the width of
// wide soft-max outputs.
package queue

import (
	"slices"

	iqueue "github.com/hupe1980/vqnet/internal/queue"
	"github.com/hupe1980/vqnet/sparse"
)

// Selector retains the K largest (id, value) pairs inserted so far.
//
// While fewer than K pairs are held every insert is accepted. Once full, a pair
// replaces the current minimum only if its value is strictly larger, so among
// equal values the earlier insertion wins.
type Selector struct {
	k    int
	seq  uint64
	heap *iqueue.PriorityQueue
}

// NewSelector creates a selector with capacity k. A negative k is treated as zero.
func NewSelector(k int) *Selector {
	if k < 0 {
		k = 0
	}
	return &Selector{
		k:    k,
		heap: iqueue.NewMin(k),
	}
}

// K returns the capacity.
func (s *Selector) K() int { return s.k }

// Len returns the number of retained pairs.
func (s *Selector) Len() int { return s.heap.Len() }

// Insert offers a pair and reports whether it was retained.
func (s *Selector) Insert(id uint32, value float32) bool {
	if s.k == 0 {
		return false
	}

	item := iqueue.PriorityQueueItem{ID: id, Value: value, Seq: s.seq}
	s.seq++

	if s.heap.Len() < s.k {
		s.heap.PushItem(item)
		return true
	}

	top, _ := s.heap.TopItem()
	if value > top.Value {
		s.heap.ReplaceTop(item)
		return true
	}

	return false
}

// Select returns the retained pairs sorted by id ascending.
// The selector is left unchanged.
func (s *Selector) Select() sparse.Vector {
	items := slices.Clone(s.heap.Items())
	slices.SortFunc(items, func(a, b iqueue.PriorityQueueItem) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	var out sparse.Vector
	out.Reserve(len(items))
	for _, it := range items {
		out.Push(it.ID, it.Value)
	}

	return out
}

// Reset discards all retained pairs.
func (s *Selector) Reset() {
	s.heap.Reset()
	s.seq = 0
}
