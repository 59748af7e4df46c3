// Package pool recycles the float32 scratch buffers that layers need for
// pre-activations and lookup tables on every forward and backward pass.
package pool

import "sync"

var floats = sync.Pool{
	New: func() any {
		return new([]float32)
	},
}

// Floats returns a zeroed buffer of length n from the pool.
// Return it with Put once nothing references it any more.
func Floats(n int) *[]float32 {
	buf := floats.Get().(*[]float32)
	if cap(*buf) < n {
		*buf = make([]float32, n)
		return buf
	}
	*buf = (*buf)[:n]
	clear(*buf)
	return buf
}

// Put returns buf to the pool.
func Put(buf *[]float32) {
	if buf == nil {
		return
	}
	floats.Put(buf)
}
