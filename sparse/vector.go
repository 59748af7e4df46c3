package sparse

// Vector is an ordered sequence of (index, value) pairs.
// Indices are strictly ascending and len(Index) == len(Value).
type Vector struct {
	Index []uint32
	Value []float32
}

// New wraps the given slices without copying.
func New(index []uint32, value []float32) Vector {
	return Vector{Index: index, Value: value}
}

// FromDense wraps a dense vector, using the position as index.
func FromDense(dense []float32) Vector {
	v := Vector{
		Index: make([]uint32, len(dense)),
		Value: make([]float32, len(dense)),
	}
	for i := range dense {
		v.Index[i] = uint32(i)
	}
	copy(v.Value, dense)

	return v
}

// Len returns the number of stored pairs.
func (v Vector) Len() int { return len(v.Index) }

// Reserve grows the capacity to hold at least n pairs.
func (v *Vector) Reserve(n int) {
	if cap(v.Index) >= n {
		return
	}

	index := make([]uint32, len(v.Index), n)
	copy(index, v.Index)
	value := make([]float32, len(v.Value), n)
	copy(value, v.Value)

	v.Index, v.Value = index, value
}

// Push appends a pair. The caller must keep indices ascending.
func (v *Vector) Push(index uint32, value float32) {
	v.Index = append(v.Index, index)
	v.Value = append(v.Value, value)
}

// Clear truncates the vector, keeping the allocated capacity.
func (v *Vector) Clear() {
	v.Index = v.Index[:0]
	v.Value = v.Value[:0]
}

// Clone returns a deep copy.
func (v Vector) Clone() Vector {
	c := Vector{
		Index: make([]uint32, len(v.Index)),
		Value: make([]float32, len(v.Value)),
	}
	copy(c.Index, v.Index)
	copy(c.Value, v.Value)

	return c
}

// WithValues returns a vector sharing v's indices with a fresh zeroed value slice.
// Used to build gradients that carry exactly the index set of an input.
func (v Vector) WithValues() Vector {
	return Vector{
		Index: v.Index,
		Value: make([]float32, len(v.Index)),
	}
}

// IsSorted reports whether the vector is well formed: equal slice lengths and
// strictly ascending indices.
func (v Vector) IsSorted() bool {
	if len(v.Index) != len(v.Value) {
		return false
	}
	for i := 1; i < len(v.Index); i++ {
		if v.Index[i] <= v.Index[i-1] {
			return false
		}
	}

	return true
}

// Dense expands the vector into a dense slice of length n.
// Indices >= n are ignored.
func (v Vector) Dense(n int) []float32 {
	out := make([]float32, n)
	for s, i := range v.Index {
		if int(i) < n {
			out[i] = v.Value[s]
		}
	}

	return out
}

// Get returns the value stored at index and whether it is present.
func (v Vector) Get(index uint32) (float32, bool) {
	lo, hi := 0, len(v.Index)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if v.Index[mid] < index {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(v.Index) && v.Index[lo] == index {
		return v.Value[lo], true
	}

	return 0, false
}

// Range returns the half-open position range [start, end) of the entries whose
// index lies in [lo, hi), searching from position from. It relies on ascending
// order and is used to walk sub-blocks of a vector in a single pass.
func (v Vector) Range(from int, lo, hi uint32) (start, end int) {
	start = from
	for start < len(v.Index) && v.Index[start] < lo {
		start++
	}
	end = start
	for end < len(v.Index) && v.Index[end] < hi {
		end++
	}

	return start, end
}
