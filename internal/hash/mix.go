package hash

// Mix64 is the splitmix64 finalizer applied to x xor seed. It spreads
// consecutive integers uniformly over the 64-bit space, which is what the
// hashed layer needs to scatter (input, output) pairs over its buckets.
func Mix64(x, seed uint64) uint64 {
	z := x ^ seed
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Bucket maps the pair (row, col) of a rows x cols matrix to one of n buckets.
func Bucket(row, col, cols, n int, seed uint64) int {
	return int(Mix64(uint64(row)*uint64(cols)+uint64(col), seed) % uint64(n))
}
