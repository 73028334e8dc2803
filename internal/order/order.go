// Package order computes the playback order of a media list: the identity
// permutation, or a seeded shuffle that is stable for a given seed.
package order

// LCG constants (Numerical Recipes).
const (
	lcgMul = 1664525
	lcgInc = 1013904223
)

// Identity returns 0..n-1.
func Identity(n int) []int {
	if n <= 0 {
		return []int{}
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}

// Shuffle returns a Fisher–Yates permutation of 0..n-1 driven by a
// linear-congruential generator seeded with seed. The same seed and n
// always produce the same permutation.
func Shuffle(n int, seed uint32) []int {
	perm := Identity(n)
	state := seed
	for i := n - 1; i > 0; i-- {
		state = state*lcgMul + lcgInc
		j := int(state % uint32(i+1))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// Build returns the shuffled or identity permutation for n items.
func Build(n int, shuffle bool, seed uint32) []int {
	if shuffle {
		return Shuffle(n, seed)
	}
	return Identity(n)
}

// Wrap folds i into [0, n). Negative values wrap from the end. It returns
// 0 when n is not positive.
func Wrap(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}

// Cache holds the last built order and rebuilds it only when the list
// generation, its length, the shuffle flag or the seed change.
type Cache struct {
	gen     uint64
	n       int
	shuffle bool
	seed    uint32
	perm    []int
	valid   bool
	builds  int
}

// Get returns the order for the given inputs, reusing the cached
// permutation when nothing relevant changed.
func (c *Cache) Get(gen uint64, n int, shuffle bool, seed uint32) []int {
	if c.valid && c.gen == gen && c.n == n && c.shuffle == shuffle && c.seed == seed {
		return c.perm
	}
	c.gen, c.n, c.shuffle, c.seed = gen, n, shuffle, seed
	c.perm = Build(n, shuffle, seed)
	c.valid = true
	c.builds++
	return c.perm
}

// Builds reports how many times the order has been computed.
func (c *Cache) Builds() int { return c.builds }
