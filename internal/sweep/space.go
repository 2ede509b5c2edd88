// Package sweep expands configured parameter ranges into the ordered set of
// simulation cases. Expansion is pure: no I/O, and the order is a function of
// the input alone, so repeated runs visit cases identically.
package sweep

// Space iterates the Cartesian product of a fixed set of value dimensions in
// row-major order, last dimension fastest. Iteration is lazy and restartable.
type Space struct {
	dims [][]float64
	idx  []int
	done bool
}

func NewSpace(dims ...[]float64) *Space {
	s := &Space{dims: dims}
	s.Reset()
	return s
}

// Size returns the number of tuples the space yields. Empty dimensions make
// the product zero.
func (s *Space) Size() int {
	if len(s.dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range s.dims {
		n *= len(d)
	}
	return n
}

// Next yields the next tuple, or false when the space is exhausted.
// The returned slice is owned by the caller.
func (s *Space) Next() ([]float64, bool) {
	if s.done {
		return nil, false
	}
	tuple := make([]float64, len(s.dims))
	for i, d := range s.dims {
		tuple[i] = d[s.idx[i]]
	}
	s.advance()
	return tuple, true
}

func (s *Space) advance() {
	for i := len(s.idx) - 1; i >= 0; i-- {
		s.idx[i]++
		if s.idx[i] < len(s.dims[i]) {
			return
		}
		s.idx[i] = 0
	}
	s.done = true
}

// Reset rewinds the iterator to the first tuple.
func (s *Space) Reset() {
	s.idx = make([]int, len(s.dims))
	s.done = s.Size() == 0
}
