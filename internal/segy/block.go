package segy

import "fmt"

// Block is a dense, row-major read result. Its rank follows conventional
// slicing shape reduction: every scalar index drops a dimension, every range
// index keeps one, so two scalars yield a rank-0 block (a single sample) and
// two ranges a rank-2 block.
type Block struct {
	shape []int
	vals  []float32
}

func newBlock(shape []int, vals []float32) *Block {
	return &Block{shape: shape, vals: vals}
}

// Rank returns the number of dimensions (0 for a scalar result).
func (b *Block) Rank() int { return len(b.shape) }

// Shape returns the extent of every dimension.
func (b *Block) Shape() []int { return append([]int(nil), b.shape...) }

// Size returns the total number of values.
func (b *Block) Size() int { return len(b.vals) }

// Values returns the underlying row-major values.
func (b *Block) Values() []float32 { return b.vals }

// Scalar returns the single value of a rank-0 block.
func (b *Block) Scalar() (float32, error) {
	if len(b.shape) != 0 {
		return 0, fmt.Errorf("segy: rank-%d block is not a scalar", len(b.shape))
	}
	return b.vals[0], nil
}

// At returns the value at the given coordinates, one per dimension.
func (b *Block) At(coords ...int) (float32, error) {
	if len(coords) != len(b.shape) {
		return 0, fmt.Errorf("segy: %d coordinates for rank-%d block", len(coords), len(b.shape))
	}
	flat := 0
	for d, c := range coords {
		if c < 0 || c >= b.shape[d] {
			return 0, fmt.Errorf("%w: coordinate %d not in [0, %d)", ErrOutOfRange, c, b.shape[d])
		}
		flat = flat*b.shape[d] + c
	}
	return b.vals[flat], nil
}

// Row returns the values of row i of a rank-2 block.
func (b *Block) Row(i int) ([]float32, error) {
	if len(b.shape) != 2 {
		return nil, fmt.Errorf("segy: rank-%d block has no rows", len(b.shape))
	}
	if i < 0 || i >= b.shape[0] {
		return nil, fmt.Errorf("%w: row %d not in [0, %d)", ErrOutOfRange, i, b.shape[0])
	}
	w := b.shape[1]
	return b.vals[i*w : (i+1)*w], nil
}

// transpose reorders the dimensions of row-major values: dimension perm[d] of
// the input becomes dimension d of the output.
func transpose(vals []float32, shape []int, perm []int) ([]float32, []int) {
	outShape := make([]int, len(perm))
	for d, p := range perm {
		outShape[d] = shape[p]
	}
	if len(vals) == 0 || isIdentity(perm) {
		return vals, outShape
	}

	inStrides := make([]int, len(shape))
	stride := 1
	for d := len(shape) - 1; d >= 0; d-- {
		inStrides[d] = stride
		stride *= shape[d]
	}

	out := make([]float32, len(vals))
	coords := make([]int, len(outShape))
	for i := range out {
		flat := 0
		for d := range coords {
			flat += coords[d] * inStrides[perm[d]]
		}
		out[i] = vals[flat]

		for d := len(coords) - 1; d >= 0; d-- {
			coords[d]++
			if coords[d] < outShape[d] {
				break
			}
			coords[d] = 0
		}
	}
	return out, outShape
}

func isIdentity(perm []int) bool {
	for d, p := range perm {
		if d != p {
			return false
		}
	}
	return true
}
