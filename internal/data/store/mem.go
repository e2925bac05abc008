package store

import (
	"fmt"
	"sync"
)

// MemDataArray is an in-memory DataArray, used by tests and as a reference
// implementation of the read semantics.
type MemDataArray struct {
	mu     sync.RWMutex
	shape  []int
	dims   []string
	meta   map[string][]int
	data   []float32
	closed bool
}

// NewMemDataArray wraps row-major data with the given shape and dimension
// names. It panics when the sizes disagree; fixtures are built in code.
func NewMemDataArray(shape []int, dims []string, data []float32) *MemDataArray {
	if len(shape) != len(dims) {
		panic(fmt.Sprintf("store: %d dims for rank-%d shape", len(dims), len(shape)))
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n != len(data) {
		panic(fmt.Sprintf("store: %d values for shape %v", len(data), shape))
	}
	return &MemDataArray{
		shape: append([]int(nil), shape...),
		dims:  append([]string(nil), dims...),
		meta:  make(map[string][]int),
		data:  data,
	}
}

// SetMeta stores integer metadata under key.
func (a *MemDataArray) SetMeta(key string, values ...int) {
	a.meta[key] = append([]int(nil), values...)
}

func (a *MemDataArray) Shape() []int { return append([]int(nil), a.shape...) }

func (a *MemDataArray) Len() int {
	if len(a.shape) == 0 {
		return 0
	}
	return a.shape[0]
}

func (a *MemDataArray) HasDim(name string) bool {
	for _, d := range a.dims {
		if d == name {
			return true
		}
	}
	return false
}

func (a *MemDataArray) MetaInts(key string) ([]int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, ErrClosed
	}
	v, ok := a.meta[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoMeta, key)
	}
	return append([]int(nil), v...), nil
}

func (a *MemDataArray) Read(sel [][]int) ([]float32, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, ErrClosed
	}
	if len(sel) != len(a.shape) {
		return nil, fmt.Errorf("store: selection rank %d against rank-%d array", len(sel), len(a.shape))
	}
	for d, positions := range sel {
		for _, p := range positions {
			if p < 0 || p >= a.shape[d] {
				return nil, fmt.Errorf("store: position %d outside dimension %d (extent %d)", p, d, a.shape[d])
			}
		}
	}

	strides := rowMajorStrides(a.shape)
	out := make([]float32, selectionSize(sel))
	if len(out) == 0 {
		return out, nil
	}

	coords := make([]int, len(sel))
	for i := range out {
		flat := 0
		for d := range sel {
			flat += sel[d][coords[d]] * strides[d]
		}
		out[i] = a.data[flat]
		advance(coords, sel)
	}
	return out, nil
}

func (a *MemDataArray) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// MemHeaderArray is an in-memory HeaderArray.
type MemHeaderArray struct {
	mu     sync.RWMutex
	fields []string
	cols   map[string][]int32
	bin    map[string]int
	text   []byte
	length int
	closed bool
}

// NewMemHeaderArray builds a header array from ordered field columns.
func NewMemHeaderArray(fields []string, cols map[string][]int32) *MemHeaderArray {
	length := 0
	for _, f := range fields {
		col, ok := cols[f]
		if !ok {
			panic(fmt.Sprintf("store: missing column %q", f))
		}
		if length == 0 {
			length = len(col)
		} else if len(col) != length {
			panic(fmt.Sprintf("store: column %q has %d values, want %d", f, len(col), length))
		}
	}
	return &MemHeaderArray{
		fields: append([]string(nil), fields...),
		cols:   cols,
		bin:    make(map[string]int),
		length: length,
	}
}

// SetBin stores one binary-header key/value pair.
func (a *MemHeaderArray) SetBin(key string, value int) { a.bin[key] = value }

// SetText stores the raw textual header bytes.
func (a *MemHeaderArray) SetText(text []byte) { a.text = append([]byte(nil), text...) }

func (a *MemHeaderArray) Len() int { return a.length }

func (a *MemHeaderArray) Fields() []string { return append([]string(nil), a.fields...) }

func (a *MemHeaderArray) ReadField(name string, positions []int) ([]int32, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, ErrClosed
	}
	col, ok := a.cols[name]
	if !ok {
		return nil, fmt.Errorf("store: unknown header field %q", name)
	}
	out := make([]int32, len(positions))
	for i, p := range positions {
		if p < 0 || p >= len(col) {
			return nil, fmt.Errorf("store: trace position %d outside extent %d", p, len(col))
		}
		out[i] = col[p]
	}
	return out, nil
}

func (a *MemHeaderArray) BinMeta() (map[string]int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, ErrClosed
	}
	out := make(map[string]int, len(a.bin))
	for k, v := range a.bin {
		out[k] = v
	}
	return out, nil
}

func (a *MemHeaderArray) TextMeta() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, ErrClosed
	}
	return append([]byte(nil), a.text...), nil
}

func (a *MemHeaderArray) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// rowMajorStrides returns the element stride of every dimension.
func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = stride
		stride *= shape[d]
	}
	return strides
}

// selectionSize returns the number of elements selected by sel.
func selectionSize(sel [][]int) int {
	n := 1
	for _, positions := range sel {
		n *= len(positions)
	}
	return n
}

// advance steps coords to the next row-major coordinate of sel.
func advance(coords []int, sel [][]int) {
	for d := len(coords) - 1; d >= 0; d-- {
		coords[d]++
		if coords[d] < len(sel[d]) {
			return
		}
		coords[d] = 0
	}
}
