//go:build tiledb

package tiledb

import (
	"fmt"
	"path/filepath"
	"sync"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/segy-tiles/server/internal/data/store"
)

// Open opens the survey store rooted at path and returns its data and
// headers readers.
func Open(path string) (*store.Dataset, error) {
	uri, err := ResolveSurveyURI(path)
	if err != nil {
		return nil, err
	}
	if err := statSurvey(uri); err != nil {
		return nil, fmt.Errorf("tiledb survey not found at %s: %w", uri, err)
	}

	ctx, err := tiledb.NewContext(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create TileDB context: %w", err)
	}

	data, err := newDataReader(ctx, filepath.Join(uri, "data"))
	if err != nil {
		return nil, err
	}
	headers, err := newHeaderReader(ctx, filepath.Join(uri, "headers"))
	if err != nil {
		data.Close()
		return nil, err
	}
	return &store.Dataset{Data: data, Headers: headers}, nil
}

// dataReader reads the dense sample array. Arrays are opened per query, the
// way TileDB recommends for concurrent readers; shape and dimension names
// are inspected once up front.
type dataReader struct {
	ctx   *tiledb.Context
	uri   string
	shape []int
	dims  []string

	mu     sync.RWMutex
	closed bool
}

func newDataReader(ctx *tiledb.Context, uri string) (*dataReader, error) {
	r := &dataReader{ctx: ctx, uri: uri}
	if err := r.inspect(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *dataReader) inspect() error {
	arr, err := tiledb.NewArray(r.ctx, r.uri)
	if err != nil {
		return fmt.Errorf("failed to open data array (%s): %w", r.uri, err)
	}
	defer arr.Free()
	if err := arr.Open(tiledb.TILEDB_READ); err != nil {
		return fmt.Errorf("failed to open data array for read: %w", err)
	}
	defer arr.Close()

	schema, err := arr.Schema()
	if err != nil {
		return fmt.Errorf("failed to get data schema: %w", err)
	}
	defer schema.Free()
	domain, err := schema.Domain()
	if err != nil {
		return fmt.Errorf("failed to get data domain: %w", err)
	}
	defer domain.Free()
	ndim, err := domain.NDim()
	if err != nil {
		return fmt.Errorf("failed to get data rank: %w", err)
	}

	for i := uint(0); i < ndim; i++ {
		dim, err := domain.DimensionFromIndex(i)
		if err != nil {
			return fmt.Errorf("failed to get dimension %d: %w", i, err)
		}
		name, nameErr := dim.Name()
		extent, extErr := dimensionExtent(dim)
		dim.Free()
		if nameErr != nil {
			return fmt.Errorf("failed to get dimension %d name: %w", i, nameErr)
		}
		if extErr != nil {
			return fmt.Errorf("failed to get dimension %s extent: %w", name, extErr)
		}
		r.dims = append(r.dims, name)
		r.shape = append(r.shape, extent)
	}
	return nil
}

func dimensionExtent(dim *tiledb.Dimension) (int, error) {
	dom, err := dim.Domain()
	if err != nil {
		return 0, err
	}
	switch v := dom.(type) {
	case []int64:
		if len(v) >= 2 {
			return int(v[1]-v[0]) + 1, nil
		}
	case []int32:
		if len(v) >= 2 {
			return int(v[1]-v[0]) + 1, nil
		}
	case []uint64:
		if len(v) >= 2 {
			return int(v[1]-v[0]) + 1, nil
		}
	}
	return 0, fmt.Errorf("unsupported dimension domain type %T", dom)
}

func (r *dataReader) Shape() []int { return append([]int(nil), r.shape...) }

func (r *dataReader) Len() int { return r.shape[0] }

func (r *dataReader) HasDim(name string) bool {
	for _, d := range r.dims {
		if d == name {
			return true
		}
	}
	return false
}

func (r *dataReader) MetaInts(key string) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, store.ErrClosed
	}

	arr, err := tiledb.NewArray(r.ctx, r.uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open data array: %w", err)
	}
	defer arr.Free()
	if err := arr.Open(tiledb.TILEDB_READ); err != nil {
		return nil, fmt.Errorf("failed to open data array for read: %w", err)
	}
	defer arr.Close()

	_, _, value, err := arr.GetMetadata(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", store.ErrNoMeta, key)
	}
	ints, ok := metaInts(value)
	if !ok {
		return nil, fmt.Errorf("metadata %q is not integer valued", key)
	}
	return ints, nil
}

func metaInts(value interface{}) ([]int, bool) {
	switch v := value.(type) {
	case int32:
		return []int{int(v)}, true
	case int64:
		return []int{int(v)}, true
	case []int32:
		out := make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
		return out, true
	case []int64:
		out := make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
		return out, true
	}
	return nil, false
}

// Read gathers float32 values at the cross product of sel. Point ranges per
// dimension plus row-major layout make TileDB return the cells in exactly
// that cross-product order.
func (r *dataReader) Read(sel [][]int) ([]float32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, store.ErrClosed
	}
	if len(sel) != len(r.shape) {
		return nil, fmt.Errorf("selection rank %d against rank-%d array", len(sel), len(r.shape))
	}

	size := 1
	for d, positions := range sel {
		for _, p := range positions {
			if p < 0 || p >= r.shape[d] {
				return nil, fmt.Errorf("position %d outside dimension %s (extent %d)", p, r.dims[d], r.shape[d])
			}
		}
		size *= len(positions)
	}
	out := make([]float32, size)
	if size == 0 {
		return out, nil
	}

	arr, err := tiledb.NewArray(r.ctx, r.uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open data array: %w", err)
	}
	defer arr.Free()
	if err := arr.Open(tiledb.TILEDB_READ); err != nil {
		return nil, fmt.Errorf("failed to open data array for read: %w", err)
	}
	defer arr.Close()

	sub, err := arr.NewSubarray()
	if err != nil {
		return nil, fmt.Errorf("failed to create subarray: %w", err)
	}
	defer sub.Free()
	for d, positions := range sel {
		for _, p := range positions {
			if err := sub.AddRangeByName(r.dims[d], tiledb.MakeRange[int64](int64(p), int64(p))); err != nil {
				return nil, fmt.Errorf("failed to add %s range: %w", r.dims[d], err)
			}
		}
	}

	q, err := tiledb.NewQuery(r.ctx, arr)
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer q.Free()
	if err := q.SetSubarray(sub); err != nil {
		return nil, fmt.Errorf("failed to set subarray: %w", err)
	}
	if err := q.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, fmt.Errorf("failed to set query layout: %w", err)
	}
	if _, err := q.SetDataBuffer(valuesAttr, out); err != nil {
		return nil, fmt.Errorf("failed to set buffer %s: %w", valuesAttr, err)
	}

	if err := q.Submit(); err != nil {
		return nil, fmt.Errorf("query submit failed: %w", err)
	}
	status, err := q.Status()
	if err != nil {
		return nil, fmt.Errorf("query status failed: %w", err)
	}
	if status != tiledb.TILEDB_COMPLETED {
		return nil, fmt.Errorf("unexpected query status: %v", status)
	}
	return out, nil
}

func (r *dataReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// headerReader reads the dense headers array, which has one int32 attribute
// per trace header field and carries the binary and textual file headers as
// array metadata.
type headerReader struct {
	ctx    *tiledb.Context
	uri    string
	n      int
	dim    string
	fields []string

	mu     sync.RWMutex
	closed bool
}

func newHeaderReader(ctx *tiledb.Context, uri string) (*headerReader, error) {
	r := &headerReader{ctx: ctx, uri: uri}
	if err := r.inspect(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *headerReader) inspect() error {
	arr, err := tiledb.NewArray(r.ctx, r.uri)
	if err != nil {
		return fmt.Errorf("failed to open headers array (%s): %w", r.uri, err)
	}
	defer arr.Free()
	if err := arr.Open(tiledb.TILEDB_READ); err != nil {
		return fmt.Errorf("failed to open headers array for read: %w", err)
	}
	defer arr.Close()

	schema, err := arr.Schema()
	if err != nil {
		return fmt.Errorf("failed to get headers schema: %w", err)
	}
	defer schema.Free()
	domain, err := schema.Domain()
	if err != nil {
		return fmt.Errorf("failed to get headers domain: %w", err)
	}
	defer domain.Free()

	dim, err := domain.DimensionFromIndex(0)
	if err != nil {
		return fmt.Errorf("failed to get headers dimension: %w", err)
	}
	name, nameErr := dim.Name()
	extent, extErr := dimensionExtent(dim)
	dim.Free()
	if nameErr != nil {
		return fmt.Errorf("failed to get headers dimension name: %w", nameErr)
	}
	if extErr != nil {
		return fmt.Errorf("failed to get headers extent: %w", extErr)
	}
	r.dim = name
	r.n = extent

	// Schema attribute order is the trace header field order.
	nattrs, err := schema.AttributeNum()
	if err != nil {
		return fmt.Errorf("failed to get attribute count: %w", err)
	}
	for i := uint(0); i < nattrs; i++ {
		attr, err := schema.AttributeFromIndex(i)
		if err != nil {
			return fmt.Errorf("failed to get attribute %d: %w", i, err)
		}
		name, nameErr := attr.Name()
		attr.Free()
		if nameErr != nil {
			return fmt.Errorf("failed to get attribute %d name: %w", i, nameErr)
		}
		r.fields = append(r.fields, name)
	}
	return nil
}

func (r *headerReader) Len() int { return r.n }

func (r *headerReader) Fields() []string { return append([]string(nil), r.fields...) }

func (r *headerReader) knownField(name string) bool {
	for _, f := range r.fields {
		if f == name {
			return true
		}
	}
	return false
}

func (r *headerReader) ReadField(name string, positions []int) ([]int32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, store.ErrClosed
	}
	if !r.knownField(name) {
		return nil, fmt.Errorf("unknown header field %q", name)
	}
	for _, p := range positions {
		if p < 0 || p >= r.n {
			return nil, fmt.Errorf("position %d outside headers array (extent %d)", p, r.n)
		}
	}
	out := make([]int32, len(positions))
	if len(positions) == 0 {
		return out, nil
	}

	arr, err := tiledb.NewArray(r.ctx, r.uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open headers array: %w", err)
	}
	defer arr.Free()
	if err := arr.Open(tiledb.TILEDB_READ); err != nil {
		return nil, fmt.Errorf("failed to open headers array for read: %w", err)
	}
	defer arr.Close()

	sub, err := arr.NewSubarray()
	if err != nil {
		return nil, fmt.Errorf("failed to create subarray: %w", err)
	}
	defer sub.Free()
	for _, p := range positions {
		if err := sub.AddRangeByName(r.dim, tiledb.MakeRange[int64](int64(p), int64(p))); err != nil {
			return nil, fmt.Errorf("failed to add %s range: %w", r.dim, err)
		}
	}

	q, err := tiledb.NewQuery(r.ctx, arr)
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer q.Free()
	if err := q.SetSubarray(sub); err != nil {
		return nil, fmt.Errorf("failed to set subarray: %w", err)
	}
	if err := q.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, fmt.Errorf("failed to set query layout: %w", err)
	}
	if _, err := q.SetDataBuffer(name, out); err != nil {
		return nil, fmt.Errorf("failed to set buffer %s: %w", name, err)
	}

	if err := q.Submit(); err != nil {
		return nil, fmt.Errorf("query submit failed: %w", err)
	}
	status, err := q.Status()
	if err != nil {
		return nil, fmt.Errorf("query status failed: %w", err)
	}
	if status != tiledb.TILEDB_COMPLETED {
		return nil, fmt.Errorf("unexpected query status: %v", status)
	}
	return out, nil
}

func (r *headerReader) BinMeta() (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, store.ErrClosed
	}

	arr, err := tiledb.NewArray(r.ctx, r.uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open headers array: %w", err)
	}
	defer arr.Free()
	if err := arr.Open(tiledb.TILEDB_READ); err != nil {
		return nil, fmt.Errorf("failed to open headers array for read: %w", err)
	}
	defer arr.Close()

	num, err := arr.GetMetadataNum()
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata count: %w", err)
	}
	out := make(map[string]int)
	for i := uint64(0); i < num; i++ {
		meta, err := arr.GetMetadataFromIndex(i)
		if err != nil {
			return nil, fmt.Errorf("failed to get metadata %d: %w", i, err)
		}
		if meta.Key == textMetaKey {
			continue
		}
		if ints, ok := metaInts(meta.Value); ok && len(ints) == 1 {
			out[meta.Key] = ints[0]
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: bin", store.ErrNoMeta)
	}
	return out, nil
}

func (r *headerReader) TextMeta() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, store.ErrClosed
	}

	arr, err := tiledb.NewArray(r.ctx, r.uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open headers array: %w", err)
	}
	defer arr.Free()
	if err := arr.Open(tiledb.TILEDB_READ); err != nil {
		return nil, fmt.Errorf("failed to open headers array for read: %w", err)
	}
	defer arr.Close()

	_, _, value, err := arr.GetMetadata(textMetaKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", store.ErrNoMeta, textMetaKey)
	}
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return append([]byte(nil), v...), nil
	}
	return nil, fmt.Errorf("metadata %s has unexpected type %T", textMetaKey, value)
}

func (r *headerReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
