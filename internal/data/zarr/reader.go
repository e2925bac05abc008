// Package zarr reads survey arrays from a Zarr v3 flavored chunked store:
// per-array JSON metadata plus zstd-compressed row-major chunk files. This is
// the default backend; it needs no cgo.
package zarr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/segy-tiles/server/internal/data/store"
)

// chunkCacheSize is the per-array cap on cached decompressed chunks.
const chunkCacheSize = 64

// arrayMeta is the zarr.json metadata of one array.
type arrayMeta struct {
	ZarrFormat int    `json:"zarr_format"`
	NodeType   string `json:"node_type"`
	Shape      []int  `json:"shape"`
	DataType   string `json:"data_type"`
	ChunkGrid  struct {
		Name          string `json:"name"`
		Configuration struct {
			ChunkShape []int `json:"chunk_shape"`
		} `json:"configuration"`
	} `json:"chunk_grid"`
	ChunkKeyEncoding struct {
		Name          string `json:"name"`
		Configuration struct {
			Separator string `json:"separator"`
		} `json:"configuration"`
	} `json:"chunk_key_encoding"`
	FillValue      interface{}                `json:"fill_value"`
	DimensionNames []string                   `json:"dimension_names,omitempty"`
	Attributes     map[string]json.RawMessage `json:"attributes,omitempty"`
}

// Array is one open chunked array. It satisfies store.DataArray; header
// fields reuse it through the headers wrapper in dataset.go.
type Array struct {
	path string
	meta arrayMeta

	dec    *zstd.Decoder
	chunks *lru.Cache[string, []byte]
	attrs  map[string][]int

	mu     sync.RWMutex
	closed bool
}

func openArray(path string) (*Array, error) {
	raw, err := os.ReadFile(filepath.Join(path, "zarr.json"))
	if err != nil {
		return nil, fmt.Errorf("zarr: read array metadata: %w", err)
	}
	var meta arrayMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("zarr: parse array metadata: %w", err)
	}
	if meta.NodeType != "" && meta.NodeType != "array" {
		return nil, fmt.Errorf("zarr: %s is a %s, not an array", path, meta.NodeType)
	}
	if meta.DataType != "float32" && meta.DataType != "int32" {
		return nil, fmt.Errorf("zarr: unsupported data_type %q", meta.DataType)
	}
	if len(meta.Shape) == 0 || len(meta.Shape) != len(meta.ChunkGrid.Configuration.ChunkShape) {
		return nil, fmt.Errorf("zarr: shape %v does not match chunk shape %v",
			meta.Shape, meta.ChunkGrid.Configuration.ChunkShape)
	}
	for d, c := range meta.ChunkGrid.Configuration.ChunkShape {
		if c <= 0 {
			return nil, fmt.Errorf("zarr: invalid chunk extent %d at dim %d", c, d)
		}
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zarr: create zstd decoder: %w", err)
	}
	chunks, err := lru.New[string, []byte](chunkCacheSize)
	if err != nil {
		dec.Close()
		return nil, fmt.Errorf("zarr: create chunk cache: %w", err)
	}

	return &Array{
		path:   path,
		meta:   meta,
		dec:    dec,
		chunks: chunks,
		attrs:  parseIntAttrs(meta.Attributes),
	}, nil
}

// parseIntAttrs keeps the attributes that are integers or integer lists.
func parseIntAttrs(attrs map[string]json.RawMessage) map[string][]int {
	out := make(map[string][]int, len(attrs))
	for key, raw := range attrs {
		var list []int
		if err := json.Unmarshal(raw, &list); err == nil {
			out[key] = list
			continue
		}
		var scalar int
		if err := json.Unmarshal(raw, &scalar); err == nil {
			out[key] = []int{scalar}
		}
	}
	return out
}

func (a *Array) Shape() []int { return append([]int(nil), a.meta.Shape...) }

func (a *Array) Len() int { return a.meta.Shape[0] }

func (a *Array) HasDim(name string) bool {
	for _, d := range a.meta.DimensionNames {
		if d == name {
			return true
		}
	}
	return false
}

func (a *Array) MetaInts(key string) ([]int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, store.ErrClosed
	}
	v, ok := a.attrs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNoMeta, key)
	}
	return append([]int(nil), v...), nil
}

// Read gathers float32 values at the cross product of sel.
func (a *Array) Read(sel [][]int) ([]float32, error) {
	words, err := a.gather(sel)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(words))
	for i, w := range words {
		out[i] = math.Float32frombits(w)
	}
	return out, nil
}

// readInt32 gathers int32 values at the cross product of sel.
func (a *Array) readInt32(sel [][]int) ([]int32, error) {
	words, err := a.gather(sel)
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(words))
	for i, w := range words {
		out[i] = int32(w)
	}
	return out, nil
}

// gather reads the selected elements as little-endian 32-bit words, fetching
// (and caching) one decompressed chunk at a time. Chunk files absent from
// disk stand for all-fill-value chunks.
func (a *Array) gather(sel [][]int) ([]uint32, error) {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return nil, store.ErrClosed
	}
	a.mu.RUnlock()

	shape := a.meta.Shape
	if len(sel) != len(shape) {
		return nil, fmt.Errorf("zarr: selection rank %d against rank-%d array", len(sel), len(shape))
	}
	for d, positions := range sel {
		for _, p := range positions {
			if p < 0 || p >= shape[d] {
				return nil, fmt.Errorf("zarr: position %d outside dimension %d (extent %d)", p, d, shape[d])
			}
		}
	}

	size := 1
	for _, positions := range sel {
		size *= len(positions)
	}
	out := make([]uint32, size)
	if size == 0 {
		return out, nil
	}

	chunkShape := a.meta.ChunkGrid.Configuration.ChunkShape
	coords := make([]int, len(sel))
	chunkIdx := make([]int, len(sel))
	within := make([]int, len(sel))

	var lastKey string
	var lastChunk []byte
	for i := range out {
		for d := range sel {
			p := sel[d][coords[d]]
			chunkIdx[d] = p / chunkShape[d]
			within[d] = p % chunkShape[d]
		}

		key := a.chunkKey(chunkIdx)
		if key != lastKey || lastChunk == nil {
			chunk, err := a.loadChunk(key, chunkIdx)
			if err != nil {
				return nil, err
			}
			lastKey, lastChunk = key, chunk
		}

		// Edge chunks store only the valid region, row-major.
		off := 0
		for d := range sel {
			extent := chunkShape[d]
			if remaining := shape[d] - chunkIdx[d]*chunkShape[d]; remaining < extent {
				extent = remaining
			}
			off = off*extent + within[d]
		}
		out[i] = binary.LittleEndian.Uint32(lastChunk[off*4:])

		for d := len(coords) - 1; d >= 0; d-- {
			coords[d]++
			if coords[d] < len(sel[d]) {
				break
			}
			coords[d] = 0
		}
	}
	return out, nil
}

func (a *Array) chunkKey(chunkIdx []int) string {
	sep := a.meta.ChunkKeyEncoding.Configuration.Separator
	if sep == "" {
		sep = "/"
	}
	parts := make([]string, len(chunkIdx))
	for i, idx := range chunkIdx {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, sep)
}

func (a *Array) loadChunk(key string, chunkIdx []int) ([]byte, error) {
	if chunk, ok := a.chunks.Get(key); ok {
		return chunk, nil
	}

	elems, err := a.chunkElems(chunkIdx)
	if err != nil {
		return nil, err
	}

	sep := a.meta.ChunkKeyEncoding.Configuration.Separator
	if sep == "" {
		sep = "/"
	}
	chunkPath := filepath.Join(a.path, "c", filepath.FromSlash(strings.ReplaceAll(key, sep, "/")))

	compressed, readErr := os.ReadFile(chunkPath)
	var chunk []byte
	switch {
	case readErr == nil:
		chunk, err = a.dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("zarr: decompress chunk %s: %w", key, err)
		}
	case os.IsNotExist(readErr):
		chunk, err = a.fillChunk(elems)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("zarr: read chunk %s: %w", key, readErr)
	}

	if len(chunk) < elems*4 {
		return nil, fmt.Errorf("zarr: chunk %s too short: got %d bytes, expected %d", key, len(chunk), elems*4)
	}
	a.chunks.Add(key, chunk)
	return chunk, nil
}

// chunkElems returns the element count of the (possibly truncated) chunk.
func (a *Array) chunkElems(chunkIdx []int) (int, error) {
	chunkShape := a.meta.ChunkGrid.Configuration.ChunkShape
	elems := 1
	for d := range a.meta.Shape {
		start := chunkIdx[d] * chunkShape[d]
		if start < 0 || start >= a.meta.Shape[d] {
			return 0, fmt.Errorf("zarr: chunk index out of range at dim %d: start=%d shape=%d",
				d, start, a.meta.Shape[d])
		}
		extent := chunkShape[d]
		if remaining := a.meta.Shape[d] - start; remaining < extent {
			extent = remaining
		}
		elems *= extent
	}
	return elems, nil
}

// fillChunk synthesizes an all-fill-value chunk.
func (a *Array) fillChunk(elems int) ([]byte, error) {
	var word uint32
	switch fill := a.meta.FillValue.(type) {
	case nil:
		word = 0
	case float64:
		if a.meta.DataType == "float32" {
			word = math.Float32bits(float32(fill))
		} else {
			word = uint32(int32(fill))
		}
	default:
		return nil, fmt.Errorf("zarr: unsupported fill_value type %T", a.meta.FillValue)
	}

	chunk := make([]byte, elems*4)
	if word != 0 {
		for i := 0; i < elems; i++ {
			binary.LittleEndian.PutUint32(chunk[i*4:], word)
		}
	}
	return chunk, nil
}

func (a *Array) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.chunks.Purge()
	a.dec.Close()
	return nil
}
