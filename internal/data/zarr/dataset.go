package zarr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/segy-tiles/server/internal/data/store"
)

// groupMeta is the zarr.json of the headers group. The attributes hold the
// field list (in trace header order), the binary header values, and the
// textual header bytes encoded as base64.
type groupMeta struct {
	ZarrFormat int    `json:"zarr_format"`
	NodeType   string `json:"node_type"`
	Attributes struct {
		Fields []string       `json:"fields"`
		Bin    map[string]int `json:"bin"`
		Text   string         `json:"text"`
	} `json:"attributes"`
}

// headerArray exposes the per-field int32 arrays of the headers group as a
// single store.HeaderArray.
type headerArray struct {
	fields []string
	cols   map[string]*Array
	bin    map[string]int
	text   []byte

	mu     sync.RWMutex
	closed bool
}

func openHeaders(path string) (*headerArray, error) {
	raw, err := os.ReadFile(filepath.Join(path, "zarr.json"))
	if err != nil {
		return nil, fmt.Errorf("zarr: read headers metadata: %w", err)
	}
	var meta groupMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("zarr: parse headers metadata: %w", err)
	}
	if meta.NodeType != "" && meta.NodeType != "group" {
		return nil, fmt.Errorf("zarr: %s is a %s, not a group", path, meta.NodeType)
	}
	if len(meta.Attributes.Fields) == 0 {
		return nil, fmt.Errorf("zarr: headers group at %s declares no fields", path)
	}

	text, err := base64.StdEncoding.DecodeString(meta.Attributes.Text)
	if err != nil {
		return nil, fmt.Errorf("zarr: decode textual header: %w", err)
	}

	h := &headerArray{
		fields: meta.Attributes.Fields,
		cols:   make(map[string]*Array, len(meta.Attributes.Fields)),
		bin:    meta.Attributes.Bin,
		text:   text,
	}
	n := -1
	for _, field := range h.fields {
		col, err := openArray(filepath.Join(path, field))
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("zarr: open header field %s: %w", field, err)
		}
		if col.meta.DataType != "int32" || len(col.meta.Shape) != 1 {
			col.Close()
			h.Close()
			return nil, fmt.Errorf("zarr: header field %s is not a 1-d int32 array", field)
		}
		if n < 0 {
			n = col.Len()
		} else if col.Len() != n {
			col.Close()
			h.Close()
			return nil, fmt.Errorf("zarr: header field %s has %d entries, expected %d", field, col.Len(), n)
		}
		h.cols[field] = col
	}
	return h, nil
}

func (h *headerArray) Len() int { return h.cols[h.fields[0]].Len() }

func (h *headerArray) Fields() []string { return append([]string(nil), h.fields...) }

func (h *headerArray) ReadField(name string, positions []int) ([]int32, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, store.ErrClosed
	}
	col, ok := h.cols[name]
	if !ok {
		return nil, fmt.Errorf("zarr: unknown header field %q", name)
	}
	return col.readInt32([][]int{positions})
}

func (h *headerArray) BinMeta() (map[string]int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, store.ErrClosed
	}
	if h.bin == nil {
		return nil, fmt.Errorf("%w: bin", store.ErrNoMeta)
	}
	out := make(map[string]int, len(h.bin))
	for k, v := range h.bin {
		out[k] = v
	}
	return out, nil
}

func (h *headerArray) TextMeta() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, store.ErrClosed
	}
	return append([]byte(nil), h.text...), nil
}

func (h *headerArray) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	var firstErr error
	for _, col := range h.cols {
		if err := col.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open opens the survey store rooted at root, which holds the sample data
// under data/ and the trace header group under headers/.
func Open(root string) (*store.Dataset, error) {
	data, err := openArray(filepath.Join(root, "data"))
	if err != nil {
		return nil, err
	}
	headers, err := openHeaders(filepath.Join(root, "headers"))
	if err != nil {
		data.Close()
		return nil, err
	}
	return &store.Dataset{Data: data, Headers: headers}, nil
}
