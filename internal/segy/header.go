package segy

import (
	"fmt"

	"github.com/segy-tiles/server/internal/data/store"
)

// Header is a view over one named header field: trace index in, field value
// out.
type Header struct {
	arr   store.HeaderArray
	field string
}

// Len returns the trace count.
func (h *Header) Len() int { return h.arr.Len() }

// Field returns the field name this view is scoped to.
func (h *Header) Field() string { return h.field }

// Get returns the field value for trace i.
func (h *Header) Get(i int) (int32, error) {
	vals, err := h.GetRange(At(i))
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

// GetRange returns the field values for the traces selected by ix, in
// traversal order.
func (h *Header) GetRange(ix Index) ([]int32, error) {
	positions, _, err := ix.resolve(h.arr.Len())
	if err != nil {
		return nil, err
	}
	return h.arr.ReadField(h.field, positions)
}

// Headers is a view over all header fields: trace index in, ordered record
// out. Field order is identical across records and matches the dataset's
// declared order.
type Headers struct {
	arr store.HeaderArray
}

// Len returns the trace count.
func (h *Headers) Len() int { return h.arr.Len() }

// Fields returns the field names in declared order.
func (h *Headers) Fields() []string { return h.arr.Fields() }

// Get returns the full header record for trace i.
func (h *Headers) Get(i int) (Record, error) {
	recs, err := h.GetRange(At(i))
	if err != nil {
		return Record{}, err
	}
	return recs[0], nil
}

// GetRange returns one record per selected trace, in traversal order.
func (h *Headers) GetRange(ix Index) ([]Record, error) {
	positions, _, err := ix.resolve(h.arr.Len())
	if err != nil {
		return nil, err
	}

	names := h.arr.Fields()
	columns := make([][]int32, len(names))
	for f, name := range names {
		col, err := h.arr.ReadField(name, positions)
		if err != nil {
			return nil, err
		}
		columns[f] = col
	}

	records := make([]Record, len(positions))
	for i := range positions {
		values := make([]int32, len(names))
		for f := range names {
			values[f] = columns[f][i]
		}
		records[i] = Record{names: names, values: values}
	}
	return records, nil
}

// Record is one trace header: named integer fields in the dataset's declared
// order. The name slice is shared across records from the same read.
type Record struct {
	names  []string
	values []int32
}

// Len returns the field count.
func (r Record) Len() int { return len(r.names) }

// Names returns the field names in order.
func (r Record) Names() []string { return r.names }

// Value returns the value of field i.
func (r Record) Value(i int) int32 { return r.values[i] }

// Get returns the value of the named field.
func (r Record) Get(name string) (int32, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return 0, false
}

func (r Record) String() string {
	s := "{"
	for i, n := range r.names {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s:%d", n, r.values[i])
	}
	return s + "}"
}
