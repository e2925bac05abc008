// Package store defines the dense-array interface that survey views read
// through. Backends (zarr, tiledb) implement it; the segy package consumes it
// and never performs I/O of its own.
package store

import "errors"

var (
	// ErrClosed is returned by any read issued after a dataset was closed.
	ErrClosed = errors.New("store: dataset is closed")

	// ErrNoMeta is returned when a metadata key is absent from an array.
	ErrNoMeta = errors.New("store: metadata key not found")
)

// DataArray is a read-only dense numeric array. Unstructured surveys have the
// dimensions (traces, samples); structured surveys have
// (ilines, xlines, offsets, samples).
type DataArray interface {
	// Shape returns the extent of every dimension.
	Shape() []int

	// Len returns the extent of the first dimension.
	Len() int

	// HasDim reports whether the array has a dimension with the given name.
	HasDim(name string) bool

	// MetaInts returns the integer metadata stored under key. Scalars are
	// returned as a one-element slice. Returns ErrNoMeta for unknown keys and
	// ErrClosed after Close.
	MetaInts(key string) ([]int, error)

	// Read gathers the cross product of the given positions, one position list
	// per dimension, in row-major order. Fails with ErrClosed after Close.
	Read(sel [][]int) ([]float32, error)

	Close() error
}

// HeaderArray is a read-only array of per-trace header records. Every cell
// holds the same ordered set of named integer fields.
type HeaderArray interface {
	// Len returns the trace count.
	Len() int

	// Fields returns the field names in their declared order.
	Fields() []string

	// ReadField returns the values of one field at the given trace positions.
	// Fails with ErrClosed after Close.
	ReadField(name string, positions []int) ([]int32, error)

	// BinMeta returns the binary-header key/value pairs.
	BinMeta() (map[string]int, error)

	// TextMeta returns the concatenated raw textual header blocks.
	TextMeta() ([]byte, error)

	Close() error
}

// Dataset is the pair of arrays backing one survey.
type Dataset struct {
	Data    DataArray
	Headers HeaderArray
}

// Close closes both arrays. All views derived from the dataset fail with
// ErrClosed afterwards.
func (d *Dataset) Close() error {
	var errs []error
	if d.Headers != nil {
		if err := d.Headers.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Data != nil {
		if err := d.Data.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
