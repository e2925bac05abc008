package segy

import (
	"errors"
	"fmt"

	"github.com/segy-tiles/server/internal/data/store"
)

// Storage dimension names. Unstructured surveys are (traces, samples);
// structured surveys are (ilines, xlines, offsets, samples).
const (
	DimTraces  = "traces"
	DimIlines  = "ilines"
	DimXlines  = "xlines"
	DimOffsets = "offsets"
	DimSamples = "samples"
)

// Structured axis order in the data array.
const (
	axisIline  = 0
	axisXline  = 1
	axisOffset = 2
	axisDepth  = 3
)

// TextBlockSize is the length of one textual header record.
const TextBlockSize = 3200

// Sorting is the trace-sorting indicator stored with the survey.
type Sorting int

const (
	SortingUnknown   Sorting = 0
	SortingCrossline Sorting = 1
	SortingInline    Sorting = 2
)

func (s Sorting) String() string {
	switch s {
	case SortingCrossline:
		return "crossline"
	case SortingInline:
		return "inline"
	default:
		return "unknown"
	}
}

// File is read-only access to one survey over an open dataset. The file does
// not own independent state beyond the dataset handle; closing the dataset
// makes every later read fail with store.ErrClosed.
type File struct {
	uri string
	ds  *store.Dataset
}

// Open wraps an already-open dataset. The caller opens the backing arrays
// through a storage backend and keeps sharing them across all views built
// from the returned file.
func Open(uri string, ds *store.Dataset) *File {
	return &File{uri: uri, ds: ds}
}

// URI returns the survey root the dataset was opened from.
func (f *File) URI() string { return f.uri }

func (f *File) String() string {
	if _, ok := f.Structured(); ok {
		return fmt.Sprintf("StructuredFile(%q)", f.uri)
	}
	return fmt.Sprintf("File(%q)", f.uri)
}

// Bin returns the binary-header key/value pairs.
func (f *File) Bin() (map[string]int, error) {
	return f.ds.Headers.BinMeta()
}

// Text returns the textual header records, each exactly TextBlockSize bytes.
func (f *File) Text() ([][]byte, error) {
	raw, err := f.ds.Headers.TextMeta()
	if err != nil {
		return nil, err
	}
	if len(raw)%TextBlockSize != 0 {
		return nil, fmt.Errorf("segy: textual header length %d is not a multiple of %d", len(raw), TextBlockSize)
	}
	blocks := make([][]byte, 0, len(raw)/TextBlockSize)
	for i := 0; i < len(raw); i += TextBlockSize {
		blocks = append(blocks, raw[i:i+TextBlockSize])
	}
	return blocks, nil
}

// Samples returns the sample-position labels.
func (f *File) Samples() ([]int, error) {
	return f.ds.Data.MetaInts(DimSamples)
}

// Sorting returns the trace-sorting indicator. A stored UNKNOWN value, or a
// survey without the indicator, reports SortingUnknown.
func (f *File) Sorting() (Sorting, error) {
	vals, err := f.ds.Data.MetaInts("sorting")
	if errors.Is(err, store.ErrNoMeta) {
		return SortingUnknown, nil
	}
	if err != nil {
		return SortingUnknown, err
	}
	return Sorting(vals[0]), nil
}

// Traces returns the flat trace view.
func (f *File) Traces() *Traces {
	return &Traces{data: f.ds.Data, headers: f.ds.Headers}
}

// Structured returns the line-oriented views when the survey is structured,
// which is the case when the data array carries line axes instead of a flat
// traces dimension.
func (f *File) Structured() (*StructuredFile, bool) {
	if f.ds.Data.HasDim(DimTraces) {
		return nil, false
	}
	return &StructuredFile{File: f}, true
}

// Close closes both backing arrays. Every view derived from this file fails
// with store.ErrClosed afterwards.
func (f *File) Close() error {
	return f.ds.Close()
}

// StructuredFile adds inline, crossline, depth and offset access to a
// structured (3-D) survey.
type StructuredFile struct {
	*File
}

// Offsets returns the acquisition offset label set.
func (f *StructuredFile) Offsets() ([]int, error) {
	return f.ds.Data.MetaInts(DimOffsets)
}

// Ilines returns the inline-label view.
func (f *StructuredFile) Ilines() (*Lines, error) {
	return f.lineView("iline", axisIline, DimIlines)
}

// Xlines returns the crossline-label view.
func (f *StructuredFile) Xlines() (*Lines, error) {
	return f.lineView("xline", axisXline, DimXlines)
}

// Depths returns the depth-slice view. Depth labels coincide with sample
// positions, so the view has no stored label set.
func (f *StructuredFile) Depths() (*Lines, error) {
	offsets, err := f.Offsets()
	if err != nil {
		return nil, err
	}
	return newLines(f.ds.Data, "depth", axisDepth, nil, axisOffset, offsets)
}

func (f *StructuredFile) lineView(name string, axis int, labelKey string) (*Lines, error) {
	labels, err := f.ds.Data.MetaInts(labelKey)
	if err != nil {
		return nil, err
	}
	offsets, err := f.Offsets()
	if err != nil {
		return nil, err
	}
	return newLines(f.ds.Data, name, axis, labels, axisOffset, offsets)
}
