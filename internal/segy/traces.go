package segy

import (
	"fmt"

	"github.com/segy-tiles/server/internal/data/store"
)

// Traces is the flat trace-by-sample view of a survey. Trace positions are
// already dense array positions, so no label translation happens here.
type Traces struct {
	data    store.DataArray
	headers store.HeaderArray
}

// Len returns the trace count.
func (t *Traces) Len() int { return t.data.Len() }

// Samples returns the sample count per trace.
func (t *Traces) Samples() int {
	shape := t.data.Shape()
	return shape[len(shape)-1]
}

// Get reads the samples selected by (trace, sample). The result rank follows
// the usual shape reduction: two scalars yield a rank-0 block, one scalar and
// one range a rank-1 block, two ranges a rank-2 block shaped
// (trace count, sample count).
func (t *Traces) Get(trace, sample Index) (*Block, error) {
	shape := t.data.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: trace view over rank-%d array", ErrShapeMismatch, len(shape))
	}

	tracePos, traceScalar, err := trace.resolve(shape[0])
	if err != nil {
		return nil, fmt.Errorf("trace %s: %w", trace, err)
	}
	samplePos, sampleScalar, err := sample.resolve(shape[1])
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", sample, err)
	}

	vals, err := t.data.Read([][]int{tracePos, samplePos})
	if err != nil {
		return nil, err
	}

	outShape := make([]int, 0, 2)
	if !traceScalar {
		outShape = append(outShape, len(tracePos))
	}
	if !sampleScalar {
		outShape = append(outShape, len(samplePos))
	}
	return newBlock(outShape, vals), nil
}

// Headers returns the all-fields header view over the same trace set.
func (t *Traces) Headers() *Headers { return &Headers{arr: t.headers} }

// HeaderField returns a single-field header view.
func (t *Traces) HeaderField(name string) (*Header, error) {
	for _, f := range t.headers.Fields() {
		if f == name {
			return &Header{arr: t.headers, field: name}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown header field %q", ErrOutOfRange, name)
}
