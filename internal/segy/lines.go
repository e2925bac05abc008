package segy

import (
	"fmt"

	"github.com/segy-tiles/server/internal/data/store"
)

// Lines is a view over one axis of a structured survey, addressed by line
// label (inline or crossline number, or depth index). Labels are sparse
// integers; they resolve to dense array positions through a FilteredRange
// over the axis label set.
type Lines struct {
	data store.DataArray
	name string
	axis int

	labels   []int // nil for the depth axis, where label and position coincide
	labelFR  *FilteredRange
	labelPos map[int]int

	offsetAxis int // -1 when the view carries no offset axis
	offsetFR   *FilteredRange
	offsetPos  map[int]int
}

func newLines(data store.DataArray, name string, axis int, labels []int, offsetAxis int, offsets []int) (*Lines, error) {
	l := &Lines{data: data, name: name, axis: axis, offsetAxis: -1}

	if labels != nil {
		fr, err := NewFilteredRange(labels)
		if err != nil {
			return nil, fmt.Errorf("segy: %s axis: %w", name, err)
		}
		l.labels = labels
		l.labelFR = fr
		l.labelPos = make(map[int]int, len(labels))
		for p, label := range labels {
			l.labelPos[label] = p
		}
	}

	if offsetAxis >= 0 {
		fr, err := NewFilteredRange(offsets)
		if err != nil {
			return nil, fmt.Errorf("segy: %s axis offsets: %w", name, err)
		}
		l.offsetAxis = offsetAxis
		l.offsetFR = fr
		l.offsetPos = make(map[int]int, len(offsets))
		for p, off := range offsets {
			l.offsetPos[off] = p
		}
	}
	return l, nil
}

// Name returns the display name of the axis.
func (l *Lines) Name() string { return l.name }

// Len returns the axis extent.
func (l *Lines) Len() int { return l.data.Shape()[l.axis] }

// Indexes returns the label sequence for this axis: the stored label set, or
// the dense range [0, len) for the depth axis.
func (l *Lines) Indexes() []int {
	if l.labels != nil {
		return append([]int(nil), l.labels...)
	}
	out := make([]int, l.Len())
	for i := range out {
		out[i] = i
	}
	return out
}

// Get reads the section(s) at the selected line label(s), keeping every other
// axis whole. A scalar label drops the line dimension; a range keeps it as the
// leading dimension.
func (l *Lines) Get(line Index) (*Block, error) {
	linePos, lineScalar, err := l.resolveLine(line)
	if err != nil {
		return nil, err
	}
	return l.read(linePos, lineScalar, nil, false)
}

// GetOffset reads the selected line label(s) restricted to the selected
// acquisition offset label(s). When both selectors are ranges the leading two
// dimensions of the result are (line count, offset count). Offset-scoped reads
// against a view without an offset axis fail with ErrShapeMismatch.
func (l *Lines) GetOffset(line, offset Index) (*Block, error) {
	if l.offsetAxis < 0 {
		return nil, fmt.Errorf("%w: %s", ErrShapeMismatch, l.name)
	}
	linePos, lineScalar, err := l.resolveLine(line)
	if err != nil {
		return nil, err
	}
	offPos, offScalar, err := resolveLabels(offset, l.offsetFR, l.offsetPos, "offset")
	if err != nil {
		return nil, err
	}
	return l.read(linePos, lineScalar, offPos, offScalar)
}

func (l *Lines) resolveLine(line Index) ([]int, bool, error) {
	if l.labels == nil {
		positions, scalar, err := line.resolve(l.Len())
		if err != nil {
			return nil, false, fmt.Errorf("%s %s: %w", l.name, line, err)
		}
		return positions, scalar, nil
	}
	return resolveLabels(line, l.labelFR, l.labelPos, l.name)
}

// resolveLabels maps a label selector to dense positions in traversal order.
// A scalar label absent from the set is out of range, never clamped.
func resolveLabels(ix Index, fr *FilteredRange, labelPos map[int]int, name string) ([]int, bool, error) {
	if ix.IsScalar() {
		if !fr.Contains(ix.pos) {
			return nil, false, fmt.Errorf("%w: no %s with label %d", ErrOutOfRange, name, ix.pos)
		}
		return []int{labelPos[ix.pos]}, true, nil
	}
	seq, err := fr.Values(ix)
	if err != nil {
		return nil, false, fmt.Errorf("%s %s: %w", name, ix, err)
	}
	var positions []int
	for label := range seq {
		positions = append(positions, labelPos[label])
	}
	return positions, false, nil
}

// read issues one gather fixing the line axis (and, when offSel is non-nil,
// the offset axis), then reorders dimensions so the line axis leads, followed
// by the offset axis, followed by the remaining axes in storage order. Scalar
// selectors drop their dimension.
func (l *Lines) read(lineSel []int, lineScalar bool, offSel []int, offScalar bool) (*Block, error) {
	shape := l.data.Shape()
	sel := make([][]int, len(shape))
	for d, extent := range shape {
		switch {
		case d == l.axis:
			sel[d] = lineSel
		case offSel != nil && d == l.offsetAxis:
			sel[d] = offSel
		default:
			full := make([]int, extent)
			for i := range full {
				full[i] = i
			}
			sel[d] = full
		}
	}

	vals, err := l.data.Read(sel)
	if err != nil {
		return nil, err
	}

	readShape := make([]int, len(sel))
	for d := range sel {
		readShape[d] = len(sel[d])
	}

	perm := make([]int, 0, len(shape))
	perm = append(perm, l.axis)
	if offSel != nil && l.offsetAxis != l.axis {
		perm = append(perm, l.offsetAxis)
	}
	for d := range shape {
		if d == l.axis || (offSel != nil && d == l.offsetAxis) {
			continue
		}
		perm = append(perm, d)
	}

	vals, permShape := transpose(vals, readShape, perm)

	outShape := make([]int, 0, len(permShape))
	for i, d := range perm {
		if d == l.axis && lineScalar {
			continue
		}
		if offSel != nil && d == l.offsetAxis && offScalar {
			continue
		}
		outShape = append(outShape, permShape[i])
	}
	return newBlock(outShape, vals), nil
}
