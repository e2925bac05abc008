// Package segy provides read-only, domain-indexed views over a survey stored
// as two dense arrays: traces, per-trace headers, and inline/crossline/depth
// line sections addressed by label rather than array position.
package segy

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedIndex is returned for an index value that is neither a
	// scalar nor a range, or for a range with step zero.
	ErrUnsupportedIndex = errors.New("segy: unsupported index")

	// ErrOutOfRange is returned when a scalar position or a label falls outside
	// the addressed axis or label set. Out-of-range indexes are never clamped.
	ErrOutOfRange = errors.New("segy: index out of range")

	// ErrShapeMismatch is returned when a read does not fit the backing array:
	// an offset-scoped read against a view without an offset axis, or trace
	// access over a line-structured array.
	ErrShapeMismatch = errors.New("segy: shape mismatch")
)

type indexKind uint8

const (
	indexInvalid indexKind = iota
	indexScalar
	indexRange
)

type optInt struct {
	val int
	set bool
}

func someInt(v int) optInt { return optInt{val: v, set: true} }

// Index selects positions (or labels) along one axis: either a single scalar
// or a half-open range with optional start, stop and step. The zero Index is
// invalid and fails with ErrUnsupportedIndex.
type Index struct {
	kind             indexKind
	pos              int
	start, stop, end optInt // end is the step
}

// At selects the single position or label i.
func At(i int) Index { return Index{kind: indexScalar, pos: i} }

// All selects every position in traversal order.
func All() Index { return Index{kind: indexRange} }

// Span selects the half-open range [start, stop).
func Span(start, stop int) Index {
	return Index{kind: indexRange, start: someInt(start), stop: someInt(stop)}
}

// From selects [start, end-of-axis).
func From(start int) Index {
	return Index{kind: indexRange, start: someInt(start)}
}

// Until selects [start-of-axis, stop).
func Until(stop int) Index {
	return Index{kind: indexRange, stop: someInt(stop)}
}

// By returns a copy of ix with the given traversal step. A negative step walks
// the range downward. By on a scalar index is a no-op.
func (ix Index) By(step int) Index {
	if ix.kind == indexRange {
		ix.end = someInt(step)
	}
	return ix
}

// IsScalar reports whether ix selects a single position.
func (ix Index) IsScalar() bool { return ix.kind == indexScalar }

func (ix Index) String() string {
	switch ix.kind {
	case indexScalar:
		return fmt.Sprintf("[%d]", ix.pos)
	case indexRange:
		s := "["
		if ix.start.set {
			s += fmt.Sprintf("%d", ix.start.val)
		}
		s += ":"
		if ix.stop.set {
			s += fmt.Sprintf("%d", ix.stop.val)
		}
		if ix.end.set {
			s += fmt.Sprintf(":%d", ix.end.val)
		}
		return s + "]"
	default:
		return "[invalid]"
	}
}

// bounds normalizes a range against an axis of length n, following the usual
// slice rules: negative indexes count from the end, out-of-bounds values are
// clamped, and direction is implied by the sign of the step.
func (ix Index) bounds(n int) (start, stop, step int, err error) {
	step = 1
	if ix.end.set {
		step = ix.end.val
	}
	if step == 0 {
		return 0, 0, 0, fmt.Errorf("%w: step must not be zero", ErrUnsupportedIndex)
	}

	var lower, upper int
	if step > 0 {
		lower, upper = 0, n
	} else {
		lower, upper = -1, n-1
	}

	if !ix.start.set {
		if step > 0 {
			start = lower
		} else {
			start = upper
		}
	} else {
		start = clampBound(ix.start.val, n, lower, upper)
	}

	if !ix.stop.set {
		if step > 0 {
			stop = upper
		} else {
			stop = lower
		}
	} else {
		stop = clampBound(ix.stop.val, n, lower, upper)
	}
	return start, stop, step, nil
}

func clampBound(v, n, lower, upper int) int {
	if v < 0 {
		v += n
		if v < lower {
			v = lower
		}
		return v
	}
	if v > upper {
		v = upper
	}
	return v
}

// resolve expands ix against an axis of length n into explicit positions.
// A scalar yields one position and scalar=true; positions outside [0, n) fail
// with ErrOutOfRange. A range yields its normalized traversal.
func (ix Index) resolve(n int) (positions []int, scalar bool, err error) {
	switch ix.kind {
	case indexScalar:
		if ix.pos < 0 || ix.pos >= n {
			return nil, false, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, ix.pos, n)
		}
		return []int{ix.pos}, true, nil
	case indexRange:
		start, stop, step, err := ix.bounds(n)
		if err != nil {
			return nil, false, err
		}
		positions = stridePositions(start, stop, step)
		return positions, false, nil
	default:
		return nil, false, fmt.Errorf("%w: zero index", ErrUnsupportedIndex)
	}
}

func stridePositions(start, stop, step int) []int {
	var count int
	if step > 0 && start < stop {
		count = (stop - start + step - 1) / step
	} else if step < 0 && start > stop {
		count = (start - stop + (-step) - 1) / (-step)
	}
	positions := make([]int, 0, count)
	for v := start; (step > 0 && v < stop) || (step < 0 && v > stop); v += step {
		positions = append(positions, v)
	}
	return positions
}
