package segy

import (
	"fmt"
	"iter"
)

// FilteredRange answers which members of a finite integer label set fall
// inside a stride range. Label axes carry sparse, arbitrary integers, so
// resolving "lines 100 through 140 step 2" means walking the stride range and
// keeping the values that are actual labels, not scanning the label set.
//
// For an ascending (or unset) step, an unset start defaults to the smallest
// member. For a descending step, an unset stop defaults to one below the
// smallest member. The range is then normalized against an exclusive upper
// bound of largest-member+1.
type FilteredRange struct {
	members map[int]struct{}
	min     int
	bound   int // max(members) + 1
}

// NewFilteredRange builds the filter from a non-empty label set.
func NewFilteredRange(members []int) (*FilteredRange, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("segy: empty label set")
	}
	set := make(map[int]struct{}, len(members))
	lo, hi := members[0], members[0]
	for _, m := range members {
		set[m] = struct{}{}
		if m < lo {
			lo = m
		}
		if m > hi {
			hi = m
		}
	}
	return &FilteredRange{members: set, min: lo, bound: hi + 1}, nil
}

// Contains reports whether v is a member of the label set.
func (f *FilteredRange) Contains(v int) bool {
	_, ok := f.members[v]
	return ok
}

// Values returns the members selected by ix, in range-traversal order (which
// may be descending). The sequence is finite and restartable; a scalar index
// yields at most one value. Membership tests are O(1).
func (f *FilteredRange) Values(ix Index) (iter.Seq[int], error) {
	var start, stop, step optInt
	switch ix.kind {
	case indexScalar:
		start, stop = someInt(ix.pos), someInt(ix.pos+1)
	case indexRange:
		start, stop, step = ix.start, ix.stop, ix.end
	default:
		return nil, fmt.Errorf("%w: zero index", ErrUnsupportedIndex)
	}
	if step.set && step.val == 0 {
		return nil, fmt.Errorf("%w: step must not be zero", ErrUnsupportedIndex)
	}

	// Apply the label-set defaults. Defaulted bounds are absolute values and
	// must not be re-interpreted as negative (from-the-end) indexes below.
	startAbsolute, stopAbsolute := false, false
	if !step.set || step.val > 0 {
		if !start.set || start.val < f.min {
			start = someInt(f.min)
			startAbsolute = true
		}
	} else {
		if !stop.set || stop.val < f.min-1 {
			stop = someInt(f.min - 1)
			stopAbsolute = true
		}
	}

	lo, hi, st, err := Index{
		kind:  indexRange,
		start: start,
		stop:  stop,
		end:   step,
	}.bounds(f.bound)
	if err != nil {
		return nil, err
	}
	if startAbsolute {
		lo = start.val
	}
	if stopAbsolute {
		hi = stop.val
	}

	return func(yield func(int) bool) {
		for v := lo; (st > 0 && v < hi) || (st < 0 && v > hi); v += st {
			if _, ok := f.members[v]; ok {
				if !yield(v) {
					return
				}
			}
		}
	}, nil
}
