package segy

import (
	"errors"
	"reflect"
	"testing"

	"github.com/segy-tiles/server/internal/data/store"
)

func structuredFile(t *testing.T) (*StructuredFile, *store.Dataset) {
	t.Helper()
	ds := structuredDataset()
	sf, ok := Open("mem://structured", ds).Structured()
	if !ok {
		t.Fatal("expected structured survey")
	}
	return sf, ds
}

func TestLinesIndexes(t *testing.T) {
	sf, ds := structuredFile(t)
	defer ds.Close()

	il, err := sf.Ilines()
	if err != nil {
		t.Fatalf("Ilines error: %v", err)
	}
	if il.Len() != 4 {
		t.Errorf("iline Len: got %d, want 4", il.Len())
	}
	if !reflect.DeepEqual(il.Indexes(), fixtureIlines) {
		t.Errorf("iline Indexes: got %v, want %v", il.Indexes(), fixtureIlines)
	}

	depths, err := sf.Depths()
	if err != nil {
		t.Fatalf("Depths error: %v", err)
	}
	if depths.Len() != fixtureSamples {
		t.Errorf("depth Len: got %d, want %d", depths.Len(), fixtureSamples)
	}
	if want := []int{0, 1, 2, 3, 4}; !reflect.DeepEqual(depths.Indexes(), want) {
		t.Errorf("depth Indexes: got %v, want %v", depths.Indexes(), want)
	}
}

func TestLinesScalarLabel(t *testing.T) {
	sf, ds := structuredFile(t)
	defer ds.Close()

	il, err := sf.Ilines()
	if err != nil {
		t.Fatalf("Ilines error: %v", err)
	}

	// Label 102 sits at dense position 1.
	b, err := il.Get(At(102))
	if err != nil {
		t.Fatalf("Get(102) error: %v", err)
	}
	if !reflect.DeepEqual(b.Shape(), []int{3, 2, 5}) {
		t.Fatalf("shape: got %v, want [3 2 5]", b.Shape())
	}
	for xl := 0; xl < 3; xl++ {
		for off := 0; off < 2; off++ {
			for smp := 0; smp < 5; smp++ {
				got, err := b.At(xl, off, smp)
				if err != nil {
					t.Fatalf("At error: %v", err)
				}
				if want := structuredValue(1, xl, off, smp); got != want {
					t.Fatalf("value at (%d,%d,%d): got %v, want %v", xl, off, smp, got, want)
				}
			}
		}
	}
}

func TestLinesLabelRange(t *testing.T) {
	sf, ds := structuredFile(t)
	defer ds.Close()

	il, err := sf.Ilines()
	if err != nil {
		t.Fatalf("Ilines error: %v", err)
	}

	// [102, 106) selects positions 1 and 2; 106 is excluded, half-open.
	b, err := il.Get(Span(102, 106))
	if err != nil {
		t.Fatalf("Get(102:106) error: %v", err)
	}
	if !reflect.DeepEqual(b.Shape(), []int{2, 3, 2, 5}) {
		t.Fatalf("shape: got %v, want [2 3 2 5]", b.Shape())
	}
	got, err := b.At(1, 2, 1, 4)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}
	if want := structuredValue(2, 2, 1, 4); got != want {
		t.Errorf("value: got %v, want %v", got, want)
	}
}

func TestLinesMissingLabel(t *testing.T) {
	sf, ds := structuredFile(t)
	defer ds.Close()

	il, err := sf.Ilines()
	if err != nil {
		t.Fatalf("Ilines error: %v", err)
	}
	if _, err := il.Get(At(103)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Get(103): got %v, want ErrOutOfRange", err)
	}
}

func TestLinesOffsetScalar(t *testing.T) {
	sf, ds := structuredFile(t)
	defer ds.Close()

	il, err := sf.Ilines()
	if err != nil {
		t.Fatalf("Ilines error: %v", err)
	}

	b, err := il.GetOffset(At(102), At(200))
	if err != nil {
		t.Fatalf("GetOffset error: %v", err)
	}
	if !reflect.DeepEqual(b.Shape(), []int{3, 5}) {
		t.Fatalf("shape: got %v, want [3 5]", b.Shape())
	}
	got, err := b.At(2, 3)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}
	if want := structuredValue(1, 2, 1, 3); got != want {
		t.Errorf("value: got %v, want %v", got, want)
	}

	if _, err := il.GetOffset(At(102), At(150)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("missing offset: got %v, want ErrOutOfRange", err)
	}
}

func TestLinesOffsetCompound(t *testing.T) {
	sf, ds := structuredFile(t)
	defer ds.Close()

	xl, err := sf.Xlines()
	if err != nil {
		t.Fatalf("Xlines error: %v", err)
	}

	// Both selectors are ranges: leading dims are (line count, offset count)
	// even though the crossline axis sits behind the inline axis in storage.
	b, err := xl.GetOffset(Span(10, 12), All())
	if err != nil {
		t.Fatalf("GetOffset error: %v", err)
	}
	if !reflect.DeepEqual(b.Shape(), []int{2, 2, 4, 5}) {
		t.Fatalf("shape: got %v, want [2 2 4 5]", b.Shape())
	}
	for line := 0; line < 2; line++ {
		for off := 0; off < 2; off++ {
			for ilPos := 0; ilPos < 4; ilPos++ {
				got, err := b.At(line, off, ilPos, 3)
				if err != nil {
					t.Fatalf("At error: %v", err)
				}
				if want := structuredValue(ilPos, line, off, 3); got != want {
					t.Fatalf("value at (%d,%d,%d,3): got %v, want %v", line, off, ilPos, got, want)
				}
			}
		}
	}
}

func TestLinesDepth(t *testing.T) {
	sf, ds := structuredFile(t)
	defer ds.Close()

	depths, err := sf.Depths()
	if err != nil {
		t.Fatalf("Depths error: %v", err)
	}

	b, err := depths.Get(At(2))
	if err != nil {
		t.Fatalf("Get(2) error: %v", err)
	}
	if !reflect.DeepEqual(b.Shape(), []int{4, 3, 2}) {
		t.Fatalf("shape: got %v, want [4 3 2]", b.Shape())
	}
	got, err := b.At(3, 1, 0)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}
	if want := structuredValue(3, 1, 0, 2); got != want {
		t.Errorf("value: got %v, want %v", got, want)
	}

	// Depth plus offset composes two resolutions into one read.
	b, err = depths.GetOffset(At(2), At(100))
	if err != nil {
		t.Fatalf("GetOffset error: %v", err)
	}
	if !reflect.DeepEqual(b.Shape(), []int{4, 3}) {
		t.Fatalf("shape: got %v, want [4 3]", b.Shape())
	}
	got, err = b.At(0, 2)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}
	if want := structuredValue(0, 2, 0, 2); got != want {
		t.Errorf("value: got %v, want %v", got, want)
	}
}

func TestLinesNoOffsetAxis(t *testing.T) {
	data := store.NewMemDataArray([]int{3, 4}, []string{DimTraces, DimSamples}, make([]float32, 12))
	l, err := newLines(data, "line", 0, []int{7, 8, 9}, -1, nil)
	if err != nil {
		t.Fatalf("newLines error: %v", err)
	}
	if _, err := l.GetOffset(At(7), At(0)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("GetOffset: got %v, want ErrShapeMismatch", err)
	}
}

func TestLinesClosed(t *testing.T) {
	sf, ds := structuredFile(t)

	il, err := sf.Ilines()
	if err != nil {
		t.Fatalf("Ilines error: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := il.Get(At(102)); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Get after close: got %v, want ErrClosed", err)
	}
	if _, err := il.GetOffset(At(102), At(200)); !errors.Is(err, store.ErrClosed) {
		t.Errorf("GetOffset after close: got %v, want ErrClosed", err)
	}
}
