package segy

import (
	"errors"
	"reflect"
	"testing"

	"github.com/segy-tiles/server/internal/data/store"
)

func TestTracesScalarScalar(t *testing.T) {
	ds := flatDataset()
	defer ds.Close()
	tr := Open("mem://flat", ds).Traces()

	if tr.Len() != 10 {
		t.Errorf("Len: got %d, want 10", tr.Len())
	}
	if tr.Samples() != 4 {
		t.Errorf("Samples: got %d, want 4", tr.Samples())
	}

	b, err := tr.Get(At(2), At(1))
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if b.Rank() != 0 {
		t.Fatalf("rank: got %d, want 0", b.Rank())
	}
	v, err := b.Scalar()
	if err != nil {
		t.Fatalf("Scalar error: %v", err)
	}
	if v != 21 {
		t.Errorf("value: got %v, want 21", v)
	}
}

func TestTracesShapeReduction(t *testing.T) {
	ds := flatDataset()
	defer ds.Close()
	tr := Open("mem://flat", ds).Traces()

	b, err := tr.Get(At(2), All())
	if err != nil {
		t.Fatalf("Get(scalar, all) error: %v", err)
	}
	if !reflect.DeepEqual(b.Shape(), []int{4}) {
		t.Errorf("Get(scalar, all) shape: got %v, want [4]", b.Shape())
	}
	if want := []float32{20, 21, 22, 23}; !reflect.DeepEqual(b.Values(), want) {
		t.Errorf("Get(scalar, all) values: got %v, want %v", b.Values(), want)
	}

	b, err = tr.Get(All(), At(1))
	if err != nil {
		t.Fatalf("Get(all, scalar) error: %v", err)
	}
	if !reflect.DeepEqual(b.Shape(), []int{10}) {
		t.Errorf("Get(all, scalar) shape: got %v, want [10]", b.Shape())
	}
	if b.Values()[7] != 71 {
		t.Errorf("Get(all, scalar)[7]: got %v, want 71", b.Values()[7])
	}

	b, err = tr.Get(Span(2, 5), Span(1, 3))
	if err != nil {
		t.Fatalf("Get(range, range) error: %v", err)
	}
	if !reflect.DeepEqual(b.Shape(), []int{3, 2}) {
		t.Errorf("Get(range, range) shape: got %v, want [3 2]", b.Shape())
	}
	for k := 0; k < 3; k++ {
		row, err := b.Row(k)
		if err != nil {
			t.Fatalf("Row(%d) error: %v", k, err)
		}
		single, err := tr.Get(At(2+k), Span(1, 3))
		if err != nil {
			t.Fatalf("Get(At(%d), 1:3) error: %v", 2+k, err)
		}
		if !reflect.DeepEqual(row, single.Values()) {
			t.Errorf("row %d: got %v, want %v", k, row, single.Values())
		}
	}
}

func TestTracesErrors(t *testing.T) {
	ds := flatDataset()
	defer ds.Close()
	tr := Open("mem://flat", ds).Traces()

	if _, err := tr.Get(At(10), At(0)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("trace out of range: got %v, want ErrOutOfRange", err)
	}
	if _, err := tr.Get(At(0), At(4)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("sample out of range: got %v, want ErrOutOfRange", err)
	}
	if _, err := tr.Get(Index{}, All()); !errors.Is(err, ErrUnsupportedIndex) {
		t.Errorf("zero index: got %v, want ErrUnsupportedIndex", err)
	}
}

func TestTracesClosed(t *testing.T) {
	ds := flatDataset()
	f := Open("mem://flat", ds)
	tr := f.Traces()
	if err := f.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := tr.Get(At(0), At(0)); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Get after close: got %v, want ErrClosed", err)
	}
}
