package segy

import (
	"bytes"

	"github.com/segy-tiles/server/internal/data/store"
)

// flatDataset builds an unstructured survey: 10 traces of 4 samples, where
// sample (i, j) stores 10*i+j.
func flatDataset() *store.Dataset {
	data := make([]float32, 10*4)
	for i := 0; i < 10; i++ {
		for j := 0; j < 4; j++ {
			data[i*4+j] = float32(10*i + j)
		}
	}
	arr := store.NewMemDataArray([]int{10, 4}, []string{DimTraces, DimSamples}, data)
	arr.SetMeta(DimSamples, 0, 4, 8, 12)

	tn := make([]int32, 10)
	fr := make([]int32, 10)
	for i := range tn {
		tn[i] = int32(i + 1)
		fr[i] = int32(1000 + i)
	}
	headers := store.NewMemHeaderArray(
		[]string{"TraceNumber", "FieldRecord"},
		map[string][]int32{"TraceNumber": tn, "FieldRecord": fr},
	)
	headers.SetBin("Interval", 4000)
	headers.SetBin("Traces", 10)
	headers.SetText(bytes.Repeat([]byte{'C'}, 2*TextBlockSize))

	return &store.Dataset{Data: arr, Headers: headers}
}

// Structured fixture label sets.
var (
	fixtureIlines  = []int{100, 102, 104, 106}
	fixtureXlines  = []int{10, 11, 12}
	fixtureOffsets = []int{100, 200}
)

const fixtureSamples = 5

// structuredValue is the sample stored at the given structured positions:
// the row-major flat index of (il, xl, off, smp).
func structuredValue(il, xl, off, smp int) float32 {
	return float32(((il*len(fixtureXlines)+xl)*len(fixtureOffsets)+off)*fixtureSamples + smp)
}

// structuredDataset builds a 4x3x2x5 structured survey whose every sample is
// its own flat index.
func structuredDataset() *store.Dataset {
	shape := []int{len(fixtureIlines), len(fixtureXlines), len(fixtureOffsets), fixtureSamples}
	n := shape[0] * shape[1] * shape[2] * shape[3]
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i)
	}
	arr := store.NewMemDataArray(shape, []string{DimIlines, DimXlines, DimOffsets, DimSamples}, data)
	arr.SetMeta(DimIlines, fixtureIlines...)
	arr.SetMeta(DimXlines, fixtureXlines...)
	arr.SetMeta(DimOffsets, fixtureOffsets...)
	arr.SetMeta(DimSamples, 0, 4, 8, 12, 16)
	arr.SetMeta("sorting", int(SortingInline))

	traceCount := shape[0] * shape[1] * shape[2]
	tn := make([]int32, traceCount)
	for i := range tn {
		tn[i] = int32(i)
	}
	headers := store.NewMemHeaderArray([]string{"TraceNumber"}, map[string][]int32{"TraceNumber": tn})
	headers.SetBin("Interval", 4000)
	headers.SetText(bytes.Repeat([]byte{'C'}, TextBlockSize))

	return &store.Dataset{Data: arr, Headers: headers}
}

func collect(seq func(yield func(int) bool)) []int {
	var out []int
	seq(func(v int) bool {
		out = append(out, v)
		return true
	})
	return out
}
