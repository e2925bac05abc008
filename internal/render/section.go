// Package render rasterizes seismic sections using fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image/png"
	"math"
	"sort"
	"sync"

	"github.com/fogleman/gg"

	"github.com/segy-tiles/server/internal/segy"
	"github.com/segy-tiles/server/pkg/colormap"
)

// Config contains renderer configuration.
type Config struct {
	// Scale is the edge length in pixels of one sample cell.
	Scale int
	// ClipPercentile clips amplitudes at this percentile of the absolute
	// values before normalizing, so a few spikes do not wash out the image.
	ClipPercentile float64
	// DefaultColormap names the colormap used when a request gives none.
	DefaultColormap string
}

// SectionRenderer renders two-dimensional amplitude blocks as PNG images.
// Traces run left to right and samples top to bottom.
type SectionRenderer struct {
	config     Config
	bufferPool sync.Pool
}

// NewSectionRenderer creates a new section renderer.
func NewSectionRenderer(cfg Config) *SectionRenderer {
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}
	if cfg.ClipPercentile <= 0 || cfg.ClipPercentile > 100 {
		cfg.ClipPercentile = 99
	}
	if cfg.DefaultColormap == "" {
		cfg.DefaultColormap = "gray"
	}
	return &SectionRenderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// DefaultColormap returns the configured fallback colormap name.
func (r *SectionRenderer) DefaultColormap() string { return r.config.DefaultColormap }

// Render rasterizes a rank-2 block. The first block dimension becomes the
// horizontal axis and the second (the sample axis) the vertical one.
func (r *SectionRenderer) Render(block *segy.Block, colormapName string) ([]byte, error) {
	if block.Rank() != 2 {
		return nil, fmt.Errorf("render needs a rank-2 section, got rank %d", block.Rank())
	}
	if colormapName == "" {
		colormapName = r.config.DefaultColormap
	}
	cmap, err := colormap.Get(colormapName)
	if err != nil {
		return nil, err
	}

	shape := block.Shape()
	traces, samples := shape[0], shape[1]
	scale := float64(r.config.Scale)
	dc := gg.NewContext(traces*r.config.Scale, samples*r.config.Scale)

	vals := block.Values()
	bound := r.clipBound(vals)
	for i := 0; i < traces; i++ {
		for j := 0; j < samples; j++ {
			v := float64(vals[i*samples+j])
			t := 0.5
			if bound > 0 {
				t = (clamp(v, -bound, bound) + bound) / (2 * bound)
			}
			dc.SetColor(cmap.At(t))
			dc.DrawRectangle(float64(i)*scale, float64(j)*scale, scale, scale)
			dc.Fill()
		}
	}

	return r.encodeContext(dc)
}

// clipBound returns the symmetric amplitude bound at the configured
// percentile of the absolute values. NaNs are ignored.
func (r *SectionRenderer) clipBound(vals []float32) float64 {
	abs := make([]float64, 0, len(vals))
	for _, v := range vals {
		f := float64(v)
		if math.IsNaN(f) {
			continue
		}
		abs = append(abs, math.Abs(f))
	}
	if len(abs) == 0 {
		return 0
	}
	sort.Float64s(abs)
	idx := int(r.config.ClipPercentile / 100 * float64(len(abs)-1))
	return abs[idx]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (r *SectionRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
