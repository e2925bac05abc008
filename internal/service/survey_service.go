// Package service provides business logic for the survey server.
package service

import (
	"fmt"
	"sync"

	"github.com/segy-tiles/server/internal/cache"
	"github.com/segy-tiles/server/internal/render"
	"github.com/segy-tiles/server/internal/segy"
)

// Config contains survey service configuration.
type Config struct {
	SurveyID string
	File     *segy.File
	Cache    *cache.Manager
	Renderer *render.SectionRenderer
}

// SurveyService serves one survey: metadata, traces, headers and line
// sections, plus rendered section images.
type SurveyService struct {
	id       string
	file     *segy.File
	cache    *cache.Manager
	renderer *render.SectionRenderer

	infoOnce sync.Once
	info     *SurveyInfo
	infoErr  error
}

// NewSurveyService creates a new survey service.
func NewSurveyService(cfg Config) *SurveyService {
	return &SurveyService{
		id:       cfg.SurveyID,
		file:     cfg.File,
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
	}
}

// SurveyInfo describes a survey.
type SurveyInfo struct {
	ID          string   `json:"id"`
	URI         string   `json:"uri"`
	Structured  bool     `json:"structured"`
	Sorting     string   `json:"sorting"`
	TraceCount  int      `json:"trace_count"`
	SampleCount int      `json:"sample_count"`
	Samples     []int    `json:"samples"`
	Fields      []string `json:"fields"`
	Ilines      []int    `json:"ilines,omitempty"`
	Xlines      []int    `json:"xlines,omitempty"`
	Offsets     []int    `json:"offsets,omitempty"`
}

// ID returns the survey id.
func (s *SurveyService) ID() string { return s.id }

// File returns the underlying survey file.
func (s *SurveyService) File() *segy.File { return s.file }

// Info returns survey metadata. The result is computed once and reused.
func (s *SurveyService) Info() (*SurveyInfo, error) {
	s.infoOnce.Do(func() { s.info, s.infoErr = s.loadInfo() })
	return s.info, s.infoErr
}

func (s *SurveyService) loadInfo() (*SurveyInfo, error) {
	samples, err := s.file.Samples()
	if err != nil {
		return nil, fmt.Errorf("failed to load sample labels: %w", err)
	}
	sorting, err := s.file.Sorting()
	if err != nil {
		return nil, fmt.Errorf("failed to load sorting: %w", err)
	}

	info := &SurveyInfo{
		ID:          s.id,
		URI:         s.file.URI(),
		Sorting:     sorting.String(),
		SampleCount: len(samples),
		Samples:     samples,
		Fields:      s.file.Traces().Headers().Fields(),
	}

	st, ok := s.file.Structured()
	if !ok {
		info.TraceCount = s.file.Traces().Len()
		return info, nil
	}

	info.Structured = true
	ilines, err := st.Ilines()
	if err != nil {
		return nil, fmt.Errorf("failed to load inline labels: %w", err)
	}
	xlines, err := st.Xlines()
	if err != nil {
		return nil, fmt.Errorf("failed to load crossline labels: %w", err)
	}
	offsets, err := st.Offsets()
	if err != nil {
		return nil, fmt.Errorf("failed to load offsets: %w", err)
	}
	info.Ilines = ilines.Indexes()
	info.Xlines = xlines.Indexes()
	info.Offsets = offsets
	info.TraceCount = len(info.Ilines) * len(info.Xlines) * len(offsets)
	return info, nil
}

// TextHeaders returns the textual header records as strings.
func (s *SurveyService) TextHeaders() ([]string, error) {
	blocks, err := s.file.Text()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = string(b)
	}
	return out, nil
}

// BinHeader returns the binary header key/value pairs.
func (s *SurveyService) BinHeader() (map[string]int, error) {
	return s.file.Bin()
}

// Trace returns the samples of one trace of an unstructured survey.
func (s *SurveyService) Trace(i int) ([]float32, error) {
	block, err := s.file.Traces().Get(segy.At(i), segy.All())
	if err != nil {
		return nil, err
	}
	return block.Values(), nil
}

// TraceRange returns the samples of the traces selected by ix, one row per
// trace.
func (s *SurveyService) TraceRange(ix segy.Index) (*segy.Block, error) {
	return s.file.Traces().Get(ix, segy.All())
}

// Header returns the full header record of one trace.
func (s *SurveyService) Header(i int) (segy.Record, error) {
	return s.file.Traces().Headers().Get(i)
}

// HeaderField returns the values of one header field at the traces selected
// by ix.
func (s *SurveyService) HeaderField(name string, ix segy.Index) ([]int32, error) {
	h, err := s.file.Traces().HeaderField(name)
	if err != nil {
		return nil, err
	}
	return h.GetRange(ix)
}

// lines returns the label view for a line kind ("ilines", "xlines" or
// "depths"). Unstructured surveys have no line views.
func (s *SurveyService) lines(kind string) (*segy.Lines, error) {
	st, ok := s.file.Structured()
	if !ok {
		return nil, fmt.Errorf("%w: survey %s is unstructured", segy.ErrShapeMismatch, s.id)
	}
	switch kind {
	case "ilines":
		return st.Ilines()
	case "xlines":
		return st.Xlines()
	case "depths":
		return st.Depths()
	default:
		return nil, fmt.Errorf("%w: unknown line kind %q", segy.ErrUnsupportedIndex, kind)
	}
}

// LineLabels returns the label sequence of a line axis.
func (s *SurveyService) LineLabels(kind string) ([]int, error) {
	lines, err := s.lines(kind)
	if err != nil {
		return nil, err
	}
	return lines.Indexes(), nil
}

// Line reads one full line at the given label, all offsets included.
func (s *SurveyService) Line(kind string, label int) (*segy.Block, error) {
	lines, err := s.lines(kind)
	if err != nil {
		return nil, err
	}
	return lines.Get(segy.At(label))
}

// LineSection reads one line restricted to a single acquisition offset,
// which yields a rank-2 section. A nil offset means the first one.
func (s *SurveyService) LineSection(kind string, label int, offset *int) (*segy.Block, error) {
	lines, err := s.lines(kind)
	if err != nil {
		return nil, err
	}
	off, err := s.resolveOffset(offset)
	if err != nil {
		return nil, err
	}
	return lines.GetOffset(segy.At(label), segy.At(off))
}

func (s *SurveyService) resolveOffset(offset *int) (int, error) {
	if offset != nil {
		return *offset, nil
	}
	st, ok := s.file.Structured()
	if !ok {
		return 0, fmt.Errorf("%w: survey %s is unstructured", segy.ErrShapeMismatch, s.id)
	}
	offsets, err := st.Offsets()
	if err != nil {
		return 0, err
	}
	return offsets[0], nil
}

// LineImage renders one line section as a PNG.
func (s *SurveyService) LineImage(kind string, label int, offset *int, colormapName string) ([]byte, error) {
	if colormapName == "" {
		colormapName = s.renderer.DefaultColormap()
	}

	keyLine := kind
	if offset != nil {
		keyLine = fmt.Sprintf("%s@%d", kind, *offset)
	}
	cacheKey := cache.ImageKey(s.id, keyLine, label, colormapName)
	if data, ok := s.cache.GetImage(cacheKey); ok {
		return data, nil
	}

	block, err := s.LineSection(kind, label, offset)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.Render(block, colormapName)
	if err != nil {
		return nil, fmt.Errorf("failed to render section: %w", err)
	}

	s.cache.SetImage(cacheKey, data)
	return data, nil
}

// Close closes the survey file.
func (s *SurveyService) Close() error {
	return s.file.Close()
}
