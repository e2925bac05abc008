package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segy-tiles/server/internal/cache"
	"github.com/segy-tiles/server/internal/data/store"
	"github.com/segy-tiles/server/internal/render"
	"github.com/segy-tiles/server/internal/segy"
	"github.com/segy-tiles/server/internal/service"
)

type testEnv struct {
	router   http.Handler
	registry *SurveyRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cacheManager, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: 16,
		ImageTTL:         1 * time.Minute,
		QueryCacheSize:   64,
	})
	if err != nil {
		t.Fatalf("Failed to initialize cache: %v", err)
	}
	t.Cleanup(func() { cacheManager.Close() })

	renderer := render.NewSectionRenderer(render.Config{})

	registry := NewSurveyRegistry("flat", []string{"flat", "cube"})
	registry.Register("flat", service.NewSurveyService(service.Config{
		SurveyID: "flat",
		File:     flatFile(t),
		Cache:    cacheManager,
		Renderer: renderer,
	}))
	registry.Register("cube", service.NewSurveyService(service.Config{
		SurveyID: "cube",
		File:     cubeFile(t),
		Cache:    cacheManager,
		Renderer: renderer,
	}))

	router := NewRouter(RouterConfig{
		Registry:    registry,
		CORSOrigins: []string{"http://localhost:3000"},
		Cache:       cacheManager,
	})
	return &testEnv{router: router, registry: registry}
}

func flatFile(t *testing.T) *segy.File {
	t.Helper()
	vals := make([]float32, 5*3)
	for i := range vals {
		vals[i] = float32(i)
	}
	data := store.NewMemDataArray([]int{5, 3}, []string{"traces", "samples"}, vals)
	data.SetMeta("samples", 0, 4, 8)
	headers := store.NewMemHeaderArray([]string{"TraceNumber", "FieldRecord"}, map[string][]int32{
		"TraceNumber": {1, 2, 3, 4, 5},
		"FieldRecord": {1000, 1001, 1002, 1003, 1004},
	})
	headers.SetBin("Interval", 4000)
	headers.SetText(bytes.Repeat([]byte{'C'}, segy.TextBlockSize))
	return segy.Open("mem://flat", &store.Dataset{Data: data, Headers: headers})
}

func cubeFile(t *testing.T) *segy.File {
	t.Helper()
	vals := make([]float32, 2*3*1*4)
	for i := range vals {
		vals[i] = float32(i)
	}
	data := store.NewMemDataArray([]int{2, 3, 1, 4}, []string{"ilines", "xlines", "offsets", "samples"}, vals)
	data.SetMeta("ilines", 100, 102)
	data.SetMeta("xlines", 10, 11, 12)
	data.SetMeta("offsets", 0)
	data.SetMeta("samples", 0, 4, 8, 12)
	headers := store.NewMemHeaderArray([]string{"TraceNumber"}, map[string][]int32{
		"TraceNumber": make([]int32, 6),
	})
	headers.SetText(bytes.Repeat([]byte{'C'}, segy.TextBlockSize))
	return segy.Open("mem://cube", &store.Dataset{Data: data, Headers: headers})
}

func (e *testEnv) get(t *testing.T, path string, wantStatus int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("GET %s: expected %d, got %d: %s", path, wantStatus, rec.Code, rec.Body.String())
	}
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return payload
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get(t, "/health", http.StatusOK)
	if rec.Body.String() != "OK" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestSurveysEndpoint(t *testing.T) {
	env := newTestEnv(t)
	payload := decodeJSON(t, env.get(t, "/api/surveys", http.StatusOK))

	if got, _ := payload["default"].(string); got != "flat" {
		t.Fatalf("unexpected default survey: %q", got)
	}
	surveys, _ := payload["surveys"].([]any)
	if len(surveys) != 2 {
		t.Fatalf("expected 2 surveys, got %d", len(surveys))
	}
	// Listing order follows registration order, default first.
	for i, want := range []string{"flat", "cube"} {
		entry, _ := surveys[i].(map[string]any)
		if got, _ := entry["id"].(string); got != want {
			t.Errorf("survey %d: got id %q, want %q", i, got, want)
		}
	}
}

func TestInfoEndpoint(t *testing.T) {
	env := newTestEnv(t)

	payload := decodeJSON(t, env.get(t, "/s/cube/api/info", http.StatusOK))
	if structured, _ := payload["structured"].(bool); !structured {
		t.Fatal("cube survey not reported as structured")
	}
	if tc, _ := payload["trace_count"].(float64); tc != 6 {
		t.Fatalf("unexpected trace count: %v", tc)
	}

	env.get(t, "/s/nope/api/info", http.StatusNotFound)
}

func TestTraceEndpoint(t *testing.T) {
	env := newTestEnv(t)

	payload := decodeJSON(t, env.get(t, "/s/flat/api/traces/1", http.StatusOK))
	samples, _ := payload["samples"].([]any)
	if len(samples) != 3 || samples[0].(float64) != 3 {
		t.Fatalf("unexpected trace: %v", samples)
	}

	env.get(t, "/s/flat/api/traces/9", http.StatusNotFound)
	env.get(t, "/s/flat/api/traces/abc", http.StatusBadRequest)
	// Structured surveys have no flat trace view.
	env.get(t, "/s/cube/api/traces/0", http.StatusBadRequest)
}

func TestHeaderEndpoints(t *testing.T) {
	env := newTestEnv(t)

	payload := decodeJSON(t, env.get(t, "/s/flat/api/headers/2", http.StatusOK))
	entries, _ := payload["header"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 header fields, got %d", len(entries))
	}
	first, _ := entries[0].(map[string]any)
	if name, _ := first["name"].(string); name != "TraceNumber" {
		t.Fatalf("field order not preserved: first field is %q", name)
	}

	payload = decodeJSON(t, env.get(t, "/s/flat/api/header/FieldRecord?start=1&stop=4", http.StatusOK))
	values, _ := payload["values"].([]any)
	if len(values) != 3 || values[0].(float64) != 1001 {
		t.Fatalf("unexpected values: %v", values)
	}

	env.get(t, "/s/flat/api/header/Nope", http.StatusNotFound)
	env.get(t, "/s/flat/api/header/FieldRecord?step=0", http.StatusBadRequest)
}

func TestLineEndpoints(t *testing.T) {
	env := newTestEnv(t)

	payload := decodeJSON(t, env.get(t, "/s/cube/api/lines/ilines", http.StatusOK))
	labels, _ := payload["labels"].([]any)
	if len(labels) != 2 || labels[1].(float64) != 102 {
		t.Fatalf("unexpected labels: %v", labels)
	}

	payload = decodeJSON(t, env.get(t, "/s/cube/api/lines/ilines/102", http.StatusOK))
	shape, _ := payload["shape"].([]any)
	if fmt.Sprint(shape) != "[3 1 4]" {
		t.Fatalf("unexpected shape: %v", shape)
	}

	// Same request again is served from the query cache.
	again := decodeJSON(t, env.get(t, "/s/cube/api/lines/ilines/102", http.StatusOK))
	if fmt.Sprint(again["shape"]) != fmt.Sprint(payload["shape"]) {
		t.Fatal("cached response differs")
	}

	payload = decodeJSON(t, env.get(t, "/s/cube/api/lines/xlines/11?offset=0", http.StatusOK))
	shape, _ = payload["shape"].([]any)
	if fmt.Sprint(shape) != "[2 4]" {
		t.Fatalf("unexpected section shape: %v", shape)
	}

	env.get(t, "/s/cube/api/lines/ilines/101", http.StatusNotFound)
	env.get(t, "/s/cube/api/lines/slices/0", http.StatusBadRequest)
	env.get(t, "/s/flat/api/lines/ilines", http.StatusBadRequest)
}

func TestLineImageEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/s/cube/images/ilines/100.png", http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type: %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 4 {
		t.Fatalf("image is %dx%d, want 3x4", img.Bounds().Dx(), img.Bounds().Dy())
	}

	env.get(t, "/s/cube/images/ilines/101.png?colormap=seismic", http.StatusNotFound)
	env.get(t, "/s/flat/images/ilines/0.png", http.StatusBadRequest)
}

func TestTextBinSamplesEndpoints(t *testing.T) {
	env := newTestEnv(t)

	payload := decodeJSON(t, env.get(t, "/s/flat/api/text", http.StatusOK))
	text, _ := payload["text"].([]any)
	if len(text) != 1 {
		t.Fatalf("expected 1 text block, got %d", len(text))
	}

	payload = decodeJSON(t, env.get(t, "/s/flat/api/bin", http.StatusOK))
	bin, _ := payload["bin"].(map[string]any)
	if bin["Interval"].(float64) != 4000 {
		t.Fatalf("unexpected bin: %v", bin)
	}

	payload = decodeJSON(t, env.get(t, "/s/flat/api/samples", http.StatusOK))
	samples, _ := payload["samples"].([]any)
	if len(samples) != 3 {
		t.Fatalf("unexpected samples: %v", samples)
	}
}

func TestClosedSurveyEndpoint(t *testing.T) {
	env := newTestEnv(t)

	if svc := env.registry.Get("flat"); svc != nil {
		svc.Close()
	}
	env.get(t, "/s/flat/api/traces/0", http.StatusServiceUnavailable)
}
