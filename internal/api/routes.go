// Package api provides HTTP handlers for the survey server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/segy-tiles/server/internal/cache"
	"github.com/segy-tiles/server/internal/data/store"
	"github.com/segy-tiles/server/internal/segy"
	"github.com/segy-tiles/server/internal/service"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *SurveyRegistry
	CORSOrigins []string
	Cache       *cache.Manager
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global surveys endpoint (not survey-scoped)
	r.Get("/api/surveys", surveysHandler(cfg.Registry))

	// Survey-scoped routes: /s/{survey}/...
	r.Route("/s/{survey}", func(r chi.Router) {
		r.Use(surveyMiddleware(cfg.Registry))

		// Rendered section images
		r.Get("/images/{kind}/{label}.png", surveyLineImageHandler)

		// API endpoints
		r.Route("/api", func(r chi.Router) {
			r.Get("/info", surveyInfoHandler)
			r.Get("/text", surveyTextHandler)
			r.Get("/bin", surveyBinHandler)
			r.Get("/samples", surveySamplesHandler)
			r.Get("/traces/{index}", surveyTraceHandler)
			r.Get("/headers/{index}", surveyHeaderHandler)
			r.Get("/header/{field}", surveyHeaderFieldHandler)
			r.Get("/lines/{kind}", surveyLineLabelsHandler(cfg.Cache))
			r.Get("/lines/{kind}/{label}", surveyLineHandler(cfg.Cache))
		})
	})

	return r
}

// Context key for survey service
type ctxKey string

const surveyServiceKey ctxKey = "surveyService"

// surveyMiddleware resolves the survey from the URL and injects its service
// into the request context.
func surveyMiddleware(registry *SurveyRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			surveyID := chi.URLParam(r, "survey")
			svc := registry.Get(surveyID)
			if svc == nil {
				http.Error(w, "survey not found: "+surveyID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), surveyServiceKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getSurveyService(r *http.Request) *service.SurveyService {
	if svc, ok := r.Context().Value(surveyServiceKey).(*service.SurveyService); ok {
		return svc
	}
	return nil
}

// surveysHandler returns the list of available surveys.
func surveysHandler(registry *SurveyRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"default": registry.DefaultSurveyID(),
			"surveys": registry.Surveys(),
		})
	}
}

func surveyInfoHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSurveyService(r)
	if svc == nil {
		http.Error(w, "survey service not found", http.StatusInternalServerError)
		return
	}
	info, err := svc.Info()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, info)
}

func surveyTextHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSurveyService(r)
	if svc == nil {
		http.Error(w, "survey service not found", http.StatusInternalServerError)
		return
	}
	text, err := svc.TextHeaders()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"text": text})
}

func surveyBinHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSurveyService(r)
	if svc == nil {
		http.Error(w, "survey service not found", http.StatusInternalServerError)
		return
	}
	bin, err := svc.BinHeader()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"bin": bin})
}

func surveySamplesHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSurveyService(r)
	if svc == nil {
		http.Error(w, "survey service not found", http.StatusInternalServerError)
		return
	}
	info, err := svc.Info()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"samples": info.Samples})
}

func surveyTraceHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSurveyService(r)
	if svc == nil {
		http.Error(w, "survey service not found", http.StatusInternalServerError)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid trace index", http.StatusBadRequest)
		return
	}
	trace, err := svc.Trace(index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"index":   index,
		"samples": trace,
	})
}

// headerEntry is one name/value pair of a header record. Records are encoded
// as arrays of these so the declared field order survives JSON.
type headerEntry struct {
	Name  string `json:"name"`
	Value int32  `json:"value"`
}

func surveyHeaderHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSurveyService(r)
	if svc == nil {
		http.Error(w, "survey service not found", http.StatusInternalServerError)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid trace index", http.StatusBadRequest)
		return
	}
	rec, err := svc.Header(index)
	if err != nil {
		writeError(w, err)
		return
	}
	entries := make([]headerEntry, rec.Len())
	for i, name := range rec.Names() {
		entries[i] = headerEntry{Name: name, Value: rec.Value(i)}
	}
	writeJSON(w, map[string]interface{}{
		"index":  index,
		"header": entries,
	})
}

func surveyHeaderFieldHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSurveyService(r)
	if svc == nil {
		http.Error(w, "survey service not found", http.StatusInternalServerError)
		return
	}
	field := chi.URLParam(r, "field")
	ix, err := parseIndex(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	values, err := svc.HeaderField(field, ix)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"field":  field,
		"values": values,
	})
}

func surveyLineLabelsHandler(cacheMgr *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := getSurveyService(r)
		if svc == nil {
			http.Error(w, "survey service not found", http.StatusInternalServerError)
			return
		}
		kind := chi.URLParam(r, "kind")

		cacheKey := cache.QueryKey(svc.ID(), "labels", kind)
		if data, ok := cacheMgr.GetQuery(cacheKey); ok {
			writeJSONBytes(w, data)
			return
		}

		labels, err := svc.LineLabels(kind)
		if err != nil {
			writeError(w, err)
			return
		}
		data, err := json.Marshal(map[string]interface{}{
			"kind":   kind,
			"labels": labels,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		cacheMgr.SetQuery(cacheKey, data)
		writeJSONBytes(w, data)
	}
}

func surveyLineHandler(cacheMgr *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := getSurveyService(r)
		if svc == nil {
			http.Error(w, "survey service not found", http.StatusInternalServerError)
			return
		}
		kind := chi.URLParam(r, "kind")
		label, err := strconv.Atoi(chi.URLParam(r, "label"))
		if err != nil {
			http.Error(w, "invalid line label", http.StatusBadRequest)
			return
		}

		offset, err := parseOptionalInt(r.URL.Query(), "offset")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		cacheKey := cache.QueryKey(svc.ID(), "line", kind, label, offsetKeyPart(offset))
		if data, ok := cacheMgr.GetQuery(cacheKey); ok {
			writeJSONBytes(w, data)
			return
		}

		var block *segy.Block
		if offset != nil {
			block, err = svc.LineSection(kind, label, offset)
		} else {
			block, err = svc.Line(kind, label)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		data, err := json.Marshal(map[string]interface{}{
			"kind":   kind,
			"label":  label,
			"shape":  block.Shape(),
			"values": block.Values(),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		cacheMgr.SetQuery(cacheKey, data)
		writeJSONBytes(w, data)
	}
}

func surveyLineImageHandler(w http.ResponseWriter, r *http.Request) {
	svc := getSurveyService(r)
	if svc == nil {
		http.Error(w, "survey service not found", http.StatusInternalServerError)
		return
	}
	kind := chi.URLParam(r, "kind")
	labelParam := strings.TrimSuffix(chi.URLParam(r, "label"), ".png")
	label, err := strconv.Atoi(labelParam)
	if err != nil {
		http.Error(w, "invalid line label", http.StatusBadRequest)
		return
	}
	offset, err := parseOptionalInt(r.URL.Query(), "offset")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	colormapName := r.URL.Query().Get("colormap")

	data, err := svc.LineImage(kind, label, offset, colormapName)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// parseIndex builds a trace selector from start/stop/step query params.
// Missing params select everything.
func parseIndex(q url.Values) (segy.Index, error) {
	start, err := parseOptionalInt(q, "start")
	if err != nil {
		return segy.Index{}, err
	}
	stop, err := parseOptionalInt(q, "stop")
	if err != nil {
		return segy.Index{}, err
	}
	step, err := parseOptionalInt(q, "step")
	if err != nil {
		return segy.Index{}, err
	}

	var ix segy.Index
	switch {
	case start != nil && stop != nil:
		ix = segy.Span(*start, *stop)
	case start != nil:
		ix = segy.From(*start)
	case stop != nil:
		ix = segy.Until(*stop)
	default:
		ix = segy.All()
	}
	if step != nil {
		ix = ix.By(*step)
	}
	return ix, nil
}

func parseOptionalInt(q url.Values, name string) (*int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New("invalid " + name)
	}
	return &v, nil
}

func offsetKeyPart(offset *int) string {
	if offset == nil {
		return "all"
	}
	return strconv.Itoa(*offset)
}

// writeError maps domain errors to HTTP status codes: a label or index
// outside the survey is 404, a selector the view cannot serve is 400, reads
// against a closed survey are 503.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, segy.ErrOutOfRange):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, segy.ErrUnsupportedIndex), errors.Is(err, segy.ErrShapeMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONBytes(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
