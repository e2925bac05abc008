//go:build !tiledb

package tiledb

import (
	"fmt"

	"github.com/segy-tiles/server/internal/data/store"
)

// Open is a stub when built without "-tags tiledb". It still resolves and
// validates the survey path, so config issues are caught early, but never
// returns a usable dataset.
func Open(path string) (*store.Dataset, error) {
	uri, err := ResolveSurveyURI(path)
	if err != nil {
		return nil, err
	}
	if err := statSurvey(uri); err != nil {
		return nil, fmt.Errorf("tiledb survey not found at %s: %w", uri, err)
	}
	return nil, ErrUnsupported
}
