// Package tiledb reads survey stores kept as dense TileDB arrays: the sample
// data under <root>/data and the trace headers under <root>/headers, one
// attribute per header field. It needs the TileDB core library at build time,
// so the real reader sits behind the "tiledb" build tag and a stub takes its
// place otherwise.
package tiledb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported indicates this binary was built without TileDB support.
var ErrUnsupported = errors.New("tiledb support is not enabled in this build (build server with: go build -tags tiledb)")

// valuesAttr is the attribute holding sample values in the data array.
const valuesAttr = "values"

// textMetaKey is the headers metadata entry holding the textual header bytes.
const textMetaKey = "__text__"

// ResolveSurveyURI normalizes a configured survey path: trims whitespace,
// expands environment variables and cleans the path.
func ResolveSurveyURI(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", errors.New("empty survey path")
	}
	p = os.ExpandEnv(p)
	return filepath.Clean(p), nil
}

func statSurvey(uri string) error {
	if _, err := os.Stat(uri); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(uri, "data")); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(uri, "headers")); err != nil {
		return err
	}
	return nil
}
