// Package objectstore fetches and stores workbook bytes on the local disk or
// in Google Cloud Storage, selected by URI scheme.
package objectstore

import (
	"context"
	"path"
	"path/filepath"
	"strings"
)

// Store reads and writes whole objects.
type Store interface {
	// Fetch returns the bytes stored at uri.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Put replaces the object at uri with data. Readers never observe a
	// partially written object.
	Put(ctx context.Context, uri string, data []byte) error
}

// Router sends gs:// URIs to GCS and everything else to Local.
type Router struct {
	GCS   Store
	Local Store
}

// NewRouter returns a Router backed by Cloud Storage and the local disk.
func NewRouter() *Router {
	return &Router{GCS: NewGCSStore(), Local: NewLocalStore()}
}

func (r *Router) pick(uri string) Store {
	if IsGCSURI(uri) {
		return r.GCS
	}
	return r.Local
}

// Fetch delegates to the store for uri's scheme.
func (r *Router) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return r.pick(uri).Fetch(ctx, uri)
}

// Put delegates to the store for uri's scheme.
func (r *Router) Put(ctx context.Context, uri string, data []byte) error {
	return r.pick(uri).Put(ctx, uri, data)
}

// IsGCSURI reports whether uri uses the gs:// scheme.
func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, gcsScheme)
}

// FilenameFromURI returns the last path element of a local path or gs:// URI.
// e.g., "gs://bucket/folder/bill.xlsx" → "bill.xlsx"
func FilenameFromURI(uri string) string {
	if IsGCSURI(uri) {
		_, object, err := ParseGCSURI(uri)
		if err != nil {
			return strings.TrimPrefix(uri, gcsScheme)
		}
		return path.Base(object)
	}
	return filepath.Base(uri)
}

// SameLocation reports whether a and b name the same object. Local paths
// are compared after making them absolute; gs:// URIs are compared as
// bucket and object names.
func SameLocation(a, b string) bool {
	if IsGCSURI(a) || IsGCSURI(b) {
		ab, ao, errA := ParseGCSURI(a)
		bb, bo, errB := ParseGCSURI(b)
		return errA == nil && errB == nil && ab == bb && ao == bo
	}
	return absPath(a) == absPath(b)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// DeriveOutputURI places the output next to input, named
// "<name><suffix><ext>". Inputs without an extension get ".xlsx".
func DeriveOutputURI(input, suffix string) string {
	if IsGCSURI(input) {
		ext := path.Ext(input)
		base := strings.TrimSuffix(input, ext)
		if ext == "" {
			ext = ".xlsx"
		}
		return base + suffix + ext
	}
	dir, name := filepath.Split(input)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = ".xlsx"
	}
	return filepath.Join(dir, stem+suffix+ext)
}
