// Package files stores uploaded workbooks and reads them back as grids.
//
// A stored workbook is addressed by a location URI whose scheme picks the
// backend: file:// (local directory), gs:// (Cloud Storage), drive://
// (Google Drive) or sheets:// (a tab of a hosted spreadsheet, read only).
package files

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// BlobStore keeps workbook bytes.
type BlobStore interface {
	// Scheme is the location scheme the store answers for.
	Scheme() string
	// Put stores data under name and returns its location.
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
}

var ErrUnsupportedLocation = errors.New("unsupported file location")

// Location is a parsed blob location.
type Location struct {
	Scheme string
	Host   string
	Path   string
}

// ParseLocation splits "scheme://host/path". The path has no leading slash.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return Location{}, fmt.Errorf("%w: %q has no scheme", ErrUnsupportedLocation, raw)
	}
	return Location{
		Scheme: strings.ToLower(u.Scheme),
		Host:   u.Host,
		Path:   strings.TrimPrefix(u.Path, "/"),
	}, nil
}

func (l Location) String() string {
	if l.Path == "" {
		return l.Scheme + "://" + l.Host
	}
	return l.Scheme + "://" + l.Host + "/" + l.Path
}
