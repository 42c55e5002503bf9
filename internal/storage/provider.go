// Package storage defines the blob store abstraction used to persist run
// artifacts, and helpers shared by its implementations.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/JakeFAU/teams-titles-scraper/internal/export"
)

// BlobStore writes an object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// ObjectPath joins prefix, runID and name into an object key.
func ObjectPath(prefix, runID, name string) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if runID != "" {
		parts = append(parts, runID)
	}
	parts = append(parts, name)
	return path.Join(parts...)
}

// PutFiles writes every file under prefix/runID and returns the URIs keyed
// by file name.
func PutFiles(ctx context.Context, store BlobStore, prefix, runID string, files []export.File) (map[string]string, error) {
	uris := make(map[string]string, len(files))
	for _, f := range files {
		key := ObjectPath(prefix, runID, f.Name)
		uri, err := store.PutObject(ctx, key, f.ContentType, bytes.NewReader(f.Data))
		if err != nil {
			return uris, fmt.Errorf("put %s: %w", key, err)
		}
		uris[f.Name] = uri
	}
	return uris, nil
}
