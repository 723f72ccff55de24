// Package storage persists photo derivatives in an S3-compatible object store.
// The MinIO client works with any S3-compatible provider (MinIO, AWS S3, R2, B2's S3 API).
package storage

import (
	"context"
	"errors"
)

// Object key namespaces. Every derivative of one asset lives under one of
// these prefixes followed by the asset's file id.
const (
	OriginalPrefix  = "photos/original/"
	ThumbnailPrefix = "photos/thumbnails/"
	WebPPrefix      = "photos/webp/"
)

// Namespaces lists every prefix a file id may appear under.
var Namespaces = []string{OriginalPrefix, ThumbnailPrefix, WebPPrefix}

var (
	// ErrNotReady means a session with the store could not be established.
	ErrNotReady = errors.New("storage client not ready")
	// ErrRetriesExhausted means every attempt hit a transient failure.
	ErrRetriesExhausted = errors.New("storage upload retries exhausted")
	// ErrNonRetryable means the store rejected the request outright.
	ErrNonRetryable = errors.New("storage request rejected")
)

// Store is the object-storage contract used by the upload pipeline.
type Store interface {
	// Upload writes data under key and returns its public URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// DeleteByFileID removes every object whose key starts with one of the
	// namespaces followed by fileID. It reports true only if all matching
	// objects were removed; individual failures are logged.
	DeleteByFileID(ctx context.Context, fileID string) (bool, error)
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}
