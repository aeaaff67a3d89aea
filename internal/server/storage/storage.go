// Package storage writes artifacts to object storage and derives their
// public URLs.
package storage

import (
	"context"
	"net/url"
	"strings"
)

// ArtifactStore persists one payload under a key and returns its URL.
// Implementations make a single attempt and never retry.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// URLFor joins base and key, escaping every key segment. It is pure: no
// round trip to the store is needed to learn where an object lives.
func URLFor(base, key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
