package objectstore

import (
	"context"
	"time"
)

// Permission scopes a signed URL to reading or writing one object.
type Permission string

const (
	PermissionRead  Permission = "read"  // GET
	PermissionWrite Permission = "write" // PUT
)

// DefaultSignTTL is how long signed URLs stay valid when the caller does
// not specify a duration.
const DefaultSignTTL = 24 * time.Hour

// Store abstracts the private object store holding submission artifacts.
//
// Sign turns an internal key into a time-limited URL an external worker can
// use without credentials. It returns "" when the backend cannot produce a
// URL for the key; callers treat empty as "not available". The manifest
// composer, not the store, decides which references are required.
type Store interface {
	Save(ctx context.Context, key, contentType string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Sign(ctx context.Context, key string, perm Permission, ttl time.Duration) string
}
