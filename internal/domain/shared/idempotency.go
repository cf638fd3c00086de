package shared

import (
	"context"
	"time"
)

// ClaimStore records short-lived claims on string keys. A claim is the first
// writer wins: only one caller observes true for a key until its TTL expires
// or it is released.
type ClaimStore interface {
	// Claim marks key as taken for ttl. Returns true if the caller obtained the
	// claim, false if someone else holds it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsClaimed checks whether key is currently held
	IsClaimed(ctx context.Context, key string) (bool, error)

	// Release drops a claim so the key can be claimed again
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
