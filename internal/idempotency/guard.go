// Package idempotency rejects repeated submissions of the same request
// within a time window.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/josh-kwaku/retail-bank/internal/domain"
)

const DefaultTTL = time.Hour

// Cache records keys with an expiry. Add must be an atomic insert-if-absent
// and report whether the key was already present.
type Cache interface {
	Add(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Remove(ctx context.Context, key string) error
}

type Guard struct {
	cache Cache
	ttl   time.Duration
}

func NewGuard(cache Cache, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{cache: cache, ttl: ttl}
}

// Insert marks request as seen and reports whether it had been seen
// within the window already.
func (g *Guard) Insert(ctx context.Context, request any) (bool, error) {
	key, err := Key(request)
	if err != nil {
		return false, fmt.Errorf("Insert: %w", err)
	}
	present, err := g.cache.Add(ctx, key, g.ttl)
	if err != nil {
		return false, fmt.Errorf("Insert: %w", err)
	}
	return present, nil
}

func (g *Guard) InsertAndThrow(ctx context.Context, request any) error {
	present, err := g.Insert(ctx, request)
	if err != nil {
		return fmt.Errorf("InsertAndThrow: %w", err)
	}
	if present {
		return fmt.Errorf("InsertAndThrow: %w", domain.ErrDuplicateRequest)
	}
	return nil
}

func (g *Guard) Clear(ctx context.Context, request any) error {
	key, err := Key(request)
	if err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	if err := g.cache.Remove(ctx, key); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

// Key fingerprints the canonical JSON encoding of request. Struct fields
// encode in declaration order and map keys sorted, so equal requests
// always hash equally.
func Key(request any) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("Key: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%T:", request)
	h.Write(body)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
