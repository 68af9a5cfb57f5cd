package jwtx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultMinRefetchInterval bounds how often an unknown kid may trigger a
// JWKS download. Tokens carrying made-up kids would otherwise turn into one
// IdP request each.
const DefaultMinRefetchInterval = 10 * time.Second

// JWKSFetcher downloads the current key set from wherever it is published.
type JWKSFetcher func(ctx context.Context) (JWKS, error)

// RemoteKeySet is a KeyResolver backed by a remote JWKS document. Keys are
// cached for the life of the process and the document is fetched again only
// when a token names a kid we haven't seen.
type RemoteKeySet struct {
	fetch       JWKSFetcher
	keys        *KeySet
	minInterval time.Duration
	now         func() time.Time

	mu        sync.Mutex // serialises fetches
	lastFetch time.Time
}

// NewRemoteKeySet creates an empty RemoteKeySet. Nothing is fetched until
// the first Resolve or an explicit Refresh.
func NewRemoteKeySet(fetch JWKSFetcher, minInterval time.Duration) *RemoteKeySet {
	if minInterval <= 0 {
		minInterval = DefaultMinRefetchInterval
	}
	return &RemoteKeySet{
		fetch:       fetch,
		keys:        NewKeySet(),
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Resolve returns the key for kid, refetching the JWKS once if it is unknown.
func (r *RemoteKeySet) Resolve(ctx context.Context, kid string) (any, error) {
	if key, err := r.keys.Get(kid); err == nil {
		return key, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have fetched while we waited on the lock.
	if key, err := r.keys.Get(kid); err == nil {
		return key, nil
	}

	if !r.lastFetch.IsZero() && r.now().Sub(r.lastFetch) < r.minInterval {
		return nil, ErrNoKey
	}

	if err := r.refreshLocked(ctx); err != nil {
		return nil, err
	}

	return r.keys.Get(kid)
}

// Refresh downloads the JWKS unconditionally and replaces the cached keys.
func (r *RemoteKeySet) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshLocked(ctx)
}

func (r *RemoteKeySet) refreshLocked(ctx context.Context) error {
	if r.fetch == nil {
		return errors.New("jwtx: no jwks fetcher configured")
	}

	// Record the attempt even when it fails so a dead IdP isn't hammered.
	r.lastFetch = r.now()

	jwks, err := r.fetch(ctx)
	if err != nil {
		return fmt.Errorf("jwtx: fetch jwks: %w", err)
	}
	if err := r.keys.ResetFromJWKS(jwks); err != nil {
		return fmt.Errorf("jwtx: load jwks: %w", err)
	}
	return nil
}

// IsReady reports whether at least one key has been loaded.
func (r *RemoteKeySet) IsReady() bool {
	return r.keys.IsReady()
}
