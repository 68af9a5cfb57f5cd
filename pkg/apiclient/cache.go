package apiclient

import "sync"

// TokenCache holds the access token most recently seen. Writers replace the
// value wholesale; a stale read costs at most one extra refresh.
type TokenCache struct {
	mu    sync.RWMutex
	token string
}

func NewTokenCache(initial string) *TokenCache {
	return &TokenCache{token: initial}
}

func (c *TokenCache) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *TokenCache) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *TokenCache) Clear() { c.Set("") }
