// Package infra provides shared infrastructure components used across
// the application: caching, request throttling, and HTTP utilities.
package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// --- HTTP helpers ---

// ErrHTTP wraps a non-success HTTP response with its status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	URL        string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s (%s): %s", e.StatusCode, e.Status, e.URL, e.Body)
}

// DoGet performs a GET request with the given URL and headers, returning the
// response body and content type. The caller is responsible for closing the
// returned ReadCloser. Responses with status >= 400 return an *ErrHTTP.
func DoGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        url,
			Body:       string(body),
		}
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// --- Request throttle ---

// Throttle enforces a minimum delay between consecutive outbound requests.
// The last-request timestamp is mutex-guarded so concurrent callers serialize
// correctly without any finer-grained coordination.
type Throttle struct {
	mu    sync.Mutex
	delay time.Duration
	last  time.Time
}

// NewThrottle creates a throttle with the given minimum inter-request delay.
// A zero or negative delay disables throttling.
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{delay: delay}
}

// Wait blocks until the minimum delay since the previous request has elapsed,
// or the context is cancelled. On success the last-request timestamp advances.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.delay <= 0 {
		return nil
	}
	t.mu.Lock()
	now := time.Now()
	wait := t.delay - now.Sub(t.last)
	if wait <= 0 {
		t.last = now
		t.mu.Unlock()
		return nil
	}
	// Reserve the slot before sleeping so concurrent callers queue up.
	t.last = now.Add(wait)
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// --- Simple in-memory cache ---

// CacheEntry holds a cached value with expiration.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is a simple thread-safe in-memory cache with TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	ttl     time.Duration
}

// NewCache creates a new cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves a value from the cache. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = CacheEntry{
		Value:     value,
		ExpiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Invalidate removes a key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Flush removes all entries from the cache.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry)
	c.mu.Unlock()
}
