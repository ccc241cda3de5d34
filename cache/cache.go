// Package cache provides a redis-backed response cache for GET endpoints.
// Entries are keyed by request path and dropped explicitly by the handlers
// that mutate the underlying resources, so reads stay cheap while writes
// keep the cache honest. A nil *Cache (cache disabled by configuration) is
// fully usable and behaves as a transparent no-op.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces cache entries in a shared redis instance.
const keyPrefix = "ems:response:"

// Cache stores rendered GET responses in redis with a fixed TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Cache on the given client. The client may be nil, which
// yields a disabled cache.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

// entry is the stored form of a cached response.
type entry struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Key returns the redis key caching the given request path.
func Key(path string) string {
	return keyPrefix + path
}

// responseCapture buffers a handler's output so it can be stored after the
// request completes.
type responseCapture struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (c *responseCapture) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *responseCapture) Write(p []byte) (int, error) {
	c.buf.Write(p)
	return c.ResponseWriter.Write(p)
}

// Middleware serves GET requests from the cache when possible and stores
// successful GET responses. Non-GET requests and error responses pass
// through untouched. Redis failures degrade to uncached serving rather than
// failing the request.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		key := Key(r.URL.Path)
		if raw, err := c.client.Get(r.Context(), key).Bytes(); err == nil {
			var e entry
			if json.Unmarshal(raw, &e) == nil {
				if e.ContentType != "" {
					w.Header().Set("Content-Type", e.ContentType)
				}
				w.WriteHeader(e.Status)
				w.Write(e.Body)
				return
			}
		} else if err != redis.Nil {
			log.Printf("cache read failed for %s: %v", r.URL.Path, err)
		}

		capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(capture, r)

		if capture.status != http.StatusOK {
			return
		}
		raw, err := json.Marshal(entry{
			Status:      capture.status,
			ContentType: capture.Header().Get("Content-Type"),
			Body:        capture.buf.Bytes(),
		})
		if err != nil {
			return
		}
		if err := c.client.Set(r.Context(), key, raw, c.ttl).Err(); err != nil {
			log.Printf("cache write failed for %s: %v", r.URL.Path, err)
		}
	})
}

// Drop invalidates the cached responses for the given request paths.
// Handlers call it after any mutation that would make those entries stale.
func (c *Cache) Drop(ctx context.Context, paths ...string) {
	if c == nil || len(paths) == 0 {
		return
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = Key(p)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("cache invalidation failed: %v", err)
	}
}
