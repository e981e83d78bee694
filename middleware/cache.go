package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/broady/restproxy"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheStatusHeader is set to "hit" on responses served from a cache.
const CacheStatusHeader = "X-Restproxy-Cache"

// CachedResponse is the stored form of a response.
type CachedResponse struct {
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
}

// Store persists cached responses. A miss is (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Set(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error
}

// Cache creates a filter that serves repeated GET requests from store.
// Only 200 responses are stored, for ttl unless the response carries
// Cache-Control max-age. no-store, no-cache and private responses are
// never stored, nor are event streams. Store failures count as misses.
func Cache(store Store, ttl time.Duration) restproxy.ExchangeFilter {
	return func(ctx context.Context, req *restproxy.RequestDescriptor, next restproxy.ExchangeFunc) (*http.Response, error) {
		if req.Method != http.MethodGet || req.Header.Get("Authorization") != "" {
			return next(ctx, req)
		}
		key := cacheKey(req)
		if cached, ok, err := store.Get(ctx, key); err != nil {
			slog.WarnContext(ctx, "cache get failed", slog.String("key", key), slog.Any("error", err))
		} else if ok {
			return cached.response(), nil
		}

		resp, err := next(ctx, req)
		if err != nil || resp.StatusCode != http.StatusOK {
			return resp, err
		}
		if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
			return resp, nil
		}
		life, ok := cacheLifetime(resp.Header, ttl)
		if !ok {
			return resp, nil
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
		entry := &CachedResponse{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: body}
		if err := store.Set(ctx, key, entry, life); err != nil {
			slog.WarnContext(ctx, "cache set failed", slog.String("key", key), slog.Any("error", err))
		}
		return resp, nil
	}
}

func cacheKey(req *restproxy.RequestDescriptor) string {
	return req.URL.String() + " " + req.Header.Get("Accept")
}

// cacheLifetime applies the response Cache-Control directives to def.
func cacheLifetime(h http.Header, def time.Duration) (time.Duration, bool) {
	life := def
	for _, directive := range strings.Split(h.Get("Cache-Control"), ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(strings.ToLower(directive)), "=")
		switch name {
		case "no-store", "no-cache", "private":
			return 0, false
		case "max-age":
			secs, err := strconv.Atoi(strings.Trim(value, `"`))
			if err != nil {
				continue
			}
			life = time.Duration(secs) * time.Second
		}
	}
	return life, life > 0
}

func (c *CachedResponse) response() *http.Response {
	h := c.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(CacheStatusHeader, "hit")
	return &http.Response{
		StatusCode:    c.StatusCode,
		Status:        strconv.Itoa(c.StatusCode) + " " + http.StatusText(c.StatusCode),
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
	}
}

// LRUStore is an in-process Store with a size bound.
type LRUStore struct {
	lru *expirable.LRU[string, lruEntry]
}

type lruEntry struct {
	resp    *CachedResponse
	expires time.Time
}

// NewLRUStore returns a store holding at most size responses, none for
// longer than maxTTL.
func NewLRUStore(size int, maxTTL time.Duration) *LRUStore {
	return &LRUStore{lru: expirable.NewLRU[string, lruEntry](size, nil, maxTTL)}
}

func (s *LRUStore) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expires) {
		s.lru.Remove(key)
		return nil, false, nil
	}
	return e.resp, true, nil
}

func (s *LRUStore) Set(_ context.Context, key string, resp *CachedResponse, ttl time.Duration) error {
	s.lru.Add(key, lruEntry{resp: resp, expires: time.Now().Add(ttl)})
	return nil
}

// Len returns the number of stored responses.
func (s *LRUStore) Len() int { return s.lru.Len() }
