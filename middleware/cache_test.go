package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/broady/restproxy"
	"github.com/broady/restproxy/testutil"
	"github.com/redis/go-redis/v9"
)

func TestCache_HitAndMiss(t *testing.T) {
	store := NewLRUStore(16, time.Minute)
	rec := testutil.NewRecorder(testutil.RespondJSON(http.StatusOK, Widget{ID: "1"}))
	w := buildWidgets(t, rec, Cache(store, time.Minute))

	for i := 0; i < 3; i++ {
		got, err := w.Get(context.Background(), "1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ID != "1" {
			t.Errorf("unexpected widget %+v", got)
		}
	}
	if rec.Len() != 1 {
		t.Errorf("expected 1 upstream request, got %d", rec.Len())
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", store.Len())
	}

	if _, err := w.Get(context.Background(), "2"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Len() != 2 {
		t.Errorf("expected a miss for another URL, got %d requests", rec.Len())
	}
}

func TestCache_Skips(t *testing.T) {
	tests := []struct {
		name      string
		responder testutil.Responder
		call      func(w *Widgets) error
	}{
		{
			name:      "non-GET",
			responder: testutil.Respond(http.StatusOK, "", ""),
			call:      func(w *Widgets) error { return w.Delete(context.Background(), "1") },
		},
		{
			name:      "authorized",
			responder: testutil.Respond(http.StatusOK, "", ""),
			call:      func(w *Widgets) error { return w.Auth(context.Background(), "Bearer x") },
		},
		{
			name:      "no-store",
			responder: testutil.RespondWithHeader(testutil.RespondJSON(http.StatusOK, Widget{ID: "1"}), "Cache-Control", "no-store"),
			call:      func(w *Widgets) error { _, err := w.Get(context.Background(), "1"); return err },
		},
		{
			name:      "private",
			responder: testutil.RespondWithHeader(testutil.RespondJSON(http.StatusOK, Widget{ID: "1"}), "Cache-Control", "private, max-age=60"),
			call:      func(w *Widgets) error { _, err := w.Get(context.Background(), "1"); return err },
		},
		{
			name:      "max-age zero",
			responder: testutil.RespondWithHeader(testutil.RespondJSON(http.StatusOK, Widget{ID: "1"}), "Cache-Control", "max-age=0"),
			call:      func(w *Widgets) error { _, err := w.Get(context.Background(), "1"); return err },
		},
		{
			name:      "error status",
			responder: testutil.Respond(http.StatusNotFound, "", ""),
			call: func(w *Widgets) error {
				_, err := w.Get(context.Background(), "1")
				if err == nil {
					return errors.New("expected 404")
				}
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewLRUStore(16, time.Minute)
			rec := testutil.NewRecorder(tt.responder)
			w := buildWidgets(t, rec, Cache(store, time.Minute))
			for i := 0; i < 2; i++ {
				if err := tt.call(w); err != nil {
					t.Fatalf("call failed: %v", err)
				}
			}
			if rec.Len() != 2 {
				t.Errorf("expected both calls upstream, got %d", rec.Len())
			}
			if store.Len() != 0 {
				t.Errorf("expected nothing cached, got %d", store.Len())
			}
		})
	}
}

func TestCache_MaxAge(t *testing.T) {
	tests := []struct {
		header string
		def    time.Duration
		want   time.Duration
		ok     bool
	}{
		{"", time.Minute, time.Minute, true},
		{"max-age=30", time.Minute, 30 * time.Second, true},
		{`public, max-age="5"`, time.Minute, 5 * time.Second, true},
		{"max-age=bogus", time.Minute, time.Minute, true},
		{"no-cache", time.Minute, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.header != "" {
			h.Set("Cache-Control", tt.header)
		}
		got, ok := cacheLifetime(h, tt.def)
		if got != tt.want || ok != tt.ok {
			t.Errorf("cacheLifetime(%q, %v) = %v, %v; want %v, %v", tt.header, tt.def, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLRUStore_Expiry(t *testing.T) {
	store := NewLRUStore(4, time.Hour)
	ctx := context.Background()
	if err := store.Set(ctx, "k", &CachedResponse{StatusCode: 200}, -time.Second); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}
	if err := store.Set(ctx, "k", &CachedResponse{StatusCode: 200, Body: []byte("x")}, time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(got.Body) != "x" {
		t.Errorf("expected hit, got %+v %v %v", got, ok, err)
	}
}

func TestCache_HitHeader(t *testing.T) {
	store := NewLRUStore(4, time.Minute)
	rec := testutil.NewRecorder(testutil.RespondJSON(http.StatusOK, Widget{ID: "1"}))
	var hits []string
	spy := func(ctx context.Context, req *restproxy.RequestDescriptor, next restproxy.ExchangeFunc) (*http.Response, error) {
		resp, err := next(ctx, req)
		if resp != nil {
			hits = append(hits, resp.Header.Get(CacheStatusHeader))
		}
		return resp, err
	}
	w := buildWidgets(t, rec, spy, Cache(store, time.Minute))
	for i := 0; i < 2; i++ {
		if _, err := w.Get(context.Background(), "1"); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
	if len(hits) != 2 || hits[0] != "" || hits[1] != "hit" {
		t.Errorf("unexpected cache status headers %q", hits)
	}
}

func TestRedisStore_FailuresAreMisses(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()
	store := NewRedisStore(client, "test:")

	rec := testutil.NewRecorder(testutil.RespondJSON(http.StatusOK, Widget{ID: "1"}))
	w := buildWidgets(t, rec, Cache(store, time.Minute))
	for i := 0; i < 2; i++ {
		got, err := w.Get(context.Background(), "1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ID != "1" {
			t.Errorf("unexpected widget %+v", got)
		}
	}
	if rec.Len() != 2 {
		t.Errorf("expected every call upstream, got %d", rec.Len())
	}
	if _, _, err := store.Get(context.Background(), "k"); err == nil {
		t.Error("expected get error from unreachable redis")
	}
}

func TestNewRedisStoreFromEnv_Unreachable(t *testing.T) {
	t.Setenv("RESTPROXY_CACHE_REDIS_ADDR", "127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := NewRedisStoreFromEnv(ctx); err == nil {
		t.Error("expected ping error")
	}
}
