package cache

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"
)

func testKey(tag string) CacheKey {
	return CacheKey{URL: "https://fonts.googleapis.com/css?family=Roboto", Tag: tag}
}

func TestMemoryStore_PutAndGet(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("Referer", "https://example.com/")
	entry := NewEntry("@font-face{src:url(/fonts.gstatic.com/a.woff2)}", headers, 0)

	if err := store.Put(ctx, testKey("Chrome123Windows"), entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, testKey("Chrome123Windows"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Body != entry.Body {
		t.Errorf("Body = %q, want %q", got.Body, entry.Body)
	}
	if got.Headers["Referer"] != "https://example.com/" {
		t.Errorf("Referer = %q", got.Headers["Referer"])
	}
}

func TestMemoryStore_Get_CacheMiss(t *testing.T) {
	store := NewMemoryStore(0)

	_, err := store.Get(context.Background(), testKey(""))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryStore_TagsArePartitioned(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if err := store.Put(ctx, testKey("Chrome123Windows"), &Entry{Body: "chrome"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, testKey("Firefox125X11"), &Entry{Body: "firefox"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	chrome, err := store.Get(ctx, testKey("Chrome123Windows"))
	if err != nil || chrome.Body != "chrome" {
		t.Errorf("chrome entry = %+v, %v", chrome, err)
	}
	firefox, err := store.Get(ctx, testKey("Firefox125X11"))
	if err != nil || firefox.Body != "firefox" {
		t.Errorf("firefox entry = %+v, %v", firefox, err)
	}
	if _, err := store.Get(ctx, testKey("")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("untagged key should miss, got %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}

func TestMemoryStore_ExpiredEntry(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	entry := &Entry{Body: "x", Expires: time.Now().Add(-time.Minute)}
	if err := store.Put(ctx, testKey(""), entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := store.Get(ctx, testKey("")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestMemoryStore_DefaultTTL(t *testing.T) {
	store := NewMemoryStore(50 * time.Millisecond)
	ctx := context.Background()

	if err := store.Put(ctx, testKey(""), &Entry{Body: "x"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := store.Get(ctx, testKey("")); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := store.Get(ctx, testKey("")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after default TTL, got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	entry := &Entry{Body: "original"}
	if err := store.Put(ctx, testKey(""), entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	entry.Body = "mutated"

	got, err := store.Get(ctx, testKey(""))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Body != "original" {
		t.Errorf("Body = %q, want %q", got.Body, "original")
	}
}

func TestMemoryStore_Put_NilEntry(t *testing.T) {
	store := NewMemoryStore(0)
	if err := store.Put(context.Background(), testKey(""), nil); err == nil {
		t.Error("Put with nil entry should return error")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default is memory", cfg: Config{}},
		{name: "memory", cfg: Config{Backend: BackendMemory, TTL: time.Hour}},
		{name: "sqlite", cfg: Config{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "new.db")}},
		{name: "bad redis url", cfg: Config{Backend: BackendRedis, RedisURL: "not-a-url"}, wantErr: true},
		{name: "unknown", cfg: Config{Backend: "memcached"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer backend.Close()
			if err := backend.Ping(context.Background()); err != nil {
				t.Errorf("Ping() = %v", err)
			}
		})
	}
}
