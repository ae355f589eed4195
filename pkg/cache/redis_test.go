package cache

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestNewRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewRedisStore(client, 0)
	if store == nil {
		t.Fatal("NewRedisStore returned nil")
	}
	if store.redis != client {
		t.Error("store redis client not set correctly")
	}
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil, 0)
}

func TestNewRedisStoreFromURL_InvalidURL(t *testing.T) {
	if _, err := NewRedisStoreFromURL("://bad", 0); err == nil {
		t.Error("expected error for invalid URL")
	}
}
