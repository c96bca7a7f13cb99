package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dsworkflows/chidata/pkg/table"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts an in-memory Redis for unit tests. Integration tests
// use testcontainers-go with a real Redis instance.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func sampleTable() *table.Table {
	return table.New([]table.Record{
		{"id": "1", "license_id": "10"},
		{"id": "2", "license_id": "20"},
	})
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{Dataset: "r5kz-chrr", Count: 2}
	if err := manager.Set(ctx, key, NewEntry(sampleTable(), 5*time.Minute)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.Table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", retrieved.Table.Len())
	}
	if got := retrieved.Table.At(1)["license_id"]; got != "20" {
		t.Errorf("license_id = %v, want 20", got)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)

	_, err := manager.Get(context.Background(), Key{Dataset: "missing"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Set_ExpiredEntryNotStored(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{Dataset: "r5kz-chrr"}
	entry := &Entry{Table: sampleTable(), Expires: time.Now().Add(-time.Hour)}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)

	if err := manager.Set(context.Background(), Key{Dataset: "x"}, nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client)

	key := Key{Dataset: "corrupt"}
	if err := mr.Set(key.String(), "not json"); err != nil {
		t.Fatalf("miniredis Set: %v", err)
	}
	if _, err := manager.Get(context.Background(), key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestManager_RedisTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := Key{Dataset: "r5kz-chrr"}
	if err := manager.Set(ctx, key, NewEntry(sampleTable(), time.Minute)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after TTL, got %v", err)
	}
}

func TestManager_LoadOrFetch(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := Key{Dataset: "r5kz-chrr", Count: 2}

	calls := 0
	fetch := func(context.Context) (*table.Table, error) {
		calls++
		return sampleTable(), nil
	}

	for i := 0; i < 3; i++ {
		got, err := manager.LoadOrFetch(ctx, key, time.Minute, fetch)
		if err != nil {
			t.Fatalf("LoadOrFetch() error = %v", err)
		}
		if got.Len() != 2 {
			t.Errorf("Len() = %d, want 2", got.Len())
		}
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}

	if err := manager.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := manager.LoadOrFetch(ctx, key, time.Minute, fetch); err != nil {
		t.Fatalf("LoadOrFetch() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times after invalidation, want 2", calls)
	}
}

func TestManager_LoadOrFetch_ErrorNotCached(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := Key{Dataset: "r5kz-chrr"}

	fetchErr := errors.New("upstream down")
	_, err := manager.LoadOrFetch(ctx, key, time.Minute, func(context.Context) (*table.Table, error) {
		return nil, fetchErr
	})
	if !errors.Is(err, fetchErr) {
		t.Fatalf("LoadOrFetch() error = %v, want %v", err, fetchErr)
	}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("failed fetch should not be cached, got %v", err)
	}
}

func TestManager_LoadOrFetch_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client)
	mr.Close()

	got, err := manager.LoadOrFetch(context.Background(), Key{Dataset: "x"}, time.Minute, func(context.Context) (*table.Table, error) {
		return sampleTable(), nil
	})
	if err != nil {
		t.Fatalf("LoadOrFetch() should fall back to fetch, got %v", err)
	}
	if got.Len() != 2 {
		t.Errorf("Len() = %d, want 2", got.Len())
	}
}
