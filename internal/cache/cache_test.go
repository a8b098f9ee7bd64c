package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("SetAndGet", func(t *testing.T) {
		if err := cache.Set(ctx, tenantID, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, tenantID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, tenantID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "key2", []byte("value2"), time.Minute)

		if err := cache.Delete(ctx, tenantID, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if val, _ := cache.Get(ctx, tenantID, "key2"); val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
		ttlCache := NewLRUCache(10)
		ttlCache.now = clock.now

		_ = ttlCache.Set(ctx, tenantID, "expiring", []byte("temp"), 10*time.Second)

		clock.advance(10 * time.Second)
		if val, _ := ttlCache.Get(ctx, tenantID, "expiring"); val == nil {
			t.Error("expected value at the expiry instant")
		}

		clock.advance(time.Millisecond)
		if val, _ := ttlCache.Get(ctx, tenantID, "expiring"); val != nil {
			t.Error("expected nil after expiration")
		}
		if size, _ := ttlCache.Stats(); size != 0 {
			t.Errorf("expected expired entry to be dropped, size %d", size)
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, tenantID, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "c", []byte("3"), time.Minute)

		// Touch 'a' so 'b' becomes the least recently used.
		_, _ = smallCache.Get(ctx, tenantID, "a")

		_ = smallCache.Set(ctx, tenantID, "d", []byte("4"), time.Minute)

		if val, _ := smallCache.Get(ctx, tenantID, "b"); val != nil {
			t.Error("expected 'b' to be evicted")
		}
		if val, _ := smallCache.Get(ctx, tenantID, "a"); val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_ = cache.Set(ctx, "tenant-001", "shared-key", []byte("tenant1-value"), time.Minute)
		_ = cache.Set(ctx, "tenant-002", "shared-key", []byte("tenant2-value"), time.Minute)

		val1, _ := cache.Get(ctx, "tenant-001", "shared-key")
		val2, _ := cache.Get(ctx, "tenant-002", "shared-key")

		if string(val1) != "tenant1-value" {
			t.Errorf("expected 'tenant1-value', got '%s'", string(val1))
		}
		if string(val2) != "tenant2-value" {
			t.Errorf("expected 'tenant2-value', got '%s'", string(val2))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := cache.Set(ctx, "", "key", []byte("value"), time.Minute); !errors.Is(err, ErrTenantRequired) {
			t.Errorf("expected ErrTenantRequired, got %v", err)
		}
		if _, err := cache.Get(ctx, "", "key"); !errors.Is(err, ErrTenantRequired) {
			t.Errorf("expected ErrTenantRequired, got %v", err)
		}
		if _, err := cache.GetRun(ctx, "", "run-1"); !errors.Is(err, ErrTenantRequired) {
			t.Errorf("expected ErrTenantRequired, got %v", err)
		}
	})

	t.Run("RunCache", func(t *testing.T) {
		done := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		run := &domain.Run{
			ID:          "run-001",
			TenantID:    tenantID,
			Status:      domain.RunCompleted,
			RowCount:    4,
			CompletedAt: &done,
			Summary: &domain.RunSummary{
				RunID:         "run-001",
				ExecutionInfo: domain.ExecutionInfo{TotalCompanies: 2, TotalErrors: 1},
			},
		}

		if err := cache.SetRun(ctx, tenantID, run, time.Minute); err != nil {
			t.Fatalf("SetRun failed: %v", err)
		}

		got, err := cache.GetRun(ctx, tenantID, "run-001")
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if got == nil || got.Status != domain.RunCompleted || got.Summary.ExecutionInfo.TotalErrors != 1 {
			t.Errorf("unexpected cached run: %+v", got)
		}
		if !got.CompletedAt.Equal(done) {
			t.Errorf("completion time not preserved: %v", got.CompletedAt)
		}

		if miss, err := cache.GetRun(ctx, "tenant-002", "run-001"); err != nil || miss != nil {
			t.Errorf("expected miss for other tenant, got %+v, %v", miss, err)
		}

		if err := cache.SetRun(ctx, tenantID, &domain.Run{}, time.Minute); err == nil {
			t.Error("expected error for run without id")
		}
	})

	t.Run("CorruptRun", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, runKey("broken"), []byte("{not json"), time.Minute)
		if _, err := cache.GetRun(ctx, tenantID, "broken"); err == nil {
			t.Error("expected decode error for corrupt entry")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, tenantID, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, tenantID, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, tenantID, "k", []byte("v"), time.Minute)

		if err := testCache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if val, _ := testCache.Get(ctx, tenantID, "k"); val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cache, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		lru, ok := cache.(*LRUCache)
		if !ok {
			t.Fatal("expected LRUCache for memory type")
		}
		if _, capacity := lru.Stats(); capacity != 100 {
			t.Errorf("expected capacity 100, got %d", capacity)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestRedisKey(t *testing.T) {
	if got := redisKey("tenant-001", runKey("r1")); got != "heron:tenant-001:run:r1" {
		t.Errorf("unexpected redis key %q", got)
	}
}
