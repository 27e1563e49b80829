package cache

import (
	"context"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

func TestMemoryCacheExpiry(t *testing.T) {
	m := NewMemoryCache()
	defer m.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Set(ctx, "events/1", []byte("[]"), time.Minute)
	m.Set(ctx, "competitions", []byte("{}"), 0)

	if v, ok, _ := m.Get(ctx, "events/1"); !ok || string(v) != "[]" {
		t.Fatalf("got %q ok=%v, want [] true", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "events/1"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, ok, _ := m.Get(ctx, "competitions"); !ok {
		t.Error("entry without ttl should not expire")
	}
}

func TestMemoryCacheEvictExpired(t *testing.T) {
	m := NewMemoryCache()
	defer m.Close()

	now := time.Now()
	m.now = func() time.Time { return now }
	m.Set(context.Background(), "a", []byte("1"), time.Second)
	now = now.Add(time.Hour)
	m.evictExpired()

	if len(m.entries) != 0 {
		t.Errorf("got %d entries after eviction, want 0", len(m.entries))
	}
}

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	defer container.Terminate(ctx)

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	c, err := NewRedisCache("redis://"+endpoint, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "lineups/3788741", []byte(`[{"team_name":"Turkey"}]`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := c.Get(ctx, "lineups/3788741")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(v) != `[{"team_name":"Turkey"}]` {
		t.Errorf("got %q", v)
	}
}
