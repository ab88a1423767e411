package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestConcurrencyCap_LimitEnforced(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()

	ok, err := AcquireConcurrencyCap(ctx, rdb, "cap:a1", 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	ok, err = AcquireConcurrencyCap(ctx, rdb, "cap:a1", 1, time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("limit 1 must reject a second acquire")
	}

	if err := ReleaseConcurrencyCap(ctx, rdb, "cap:a1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	ok, err = AcquireConcurrencyCap(ctx, rdb, "cap:a1", 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestConcurrencyCap_ValidatesInput(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()

	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Minute); err == nil {
		t.Fatalf("nil client must error")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "", 1, time.Minute); err == nil {
		t.Fatalf("empty key must error")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "k", 0, time.Minute); err == nil {
		t.Fatalf("zero limit must error")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "k", 1, 0); err == nil {
		t.Fatalf("zero ttl must error")
	}
}
