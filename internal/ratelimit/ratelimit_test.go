package ratelimit

import (
	"testing"
	"time"
)

func TestInMemoryLimiter_AllowsBurstThenBlocks(t *testing.T) {
	cfg := Config{MaxRequests: 60, Window: time.Minute, Burst: 2}
	rl := NewInMemory(cfg)

	if ok, _, _, _ := rl.Allow("user:tenant-a"); !ok {
		t.Fatal("expected first request in burst to be allowed")
	}
	if ok, _, _, _ := rl.Allow("user:tenant-a"); !ok {
		t.Fatal("expected second request in burst to be allowed")
	}
	if ok, _, _, _ := rl.Allow("user:tenant-a"); ok {
		t.Fatal("expected third request to exceed burst capacity")
	}
}

func TestInMemoryLimiter_KeysAreIndependent(t *testing.T) {
	cfg := Config{MaxRequests: 60, Window: time.Minute, Burst: 1}
	rl := NewInMemory(cfg)

	if ok, _, _, _ := rl.Allow("user:tenant-a"); !ok {
		t.Fatal("expected tenant-a's first request to be allowed")
	}
	if ok, _, _, _ := rl.Allow("user:tenant-b"); !ok {
		t.Fatal("expected tenant-b to have its own independent bucket")
	}
}

func TestInMemoryLimiter_RefillsOverTime(t *testing.T) {
	cfg := Config{MaxRequests: 1000, Window: time.Second, Burst: 1}
	rl := NewInMemory(cfg)

	if ok, _, _, _ := rl.Allow("addr:127.0.0.1"); !ok {
		t.Fatal("expected first request to be allowed")
	}
	time.Sleep(5 * time.Millisecond)
	if ok, _, _, _ := rl.Allow("addr:127.0.0.1"); !ok {
		t.Fatal("expected bucket to have refilled after a short wait at 1000/sec")
	}
}
