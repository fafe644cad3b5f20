//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"forex-academy/internal/config"
)

type fakeCounter struct {
	counts  map[string]int64
	expired []string
	incrErr error
	RedisClient
}

func (f *fakeCounter) Incr(ctx context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounter) Expire(ctx context.Context, key string, d time.Duration) error {
	f.expired = append(f.expired, key)
	return nil
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit then blocks", func(t *testing.T) {
		fc := &fakeCounter{counts: map[string]int64{}}
		rl := NewRateLimiter(fc)
		key := ClientRouteKey("10.0.0.1", "create-intent")

		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, key, 3, time.Minute)
			if err != nil || !ok {
				t.Fatalf("call %d: expected allowed, got ok=%v err=%v", i+1, ok, err)
			}
		}
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Fatal("expected 4th call to be blocked")
		}
		if len(fc.expired) != 1 {
			t.Errorf("expected window to be set once, got %d", len(fc.expired))
		}
	})

	t.Run("propagates redis errors", func(t *testing.T) {
		boom := errors.New("redis down")
		rl := NewRateLimiter(&fakeCounter{counts: map[string]int64{}, incrErr: boom})
		if _, err := rl.Allow(ctx, "k", 1, time.Minute); !errors.Is(err, boom) {
			t.Fatalf("expected redis error, got %v", err)
		}
	})
}

func TestClientOptions(t *testing.T) {
	t.Run("bare address", func(t *testing.T) {
		opts, err := clientOptions(&config.RedisConfig{URL: "localhost:6379", DB: 2})
		if err != nil {
			t.Fatal(err)
		}
		if opts.Addr != "localhost:6379" || opts.DB != 2 {
			t.Fatalf("unexpected options %+v", opts)
		}
	})

	t.Run("url with explicit password override", func(t *testing.T) {
		opts, err := clientOptions(&config.RedisConfig{URL: "redis://:fromurl@cache:6380/3", Password: "explicit"})
		if err != nil {
			t.Fatal(err)
		}
		if opts.Addr != "cache:6380" || opts.DB != 3 || opts.Password != "explicit" {
			t.Fatalf("unexpected options %+v", opts)
		}
	})

	t.Run("bad url", func(t *testing.T) {
		if _, err := clientOptions(&config.RedisConfig{URL: "http://nope"}); err == nil {
			t.Fatal("expected parse error")
		}
	})
}
