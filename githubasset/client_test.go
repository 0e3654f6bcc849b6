package githubasset

import (
	"context"
	"sync"
	"testing"
)

func TestClientPool(t *testing.T) {
	pool := NewClientPool()
	ctx := context.Background()

	t.Run("same token shares one client", func(t *testing.T) {
		if pool.Get(ctx, "token-a") != pool.Get(ctx, "token-a") {
			t.Error("two lookups for one token returned different clients")
		}
	})

	t.Run("tokens get separate clients", func(t *testing.T) {
		if pool.Get(ctx, "token-a") == pool.Get(ctx, "") {
			t.Error("authenticated and anonymous lookups share a client")
		}
	})

	t.Run("concurrent lookups are safe", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				pool.Get(ctx, "token-b")
			}()
		}
		wg.Wait()
	})
}
