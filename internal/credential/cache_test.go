package credential

import (
	"fmt"
	"sync"
	"testing"
)

func TestMemoryCacheEmpty(t *testing.T) {
	cache := NewMemoryCache()
	if _, ok := cache.Get(); ok {
		t.Fatalf("expected empty cache")
	}
}

func TestMemoryCacheLastWriterWins(t *testing.T) {
	cache := NewMemoryCache()
	cache.Set(Credential{Token: "first"})
	cache.Set(Credential{Token: "second"})
	cred, ok := cache.Get()
	if !ok || cred.Token != "second" {
		t.Fatalf("expected second, got %q (%v)", cred.Token, ok)
	}
}

func TestMemoryCacheIgnoresBlankToken(t *testing.T) {
	cache := NewMemoryCache()
	cache.Set(Credential{Token: "kept"})
	cache.Set(Credential{Token: "  "})
	cred, _ := cache.Get()
	if cred.Token != "kept" {
		t.Fatalf("blank token replaced cached credential: %q", cred.Token)
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cache.Set(Credential{Token: fmt.Sprintf("token-%d", i)})
			cache.Get()
		}(i)
	}
	wg.Wait()
	if _, ok := cache.Get(); !ok {
		t.Fatalf("expected a credential after concurrent writes")
	}
}
