package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/brianndofor/cloudguard/internal/store"
)

var ErrSyncInProgress = errors.New("sync already in progress")

// Flight rejects a second sync for a service that is still syncing.
type Flight struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewFlight() *Flight {
	return &Flight{active: map[string]struct{}{}}
}

// Begin claims service. The returned func releases it.
func (f *Flight) Begin(service string) (func(), error) {
	key := store.NormalizeServiceName(service)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		f.active = map[string]struct{}{}
	}
	if _, busy := f.active[key]; busy {
		return nil, fmt.Errorf("sync %s: %w", service, ErrSyncInProgress)
	}
	f.active[key] = struct{}{}
	return func() {
		f.mu.Lock()
		delete(f.active, key)
		f.mu.Unlock()
	}, nil
}
