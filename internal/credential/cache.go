package credential

import (
	"strings"
	"sync"
)

// Credential is the review backend token held for the life of the process.
type Credential struct {
	Token string
}

func (c Credential) Empty() bool {
	return strings.TrimSpace(c.Token) == ""
}

// Cache holds at most one credential. Last writer wins.
type Cache interface {
	Get() (Credential, bool)
	Set(Credential)
}

// MemoryCache is never persisted.
type MemoryCache struct {
	mu   sync.RWMutex
	cred Credential
	set  bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (m *MemoryCache) Get() (Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred, m.set
}

func (m *MemoryCache) Set(cred Credential) {
	if cred.Empty() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = cred
	m.set = true
}
