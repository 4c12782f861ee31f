package credential

import (
	"sync"
	"time"
)

// Memory is an in process store for the session credential.
type Memory struct {
	mu   sync.RWMutex
	cred Credential
}

// NewMemory constructs an empty memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the credential if one is present and not expired.
func (m *Memory) Load(now time.Time) (Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.cred.Valid(now) {
		return Credential{}, false
	}
	return m.cred, true
}

// Save replaces the stored credential.
func (m *Memory) Save(c Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cred = c
	return nil
}

// Clear removes the stored credential.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cred = Credential{}
	return nil
}
