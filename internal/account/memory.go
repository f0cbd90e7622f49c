package account

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process. It has the same conditional-write
// semantics as the database stores and backs STORE_DRIVER=memory and tests.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]document)}
}

func (m *MemoryStore) Create(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[a.UID]; ok {
		return ErrAccountExists
	}
	d := toDocument(a)
	d.Version = 1
	m.docs[a.UID] = d
	a.Version = 1
	return nil
}

func (m *MemoryStore) Get(_ context.Context, uid string) (*Account, error) {
	m.mu.Lock()
	d, ok := m.docs[uid]
	m.mu.Unlock()
	if !ok {
		return nil, ErrAccountNotFound
	}
	return d.toAccount()
}

func (m *MemoryStore) Replace(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.docs[a.UID]
	if !ok {
		return ErrAccountNotFound
	}
	if cur.Version != a.Version {
		return ErrVersionConflict
	}
	d := toDocument(a)
	d.Version = a.Version + 1
	m.docs[a.UID] = d
	a.Version = d.Version
	return nil
}
