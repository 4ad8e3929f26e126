package session

import (
	"context"
	"sync"

	domain "github.com/wirangar/bazarino-bot/internal/entity"
)

// Store persists sessions between chat updates. The redis adapter backs it
// in production; MemoryStore serves tests and single-process runs.
type Store interface {
	Load(ctx context.Context, id string) (*Session, bool, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*Session{}}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false, nil
	}
	cp := *s
	cp.Cart.Lines = append([]domain.CartLine(nil), s.Cart.Lines...)
	return &cp, true, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Cart.Lines = append([]domain.CartLine(nil), s.Cart.Lines...)
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
