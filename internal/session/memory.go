package session

import (
	"context"
	"sync"
	"time"

	"github.com/aptgraph/aptgraph/internal/pipeline"
)

// MemoryStore is the default, single-process Store. It never expires
// entries on its own; callers that need TTL behavior should prefer
// RedisStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		sess = &Session{Cache: &pipeline.StageCache{}}
		m.sessions[id] = sess
	}
	return sess, nil
}

func (m *MemoryStore) Save(ctx context.Context, id string, sess *Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = sess
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
