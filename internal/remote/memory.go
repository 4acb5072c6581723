package remote

import (
	"context"
	"sync"
	"time"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
)

type memoryRecord struct {
	items     []cart.Item
	updatedAt time.Time
	malformed bool
}

// Memory is an in-process RemoteStore.
type Memory struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]memoryRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Get(ctx context.Context, userID string) (*cart.RemoteSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	if rec.malformed {
		return nil, cart.ErrMalformedSnapshot
	}
	items := make([]cart.Item, len(rec.items))
	copy(items, rec.items)
	return &cart.RemoteSnapshot{Items: items, UpdatedAt: rec.updatedAt}, nil
}

func (m *Memory) Put(ctx context.Context, userID string, items []cart.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]cart.Item, len(items))
	copy(stored, items)
	m.records[userID] = memoryRecord{items: stored, updatedAt: m.now()}
	return nil
}

// MarkMalformed makes the user's record lose its items field.
func (m *Memory) MarkMalformed(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = memoryRecord{malformed: true, updatedAt: m.now()}
}
