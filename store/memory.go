package store

import (
	"context"
	"sync"
)

// Memory is a simple in-memory store used when no database is configured.
type Memory struct {
	mu     sync.Mutex
	routes map[string]Record
	order  []string // ids, oldest first
}

func NewMemory() *Memory {
	return &Memory{
		routes: map[string]Record{},
	}
}

func (m *Memory) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.routes[rec.ID]; !exists {
		m.order = append(m.order, rec.ID)
	}
	m.routes[rec.ID] = rec
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.routes[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Record{}
	for i := len(m.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.routes[m.order[i]])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
