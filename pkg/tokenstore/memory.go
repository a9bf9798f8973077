package tokenstore

import (
	"context"
	"sync"
)

// Memory keeps the token in process memory. It does not survive restarts.
type Memory struct {
	mu    sync.Mutex
	token string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != "", nil
}

func (m *Memory) Set(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

// Null is a Store that never caches; every Get misses.
type Null struct{}

func (Null) Get(context.Context) (string, bool, error) { return "", false, nil }
func (Null) Set(context.Context, string) error         { return nil }
func (Null) Clear(context.Context) error               { return nil }
