package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	answer  string
	expires time.Time
}

// Memory is a process-local Cache. Expired entries are dropped on read, and
// Set sweeps the whole map at most once per TTL.
type Memory struct {
	mu        sync.Mutex
	config    Config
	entries   map[string]entry
	nextSweep time.Time
	now       func() time.Time
}

func NewMemory(config Config) *Memory {
	return &Memory{
		config:  config.withDefaults(),
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, question string) (string, error) {
	key := Key(m.config.KeyPrefix, question)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", ErrMiss
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return "", ErrMiss
	}
	return e.answer, nil
}

func (m *Memory) Set(_ context.Context, question, answer string) error {
	key := Key(m.config.KeyPrefix, question)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(m.config.TTL)
	}
	m.entries[key] = entry{answer: answer, expires: now.Add(m.config.TTL)}
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]entry)
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) sweep(now time.Time) {
	for key, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, key)
		}
	}
}
