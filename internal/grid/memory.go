package grid

import (
	"sync"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// FilterMemory remembers the last applied filter of every table for the session
type FilterMemory struct {
	mu      sync.RWMutex
	filters map[models.FilterKey]string
}

// NewFilterMemory creates an empty filter memory
func NewFilterMemory() *FilterMemory {
	return &FilterMemory{filters: make(map[models.FilterKey]string)}
}

// Get returns the filter stored for key
func (m *FilterMemory) Get(key models.FilterKey) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.filters[key]
	return f, ok
}

// Set stores or replaces the filter for key
func (m *FilterMemory) Set(key models.FilterKey, filter string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[key] = filter
}

// Len returns the number of remembered tables
func (m *FilterMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filters)
}
