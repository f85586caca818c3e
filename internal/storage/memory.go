package storage

import (
	"context"
	"maps"
	"sync"
)

// MemoryVariables keeps variables in process memory. Errors can be injected
// for tests.
type MemoryVariables struct {
	mu        sync.RWMutex
	global    map[string]string
	entities  map[string]map[string]string
	saves     int
	loadError error
	saveError error
	pingError error
}

var _ VariableStore = (*MemoryVariables)(nil)

func NewMemoryVariables() *MemoryVariables {
	return &MemoryVariables{
		global:   make(map[string]string),
		entities: make(map[string]map[string]string),
	}
}

// Seed replaces the stored state
func (m *MemoryVariables) Seed(global map[string]string, entities map[string]map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global, m.entities = cloneScopes(global, entities)
}

func (m *MemoryVariables) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

func (m *MemoryVariables) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MemoryVariables) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// Saves returns how many times Save succeeded
func (m *MemoryVariables) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MemoryVariables) Load(ctx context.Context) (map[string]string, map[string]map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadError != nil {
		return nil, nil, m.loadError
	}
	g, e := cloneScopes(m.global, m.entities)
	return g, e, nil
}

func (m *MemoryVariables) Save(ctx context.Context, global map[string]string, entities map[string]map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.global, m.entities = cloneScopes(global, entities)
	m.saves++
	return nil
}

func (m *MemoryVariables) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryVariables) Close() error {
	return nil
}

func cloneScopes(global map[string]string, entities map[string]map[string]string) (map[string]string, map[string]map[string]string) {
	g := maps.Clone(global)
	if g == nil {
		g = make(map[string]string)
	}
	e := make(map[string]map[string]string, len(entities))
	for id, scope := range entities {
		e[id] = maps.Clone(scope)
	}
	return g, e
}
