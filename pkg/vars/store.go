package vars

import (
	"context"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"sync"
)

// Persistence loads and saves the full variable state.
// Implementations are called at start-up, reload and shutdown only.
type Persistence interface {
	Load(ctx context.Context) (global map[string]string, entities map[string]map[string]string, err error)
	Save(ctx context.Context, global map[string]string, entities map[string]map[string]string) error
}

// Store holds script variables. Global values live in one map; per-entity
// values are keyed by entity id. All values are text.
// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	global   map[string]string
	entities map[string]map[string]string
}

func NewStore() *Store {
	return &Store{
		global:   make(map[string]string),
		entities: make(map[string]map[string]string),
	}
}

// Get returns a value. An empty entity addresses the global scope.
func (s *Store) Get(entity, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entity == "" {
		v, ok := s.global[name]
		return v, ok
	}
	v, ok := s.entities[entity][name]
	return v, ok
}

func (s *Store) Set(entity, name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entity == "" {
		s.global[name] = value
		return
	}
	scope, ok := s.entities[entity]
	if !ok {
		scope = make(map[string]string)
		s.entities[entity] = scope
	}
	scope[name] = value
}

func (s *Store) Delete(entity, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entity == "" {
		delete(s.global, name)
		return
	}
	if scope, ok := s.entities[entity]; ok {
		delete(scope, name)
		if len(scope) == 0 {
			delete(s.entities, entity)
		}
	}
}

// Add adds delta to a numeric value and stores the result in canonical
// form. Absent or non-numeric values count as zero.
func (s *Store) Add(entity, name string, delta float64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := s.global
	if entity != "" {
		var ok bool
		scope, ok = s.entities[entity]
		if !ok {
			scope = make(map[string]string)
			s.entities[entity] = scope
		}
	}

	current, _ := ParseNumber(scope[name])
	result := FormatNumber(current + delta)
	scope[name] = result
	return result
}

// Snapshot returns deep copies of both scopes
func (s *Store) Snapshot() (map[string]string, map[string]map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	global := maps.Clone(s.global)
	entities := make(map[string]map[string]string, len(s.entities))
	for id, scope := range s.entities {
		entities[id] = maps.Clone(scope)
	}
	return global, entities
}

// EntityValues returns a copy of one entity's scope
func (s *Store) EntityValues(entity string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.entities[entity])
}

// Replace swaps in new state wholesale. Nil maps are treated as empty.
func (s *Store) Replace(global map[string]string, entities map[string]map[string]string) {
	g := make(map[string]string, len(global))
	maps.Copy(g, global)
	e := make(map[string]map[string]string, len(entities))
	for id, scope := range entities {
		if len(scope) > 0 {
			e[id] = maps.Clone(scope)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = g
	s.entities = e
}

// Count returns the number of stored values across all scopes
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.global)
	for _, scope := range s.entities {
		n += len(scope)
	}
	return n
}

func (s *Store) Clear() {
	s.Replace(nil, nil)
}

// LoadFrom replaces the store contents with what p returns
func (s *Store) LoadFrom(ctx context.Context, p Persistence) error {
	global, entities, err := p.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load variables: %w", err)
	}
	s.Replace(global, entities)
	return nil
}

// SaveTo writes a snapshot of the store to p
func (s *Store) SaveTo(ctx context.Context, p Persistence) error {
	global, entities := s.Snapshot()
	if err := p.Save(ctx, global, entities); err != nil {
		return fmt.Errorf("failed to save variables: %w", err)
	}
	return nil
}

// ParseNumber parses a finite decimal number
func ParseNumber(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatNumber renders v the way arithmetic results are stored:
// whole numbers keep one decimal place ("3.0"), others use the shortest form.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
