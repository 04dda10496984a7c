// Package localstore provides the fallback key/value store used when no LMS
// is reachable. Every key carries an explicit scope: session keys are
// transient, persistent keys survive across learner sessions.
package localstore

import (
	"context"
	"fmt"
	"sync"
)

// Scope controls how long a stored value lives.
type Scope int

const (
	ScopeSession Scope = iota
	ScopePersistent
)

func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopePersistent:
		return "persistent"
	default:
		return "unknown"
	}
}

// ParseScope parses the String form of a scope.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "session":
		return ScopeSession, nil
	case "persistent":
		return ScopePersistent, nil
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

// Key names a stored value and the scope it lives in.
type Key struct {
	Name  string
	Scope Scope
}

// Keys is the set of fallback keys the runtime writes.
type Keys struct {
	Bookmark    Key
	SuspendData Key
	CourseData  Key
}

// DefaultKeys keeps the bookmark and course data across reloads and treats
// the raw suspend-data mirror as transient.
func DefaultKeys() Keys {
	return Keys{
		Bookmark:    Key{Name: "bookmark", Scope: ScopePersistent},
		SuspendData: Key{Name: "suspend_data", Scope: ScopeSession},
		CourseData:  Key{Name: "course_data", Scope: ScopePersistent},
	}
}

// Store is a string key/value store. Get reports ok=false for missing keys
// instead of failing.
type Store interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Set(ctx context.Context, key Key, value string) error
	Clear(ctx context.Context, scope Scope) error
}

// Factory returns the store view for one namespace (course + learner).
type Factory func(namespace string) Store

// MemoryStore is an in-process Store. Namespaced views share the same data.
type MemoryStore struct {
	shared    *memoryData
	namespace string
}

type memoryData struct {
	mu     sync.RWMutex
	values map[memoryKey]string
}

type memoryKey struct {
	namespace string
	scope     Scope
	name      string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shared: &memoryData{values: make(map[memoryKey]string)},
	}
}

// Namespace returns a view of the store scoped to ns.
func (s *MemoryStore) Namespace(ns string) *MemoryStore {
	return &MemoryStore{shared: s.shared, namespace: ns}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (string, bool, error) {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	v, ok := s.shared.values[s.key(key)]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, value string) error {
	if key.Name == "" {
		return fmt.Errorf("key name is required")
	}
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	s.shared.values[s.key(key)] = value
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, scope Scope) error {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	for k := range s.shared.values {
		if k.namespace == s.namespace && k.scope == scope {
			delete(s.shared.values, k)
		}
	}
	return nil
}

func (s *MemoryStore) key(k Key) memoryKey {
	return memoryKey{namespace: s.namespace, scope: k.Scope, name: k.Name}
}
