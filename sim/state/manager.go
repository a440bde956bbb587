// Package state keeps named values in two buffers. The simulation writes
// the staged buffer during a step and swaps once at the end, so readers on
// other goroutines only ever see whole steps.
package state

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Errors returned by the manager.
var (
	ErrEmptyKey      = errors.New("state: key must be non-empty")
	ErrNilValue      = errors.New("state: value must be non-nil")
	ErrDuplicateKey  = errors.New("state: key already registered")
	ErrUnknownKey    = errors.New("state: key is not registered")
	ErrNothingStaged = errors.New("state: key has no staged value")
	ErrTypeMismatch  = errors.New("state: value type differs from registered type")
)

// Manager owns named state values and coordinates staged updates.
type Manager struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	generation uint64
}

type entry struct {
	typ       reflect.Type
	active    any
	staged    any
	hasStaged bool
}

// NewManager constructs a Manager with no registered states.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// Register installs a new value under key. The value is deep copied so later
// changes to the original do not leak in.
func (m *Manager) Register(key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}

	if value == nil {
		return fmt.Errorf("%w: %q", ErrNilValue, key)
	}

	copyVal, err := deepCopy(value)
	if err != nil {
		return fmt.Errorf("state: unable to copy value for %q: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}

	m.entries[key] = &entry{
		typ:    reflect.TypeOf(value),
		active: copyVal,
	}

	return nil
}

// Load returns a deep copy of the active value stored under key.
func (m *Manager) Load(key string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	return deepCopy(e.active)
}

// LoadAt is like Load but also returns the generation the value belongs to.
func (m *Manager) LoadAt(key string) (any, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	v, err := deepCopy(e.active)

	return v, m.generation, err
}

// Stage returns a mutable copy of the active value. Later calls before the
// next commit return the same copy.
func (m *Manager) Stage(key string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	if e.hasStaged {
		return e.staged, nil
	}

	copyVal, err := deepCopy(e.active)
	if err != nil {
		return nil, fmt.Errorf("state: unable to copy value for %q: %w", key, err)
	}

	e.staged = copyVal
	e.hasStaged = true

	return e.staged, nil
}

// Put replaces the staged value of key with a copy of value. The value must
// have the registered type.
func (m *Manager) Put(key string, value any) error {
	if value == nil {
		return fmt.Errorf("%w: %q", ErrNilValue, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	if t := reflect.TypeOf(value); t != e.typ {
		return fmt.Errorf("%w: %q wants %s, got %s", ErrTypeMismatch, key, e.typ, t)
	}

	copyVal, err := deepCopy(value)
	if err != nil {
		return fmt.Errorf("state: unable to copy value for %q: %w", key, err)
	}

	e.staged = copyVal
	e.hasStaged = true

	return nil
}

// Commit writes the staged value of key into the active slot.
func (m *Manager) Commit(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	if !e.hasStaged {
		return fmt.Errorf("%w: %q", ErrNothingStaged, key)
	}

	e.active = e.staged
	e.staged = nil
	e.hasStaged = false

	return nil
}

// CommitAll applies all staged values and returns how many were applied.
func (m *Manager) CommitAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.commitAllLocked()
}

func (m *Manager) commitAllLocked() int {
	n := 0

	for _, e := range m.entries {
		if e.hasStaged {
			e.active = e.staged
			e.staged = nil
			e.hasStaged = false
			n++
		}
	}

	return n
}

// Swap publishes every staged value at once and starts a new generation.
// The simulation calls it once at the end of each step.
func (m *Manager) Swap() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.commitAllLocked()
	m.generation++

	return n
}

// Generation returns how many times Swap was called.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.generation
}

// DiscardAll forgets every staged value without committing it.
func (m *Manager) DiscardAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		e.staged = nil
		e.hasStaged = false
	}
}

// Keys returns the registered keys in sorted order.
func (m *Manager) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// deepCopy round-trips value through gob. Values that hold interface fields
// need their concrete types registered with gob.Register by the caller.
func deepCopy(value any) (any, error) {
	var buf bytes.Buffer

	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}

	typ := reflect.TypeOf(value)

	var target reflect.Value
	if typ.Kind() == reflect.Ptr {
		target = reflect.New(typ.Elem())
	} else {
		target = reflect.New(typ)
	}

	dec := gob.NewDecoder(&buf)
	if err := dec.Decode(target.Interface()); err != nil {
		return nil, err
	}

	if typ.Kind() == reflect.Ptr {
		return target.Interface(), nil
	}

	return target.Elem().Interface(), nil
}
