// Package prefs persists the small set of user preferences the dictation
// controller reads at field focus and writes on first use.
//
// Three backends implement [Store]: [MemStore] for tests and ephemeral hosts,
// [FileStore] for a single-user YAML file and [PostgresStore] for hosts that
// serve many profiles from one database.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"sync"
)

// Stable preference keys.
const (
	KeyHasUsedVoiceInput                  = "has_used_voice_input"
	KeyHasUsedVoiceInputUnsupportedLocale = "has_used_voice_input_unsupported_locale"
	KeyVoiceMode                          = "voice_mode"
	KeyPunctuationHintCount               = "punctuation_hint_count"
)

// ErrNotFound is returned by [Store.Get] when key has no value.
var ErrNotFound = errors.New("prefs: not found")

// Store is a string key/value preference store. Typed access goes through
// the helpers [Bool], [SetBool], [String], [Int] and [SetInt].
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// Bool reads a boolean preference. A missing key yields def; an unparsable
// value is reported as an error together with def.
func Bool(ctx context.Context, s Store, key string, def bool) (bool, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("prefs: %s: %w", key, err)
	}
	return b, nil
}

// SetBool stores a boolean preference.
func SetBool(ctx context.Context, s Store, key string, v bool) error {
	return s.Set(ctx, key, strconv.FormatBool(v))
}

// String reads a string preference, returning def when key is missing.
func String(ctx context.Context, s Store, key, def string) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

// Int reads an integer preference, returning def when key is missing.
func Int(ctx context.Context, s Store, key string, def int) (int, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("prefs: %s: %w", key, err)
	}
	return n, nil
}

// SetInt stores an integer preference.
func SetInt(ctx context.Context, s Store, key string, v int) error {
	return s.Set(ctx, key, strconv.Itoa(v))
}

// MemStore is an in-memory [Store].
type MemStore struct {
	mu sync.RWMutex
	m  map[string]string
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns a MemStore pre-populated with a copy of initial.
func NewMemStore(initial map[string]string) *MemStore {
	m := make(map[string]string, len(initial))
	maps.Copy(m, initial)
	return &MemStore{m: m}
}

// Get implements [Store].
func (s *MemStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements [Store].
func (s *MemStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]string)
	}
	s.m[key] = value
	return nil
}

// Snapshot returns a copy of every stored preference.
func (s *MemStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.m)
}
