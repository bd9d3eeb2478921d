// Package alternatives keeps the alternate recognitions of committed dictation
// text so the user can swap a word for one the recognizer also heard.
//
// A Store maps a word or phrase to an ordered list of alternates, most
// relevant first. It has no locks: it is owned by the dictation controller and
// only touched from the controller's task queue.
package alternatives

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Store maps a committed word or phrase to its ordered alternates.
//
// Lists never contain duplicates and never contain their own key. Empty lists
// are not stored.
type Store struct {
	m map[string][]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{m: make(map[string][]string)}
}

// Lookup finds the alternates for word, trying the exact spelling first and
// then its lower-cased form. key is the map key that matched.
func (s *Store) Lookup(word string) (key string, alts []string, ok bool) {
	if a, found := s.m[word]; found {
		return word, slices.Clone(a), true
	}
	lower := strings.ToLower(word)
	if a, found := s.m[lower]; found {
		return lower, slices.Clone(a), true
	}
	return "", nil, false
}

// Seed records the alternates of a freshly delivered result. Entries of
// delivered replace existing keys. When delivered has no entry for best, best
// is recorded with the remaining candidates rest as its alternates.
func (s *Store) Seed(best string, rest []string, delivered map[string][]string) {
	for k, v := range delivered {
		s.put(k, v)
	}
	if _, ok := delivered[best]; ok || best == "" {
		return
	}
	s.put(best, rest)
}

// put stores a deduplicated copy of alts under key, dropping key itself and
// empty strings. An empty result removes key.
func (s *Store) put(key string, alts []string) {
	list := make([]string, 0, len(alts))
	for _, a := range alts {
		if a == "" || a == key || slices.Contains(list, a) {
			continue
		}
		list = append(list, a)
	}
	if len(list) == 0 {
		delete(s.m, key)
		return
	}
	s.m[key] = list
}

// Replace records that the user swapped original for chosen. The list found
// for original loses chosen, gains the found key at the end and moves to
// chosen, so swapping back remains possible. Returns false, without changing
// anything, when original has no entry.
func (s *Store) Replace(original, chosen string) bool {
	key, alts, ok := s.Lookup(original)
	if !ok {
		return false
	}
	alts = slices.DeleteFunc(alts, func(a string) bool { return a == chosen })
	if !slices.Contains(alts, key) {
		alts = append(alts, key)
	}
	delete(s.m, key)
	s.put(chosen, alts)
	return true
}

// ProjectCapitalization upper-cases the first rune of every alternate of key
// when reference starts with an upper-case rune. The projected list is stored
// back under key, so later lookups see the capitalized forms as well.
// It returns a copy of the resulting list, or nil when key is unknown.
func (s *Store) ProjectCapitalization(key, reference string) []string {
	alts, ok := s.m[key]
	if !ok {
		return nil
	}
	if !startsUpper(reference) {
		return slices.Clone(alts)
	}
	projected := make([]string, 0, len(alts))
	for _, a := range alts {
		c := capitalizeFirst(a)
		if c == key || slices.Contains(projected, c) {
			continue
		}
		projected = append(projected, c)
	}
	if len(projected) == 0 {
		delete(s.m, key)
		return nil
	}
	s.m[key] = projected
	return slices.Clone(projected)
}

// Clear drops every entry. Safe to call on an empty Store.
func (s *Store) Clear() {
	clear(s.m)
}

// Len returns the number of keys.
func (s *Store) Len() int {
	return len(s.m)
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

// capitalizeFirst upper-cases the first rune of s.
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// CapitalizeFirst upper-cases the first rune of s. Exported for callers that
// apply the same rule to committed text.
func CapitalizeFirst(s string) string { return capitalizeFirst(s) }
