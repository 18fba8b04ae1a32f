package topicmap

import (
	"encoding/binary"
	"runtime"
	"slices"
	"strings"
	"sync"
	"weak"
)

// Scope is an immutable, canonical set of theme topics.
//
// Scopes are interned per topic map: two constructs in the same map with the
// same set of themes share one *Scope, so scope equality is pointer
// equality. The empty scope is the process-wide singleton Unconstrained.
//
// Add and Remove never modify the receiver; they return the canonical scope
// for the resulting theme set.
//
// Example:
//
//	s := topicmap.Unconstrained().Add(en).Add(de)
//	s2, _ := tm.ScopeOf(de, en)
//	fmt.Println(s == s2) // true
type Scope struct {
	id     uint64
	themes []ID
	key    string
	refs   int
	reg    *scopeRegistry
}

var unconstrained = &Scope{}

// Unconstrained returns the empty scope.
func Unconstrained() *Scope { return unconstrained }

// IsUnconstrained reports whether the scope has no themes.
func (s *Scope) IsUnconstrained() bool { return len(s.themes) == 0 }

// Len returns the number of themes.
func (s *Scope) Len() int { return len(s.themes) }

// ThemeIDs returns the theme IDs in ascending order.
func (s *Scope) ThemeIDs() []ID { return slices.Clone(s.themes) }

// Themes resolves the theme topics.
func (s *Scope) Themes() []*Topic {
	if s.reg == nil {
		return nil
	}
	out := make([]*Topic, 0, len(s.themes))
	for _, id := range s.themes {
		if t := s.reg.tm.topic(id); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Contains reports whether theme is part of the scope.
func (s *Scope) Contains(theme *Topic) bool {
	if theme == nil {
		return false
	}
	return s.containsID(theme.id)
}

func (s *Scope) containsID(id ID) bool {
	_, ok := slices.BinarySearch(s.themes, id)
	return ok
}

// Add returns the canonical scope s ∪ {theme}. A theme from a different
// topic map than the scope's leaves s unchanged.
func (s *Scope) Add(theme *Topic) *Scope {
	if theme == nil || s.Contains(theme) {
		return s
	}
	reg := theme.tm.scopes
	if s.reg != nil && s.reg != reg {
		return s
	}
	return reg.canonical(append(slices.Clone(s.themes), theme.id))
}

// Remove returns the canonical scope s \ {theme}.
func (s *Scope) Remove(theme *Topic) *Scope {
	if theme == nil || !s.Contains(theme) {
		return s
	}
	return s.reg.canonical(slices.DeleteFunc(slices.Clone(s.themes), func(id ID) bool { return id == theme.id }))
}

// IsSubsetOf reports whether every theme of s is in o.
func (s *Scope) IsSubsetOf(o *Scope) bool {
	for _, id := range s.themes {
		if !o.containsID(id) {
			return false
		}
	}
	return true
}

// IsStrictSupersetOf reports whether s contains every theme of o plus at least one more.
func (s *Scope) IsStrictSupersetOf(o *Scope) bool {
	return len(s.themes) > len(o.themes) && o.IsSubsetOf(s)
}

func (s *Scope) String() string {
	if s.IsUnconstrained() {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, t := range s.Themes() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.label())
	}
	sb.WriteByte('}')
	return sb.String()
}

// scopeRegistry interns the scopes of one topic map. The table holds weak
// pointers: an entry lives as long as anything, a construct or a caller of
// ScopeOf, still holds its *Scope, and is dropped by the runtime after that.
// refs counts the constructs carrying a scope and only feeds Stats.
type scopeRegistry struct {
	mu     sync.Mutex
	tm     *TopicMap
	byKey  map[string]weak.Pointer[Scope]
	nextID uint64
	inUse  int
}

func newScopeRegistry(tm *TopicMap) *scopeRegistry {
	return &scopeRegistry{tm: tm, byKey: make(map[string]weak.Pointer[Scope])}
}

func scopeKey(ids []ID) string {
	buf := make([]byte, 0, 8*len(ids))
	for _, id := range ids {
		buf = binary.BigEndian.AppendUint64(buf, uint64(id))
	}
	return string(buf)
}

// canonical returns the interned scope for ids, which may be unsorted and
// contain duplicates. The slice is owned by the registry afterwards.
func (r *scopeRegistry) canonical(ids []ID) *Scope {
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return unconstrained
	}
	key := scopeKey(ids)

	r.mu.Lock()
	defer r.mu.Unlock()
	if wp, ok := r.byKey[key]; ok {
		if s := wp.Value(); s != nil {
			return s
		}
	}
	r.nextID++
	s := &Scope{id: r.nextID, themes: ids, key: key, reg: r}
	wp := weak.Make(s)
	r.byKey[key] = wp
	runtime.AddCleanup(s, r.evict, scopeEntry{key: key, wp: wp})
	return s
}

type scopeEntry struct {
	key string
	wp  weak.Pointer[Scope]
}

// evict drops a collected scope's entry unless a newer scope took its key.
func (r *scopeRegistry) evict(e scopeEntry) {
	r.mu.Lock()
	if r.byKey[e.key] == e.wp {
		delete(r.byKey, e.key)
	}
	r.mu.Unlock()
}

// acquire takes a construct reference on s and returns it.
func (r *scopeRegistry) acquire(s *Scope) *Scope {
	if s.reg != r {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s.refs++
	if s.refs == 1 {
		r.inUse++
	}
	return s
}

func (r *scopeRegistry) release(s *Scope) {
	if s.reg != r {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.refs == 0 {
		return
	}
	s.refs--
	if s.refs == 0 {
		r.inUse--
	}
}

// inUseCount returns the number of scopes carried by at least one construct.
func (r *scopeRegistry) inUseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inUse
}
