package topicmap

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/orneryd/tmengine/pkg/config"
	"github.com/orneryd/tmengine/pkg/literal"
)

// Options configures the topic maps created by a System.
type Options struct {
	// AutoMerge merges topics when an identifier collision is mergeable.
	// When false such collisions surface as *IdentityConstraintError.
	AutoMerge bool

	// Logger receives Debug records for merges and reconciliation and Info
	// records for topic map lifecycle. Defaults to zap.NewNop().
	Logger *zap.Logger

	// Listeners are registered on every new topic map after the built-in
	// identity manager and indices.
	Listeners []Listener
}

// DefaultOptions returns Options with auto-merge enabled and a no-op logger.
func DefaultOptions() Options {
	return Options{AutoMerge: true, Logger: zap.NewNop()}
}

// OptionsFromConfig derives Options from the engine section of the configuration.
func OptionsFromConfig(cfg config.EngineConfig, logger *zap.Logger) Options {
	opts := DefaultOptions()
	opts.AutoMerge = cfg.AutoMerge
	if logger != nil {
		opts.Logger = logger
	}
	return opts
}

// System is the factory and registry of topic maps, keyed by base locator.
//
// A System is safe for concurrent use. The topic maps it hands out are not:
// each TopicMap must have a single writer at a time.
//
// Example:
//
//	sys := topicmap.NewSystem(topicmap.DefaultOptions())
//	defer sys.Close()
//
//	tm, err := sys.CreateTopicMap("http://example.org/map")
//	if err != nil {
//		return err
//	}
//	t, _ := tm.CreateTopicBySubjectIdentifier(literal.MustIRI("http://psi.example.org/puccini"))
type System struct {
	mu     sync.RWMutex
	opts   Options
	maps   map[literal.Literal]*TopicMap
	closed bool
}

// NewSystem creates an empty System.
func NewSystem(opts Options) *System {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &System{opts: opts, maps: make(map[literal.Literal]*TopicMap)}
}

// CreateTopicMap creates a topic map with the given absolute base locator.
// Returns ErrMapExists if the base is already taken.
func (s *System) CreateTopicMap(base string) (*TopicMap, error) {
	loc, err := literal.IRI(base)
	if err != nil {
		return nil, fmt.Errorf("base locator: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.maps[loc]; ok {
		return nil, fmt.Errorf("%s: %w", loc.Value(), ErrMapExists)
	}
	tm := newTopicMap(s, loc, s.opts)
	s.maps[loc] = tm
	s.opts.Logger.Info("topic map created", zap.String("base", loc.Value()))
	return tm, nil
}

// TopicMap returns the open topic map registered under base. It returns
// ErrNotFound when there is none.
func (s *System) TopicMap(base string) (*TopicMap, error) {
	loc, err := literal.IRI(base)
	if err != nil {
		return nil, fmt.Errorf("base locator: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tm, ok := s.maps[loc]
	if !ok {
		return nil, fmt.Errorf("%s: %w", loc.Value(), ErrNotFound)
	}
	return tm, nil
}

// BaseLocators lists the base locators of all open topic maps, sorted.
func (s *System) BaseLocators() []literal.Literal {
	s.mu.RLock()
	out := make([]literal.Literal, 0, len(s.maps))
	for loc := range s.maps {
		out = append(out, loc)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b literal.Literal) int { return strings.Compare(a.Value(), b.Value()) })
	return out
}

// Close closes every topic map. The System cannot be used afterwards.
func (s *System) Close() error {
	s.mu.Lock()
	maps := make([]*TopicMap, 0, len(s.maps))
	for _, tm := range s.maps {
		maps = append(maps, tm)
	}
	s.closed = true
	s.mu.Unlock()

	for _, tm := range maps {
		tm.Close()
	}
	return nil
}

func (s *System) forget(tm *TopicMap) {
	s.mu.Lock()
	if s.maps[tm.baseLoc] == tm {
		delete(s.maps, tm.baseLoc)
	}
	s.mu.Unlock()
}
