package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/orneryd/tmengine/pkg/config"
	"github.com/orneryd/tmengine/pkg/literal"
	"github.com/orneryd/tmengine/pkg/topicmap"
)

const base = "http://www.example.org/ingest"

func newMap(t *testing.T, opts topicmap.Options) *topicmap.TopicMap {
	t.Helper()
	sys := topicmap.NewSystem(opts)
	t.Cleanup(func() { sys.Close() })
	tm, err := sys.CreateTopicMap(base)
	require.NoError(t, err)
	return tm
}

func psi(name string) literal.Literal {
	return literal.MustIRI("http://psi.example.org/" + name)
}

func si(name string) Ref { return SubjectRef(psi(name)) }

// run executes steps in order and fails the test at the first error.
func run(t *testing.T, steps ...func() error) {
	t.Helper()
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
	}
}

func ref(h *Handler, start, end func() error, r Ref) []func() error {
	return []func() error{start, func() error { return h.TopicRef(r) }, end}
}

func startTopic(h *Handler, r Ref) func() error {
	return func() error { return h.StartTopic(r) }
}

func steps(parts ...any) []func() error {
	var out []func() error
	for _, p := range parts {
		switch v := p.(type) {
		case func() error:
			out = append(out, v)
		case []func() error:
			out = append(out, v...)
		default:
			panic("steps: unsupported part")
		}
	}
	return out
}

func TestHandlerBuildsTopicMap(t *testing.T) {
	tm := newMap(t, topicmap.DefaultOptions())
	h := NewHandler(tm, DefaultOptions())
	homepage := literal.MustIRI("http://www.puccini.it/")

	run(t, steps(
		h.StartTopicMap,
		startTopic(h, si("puccini")),
		ref(h, h.StartIsa, h.EndIsa, si("composer")),
		func() error { return h.ItemIdentifier(literal.MustIRI(base + "#puccini")) },
		h.StartName,
		func() error { return h.Value(literal.String("Giacomo Puccini")) },
		h.StartScope,
		func() error { return h.TopicRef(si("en")) },
		h.EndScope,
		h.StartVariant,
		func() error { return h.Value(literal.String("Puccini, Giacomo")) },
		h.StartScope,
		ref(h, h.StartTheme, h.EndTheme, si("sort")),
		h.EndScope,
		h.EndVariant,
		h.EndName,
		h.StartOccurrence,
		ref(h, h.StartType, h.EndType, si("homepage")),
		func() error { return h.Value(homepage) },
		h.EndOccurrence,
		h.EndTopic,
		h.StartAssociation,
		ref(h, h.StartType, h.EndType, si("composed-by")),
		h.StartRole,
		ref(h, h.StartType, h.EndType, si("work")),
		ref(h, h.StartPlayer, h.EndPlayer, si("tosca")),
		h.EndRole,
		h.StartRole,
		ref(h, h.StartType, h.EndType, si("composer")),
		ref(h, h.StartPlayer, h.EndPlayer, si("puccini")),
		h.EndRole,
		h.EndAssociation,
		h.EndTopicMap,
	)...)

	puccini := tm.TopicBySubjectIdentifier(psi("puccini"))
	require.NotNil(t, puccini)
	assert.Same(t, puccini, tm.ConstructByItemIdentifier(literal.MustIRI(base+"#puccini")))
	assert.True(t, puccini.HasType(tm.TopicBySubjectIdentifier(psi("composer"))))

	require.Len(t, puccini.Names(), 1)
	name := puccini.Names()[0]
	assert.Equal(t, "Giacomo Puccini", name.Value())
	assert.Equal(t, topicmap.PSITopicName, name.Type().SubjectIdentifiers()[0])
	assert.True(t, name.Scope().Contains(tm.TopicBySubjectIdentifier(psi("en"))))
	require.Len(t, name.Variants(), 1)
	assert.Equal(t, 2, name.Variants()[0].Scope().Len())

	require.Len(t, puccini.Occurrences(), 1)
	assert.Equal(t, homepage, puccini.Occurrences()[0].Value())

	require.Len(t, tm.Associations(), 1)
	assert.Len(t, tm.Associations()[0].Roles(), 2)
	assert.Len(t, puccini.RolesPlayed(), 1)
}

func TestHandlerDelaysRoleSideEffects(t *testing.T) {
	tm := newMap(t, topicmap.DefaultOptions())
	h := NewHandler(tm, DefaultOptions())
	roleIID := literal.MustIRI(base + "#role")

	run(t, steps(
		h.StartTopicMap,
		h.StartAssociation,
		ref(h, h.StartType, h.EndType, si("composed-by")),
		h.StartRole,
		func() error { return h.ItemIdentifier(roleIID) },
		ref(h, h.StartReifier, h.EndReifier, si("role-reifier")),
		ref(h, h.StartType, h.EndType, si("composer")),
		ref(h, h.StartPlayer, h.EndPlayer, si("puccini")),
		h.EndRole,
	)...)

	assert.Nil(t, tm.ConstructByItemIdentifier(roleIID), "nothing is committed before the association ends")
	assert.Empty(t, tm.Associations())

	run(t, h.EndAssociation, h.EndTopicMap)

	role, ok := tm.ConstructByItemIdentifier(roleIID).(*topicmap.Role)
	require.True(t, ok)
	assert.Same(t, role, tm.TopicBySubjectIdentifier(psi("role-reifier")).Reified())
	assert.Same(t, tm.Associations()[0], role.Association())
}

func TestHandlerMergesOnIdentifierCollision(t *testing.T) {
	tests := []struct {
		name       string
		autoMerge  bool
		wantMerges int
	}{
		{"topic map merges", true, 0},
		{"handler merges", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := topicmap.DefaultOptions()
			opts.AutoMerge = tt.autoMerge
			tm := newMap(t, opts)
			h := NewHandler(tm, DefaultOptions())

			run(t, steps(
				h.StartTopicMap,
				startTopic(h, si("puccini")),
				h.StartName,
				func() error { return h.Value(literal.String("Puccini")) },
				h.EndName,
				h.EndTopic,
				startTopic(h, si("giacomo")),
				func() error { return h.SubjectIdentifier(psi("puccini")) },
				h.StartName,
				func() error { return h.Value(literal.String("Giacomo")) },
				h.EndName,
				h.EndTopic,
				h.EndTopicMap,
			)...)

			require.Len(t, tm.Topics(), 2, "the merged topic and the default name type")
			merged := tm.TopicBySubjectIdentifier(psi("puccini"))
			assert.Same(t, merged, tm.TopicBySubjectIdentifier(psi("giacomo")))
			assert.Len(t, merged.Names(), 2)
			assert.Equal(t, tt.wantMerges, h.Summary().Merges)
		})
	}
}

func TestHandlerMergeConflict(t *testing.T) {
	tm := newMap(t, topicmap.DefaultOptions())
	h := NewHandler(tm, DefaultOptions())

	occurrence := func(topic, value, reifier string) []func() error {
		return steps(
			startTopic(h, si(topic)),
			h.StartOccurrence,
			ref(h, h.StartType, h.EndType, si("note")),
			func() error { return h.Value(literal.String(value)) },
			ref(h, h.StartReifier, h.EndReifier, si(reifier)),
			h.EndOccurrence,
			h.EndTopic,
		)
	}
	run(t, h.StartTopicMap)
	run(t, occurrence("a", "one", "r1")...)
	run(t, occurrence("b", "two", "r2")...)

	run(t, startTopic(h, si("r1")))
	err := h.SubjectIdentifier(psi("r2"))

	var mce *MergeConflictError
	require.True(t, errors.As(err, &mce), "got %v", err)
	assert.ErrorIs(t, err, topicmap.ErrReificationConflict)
	assert.Equal(t, psi("r2"), mce.Locator)
	assert.Contains(t, mce.Error(), "merge conflict on http://psi.example.org/r2")
	assert.NotSame(t, tm.TopicBySubjectIdentifier(psi("r1")), tm.TopicBySubjectIdentifier(psi("r2")))
}

func TestHandlerReifierConflict(t *testing.T) {
	tm := newMap(t, topicmap.DefaultOptions())
	h := NewHandler(tm, DefaultOptions())

	association := func(player string) []func() error {
		return steps(
			h.StartAssociation,
			ref(h, h.StartReifier, h.EndReifier, si("reifier")),
			h.StartRole,
			ref(h, h.StartType, h.EndType, si("member")),
			ref(h, h.StartPlayer, h.EndPlayer, si(player)),
			h.EndRole,
		)
	}
	run(t, h.StartTopicMap)
	run(t, association("a")...)
	run(t, h.EndAssociation)
	run(t, association("b")...)

	err := h.EndAssociation()
	var mce *MergeConflictError
	require.True(t, errors.As(err, &mce), "got %v", err)
	assert.True(t, mce.Locator.IsZero())
	assert.Equal(t, topicmap.KindAssociation, mce.Construct.Kind())
	assert.Len(t, tm.Associations(), 1, "the failed association is rolled back")
	assert.Empty(t, tm.TopicBySubjectIdentifier(psi("b")).RolesPlayed())
}

func TestHandlerTopicMapIdentity(t *testing.T) {
	tm := newMap(t, topicmap.DefaultOptions())
	h := NewHandler(tm, DefaultOptions())
	iid := literal.MustIRI(base + "#map")

	run(t, steps(
		h.StartTopicMap,
		func() error { return h.ItemIdentifier(iid) },
		ref(h, h.StartReifier, h.EndReifier, si("map-reifier")),
		h.EndTopicMap,
	)...)

	assert.Same(t, tm, tm.ConstructByItemIdentifier(iid))
	assert.Same(t, tm.TopicBySubjectIdentifier(psi("map-reifier")), tm.Reifier())
}

func TestHandlerEndOfMapPasses(t *testing.T) {
	build := func(t *testing.T, opts Options) (*topicmap.TopicMap, *Handler) {
		tm := newMap(t, topicmap.DefaultOptions())
		h := NewHandler(tm, opts)
		run(t, h.StartTopicMap)
		run(t, steps(
			startTopic(h, si("puccini")),
			h.StartName,
			func() error { return h.Value(literal.String("Puccini")) },
			h.EndName,
			h.StartName,
			func() error { return h.Value(literal.String("Puccini")) },
			h.EndName,
			h.EndTopic,
			h.StartAssociation,
			ref(h, h.StartType, h.EndType, SubjectRef(topicmap.PSITypeInstance)),
			h.StartRole,
			ref(h, h.StartType, h.EndType, SubjectRef(topicmap.PSIType)),
			ref(h, h.StartPlayer, h.EndPlayer, si("composer")),
			h.EndRole,
			h.StartRole,
			ref(h, h.StartType, h.EndType, SubjectRef(topicmap.PSIInstance)),
			ref(h, h.StartPlayer, h.EndPlayer, si("puccini")),
			h.EndRole,
			h.EndAssociation,
			h.EndTopicMap,
		)...)
		return tm, h
	}

	t.Run("enabled", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		opts := OptionsFromConfig(config.Default().Engine, zap.New(core))
		tm, h := build(t, opts)

		puccini := tm.TopicBySubjectIdentifier(psi("puccini"))
		assert.Len(t, puccini.Names(), 1)
		assert.True(t, puccini.HasType(tm.TopicBySubjectIdentifier(psi("composer"))))
		assert.Empty(t, tm.Associations())
		assert.Equal(t, 1, h.Summary().Converted)
		assert.Equal(t, 1, h.Summary().Duplicates.Names)
		assert.Equal(t, 1, logs.FilterMessage("topic map ingested").Len())
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := config.Default().Engine
		cfg.ConvertTypeInstance = false
		cfg.RemoveDuplicatesOnEnd = false
		tm, h := build(t, OptionsFromConfig(cfg, nil))

		puccini := tm.TopicBySubjectIdentifier(psi("puccini"))
		assert.Len(t, puccini.Names(), 2)
		assert.Empty(t, puccini.Types())
		assert.Len(t, tm.Associations(), 1)
		assert.Equal(t, Summary{}, h.Summary())
	})
}

func TestHandlerRejectsMisuse(t *testing.T) {
	tests := []struct {
		name string
		run  func(h *Handler) error
		want error
	}{
		{"topic before map", func(h *Handler) error { return h.StartTopic(si("a")) }, ErrUnexpectedEvent},
		{"end map twice", func(h *Handler) error {
			run(t, h.StartTopicMap, h.EndTopicMap)
			return h.EndTopicMap()
		}, ErrUnexpectedEvent},
		{"name outside topic", func(h *Handler) error {
			run(t, h.StartTopicMap)
			return h.StartName()
		}, ErrUnexpectedEvent},
		{"subject identifier on association", func(h *Handler) error {
			run(t, h.StartTopicMap, h.StartAssociation)
			return h.SubjectIdentifier(psi("a"))
		}, ErrUnexpectedEvent},
		{"role without player", func(h *Handler) error {
			run(t, steps(h.StartTopicMap, h.StartAssociation, h.StartRole,
				ref(h, h.StartType, h.EndType, si("member")))...)
			return h.EndRole()
		}, ErrIncomplete},
		{"occurrence without value", func(h *Handler) error {
			run(t, steps(h.StartTopicMap, startTopic(h, si("a")), h.StartOccurrence,
				ref(h, h.StartType, h.EndType, si("note")))...)
			return h.EndOccurrence()
		}, ErrIncomplete},
		{"name without value", func(h *Handler) error {
			run(t, h.StartTopicMap, startTopic(h, si("a")), h.StartName)
			return h.EndName()
		}, ErrIncomplete},
		{"zero value", func(h *Handler) error {
			run(t, h.StartTopicMap, startTopic(h, si("a")), h.StartName)
			return h.Value(literal.Literal{})
		}, ErrIncomplete},
		{"variant scope not a superset", func(h *Handler) error {
			run(t, h.StartTopicMap, startTopic(h, si("a")), h.StartName,
				func() error { return h.Value(literal.String("a")) },
				h.StartVariant,
				func() error { return h.Value(literal.String("v")) },
				h.EndVariant)
			return h.EndName()
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newMap(t, topicmap.DefaultOptions()), DefaultOptions())
			err := tt.run(h)
			if tt.want == nil {
				var mce *topicmap.ModelConstraintError
				assert.True(t, errors.As(err, &mce), "got %v", err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAnonymousTopics(t *testing.T) {
	tm := newMap(t, topicmap.DefaultOptions())
	h := NewHandler(tm, DefaultOptions())

	run(t, h.StartTopicMap, startTopic(h, Ref{}), h.EndTopic, startTopic(h, Ref{}), h.EndTopic, h.EndTopicMap)

	topics := tm.Topics()
	require.Len(t, topics, 2)
	for _, topic := range topics {
		require.Len(t, topic.ItemIdentifiers(), 1)
		assert.Contains(t, topic.ItemIdentifiers()[0].Value(), "urn:uuid:")
	}
	assert.Equal(t, "anonymous", Ref{}.String())
	assert.Equal(t, "subject-identifier:http://psi.example.org/a", si("a").String())
}

func TestRollback(t *testing.T) {
	tm := newMap(t, topicmap.DefaultOptions())
	typ, err := tm.CreateTopicBySubjectIdentifier(psi("member"))
	require.NoError(t, err)
	commitErr := errors.New("commit failed")

	t.Run("removes the construct", func(t *testing.T) {
		a, err := tm.CreateAssociation(typ)
		require.NoError(t, err)
		assert.Same(t, commitErr, rollback(a, commitErr))
		assert.True(t, a.IsRemoved())
	})

	t.Run("reports a failed removal", func(t *testing.T) {
		a, err := tm.CreateAssociation(typ)
		require.NoError(t, err)
		require.NoError(t, a.Remove())
		err = rollback(a, commitErr)
		assert.ErrorIs(t, err, commitErr)
		assert.ErrorIs(t, err, topicmap.ErrRemoved)
		assert.Contains(t, err.Error(), "rolling back association")
	})

	t.Run("keeps a committed construct", func(t *testing.T) {
		a, err := tm.CreateAssociation(typ)
		require.NoError(t, err)
		assert.NoError(t, rollback(a, nil))
		assert.False(t, a.IsRemoved())
	})
}
