package topicmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/tmengine/pkg/literal"
)

func TestAutoMergeOnIdentifierCollision(t *testing.T) {
	tests := []struct {
		name string
		// first creates the existing topic, second claims the colliding identifier.
		first  func(tm *TopicMap, loc literal.Literal) (*Topic, error)
		second func(t *Topic, loc literal.Literal) error
	}{
		{
			name:   "item identifier matches subject identifier",
			first:  (*TopicMap).CreateTopicBySubjectIdentifier,
			second: (*Topic).AddItemIdentifier,
		},
		{
			name:   "subject identifier matches item identifier",
			first:  (*TopicMap).CreateTopicByItemIdentifier,
			second: (*Topic).AddSubjectIdentifier,
		},
		{
			name:   "equal subject identifiers",
			first:  (*TopicMap).CreateTopicBySubjectIdentifier,
			second: (*Topic).AddSubjectIdentifier,
		},
		{
			name:   "equal item identifiers",
			first:  (*TopicMap).CreateTopicByItemIdentifier,
			second: (*Topic).AddItemIdentifier,
		},
		{
			name:   "equal subject locators",
			first:  (*TopicMap).CreateTopicBySubjectLocator,
			second: (*Topic).AddSubjectLocator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := newTestMap(t)
			loc := iri(t, tm, "#a")

			existing, err := tt.first(tm, loc)
			require.NoError(t, err)
			receiver := newTopic(t, tm)

			require.NoError(t, tt.second(receiver, loc))

			assert.True(t, existing.IsRemoved())
			assert.False(t, receiver.IsRemoved())
			assert.Same(t, receiver, existing.Current())
			assert.Len(t, tm.Topics(), 1)
			assert.Equal(t, 1, tm.Stats().Merges)
		})
	}
}

func TestSubjectIdentifierAndItemIdentifierCoexist(t *testing.T) {
	tm := newTestMap(t)
	a := iri(t, tm, "#a")

	t1, err := tm.CreateTopicBySubjectIdentifier(a)
	require.NoError(t, err)
	t2 := newTopic(t, tm)
	require.NoError(t, t2.AddItemIdentifier(a))

	assert.Same(t, t2, tm.TopicBySubjectIdentifier(a))
	assert.Same(t, t2, tm.ConstructByItemIdentifier(a))
	assert.Contains(t, t2.SubjectIdentifiers(), a)
	assert.Contains(t, t2.ItemIdentifiers(), a)
	assert.Len(t, t2.ItemIdentifiers(), 2, "generated identifier plus #a")
	assert.Nil(t, tm.ConstructByID(t1.ID()))
}

func TestStrictModeReportsMergeableCollision(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoMerge = false
	tm := newTestMapWith(t, opts)
	a := iri(t, tm, "#a")

	t1, err := tm.CreateTopicBySubjectIdentifier(a)
	require.NoError(t, err)
	t2 := newTopic(t, tm)

	err = t2.AddItemIdentifier(a)
	require.Error(t, err)
	assert.True(t, IsMergeable(err))

	var ice *IdentityConstraintError
	require.True(t, errors.As(err, &ice))
	assert.Same(t, t1, ice.Existing)
	assert.Same(t, t2, ice.Reporter)
	assert.Equal(t, a, ice.Locator)

	assert.False(t, t1.IsRemoved())
	assert.NotContains(t, t2.ItemIdentifiers(), a)
	assert.Len(t, tm.Topics(), 2)

	// Explicit merging still works.
	require.NoError(t, t2.MergeIn(t1))
	assert.Len(t, tm.Topics(), 1)
	assert.Same(t, t2, tm.TopicBySubjectIdentifier(a))
}

func TestItemIdentifierCollisionWithNonTopic(t *testing.T) {
	tm := newTestMap(t)
	x := iri(t, tm, "#x")
	topic := newTopic(t, tm)
	occ := newOccurrence(t, topic, topicBySID(t, tm, "#type"), "value")
	require.NoError(t, occ.AddItemIdentifier(x))

	t.Run("topic cannot take an occurrence identifier", func(t *testing.T) {
		err := newTopic(t, tm).AddItemIdentifier(x)
		require.Error(t, err)
		assert.False(t, IsMergeable(err))
	})

	t.Run("create by item identifier reports the occurrence", func(t *testing.T) {
		_, err := tm.CreateTopicByItemIdentifier(x)
		var ice *IdentityConstraintError
		require.True(t, errors.As(err, &ice))
		assert.Same(t, occ, ice.Existing)
	})

	t.Run("second occurrence cannot take it", func(t *testing.T) {
		other := newOccurrence(t, topic, topicBySID(t, tm, "#type"), "other")
		err := other.AddItemIdentifier(x)
		require.Error(t, err)
		assert.False(t, IsMergeable(err))
	})

	t.Run("removal frees the identifier", func(t *testing.T) {
		require.NoError(t, occ.Remove())
		assert.Nil(t, tm.ConstructByItemIdentifier(x))
		created, err := tm.CreateTopicByItemIdentifier(x)
		require.NoError(t, err)
		assert.Same(t, created, tm.ConstructByItemIdentifier(x))
	})
}

func TestCreateTopicBySubjectIdentifierReusesItemIdentifier(t *testing.T) {
	tm := newTestMap(t)
	a := iri(t, tm, "#a")
	byIID := topicByIID(t, tm, "#a")

	bySID, err := tm.CreateTopicBySubjectIdentifier(a)
	require.NoError(t, err)
	assert.Same(t, byIID, bySID)
	assert.Contains(t, bySID.SubjectIdentifiers(), a)

	again, err := tm.CreateTopicByItemIdentifier(a)
	require.NoError(t, err)
	assert.Same(t, bySID, again)
	assert.Len(t, tm.Topics(), 1)
}

func TestRemoveIdentifiers(t *testing.T) {
	tm := newTestMap(t)
	a := iri(t, tm, "#a")
	topic := topicBySID(t, tm, "#a")

	require.NoError(t, topic.RemoveSubjectIdentifier(a))
	assert.Nil(t, tm.TopicBySubjectIdentifier(a))
	require.NoError(t, topic.RemoveSubjectIdentifier(a), "removing an absent identifier is a no-op")

	require.NoError(t, topic.AddSubjectLocator(a))
	assert.Same(t, topic, tm.TopicBySubjectLocator(a))
	assert.Nil(t, tm.TopicBySubjectIdentifier(a), "locators and identifiers never collide")
	require.NoError(t, topic.RemoveSubjectLocator(a))
	assert.Nil(t, tm.TopicBySubjectLocator(a))
}

func TestRelativeIdentifierRejected(t *testing.T) {
	tm := newTestMap(t)
	_, err := tm.CreateTopicBySubjectIdentifier(literal.String("not an iri"))
	assert.ErrorIs(t, err, ErrNilValue)
}

func TestListeners(t *testing.T) {
	var merged []Event
	veto := errors.New("vetoed")
	opts := DefaultOptions()
	opts.Listeners = []Listener{
		func(ev Event) error {
			if ev.Kind == EventTopicsMerged {
				merged = append(merged, ev)
			}
			return nil
		},
		func(ev Event) error {
			if ev.Kind == EventSubjectLocatorAdding {
				return veto
			}
			return nil
		},
	}
	tm := newTestMapWith(t, opts)

	t1 := topicBySID(t, tm, "#a")
	t2 := newTopic(t, tm)
	require.NoError(t, t2.AddItemIdentifier(iri(t, tm, "#a")))
	require.Len(t, merged, 1)
	assert.Same(t, t1, merged[0].Old)
	assert.Same(t, t2, merged[0].New)

	err := t2.AddSubjectLocator(iri(t, tm, "#doc"))
	assert.ErrorIs(t, err, veto)
	assert.Empty(t, t2.SubjectLocators())
}
