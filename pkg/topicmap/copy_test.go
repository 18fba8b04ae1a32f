package topicmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/tmengine/pkg/literal"
)

func newMapPair(t *testing.T) (dst, src *TopicMap) {
	t.Helper()
	sys := NewSystem(DefaultOptions())
	t.Cleanup(func() { sys.Close() })
	dst, err := sys.CreateTopicMap("http://www.example.org/dst")
	require.NoError(t, err)
	src, err = sys.CreateTopicMap("http://www.example.org/src")
	require.NoError(t, err)
	return dst, src
}

func sid(t *testing.T, tm *TopicMap, ref string) *Topic {
	t.Helper()
	topic, err := tm.CreateTopicBySubjectIdentifier(literal.MustIRI(ref))
	require.NoError(t, err)
	return topic
}

func TestTopicMapMergeIn(t *testing.T) {
	dst, src := newMapPair(t)

	puccini := sid(t, dst, "http://psi.example.org/puccini")
	newName(t, puccini, nil, "Puccini")

	srcPuccini := sid(t, src, "http://psi.example.org/puccini")
	require.NoError(t, srcPuccini.AddType(sid(t, src, "http://psi.example.org/composer")))
	newName(t, srcPuccini, nil, "Puccini")
	newName(t, srcPuccini, nil, "Giacomo Puccini")
	en := sid(t, src, "http://psi.example.org/en")
	n := newName(t, srcPuccini, nil, "Tosca composer", en)
	_, err := n.CreateVariant(literal.String("tosca-composer"), sid(t, src, "http://psi.example.org/sort"))
	require.NoError(t, err)
	newOccurrence(t, srcPuccini, sid(t, src, "http://psi.example.org/homepage"), "http://puccini.it/")
	opera := sid(t, src, "http://psi.example.org/tosca")
	a := newBinary(t, src, sid(t, src, "http://psi.example.org/composed-by"),
		sid(t, src, "http://psi.example.org/work"), opera,
		sid(t, src, "http://psi.example.org/composer-role"), srcPuccini)
	require.NoError(t, a.AddItemIdentifier(literal.MustIRI("http://www.example.org/src#a")))

	srcStats := src.Stats()
	require.NoError(t, dst.MergeIn(src))

	t.Run("source is untouched", func(t *testing.T) {
		assert.Equal(t, srcStats, src.Stats())
		assert.False(t, srcPuccini.IsRemoved())
	})

	t.Run("topics merge by identity", func(t *testing.T) {
		assert.Same(t, puccini, dst.TopicBySubjectIdentifier(literal.MustIRI("http://psi.example.org/puccini")))
		assert.True(t, puccini.HasType(dst.TopicBySubjectIdentifier(literal.MustIRI("http://psi.example.org/composer"))))
		assert.Len(t, puccini.Names(), 3, "the equal name folds into the existing one")
		assert.Len(t, puccini.Occurrences(), 1)
	})

	t.Run("characteristics are copied", func(t *testing.T) {
		dstEn := dst.TopicBySubjectIdentifier(literal.MustIRI("http://psi.example.org/en"))
		require.NotNil(t, dstEn)
		names := dst.ScopedIndex().Names(dstEn)
		require.Len(t, names, 1)
		require.Len(t, names[0].Variants(), 1)
		assert.Equal(t, literal.String("tosca-composer"), names[0].Variants()[0].Value())
		assert.Same(t, puccini, names[0].Topic())
	})

	t.Run("associations are copied", func(t *testing.T) {
		require.Len(t, dst.Associations(), 1)
		copied := dst.Associations()[0]
		assert.Same(t, copied, dst.ConstructByItemIdentifier(literal.MustIRI("http://www.example.org/src#a")))
		assert.Len(t, puccini.RolesPlayed(), 1)
	})

	t.Run("merging again adds nothing", func(t *testing.T) {
		before := dst.Stats()
		require.NoError(t, dst.MergeIn(src))
		after := dst.Stats()
		before.Merges, after.Merges = 0, 0
		assert.Equal(t, before, after)
	})
}

func TestTopicMapMergeInReifiers(t *testing.T) {
	t.Run("topic map reifiers merge", func(t *testing.T) {
		dst, src := newMapPair(t)
		require.NoError(t, dst.SetReifier(sid(t, dst, "http://psi.example.org/dst-map")))
		require.NoError(t, src.SetReifier(sid(t, src, "http://psi.example.org/src-map")))

		require.NoError(t, dst.MergeIn(src))

		r := dst.Reifier()
		require.NotNil(t, r)
		assert.ElementsMatch(t, []literal.Literal{
			literal.MustIRI("http://psi.example.org/dst-map"),
			literal.MustIRI("http://psi.example.org/src-map"),
		}, r.SubjectIdentifiers())
	})

	t.Run("reifier of a copied occurrence", func(t *testing.T) {
		dst, src := newMapPair(t)
		topic := sid(t, src, "http://psi.example.org/t")
		o := newOccurrence(t, topic, sid(t, src, "http://psi.example.org/type"), "v")
		require.NoError(t, o.SetReifier(sid(t, src, "http://psi.example.org/r")))

		require.NoError(t, dst.MergeIn(src))

		r := dst.TopicBySubjectIdentifier(literal.MustIRI("http://psi.example.org/r"))
		require.NotNil(t, r)
		copied, ok := r.Reified().(*Occurrence)
		require.True(t, ok)
		assert.Equal(t, literal.String("v"), copied.Value())
	})

	t.Run("conflicting reification is rejected before copying", func(t *testing.T) {
		dst, src := newMapPair(t)
		dt := sid(t, dst, "http://psi.example.org/t")
		do := newOccurrence(t, dt, sid(t, dst, "http://psi.example.org/type"), "dst")
		require.NoError(t, do.SetReifier(sid(t, dst, "http://psi.example.org/r")))

		st := sid(t, src, "http://psi.example.org/t")
		so := newOccurrence(t, st, sid(t, src, "http://psi.example.org/type"), "src")
		require.NoError(t, so.SetReifier(sid(t, src, "http://psi.example.org/r")))

		before := dst.Stats()
		err := dst.MergeIn(src)
		assert.ErrorIs(t, err, ErrReificationConflict)
		assert.Equal(t, before, dst.Stats())
	})
}

func TestTopicMapMergeInIdentifierConflict(t *testing.T) {
	dst, src := newMapPair(t)
	x := literal.MustIRI("http://www.example.org/shared#x")

	dt := sid(t, dst, "http://psi.example.org/t")
	do := newOccurrence(t, dt, sid(t, dst, "http://psi.example.org/type"), "one")
	require.NoError(t, do.AddItemIdentifier(x))

	st := sid(t, src, "http://psi.example.org/t")
	so := newOccurrence(t, st, sid(t, src, "http://psi.example.org/type"), "two")
	require.NoError(t, so.AddItemIdentifier(x))

	err := dst.MergeIn(src)
	var ice *IdentityConstraintError
	require.True(t, errors.As(err, &ice))
	assert.Same(t, do, ice.Existing)
	assert.Len(t, dt.Occurrences(), 1)

	t.Run("equivalent constructs may share identifiers", func(t *testing.T) {
		require.NoError(t, so.SetValue(literal.String("one")))
		require.NoError(t, dst.MergeIn(src))
		assert.Len(t, dt.Occurrences(), 1)
		assert.Same(t, do, dst.ConstructByItemIdentifier(x))
	})
}

func TestTopicMapMergeInInvalid(t *testing.T) {
	dst, src := newMapPair(t)
	require.NoError(t, dst.MergeIn(dst))
	assert.ErrorIs(t, dst.MergeIn(nil), ErrNilValue)

	require.NoError(t, src.Close())
	assert.ErrorIs(t, dst.MergeIn(src), ErrClosed)
}

func TestTopicMapMergeInKeepsExistingDuplicates(t *testing.T) {
	dst, src := newMapPair(t)

	puccini := sid(t, dst, "http://psi.example.org/puccini")
	first := newName(t, puccini, nil, "Puccini")
	second := newName(t, puccini, nil, "Puccini")
	member := sid(t, dst, "http://psi.example.org/member")
	group := sid(t, dst, "http://psi.example.org/group")
	a1 := newBinary(t, dst, group, member, puccini, member, group)
	a2 := newBinary(t, dst, group, member, puccini, member, group)

	srcPuccini := sid(t, src, "http://psi.example.org/puccini")
	newName(t, srcPuccini, nil, "Puccini")
	srcMember := sid(t, src, "http://psi.example.org/member")
	srcGroup := sid(t, src, "http://psi.example.org/group")
	newBinary(t, src, srcGroup, srcMember, srcPuccini, srcMember, srcGroup)

	require.NoError(t, dst.MergeIn(src))

	assert.Equal(t, []*Name{first, second}, puccini.Names(), "only the copy is folded")
	assert.Equal(t, []*Association{a1, a2}, dst.Associations())
}
