package topicmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/tmengine/pkg/literal"
)

const testBase = "http://www.example.org/map"

func newTestMap(t *testing.T) *TopicMap {
	t.Helper()
	return newTestMapWith(t, DefaultOptions())
}

func newTestMapWith(t *testing.T, opts Options) *TopicMap {
	t.Helper()
	sys := NewSystem(opts)
	t.Cleanup(func() { sys.Close() })
	tm, err := sys.CreateTopicMap(testBase)
	require.NoError(t, err)
	return tm
}

// iri resolves ref against the test base locator.
func iri(t *testing.T, tm *TopicMap, ref string) literal.Literal {
	t.Helper()
	loc, err := tm.Resolve(ref)
	require.NoError(t, err)
	return loc
}

func topicBySID(t *testing.T, tm *TopicMap, ref string) *Topic {
	t.Helper()
	topic, err := tm.CreateTopicBySubjectIdentifier(iri(t, tm, ref))
	require.NoError(t, err)
	return topic
}

func topicByIID(t *testing.T, tm *TopicMap, ref string) *Topic {
	t.Helper()
	topic, err := tm.CreateTopicByItemIdentifier(iri(t, tm, ref))
	require.NoError(t, err)
	return topic
}

func newTopic(t *testing.T, tm *TopicMap) *Topic {
	t.Helper()
	topic, err := tm.CreateTopic()
	require.NoError(t, err)
	return topic
}

func newName(t *testing.T, topic *Topic, typ *Topic, value string, themes ...*Topic) *Name {
	t.Helper()
	n, err := topic.CreateName(typ, value, themes...)
	require.NoError(t, err)
	return n
}

func newOccurrence(t *testing.T, topic *Topic, typ *Topic, value string, themes ...*Topic) *Occurrence {
	t.Helper()
	o, err := topic.CreateOccurrence(typ, literal.String(value), themes...)
	require.NoError(t, err)
	return o
}

// newBinary creates an association of typ with two roles.
func newBinary(t *testing.T, tm *TopicMap, typ, rt1, p1, rt2, p2 *Topic) *Association {
	t.Helper()
	a, err := tm.CreateAssociation(typ)
	require.NoError(t, err)
	_, err = a.CreateRole(rt1, p1)
	require.NoError(t, err)
	_, err = a.CreateRole(rt2, p2)
	require.NoError(t, err)
	return a
}
