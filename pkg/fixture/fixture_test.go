package fixture

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/tmengine/pkg/ingest"
	"github.com/orneryd/tmengine/pkg/literal"
	"github.com/orneryd/tmengine/pkg/topicmap"
)

func psi(name string) literal.Literal {
	return literal.MustIRI("http://psi.example.org/" + name)
}

func newSystem(t *testing.T) *topicmap.System {
	t.Helper()
	sys := topicmap.NewSystem(topicmap.DefaultOptions())
	t.Cleanup(func() { sys.Close() })
	return sys
}

func load(t *testing.T, sys *topicmap.System, name string) (*topicmap.TopicMap, ingest.Summary) {
	t.Helper()
	doc, err := ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	tm, summary, err := Load(sys, doc, "http://www.example.org/fallback", ingest.DefaultOptions())
	require.NoError(t, err)
	return tm, summary
}

func resolve(t *testing.T, tm *topicmap.TopicMap, ref string) literal.Literal {
	t.Helper()
	iri, err := tm.Resolve(ref)
	require.NoError(t, err)
	return iri
}

func TestLoadOpera(t *testing.T) {
	tm, summary := load(t, newSystem(t), "opera.yaml")

	assert.Equal(t, "http://www.example.org/opera", tm.BaseLocator().Value())
	assert.Equal(t, 1, summary.Converted)
	assert.Equal(t, 1, summary.Duplicates.Names)

	t.Run("topic map identity", func(t *testing.T) {
		assert.Same(t, tm, tm.ConstructByItemIdentifier(resolve(t, tm, "#map")))
		assert.Same(t, tm.TopicBySubjectIdentifier(psi("opera-map")), tm.Reifier())
	})

	puccini := tm.TopicBySubjectIdentifier(psi("puccini"))
	require.NotNil(t, puccini)

	t.Run("puccini", func(t *testing.T) {
		assert.Same(t, puccini, tm.ConstructByItemIdentifier(resolve(t, tm, "#puccini")))
		assert.True(t, puccini.HasType(tm.TopicBySubjectIdentifier(psi("composer"))))

		require.Len(t, puccini.Names(), 1, "the duplicate name is folded")
		name := puccini.Names()[0]
		require.Len(t, name.Variants(), 1)
		assert.Equal(t, literal.String("Puccini, Giacomo"), name.Variants()[0].Value())
	})

	t.Run("occurrence datatypes", func(t *testing.T) {
		values := map[literal.Literal]literal.Literal{}
		for _, o := range puccini.Occurrences() {
			values[o.Type().SubjectIdentifiers()[0]] = o.Value()
		}
		assert.Equal(t, map[literal.Literal]literal.Literal{
			psi("born"):           literal.MustNew("1858-12-22", literal.XSDNamespace+"date"),
			psi("homepage"):       literal.MustIRI("http://www.puccini.it/"),
			psi("operas-written"): literal.Int(12),
		}, values)
	})

	t.Run("tosca", func(t *testing.T) {
		tosca, ok := tm.ConstructByItemIdentifier(resolve(t, tm, "tosca")).(*topicmap.Topic)
		require.True(t, ok)
		assert.Same(t, tosca, tm.TopicBySubjectLocator(literal.MustIRI("http://en.wikipedia.org/wiki/Tosca")))
		require.Len(t, tosca.Names(), 1)
		assert.Same(t, tosca.Names()[0], tm.TopicBySubjectIdentifier(psi("tosca-name")).Reified())
	})

	t.Run("associations", func(t *testing.T) {
		require.Len(t, tm.Associations(), 1, "the type-instance association is converted")
		a := tm.Associations()[0]
		assert.Same(t, a, tm.ConstructByItemIdentifier(resolve(t, tm, "#tosca-by-puccini")))
		composerRole := tm.TopicBySubjectIdentifier(psi("composer"))
		roles := a.RolesByType(composerRole)
		require.Len(t, roles, 1)
		assert.Same(t, puccini, roles[0].Player())
		assert.Same(t, roles[0], tm.TopicBySubjectIdentifier(psi("composer-role")).Reified())
	})
}

func TestLoadAndMergeMaps(t *testing.T) {
	sys := newSystem(t)
	opera, _ := load(t, sys, "opera.yaml")
	composers, _ := load(t, sys, "composers.yaml")

	require.NoError(t, opera.MergeIn(composers))

	puccini := opera.TopicBySubjectIdentifier(psi("puccini"))
	require.NotNil(t, puccini)
	assert.Same(t, puccini, opera.TopicBySubjectIdentifier(literal.MustIRI("http://dbpedia.org/resource/Giacomo_Puccini")))
	assert.Len(t, puccini.Names(), 1, "equal names merge")
	assert.Len(t, puccini.Types(), 1)

	verdi := opera.TopicBySubjectIdentifier(psi("verdi"))
	require.NotNil(t, verdi)
	assert.Len(t, opera.TypeInstanceIndex().Topics(puccini.Types()[0]), 2)
}

func TestLoadFallbackBase(t *testing.T) {
	sys := newSystem(t)
	doc, err := Parse([]byte("topics:\n  - ref: a\n"))
	require.NoError(t, err)

	tm, _, err := Load(sys, doc, "http://www.example.org/fallback/", ingest.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "http://www.example.org/fallback/", tm.BaseLocator().Value())
	assert.NotNil(t, tm.ConstructByItemIdentifier(literal.MustIRI("http://www.example.org/fallback/a")))

	_, _, err = Load(sys, doc, "http://www.example.org/fallback/", ingest.DefaultOptions())
	assert.ErrorIs(t, err, topicmap.ErrMapExists)
}

func TestLoadErrors(t *testing.T) {
	t.Run("invalid literal", func(t *testing.T) {
		sys := newSystem(t)
		doc, err := ReadFile(filepath.Join("testdata", "invalid.yaml"))
		require.NoError(t, err)

		_, _, err = Load(sys, doc, "", ingest.DefaultOptions())
		var fe *literal.FormatError
		require.True(t, errors.As(err, &fe), "got %v", err)
		assert.Contains(t, err.Error(), "topics[0]: occurrences[0]")
		assert.Empty(t, sys.BaseLocators(), "a failed load closes its topic map")
	})

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"role without player", "associations:\n  - roles:\n      - type: si:http://psi.example.org/member\n", "associations[0]: roles[0]: player"},
		{"occurrence without type", "topics:\n  - occurrences:\n      - value: 1\n", "topics[0]: occurrences[0]"},
		{"occurrence without value", "topics:\n  - occurrences:\n      - type: note\n", "missing value"},
		{"unsupported value", "topics:\n  - occurrences:\n      - type: note\n        value: [1, 2]\n", "no datatype"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, _, err = Load(newSystem(t), doc, "http://www.example.org/errors", ingest.DefaultOptions())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("references may be scalars or lists", func(t *testing.T) {
		doc, err := Parse([]byte(`
item_identifiers: "#map"
topics:
  - types: [a, b]
    names:
      - value: n
        scope: en
`))
		require.NoError(t, err)
		assert.Equal(t, Refs{"#map"}, doc.ItemIdentifiers)
		assert.Equal(t, Refs{"a", "b"}, doc.Topics[0].Types)
		assert.Equal(t, Refs{"en"}, doc.Topics[0].Names[0].Scope)
	})

	t.Run("rejects nested references", func(t *testing.T) {
		_, err := Parse([]byte("topics:\n  - types: [[a]]\n"))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Parse([]byte("topics: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join("testdata", "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestParseRef(t *testing.T) {
	base := literal.MustIRI("http://www.example.org/map")
	tests := []struct {
		ref  string
		want ingest.Ref
	}{
		{"", ingest.Ref{}},
		{"si:http://psi.example.org/a", ingest.SubjectRef(psi("a"))},
		{"sl:http://www.example.org/doc", ingest.LocatorRef(literal.MustIRI("http://www.example.org/doc"))},
		{"ii:#a", ingest.ItemRef(literal.MustIRI("http://www.example.org/map#a"))},
		{"#a", ingest.ItemRef(literal.MustIRI("http://www.example.org/map#a"))},
		{"si:#b", ingest.SubjectRef(literal.MustIRI("http://www.example.org/map#b"))},
		{"http://psi.example.org/a", ingest.ItemRef(psi("a"))},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ParseRef(base, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
