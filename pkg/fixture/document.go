// Package fixture reads topic maps written as small YAML documents and
// replays them through the ingestion protocol.
//
// A document looks like this:
//
//	base: http://www.example.org/opera
//	reifier: si:http://psi.example.org/opera-map
//	topics:
//	  - ref: si:http://psi.example.org/puccini
//	    types: [si:http://psi.example.org/composer]
//	    names:
//	      - value: Giacomo Puccini
//	        scope: si:http://psi.example.org/en
//	        variants:
//	          - value: Puccini, Giacomo
//	            scope: [si:http://psi.example.org/sort]
//	    occurrences:
//	      - type: si:http://psi.example.org/born
//	        value: 1858-12-22
//	        datatype: xsd:date
//	associations:
//	  - type: si:http://psi.example.org/composed-by
//	    roles:
//	      - {type: si:http://psi.example.org/work, player: tosca}
//	      - {type: si:http://psi.example.org/composer, player: si:http://psi.example.org/puccini}
//
// Topic references are written si:<iri>, sl:<iri> or ii:<iri> for subject
// identifiers, subject locators and item identifiers. A reference without a
// prefix is an item identifier. Relative IRIs resolve against the base.
//
// Scalar values map to XML Schema datatypes through convert.ToLexical unless
// a datatype is given; "xsd:" abbreviates the XML Schema namespace.
package fixture

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/tmengine/pkg/convert"
	"github.com/orneryd/tmengine/pkg/ingest"
	"github.com/orneryd/tmengine/pkg/literal"
)

// Document is a decoded fixture.
type Document struct {
	Base            string        `yaml:"base"`
	Reifier         string        `yaml:"reifier"`
	ItemIdentifiers Refs          `yaml:"item_identifiers"`
	Topics          []Topic       `yaml:"topics"`
	Associations    []Association `yaml:"associations"`
}

// Topic is a topic entry. Ref may be empty for an anonymous topic.
type Topic struct {
	Ref                string       `yaml:"ref"`
	SubjectIdentifiers Refs         `yaml:"subject_identifiers"`
	SubjectLocators    Refs         `yaml:"subject_locators"`
	ItemIdentifiers    Refs         `yaml:"item_identifiers"`
	Types              Refs         `yaml:"types"`
	Names              []Name       `yaml:"names"`
	Occurrences        []Occurrence `yaml:"occurrences"`
}

// Name is a topic name with its variants.
type Name struct {
	Type            string    `yaml:"type"`
	Value           string    `yaml:"value"`
	Scope           Refs      `yaml:"scope"`
	Reifier         string    `yaml:"reifier"`
	ItemIdentifiers Refs      `yaml:"item_identifiers"`
	Variants        []Variant `yaml:"variants"`
}

// Variant is a variant name. Value may be any scalar.
type Variant struct {
	Value           any    `yaml:"value"`
	Datatype        string `yaml:"datatype"`
	Scope           Refs   `yaml:"scope"`
	Reifier         string `yaml:"reifier"`
	ItemIdentifiers Refs   `yaml:"item_identifiers"`
}

// Occurrence is a typed occurrence. Value may be any scalar.
type Occurrence struct {
	Type            string `yaml:"type"`
	Value           any    `yaml:"value"`
	Datatype        string `yaml:"datatype"`
	Scope           Refs   `yaml:"scope"`
	Reifier         string `yaml:"reifier"`
	ItemIdentifiers Refs   `yaml:"item_identifiers"`
}

// Association is an association with its roles.
type Association struct {
	Type            string `yaml:"type"`
	Scope           Refs   `yaml:"scope"`
	Reifier         string `yaml:"reifier"`
	ItemIdentifiers Refs   `yaml:"item_identifiers"`
	Roles           []Role `yaml:"roles"`
}

// Role is an association role.
type Role struct {
	Type            string `yaml:"type"`
	Player          string `yaml:"player"`
	Reifier         string `yaml:"reifier"`
	ItemIdentifiers Refs   `yaml:"item_identifiers"`
}

// Refs is a list of references that may be written as a single scalar.
type Refs []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (r *Refs) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s, ok := convert.ToStrings(raw)
	if !ok {
		return fmt.Errorf("line %d: expected a reference or a list of references", node.Line)
	}
	*r = s
	return nil
}

// Parse decodes a fixture document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &doc, nil
}

// ReadFile reads and decodes the fixture at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ParseRef parses a topic reference relative to base. An empty reference
// is anonymous.
func ParseRef(base literal.Literal, ref string) (ingest.Ref, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ingest.Ref{}, nil
	}
	kind := ingest.RefItemIdentifier
	switch {
	case strings.HasPrefix(ref, "si:"):
		kind, ref = ingest.RefSubjectIdentifier, ref[3:]
	case strings.HasPrefix(ref, "sl:"):
		kind, ref = ingest.RefSubjectLocator, ref[3:]
	case strings.HasPrefix(ref, "ii:"):
		ref = ref[3:]
	}
	iri, err := literal.Resolve(base, ref)
	if err != nil {
		return ingest.Ref{}, err
	}
	return ingest.Ref{Kind: kind, IRI: iri}, nil
}

// expandDatatype expands the "xsd:" prefix.
func expandDatatype(dt string) string {
	if rest, ok := strings.CutPrefix(dt, "xsd:"); ok {
		return literal.XSDNamespace + rest
	}
	return dt
}

// value converts a decoded scalar into a literal. With an explicit datatype
// the scalar's lexical form is reinterpreted; xsd:anyURI values resolve
// against base.
func value(base literal.Literal, v any, datatype string) (literal.Literal, error) {
	if v == nil {
		return literal.Literal{}, fmt.Errorf("missing value")
	}
	if datatype == "" {
		return convert.ToLiteral(v)
	}
	lex, _, ok := convert.ToLexical(v)
	if !ok {
		return literal.Literal{}, fmt.Errorf("no lexical form for value of type %T", v)
	}
	datatype = expandDatatype(datatype)
	if datatype == literal.XSDAnyURI {
		return literal.Resolve(base, lex)
	}
	return literal.New(lex, datatype)
}
