// Package literal provides canonical, interned literal values for the topic map engine.
//
// Every value that appears in a topic map (name strings, occurrence values,
// variant values, and all identifiers) is a Literal: an immutable pair of a
// lexical form and a datatype IRI. Literals are interned, so two literals
// whose normalized (value, datatype) pairs are equal are the same handle and
// compare equal with == in O(1). That property lets the identity maps of a
// topic map use Literals directly as map keys.
//
// Normalization happens before interning:
//   - xsd:boolean: "1" and "true" become "true", "0" and "false" become "false"
//   - xsd:integer (and xsd:int, xsd:long): sign and leading zeros removed
//   - xsd:decimal: leading zeros and trailing fractional zeros removed
//   - xsd:anyURI: parsed, resolved and normalized as an IRI
//
// Example Usage:
//
//	a, _ := literal.New("007", literal.XSDInteger)
//	b, _ := literal.New("+7", literal.XSDInteger)
//	fmt.Println(a == b)      // true
//	fmt.Println(a.Value())   // "7"
//
//	iri, _ := literal.IRI("HTTP://Example.org/a/../b")
//	fmt.Println(iri.Value()) // "http://example.org/b"
//
//	n, err := literal.String("tinyTiM").Int()
//	// err is a *NumberFormatError
//
// The intern table is process-wide and safe for concurrent use by any number
// of topic maps. Entries are held weakly: once no topic map (or caller)
// references a literal anymore the runtime may reclaim it.
package literal

import (
	"fmt"
	"math/big"
	"strconv"
	"unique"
)

// XML Schema datatype IRIs recognized by the normalizer.
const (
	XSDNamespace = "http://www.w3.org/2001/XMLSchema#"

	XSDString  = XSDNamespace + "string"
	XSDAnyURI  = XSDNamespace + "anyURI"
	XSDBoolean = XSDNamespace + "boolean"
	XSDInteger = XSDNamespace + "integer"
	XSDInt     = XSDNamespace + "int"
	XSDLong    = XSDNamespace + "long"
	XSDDecimal = XSDNamespace + "decimal"
	XSDFloat   = XSDNamespace + "float"
	XSDDouble  = XSDNamespace + "double"

	XSDDateTime     = XSDNamespace + "dateTime"
	XSDBase64Binary = XSDNamespace + "base64Binary"
)

type key struct {
	value    string
	datatype string
}

// Literal is an interned (value, datatype) pair.
//
// The zero Literal is not a valid value; use IsZero to detect it. Literals are
// small comparable values: pass them by value, compare them with ==, and use
// them as map keys.
//
// An IRI is a Literal whose datatype is xsd:anyURI. IRIs double as the key
// type of every identity map (item identifiers, subject identifiers, subject
// locators).
//
// ELI12:
//
// Imagine a library where every book title is written on exactly one card.
// If two people ask for "Moby Dick", they both get pointed at the same card
// instead of each getting a copy. Checking "is this the same title?" is then
// just checking "is this the same card?", which is instant. Interning does
// that for literal values.
type Literal struct {
	h unique.Handle[key]
}

func intern(value, datatype string) Literal {
	return Literal{h: unique.Make(key{value: value, datatype: datatype})}
}

// String interns a plain xsd:string literal. Strings are never normalized.
func String(value string) Literal {
	return intern(value, XSDString)
}

// New normalizes value for datatype and returns the interned literal.
//
// Returns a *FormatError if value is not a valid lexical form for one of the
// normalized datatypes. An empty datatype means xsd:string.
func New(value, datatype string) (Literal, error) {
	switch datatype {
	case "", XSDString:
		return String(value), nil
	case XSDAnyURI:
		return IRI(value)
	}
	norm, err := normalize(value, datatype)
	if err != nil {
		return Literal{}, err
	}
	return intern(norm, datatype), nil
}

// MustNew is like New but panics on invalid input. Intended for constants and tests.
func MustNew(value, datatype string) Literal {
	lit, err := New(value, datatype)
	if err != nil {
		panic(err)
	}
	return lit
}

// Bool returns the canonical xsd:boolean literal for b.
func Bool(b bool) Literal {
	return intern(strconv.FormatBool(b), XSDBoolean)
}

// Int returns the canonical xsd:integer literal for n.
func Int(n int64) Literal {
	return intern(strconv.FormatInt(n, 10), XSDInteger)
}

// IsZero reports whether l is the zero Literal.
func (l Literal) IsZero() bool {
	return l == Literal{}
}

// Value returns the normalized lexical form.
func (l Literal) Value() string {
	if l.IsZero() {
		return ""
	}
	return l.h.Value().value
}

// Datatype returns the datatype IRI.
func (l Literal) Datatype() string {
	if l.IsZero() {
		return ""
	}
	return l.h.Value().datatype
}

// IsIRI reports whether l is an IRI (datatype xsd:anyURI).
func (l Literal) IsIRI() bool {
	return l.Datatype() == XSDAnyURI
}

// String renders l in a CTM-like notation, suitable for logs and error messages.
func (l Literal) String() string {
	switch {
	case l.IsZero():
		return "<nil>"
	case l.IsIRI():
		return "<" + l.Value() + ">"
	case l.Datatype() == XSDString:
		return strconv.Quote(l.Value())
	default:
		return strconv.Quote(l.Value()) + "^^<" + l.Datatype() + ">"
	}
}

// Int64 coerces l to an int64.
// Booleans coerce to 1 and 0; any other literal must have an integral lexical form.
func (l Literal) Int64() (int64, error) {
	if l.Datatype() == XSDBoolean {
		if l.Value() == "true" {
			return 1, nil
		}
		return 0, nil
	}
	n, err := strconv.ParseInt(l.Value(), 10, 64)
	if err != nil {
		return 0, &NumberFormatError{Literal: l, Target: "int64", Err: err}
	}
	return n, nil
}

// Int coerces l to an int.
func (l Literal) Int() (int, error) {
	n, err := l.Int64()
	if err != nil {
		return 0, err
	}
	if int64(int(n)) != n {
		return 0, &NumberFormatError{Literal: l, Target: "int", Err: strconv.ErrRange}
	}
	return int(n), nil
}

// Integer coerces l to an arbitrary precision integer.
func (l Literal) Integer() (*big.Int, error) {
	if l.Datatype() == XSDBoolean {
		n, _ := l.Int64()
		return big.NewInt(n), nil
	}
	n, ok := new(big.Int).SetString(l.Value(), 10)
	if !ok {
		return nil, &NumberFormatError{Literal: l, Target: "integer"}
	}
	return n, nil
}

// Decimal coerces l to an exact rational value. xsd:float and xsd:double
// literals go through float64; every other datatype must carry an
// xsd:decimal lexical form.
func (l Literal) Decimal() (*big.Rat, error) {
	switch l.Datatype() {
	case XSDBoolean:
		n, _ := l.Int64()
		return new(big.Rat).SetInt64(n), nil
	case XSDFloat, XSDDouble:
		f, err := l.Float64()
		if err != nil {
			return nil, &NumberFormatError{Literal: l, Target: "decimal", Err: err}
		}
		r := new(big.Rat)
		if r.SetFloat64(f) == nil {
			return nil, &NumberFormatError{Literal: l, Target: "decimal", Err: strconv.ErrRange}
		}
		return r, nil
	}
	canonical, err := normalizeDecimal(l.Value())
	if err != nil {
		return nil, &NumberFormatError{Literal: l, Target: "decimal", Err: err}
	}
	r, ok := new(big.Rat).SetString(canonical)
	if !ok {
		return nil, &NumberFormatError{Literal: l, Target: "decimal"}
	}
	return r, nil
}

// Float64 coerces l to a float64.
func (l Literal) Float64() (float64, error) {
	if l.Datatype() == XSDBoolean {
		n, _ := l.Int64()
		return float64(n), nil
	}
	f, err := strconv.ParseFloat(l.Value(), 64)
	if err != nil {
		return 0, &NumberFormatError{Literal: l, Target: "float64", Err: err}
	}
	return f, nil
}

// Boolean coerces l to a bool. Only xsd:boolean literals and xsd:string
// literals holding a boolean lexical form ("true", "false", "1", "0") are
// accepted.
func (l Literal) Boolean() (bool, error) {
	value := l.Value()
	switch l.Datatype() {
	case XSDBoolean:
	case XSDString:
		canonical, err := normalizeBoolean(value)
		if err != nil {
			return false, &NumberFormatError{Literal: l, Target: "bool", Err: err}
		}
		value = canonical
	default:
		return false, &NumberFormatError{Literal: l, Target: "bool", Err: fmt.Errorf("datatype %s is not boolean", l.Datatype())}
	}
	return value == "true", nil
}
