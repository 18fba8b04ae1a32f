// Package convert turns decoded Go values into typed topic map literals.
//
// YAML and JSON decoders hand back plain Go values (string, bool, int,
// float64, time.Time, ...). Occurrence and variant values in a topic map are
// (lexical form, datatype IRI) pairs instead. ToLexical bridges the two
// using the XML Schema datatype each Go type naturally maps to.
//
// Key Functions:
//   - ToLexical: Go value to (lexical form, datatype)
//   - ToLiteral: Go value to an interned literal.Literal
//   - ToStrings: a single string or a list of strings to []string
//
// Example:
//
//	lex, dt, ok := convert.ToLexical(int64(42))
//	// lex == "42", dt == literal.XSDInteger, ok == true
//
//	lit, err := convert.ToLiteral(true)
//	// lit == literal.Bool(true)
package convert

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/orneryd/tmengine/pkg/literal"
)

// ToLexical returns the lexical form and datatype IRI for v.
// Returns ("", "", false) for values without a datatype mapping.
//
// Supported types:
//   - string: xsd:string, unchanged
//   - bool: xsd:boolean
//   - int, int8..int64, uint, uint8..uint64: xsd:integer
//   - *big.Int: xsd:integer
//   - float32, float64: xsd:decimal, or xsd:double for NaN and infinities
//   - time.Time: xsd:dateTime in RFC 3339 form
//   - []byte: xsd:base64Binary
//
// Example:
//
//	ToLexical(3.50)           // "3.5", XSDDecimal, true
//	ToLexical(math.Inf(-1))   // "-INF", XSDDouble, true
//	ToLexical(uint8(7))       // "7", XSDInteger, true
//	ToLexical([]int{1})       // "", "", false
func ToLexical(v any) (value, datatype string, ok bool) {
	switch val := v.(type) {
	case string:
		return val, literal.XSDString, true
	case bool:
		return strconv.FormatBool(val), literal.XSDBoolean, true
	case int:
		return strconv.FormatInt(int64(val), 10), literal.XSDInteger, true
	case int8:
		return strconv.FormatInt(int64(val), 10), literal.XSDInteger, true
	case int16:
		return strconv.FormatInt(int64(val), 10), literal.XSDInteger, true
	case int32:
		return strconv.FormatInt(int64(val), 10), literal.XSDInteger, true
	case int64:
		return strconv.FormatInt(val, 10), literal.XSDInteger, true
	case uint:
		return strconv.FormatUint(uint64(val), 10), literal.XSDInteger, true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), literal.XSDInteger, true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), literal.XSDInteger, true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), literal.XSDInteger, true
	case uint64:
		return strconv.FormatUint(val, 10), literal.XSDInteger, true
	case *big.Int:
		if val == nil {
			return "", "", false
		}
		return val.String(), literal.XSDInteger, true
	case float32:
		return formatFloat(float64(val), 32)
	case float64:
		return formatFloat(val, 64)
	case time.Time:
		return val.Format(time.RFC3339Nano), literal.XSDDateTime, true
	case []byte:
		return base64.StdEncoding.EncodeToString(val), literal.XSDBase64Binary, true
	}
	return "", "", false
}

// formatFloat renders finite floats as xsd:decimal. XSD decimals have no
// NaN or infinity, so those fall back to the xsd:double spellings.
func formatFloat(f float64, bits int) (string, string, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", literal.XSDDouble, true
	case math.IsInf(f, 1):
		return "INF", literal.XSDDouble, true
	case math.IsInf(f, -1):
		return "-INF", literal.XSDDouble, true
	}
	return strconv.FormatFloat(f, 'f', -1, bits), literal.XSDDecimal, true
}

// ToLiteral converts v with ToLexical and interns the result. A
// literal.Literal is returned unchanged.
//
// Returns an error for unsupported types, or the *literal.FormatError from
// normalization.
func ToLiteral(v any) (literal.Literal, error) {
	if lit, ok := v.(literal.Literal); ok {
		return lit, nil
	}
	value, datatype, ok := ToLexical(v)
	if !ok {
		return literal.Literal{}, fmt.Errorf("no datatype for value of type %T", v)
	}
	return literal.New(value, datatype)
}
