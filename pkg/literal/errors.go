package literal

import "fmt"

// FormatError reports a lexical form that is invalid for its datatype,
// e.g. "abc" as an xsd:integer or a relative reference where an absolute IRI
// is required.
type FormatError struct {
	Value    string
	Datatype string
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid lexical form %q for <%s>: %s", e.Value, e.Datatype, e.Reason)
}

// NumberFormatError is returned by the numeric coercions of Literal when the
// lexical form cannot be read as the requested number type.
type NumberFormatError struct {
	Literal Literal
	Target  string
	Err     error
}

func (e *NumberFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %s to %s: %v", e.Literal, e.Target, e.Err)
	}
	return fmt.Sprintf("cannot convert %s to %s", e.Literal, e.Target)
}

func (e *NumberFormatError) Unwrap() error { return e.Err }
