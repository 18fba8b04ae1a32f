package literal

import "strings"

// normalize returns the canonical lexical form of value for datatype.
// Datatypes without a normalization rule are returned unchanged.
func normalize(value, datatype string) (string, error) {
	switch datatype {
	case XSDBoolean:
		return normalizeBoolean(value)
	case XSDInteger, XSDInt, XSDLong:
		return normalizeInteger(value, datatype)
	case XSDDecimal:
		return normalizeDecimal(value)
	default:
		return value, nil
	}
}

func normalizeBoolean(value string) (string, error) {
	switch strings.TrimSpace(value) {
	case "true", "1":
		return "true", nil
	case "false", "0":
		return "false", nil
	}
	return "", &FormatError{Value: value, Datatype: XSDBoolean, Reason: "expected true, false, 1 or 0"}
}

// splitSign strips whitespace and an optional leading sign.
func splitSign(value string) (negative bool, rest string) {
	v := strings.TrimSpace(value)
	if v == "" {
		return false, v
	}
	switch v[0] {
	case '-':
		return true, v[1:]
	case '+':
		return false, v[1:]
	}
	return false, v
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func normalizeInteger(value, datatype string) (string, error) {
	negative, digits := splitSign(value)
	if digits == "" || !allDigits(digits) {
		return "", &FormatError{Value: value, Datatype: datatype, Reason: "expected an optionally signed sequence of digits"}
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0", nil
	}
	if negative {
		return "-" + digits, nil
	}
	return digits, nil
}

func normalizeDecimal(value string) (string, error) {
	negative, rest := splitSign(value)
	intPart, fracPart, _ := strings.Cut(rest, ".")
	if intPart == "" && fracPart == "" || !allDigits(intPart) || !allDigits(fracPart) {
		return "", &FormatError{Value: value, Datatype: XSDDecimal, Reason: "expected digits with an optional fraction"}
	}
	intPart = strings.TrimLeft(intPart, "0")
	fracPart = strings.TrimRight(fracPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if fracPart == "" {
		fracPart = "0"
	}
	if intPart == "0" && fracPart == "0" {
		return "0.0", nil
	}
	if negative {
		return "-" + intPart + "." + fracPart, nil
	}
	return intPart + "." + fracPart, nil
}
