package convert

// ToStrings converts a single string or a list of strings to []string.
// Returns (slice, true) on success, (nil, false) on failure.
//
// Document formats often allow either form for multi-valued fields, so a
// decoder that produced a string, []string or []any can be normalized in
// one call. nil converts to an empty result.
//
// Example:
//
//	s, ok := ToStrings("en")                   // Returns (["en"], true)
//	s, ok := ToStrings([]any{"en", "de"})      // Returns (["en", "de"], true)
//	s, ok := ToStrings([]any{"en", 1})         // Returns (nil, false)
func ToStrings(v any) ([]string, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case string:
		return []string{val}, true
	case []string:
		return val, true
	case []any:
		result := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			result[i] = s
		}
		return result, true
	}
	return nil, false
}
