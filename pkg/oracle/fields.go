package oracle

// FieldMap is a loosely typed field set decoded from an oracle proposal.
// Accessors tolerate missing keys and wrong types; JSON numbers arrive as
// float64.
type FieldMap map[string]any

// String returns the named field as a string, or "" when absent.
func (m FieldMap) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// StringOr returns the named field as a string, or fallback when absent or
// empty.
func (m FieldMap) StringOr(key, fallback string) string {
	if s := m.String(key); s != "" {
		return s
	}
	return fallback
}

// Int returns the named field as an int.
func (m FieldMap) Int(key string, fallback int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

// Float returns the named field as a float64.
func (m FieldMap) Float(key string, fallback float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// StringSlice returns the named field as a slice of strings, dropping
// non-string elements.
func (m FieldMap) StringSlice(key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// IntMap returns the named field as a map of ints, dropping non-numeric
// values.
func (m FieldMap) IntMap(key string) map[string]int {
	raw, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		switch n := v.(type) {
		case int:
			out[k] = n
		case float64:
			out[k] = int(n)
		}
	}
	return out
}

// Map returns a nested object field.
func (m FieldMap) Map(key string) FieldMap {
	if v, ok := m[key].(map[string]any); ok {
		return FieldMap(v)
	}
	return nil
}
