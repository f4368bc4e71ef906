package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls the first JSON object out of a completion. Providers are
// told to answer with JSON only, but models wrap objects in prose or code
// fences often enough that the tolerant scan stays.
func extractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return raw[start : end+1], nil
}

// decodeJSON extracts and unmarshals a completion into the target decision
// type. All failures wrap ErrOracleMalformed.
func decodeJSON(raw string, v any) error {
	blob, err := extractJSON(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleMalformed, err)
	}
	if err := json.Unmarshal([]byte(blob), v); err != nil {
		return fmt.Errorf("%w: %v", ErrOracleMalformed, err)
	}
	return nil
}
