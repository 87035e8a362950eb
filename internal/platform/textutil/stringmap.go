// Package textutil holds small text helpers shared by the catalog layer.
package textutil

import "strings"

// NormalizeStringMap trims whitespace from keys and values and drops
// entries whose key becomes empty. Returns nil when nothing survives.
func NormalizeStringMap(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
