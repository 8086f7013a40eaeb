package content

import (
	"encoding/json"
	"strings"
)

// ParseTags accepts a JSON array or a comma separated list. Entries are trimmed, empty ones
// dropped and duplicates removed, preserving first occurrence order.
func ParseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}

	var parts []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &parts); err != nil {
			parts = nil
		}
	}
	if parts == nil {
		parts = strings.Split(raw, ",")
	}
	return NormalizeTags(parts)
}

// NormalizeTags trims, drops empties and de-duplicates.
func NormalizeTags(parts []string) []string {
	seen := make(map[string]struct{}, len(parts))
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

// ParsePublished reads a form flag. Only "true" and "1" publish; absent means the default.
func ParsePublished(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return def
	case "true", "1":
		return true
	default:
		return false
	}
}
