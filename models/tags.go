package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// ParseTags decodes the serialized ai_tags column. Tags are stored as a JSON
// array of strings; anything else is a malformed record.
func ParseTags(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	var tags []string
	if err := json.Unmarshal([]byte(trimmed), &tags); err != nil {
		return nil, fmt.Errorf("unparseable ai_tags %q: %w", raw, err)
	}

	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// SpeciesFromTags picks the tag that names the species. By convention the
// species is the first tag; when earlier tags are free-text descriptors, the
// first multi-word or capitalized tag (binomial names are both) wins.
func SpeciesFromTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	for _, t := range tags {
		if strings.ContainsRune(t, ' ') || startsUpper(t) {
			return t
		}
	}
	return tags[0]
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
