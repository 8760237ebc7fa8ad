package settings

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeKey trims surrounding whitespace and case-folds key. Every key and
// prefix is normalized before it touches a dictionary, so two keys that
// differ only in case or padding address the same entry.
func NormalizeKey(key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ""
	}
	return cases.Fold().String(trimmed)
}

// HasKeyPrefix reports whether the normalized key starts with the normalized
// prefix. An empty prefix matches every key.
func HasKeyPrefix(key, prefix string) bool {
	return strings.HasPrefix(NormalizeKey(key), NormalizeKey(prefix))
}

// JoinKey builds a dotted key from segments, skipping blanks.
func JoinKey(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.Trim(strings.TrimSpace(segment), ".")
		if segment == "" {
			continue
		}
		parts = append(parts, segment)
	}
	return NormalizeKey(strings.Join(parts, "."))
}
