package settings

import (
	"strconv"
	"strings"
)

// Tree returns the resolved keys under prefix as nested maps split on dots,
// with the prefix itself removed. Scalars are coerced to bool, int64 or
// float64 when the text parses as one, so rule expressions can compare them.
// A key that is also a parent of other keys keeps its children; its own value
// is dropped.
func (d *Dictionary) Tree(prefix string) map[string]any {
	return buildTree(d.Snapshot(true), prefix, coerceScalar)
}

// RawTree is Tree without scalar coercion; every leaf is the stored string.
func (d *Dictionary) RawTree(prefix string) map[string]any {
	return buildTree(d.Snapshot(true), prefix, func(s string) any { return s })
}

func buildTree(values map[string]string, prefix string, leaf func(string) any) map[string]any {
	root := map[string]any{}
	normalized := NormalizeKey(prefix)
	for key, value := range values {
		if normalized != "" {
			if !strings.HasPrefix(key, normalized) {
				continue
			}
			key = strings.TrimPrefix(key, normalized)
		}
		segments := strings.Split(strings.Trim(key, "."), ".")
		insertPath(root, segments, leaf(value))
	}
	return root
}

func insertPath(node map[string]any, segments []string, value any) {
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if i == len(segments)-1 {
			if _, isBranch := node[segment].(map[string]any); isBranch {
				return
			}
			node[segment] = value
			return
		}
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[segment] = child
		}
		node = child
	}
}

func coerceScalar(text string) any {
	trimmed := strings.TrimSpace(text)
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return text
}
