package properties

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML property file and flattens it into dotted keys.
func LoadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read property file: %w", err)
	}
	props, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse property file %s: %w", path, err)
	}
	return props, nil
}

// Parse flattens a YAML document. Nested mappings become dotted keys with their
// case preserved, scalars are rendered as strings and sequences are joined by
// commas. Dotted keys written inline ("tenant.ids: a,b") are kept as-is.
func Parse(data []byte) (map[string]string, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	out := map[string]string{}
	flatten("", root, out)
	return out, nil
}

func flatten(prefix string, value any, out map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(join(prefix, k), child, out)
		}
	case map[any]any:
		for k, child := range v {
			flatten(join(prefix, fmt.Sprint(k)), child, out)
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, scalar(item))
		}
		out[prefix] = strings.Join(parts, ",")
	default:
		if prefix != "" {
			out[prefix] = scalar(v)
		}
	}
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
