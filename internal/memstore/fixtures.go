package memstore

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/phantien133/active-aggregate/internal/ir"
)

// Fixtures maps collection names to their documents.
//
// YAML form:
//
//	orders:
//	  - {status: paid, total: 40}
//	  - {status: open, total: 12}
type Fixtures map[string][]ir.Doc

// LoadFixtures reads a YAML (or JSON) fixtures file.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes fixtures from YAML. Nested mappings become ir.Doc.
func ParseFixtures(data []byte) (Fixtures, error) {
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	out := make(Fixtures, len(raw))
	for name, docs := range raw {
		converted := make([]ir.Doc, len(docs))
		for i, d := range docs {
			converted[i] = ir.Doc(normalizeYAML(d).(map[string]any))
		}
		out[name] = converted
	}
	return out, nil
}

// Collections builds one Collection per fixture entry, sorted by name.
func (f Fixtures) Collections() []*Collection {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Collection, len(names))
	for i, n := range names {
		out[i] = New(n, f[n]...)
	}
	return out
}

// normalizeYAML converts yaml.v3 decoding results into the shapes the
// evaluator expects: map[string]any and []any all the way down.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeYAML(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = normalizeYAML(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeYAML(elem)
		}
		return out
	default:
		return v
	}
}
