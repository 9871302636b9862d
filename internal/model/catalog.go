package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Catalog is a registry of models used for naming resolution.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewCatalog returns a catalog holding models.
func NewCatalog(models ...*Model) *Catalog {
	c := &Catalog{models: make(map[string]*Model, len(models))}
	for _, m := range models {
		c.Register(m)
	}
	return c
}

// Register adds or replaces m under its name.
func (c *Catalog) Register(m *Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[m.Name()] = m
}

// Names returns the registered model names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.models))
	for n := range c.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a model by exact name.
func (c *Catalog) Lookup(name string) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[name]
	return m, ok
}

// Resolve derives a model name from typeName by stripping suffix, then looks
// it up: exact match first, then case-insensitive, then by collection name
// (snake_case plural, "OrderLine" → "order_lines").
func (c *Catalog) Resolve(typeName, suffix string) (*Model, error) {
	base := strings.TrimSuffix(typeName, suffix)
	if base == "" {
		return nil, fmt.Errorf("cannot derive a model name from %q with suffix %q", typeName, suffix)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.models[base]; ok {
		return m, nil
	}
	for _, name := range c.sortedNamesLocked() {
		if strings.EqualFold(name, base) {
			return c.models[name], nil
		}
	}
	collName := CollectionName(base)
	for _, name := range c.sortedNamesLocked() {
		m := c.models[name]
		if m.Collection() != nil && m.Collection().Name() == collName {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no model named %q (from %q)", base, typeName)
}

func (c *Catalog) sortedNamesLocked() []string {
	names := make([]string, 0, len(c.models))
	for n := range c.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CollectionName converts a model name to its conventional collection name.
func CollectionName(model string) string {
	var b strings.Builder
	runes := []rune(model)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return pluralize(b.String())
}

func pluralize(s string) string {
	switch {
	case s == "":
		return s
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}
