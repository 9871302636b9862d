package compiler

import (
	"strings"

	"github.com/phantien133/active-aggregate/internal/model"
	"github.com/phantien133/active-aggregate/internal/scope"
)

// Spec is one declarative registry.
type Spec struct {
	Registry   string      `yaml:"registry" json:"registry"`
	Model      string      `yaml:"model,omitempty" json:"model,omitempty"`
	Collection string      `yaml:"collection,omitempty" json:"collection,omitempty"`
	Suffix     string      `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	Cache      bool        `yaml:"cache,omitempty" json:"cache,omitempty"`
	Scopes     []ScopeSpec `yaml:"scopes" json:"scopes"`

	// Source is the file the spec was loaded from.
	Source string `yaml:"-" json:"-"`
}

// ScopeSpec declares one named scope.
type ScopeSpec struct {
	Name string `yaml:"name" json:"name"`
	// Arity is the number of arguments the scope requires. Zero means the
	// highest placeholder index used in the scope.
	Arity    int              `yaml:"arity,omitempty" json:"arity,omitempty"`
	Match    map[string]any   `yaml:"match,omitempty" json:"match,omitempty"`
	Group    map[string]any   `yaml:"group,omitempty" json:"group,omitempty"`
	Project  map[string]any   `yaml:"project,omitempty" json:"project,omitempty"`
	Sort     []string         `yaml:"sort,omitempty" json:"sort,omitempty"`
	Limit    any              `yaml:"limit,omitempty" json:"limit,omitempty"`
	Pipeline []map[string]any `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`
	Uses     []Use            `yaml:"uses,omitempty" json:"uses,omitempty"`
}

// Use references a sibling scope and the arguments to call it with.
type Use struct {
	Name string `yaml:"name" json:"name"`
	Args []any  `yaml:"args,omitempty" json:"args,omitempty"`
}

// suffix returns the registry suffix, defaulting to scope.DefaultSuffix.
func (s *Spec) suffix() string {
	if s.Suffix != "" {
		return s.Suffix
	}
	return scope.DefaultSuffix
}

// ModelName is the explicit model, or the registry name without its suffix.
func (s *Spec) ModelName() string {
	if s.Model != "" {
		return s.Model
	}
	return strings.TrimSuffix(s.Registry, s.suffix())
}

// CollectionName is the explicit collection, or the model's conventional
// collection name.
func (s *Spec) CollectionName() string {
	if s.Collection != "" {
		return s.Collection
	}
	return model.CollectionName(s.ModelName())
}

// ScopeNames returns scope names in declaration order.
func (s *Spec) ScopeNames() []string {
	out := make([]string, len(s.Scopes))
	for i, sc := range s.Scopes {
		out[i] = sc.Name
	}
	return out
}

// Lookup finds a scope by name.
func (s *Spec) Lookup(name string) (*ScopeSpec, bool) {
	for i := range s.Scopes {
		if s.Scopes[i].Name == name {
			return &s.Scopes[i], true
		}
	}
	return nil, false
}
