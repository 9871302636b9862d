package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phantien133/active-aggregate/internal/compiler"
	"github.com/phantien133/active-aggregate/internal/model"
	"github.com/phantien133/active-aggregate/internal/scope"
)

// workspace holds the registries built from one spec path.
type workspace struct {
	specs      []*compiler.Spec
	registries map[string]*scope.Registry
}

// collectionFunc supplies the collection backing spec's model.
type collectionFunc func(spec *compiler.Spec) (model.Collection, error)

// loadSpecs loads specs from path, applying the configured default suffix.
func loadSpecs(path, suffix string) ([]*compiler.Spec, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	specs, err := compiler.LoadSpecs(path)
	if err != nil {
		return nil, err
	}
	for _, s := range specs {
		if s.Suffix == "" {
			s.Suffix = suffix
		}
	}
	return specs, nil
}

// buildWorkspace binds every spec to the collection from collections and
// builds its registry.
func buildWorkspace(specs []*compiler.Spec, collections collectionFunc) (*workspace, error) {
	catalog := model.NewCatalog()
	for _, spec := range specs {
		coll, err := collections(spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Registry, err)
		}
		catalog.Register(model.New(spec.ModelName(), coll))
	}

	ws := &workspace{specs: specs, registries: make(map[string]*scope.Registry, len(specs))}
	for _, spec := range specs {
		reg, err := compiler.Build(spec, catalog)
		if err != nil {
			return nil, err
		}
		ws.registries[spec.Registry] = reg
	}
	return ws, nil
}

// registry selects a registry by name. The name may be omitted when the
// workspace holds exactly one.
func (w *workspace) registry(name string) (*scope.Registry, error) {
	if name == "" {
		if len(w.registries) != 1 {
			return nil, fmt.Errorf("specs define %d registries; choose one with --registry (%s)", len(w.registries), strings.Join(w.names(), ", "))
		}
		for _, reg := range w.registries {
			return reg, nil
		}
	}
	reg, ok := w.registries[name]
	if !ok {
		return nil, fmt.Errorf("registry %q not found (have %s)", name, strings.Join(w.names(), ", "))
	}
	return reg, nil
}

func (w *workspace) names() []string {
	names := make([]string, 0, len(w.registries))
	for n := range w.registries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// scopeCall is a scope name with its arguments, parsed from "name" or
// "name:arg1,arg2". Arguments are YAML scalars, so 5 is a number and
// "open" a string.
type scopeCall struct {
	Name string `json:"name"`
	Args []any  `json:"args,omitempty"`
}

func parseScopeCall(s string) (scopeCall, error) {
	name, rawArgs, hasArgs := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return scopeCall{}, fmt.Errorf("scope %q: name is empty", s)
	}
	call := scopeCall{Name: name}
	if !hasArgs {
		return call, nil
	}
	for _, raw := range strings.Split(rawArgs, ",") {
		v, err := parseArg(strings.TrimSpace(raw))
		if err != nil {
			return scopeCall{}, fmt.Errorf("scope %q: %w", s, err)
		}
		call.Args = append(call.Args, v)
	}
	return call, nil
}

func parseArg(raw string) (any, error) {
	if raw == "" {
		return "", nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("argument %q: %w", raw, err)
	}
	return v, nil
}

func (c scopeCall) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = fmt.Sprint(a)
	}
	return c.Name + ":" + strings.Join(parts, ",")
}
