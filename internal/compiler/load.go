package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadSpecs loads specs from a file or a directory. Directories are walked
// for .yaml and .yml files; .cue files in the directory itself are loaded as
// one CUE instance whose "aggregate" struct holds the specs. Specs are
// returned sorted by registry name.
func LoadSpecs(path string) ([]*Spec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("specs path: %w", err)
	}

	var specs []*Spec
	if !info.IsDir() {
		specs, err = loadFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		specs, err = loadDir(path)
		if err != nil {
			return nil, err
		}
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no specs found in %s", path)
	}

	byName := make(map[string]*Spec, len(specs))
	for _, s := range specs {
		if prev, ok := byName[s.Registry]; ok && s.Registry != "" {
			return nil, fmt.Errorf("duplicate registry %q in %s and %s", s.Registry, prev.Source, s.Source)
		}
		byName[s.Registry] = s
	}
	sort.SliceStable(specs, func(i, j int) bool { return specs[i].Registry < specs[j].Registry })
	return specs, nil
}

func loadFile(path string) ([]*Spec, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return ParseYAML(data, path)
	case ".cue":
		return loadCUE(filepath.Dir(path), []string{filepath.Base(path)})
	default:
		return nil, fmt.Errorf("%s: unsupported spec file type", path)
	}
}

func loadDir(dir string) ([]*Spec, error) {
	var (
		specs    []*Spec
		cueFiles []string
	)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			parsed, err := ParseYAML(data, path)
			if err != nil {
				return err
			}
			specs = append(specs, parsed...)
		case ".cue":
			if filepath.Dir(path) == filepath.Clean(dir) {
				cueFiles = append(cueFiles, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(cueFiles) > 0 {
		parsed, err := loadCUE(dir, []string{"."})
		if err != nil {
			return nil, err
		}
		specs = append(specs, parsed...)
	}
	return specs, nil
}

// loadCUE builds the CUE instance for args in dir and compiles every field
// of its "aggregate" struct.
func loadCUE(dir string, args []string) ([]*Spec, error) {
	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("%s: no CUE instances loaded", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	aggVal := value.LookupPath(cue.ParsePath("aggregate"))
	if !aggVal.Exists() {
		return nil, nil
	}
	iter, err := aggVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []*Spec
	for iter.Next() {
		spec, err := CompileSpec(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
