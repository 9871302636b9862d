package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes every YAML document in data as a Spec. Unknown fields
// are rejected.
func ParseYAML(data []byte, source string) ([]*Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var specs []*Spec
	for {
		var spec Spec
		err := dec.Decode(&spec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		spec.Source = source
		specs = append(specs, &spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%s: no spec documents", source)
	}
	return specs, nil
}
