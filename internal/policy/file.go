package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FilePolicies is the YAML overlay document: an optional default policy and
// per-tool entries that override the TOML-declared ones.
type FilePolicies struct {
	Default *ToolPolicy           `yaml:"default"`
	Tools   map[string]ToolPolicy `yaml:"tools"`
}

// LoadFile reads a YAML policy overlay from path.
func LoadFile(path string) (FilePolicies, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FilePolicies{}, err
	}
	var doc FilePolicies
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return FilePolicies{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}
