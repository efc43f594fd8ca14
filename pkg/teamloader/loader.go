// Package teamloader loads team definitions from YAML files.
package teamloader

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teamwire/teamwire/pkg/team"
)

// Load reads and validates a single team definition file.
func Load(path string) (*team.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read team definition %s: %w", path, err)
	}

	var def team.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse team definition %s: %w", path, err)
	}

	if def.ID == "" {
		// A file-local definition can omit its id; derive it from the
		// filename.
		def.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if def.Name == "" {
		def.Name = def.ID
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid team definition %s: %w", path, err)
	}

	return &def, nil
}

// LoadDir loads every .yaml/.yml team definition in a directory, keyed
// by definition id.
func LoadDir(dir string) (map[string]*team.Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read team directory %s: %w", dir, err)
	}

	defs := make(map[string]*team.Definition)
	for _, entry := range entries {
		if entry.IsDir() || !slices.Contains([]string{".yaml", ".yml"}, filepath.Ext(entry.Name())) {
			continue
		}

		def, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, ok := defs[def.ID]; ok {
			return nil, fmt.Errorf("duplicate team id %q in %s", def.ID, dir)
		}
		defs[def.ID] = def
	}

	return defs, nil
}
