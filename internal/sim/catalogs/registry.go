package catalogs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MapEntry is one row of the maps registry: which maps exist and
// where their data directories live.
type MapEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Dir  string `yaml:"dir"`
	Seed int64  `yaml:"seed"`
}

type registryFile struct {
	Maps []MapEntry `yaml:"maps"`
}

// LoadRegistry reads maps.yaml. Entries must have unique non-empty ids
// and a data directory.
func LoadRegistry(path string) ([]MapEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{File: path, Msg: err.Error()}
	}
	var reg registryFile
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return nil, &ConfigError{File: path, Msg: err.Error()}
	}
	if len(reg.Maps) == 0 {
		return nil, &ConfigError{File: path, Field: "maps", Msg: "registry is empty"}
	}
	seen := map[string]struct{}{}
	for i, m := range reg.Maps {
		if m.ID == "" {
			return nil, &ConfigError{File: path, Field: fmt.Sprintf("maps[%d]", i), Msg: "missing id"}
		}
		if m.Dir == "" {
			return nil, &ConfigError{File: path, Field: m.ID, Msg: "missing dir"}
		}
		if _, dup := seen[m.ID]; dup {
			return nil, &ConfigError{File: path, Field: m.ID, Msg: "duplicate map id"}
		}
		seen[m.ID] = struct{}{}
	}
	return reg.Maps, nil
}
