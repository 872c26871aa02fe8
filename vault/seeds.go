package vault

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/tluyben/dun/types"
)

//go:embed seeds.yaml
var defaultSeeds []byte

type Seed struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	URI      string `yaml:"uri"`
}

// SeedFile holds the entries `dun vault populate` creates. Social entries
// are only created with --social.
type SeedFile struct {
	Entries []Seed `yaml:"entries"`
	Social  []Seed `yaml:"social"`
}

// LoadSeeds reads seeds from path, or the built-in list when path is
// empty. ${VAR} and ${VAR:-default} in values are expanded from the
// environment.
func LoadSeeds(path string) (*SeedFile, error) {
	data := defaultSeeds
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("error reading seeds file: %w", err)
		}
	}
	return ParseSeeds(data, os.LookupEnv)
}

func ParseSeeds(data []byte, lookup func(string) (string, bool)) (*SeedFile, error) {
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("error parsing seeds: %w", err)
	}
	for _, group := range [][]Seed{sf.Entries, sf.Social} {
		for i := range group {
			s := &group[i]
			if s.Name == "" {
				return nil, fmt.Errorf("seed %d has no name", i+1)
			}
			s.Username = ExpandVars(s.Username, lookup)
			s.Password = ExpandVars(s.Password, lookup)
			s.URI = ExpandVars(s.URI, lookup)
		}
	}
	return &sf, nil
}

// ExpandVars replaces ${VAR} and ${VAR:-default}. An unset or empty
// variable takes the default.
func ExpandVars(s string, lookup func(string) (string, bool)) string {
	return os.Expand(s, func(ref string) string {
		name, def, _ := strings.Cut(ref, ":-")
		if v, ok := lookup(name); ok && v != "" {
			return v
		}
		return def
	})
}

// VaultEntries converts seeds into vault items.
func VaultEntries(seeds []Seed) []types.VaultEntry {
	entries := make([]types.VaultEntry, 0, len(seeds))
	for _, s := range seeds {
		entries = append(entries, types.VaultEntry{
			Name:     s.Name,
			Username: s.Username,
			Password: s.Password,
			URI:      s.URI,
		})
	}
	return entries
}

// Names lists the seed names in order.
func Names(seeds []Seed) []string {
	names := make([]string, 0, len(seeds))
	for _, s := range seeds {
		names = append(names, s.Name)
	}
	return names
}
