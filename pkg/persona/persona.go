// Package persona holds the character table and the active system prompt.
//
// The table is read once from a TOML file where each top-level table is a
// persona:
//
//	[marui]
//	reference_id = "marui"
//	prompt_path  = "prompts/marui.txt"
//
// Relative prompt paths are resolved against the directory of the table file.
package persona

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	toml "github.com/pelletier/go-toml/v2"
)

var (
	// ErrUnknownPersona is returned when a name is not in the table.
	ErrUnknownPersona = errors.New("persona: unknown persona")

	// ErrEmptyTable is returned when the file defines no persona.
	ErrEmptyTable = errors.New("persona: no personas defined")
)

// Persona is one character. Values are read-only after load.
type Persona struct {
	Name        string `mapstructure:"-"`
	ReferenceID string `mapstructure:"reference_id"`
	PromptPath  string `mapstructure:"prompt_path"`
}

// Voice returns the synthesis reference id, falling back to the name.
func (p Persona) Voice() string {
	if p.ReferenceID != "" {
		return p.ReferenceID
	}
	return p.Name
}

// Table is an immutable set of personas keyed by name.
type Table struct {
	personas map[string]Persona
	names    []string
}

// Load reads a persona table from a TOML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes a persona table. baseDir resolves relative prompt paths.
func Parse(data []byte, baseDir string) (*Table, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("persona: parse table: %w", err)
	}

	t := &Table{personas: make(map[string]Persona, len(raw))}
	for name, v := range raw {
		settings, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("persona: %q is not a table", name)
		}

		var p Persona
		if err := decode(settings, &p); err != nil {
			return nil, fmt.Errorf("persona: %q: %w", name, err)
		}
		p.Name = name
		if p.PromptPath == "" {
			return nil, fmt.Errorf("persona: %q: prompt_path is required", name)
		}
		if baseDir != "" && !filepath.IsAbs(p.PromptPath) {
			p.PromptPath = filepath.Join(baseDir, p.PromptPath)
		}

		t.personas[name] = p
		t.names = append(t.names, name)
	}

	if len(t.personas) == 0 {
		return nil, ErrEmptyTable
	}
	sort.Strings(t.names)
	return t, nil
}

// Lookup returns the persona with the given name.
func (t *Table) Lookup(name string) (Persona, error) {
	p, ok := t.personas[name]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, name)
	}
	return p, nil
}

// Names returns the persona names in sorted order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// decode maps loosely typed settings onto out. Keys match regardless of
// case, hyphens and underscores.
func decode(input map[string]any, out any) error {
	cfg := &mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	return strings.ReplaceAll(k, "-", "")
}
