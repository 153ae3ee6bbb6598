// Package manifest declares extension registrations in YAML and installs them
// into a transformer options bag.
//
// A manifest names callables by catalog key rather than embedding code, so the
// same file can be validated and planned without the extensions being linked
// in:
//
//	version: "1"
//	extensions:
//	  - name: ext-a
//	    wrappers:
//	      - hook: outer_sample
//	        use: cache
//	        when: len(args) > 0
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/goliatone/go-patcher/bag"
	"gopkg.in/yaml.v3"
)

// Version is the only manifest version understood by this package.
const Version = "1"

// Manifest is the decoded form of an extension manifest file.
type Manifest struct {
	Version    string      `yaml:"version"`
	Options    *bag.Bag    `yaml:"options,omitempty"`
	Extensions []Extension `yaml:"extensions"`
}

// Extension groups the registrations of one extension. Its name becomes the
// registry sub-key.
type Extension struct {
	Name      string  `yaml:"name"`
	Callbacks []Entry `yaml:"callbacks,omitempty"`
	Wrappers  []Entry `yaml:"wrappers,omitempty"`
}

// Entry binds a catalog callable to a hook, optionally behind a guard.
type Entry struct {
	Hook     string         `yaml:"hook"`
	Use      string         `yaml:"use"`
	When     string         `yaml:"when,omitempty"`
	Engine   string         `yaml:"engine,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a manifest file, expands environment variables and parses it.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	m, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return m, nil
}

// Parse expands environment variables in data and decodes it. Unknown fields
// are rejected.
func Parse(data []byte) (*Manifest, error) {
	expanded, err := expandEnv(data)
	if err != nil {
		return nil, fmt.Errorf("expanding variables: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(expanded))
	decoder.KnownFields(true)

	var m Manifest
	if err := decoder.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, fmt.Errorf("parsing: %w", err)
	}
	return &m, nil
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns. Variables that are
// neither set nor defaulted are reported together.
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if subs[2] != nil {
			return subs[2]
		}
		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}

// Registrations returns the number of callback and wrapper entries.
func (m *Manifest) Registrations() int {
	if m == nil {
		return 0
	}
	total := 0
	for _, ext := range m.Extensions {
		total += len(ext.Callbacks) + len(ext.Wrappers)
	}
	return total
}
