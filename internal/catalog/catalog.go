// Package catalog loads the list of trackable items from a YAML file.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/idilsaglam/tracker/internal/model"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is the parsed checklist definition.
type Catalog struct {
	Title    string    `yaml:"title"`
	Noun     string    `yaml:"noun"`
	Sections []Section `yaml:"sections"`
}

// Section groups items under a heading.
type Section struct {
	Name  string       `yaml:"name"`
	Items []model.Item `yaml:"items"`
}

// Items flattens the sections in file order, tagging each item with its section.
func (c *Catalog) Items() []model.Item {
	var out []model.Item
	for _, s := range c.Sections {
		for _, it := range s.Items {
			it.Section = s.Name
			out = append(out, it)
		}
	}
	return out
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic("catalog: bad default: " + err.Error())
	}
	return c
}

// Load reads the catalog at path. A missing file yields the built-in catalog
// and fromFile false.
func Load(path string) (c *Catalog, fromFile bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), false, nil
		}
		return nil, false, fmt.Errorf("read catalog: %w", err)
	}
	c, err = Parse(b)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return c, true, nil
}

// Parse decodes and validates catalog YAML.
func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if c.Noun == "" {
		c.Noun = "items"
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]string)
	for _, s := range c.Sections {
		for i, it := range s.Items {
			id := it.ID
			switch {
			case id == "":
				return fmt.Errorf("section %q item %d: empty id", s.Name, i+1)
			case strings.ContainsAny(id, " \t\n"):
				return fmt.Errorf("section %q: id %q contains whitespace", s.Name, id)
			}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("duplicate id %q (sections %q and %q)", id, prev, s.Name)
			}
			seen[id] = s.Name
		}
	}
	return nil
}
