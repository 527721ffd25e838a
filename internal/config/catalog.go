package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Industry describes one entry of the industries catalog. The description
// feeds the translator's domain framing.
type Industry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Catalog holds the non-secret static catalogs: the industries map and the
// language display names offered during registration.
type Catalog struct {
	Industries map[string]Industry `yaml:"industries"`
	Languages  []string            `yaml:"languages"`
}

// LoadCatalog reads and parses the YAML catalog file.
func LoadCatalog(path string) (Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("op=config.LoadCatalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("op=config.LoadCatalog: %w", err)
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"English"}
	}
	return c, nil
}

// IndustryName resolves an industry key to its display name, falling back
// to the key itself for unknown entries.
func (c Catalog) IndustryName(key string) string {
	if ind, ok := c.Industries[key]; ok && ind.Name != "" {
		return ind.Name
	}
	return key
}

// IndustryDescription resolves an industry key to the description used for
// translator domain framing, falling back to the key itself.
func (c Catalog) IndustryDescription(key string) string {
	if ind, ok := c.Industries[key]; ok && ind.Description != "" {
		return ind.Description
	}
	return key
}

// IndustryKeys returns the catalog keys in sorted order, for stable
// registration prompts.
func (c Catalog) IndustryKeys() []string {
	keys := make([]string, 0, len(c.Industries))
	for k := range c.Industries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasIndustry reports whether key names a catalog entry.
func (c Catalog) HasIndustry(key string) bool {
	_, ok := c.Industries[key]
	return ok
}

// HasLanguage reports whether lang is one of the offered display names.
func (c Catalog) HasLanguage(lang string) bool {
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}
