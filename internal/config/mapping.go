package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/refgraph/refgraph/internal/category"
	"github.com/refgraph/refgraph/internal/field"
)

// LoadMappings reads a YAML header-mapping override file and overlays
// it onto the built-in mappings. The file maps category names to
// header→role entries:
//
//	papers:
//	  标题: title
//	  作者: author_list
//	keywords:
//	  关键词: keyword_list
//
// Unknown categories and role names are rejected so a typo fails the
// run instead of silently dropping a column.
func LoadMappings(path string) (map[category.Category]field.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}

	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing mapping file %s: %w", path, err)
	}

	out := make(map[category.Category]field.Mapping, len(raw))
	for name, overrides := range raw {
		cat, err := category.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("mapping file %s: %w", path, err)
		}
		m, err := field.DefaultMapping(cat).Merge(overrides)
		if err != nil {
			return nil, fmt.Errorf("mapping file %s, category %s: %w", path, name, err)
		}
		out[cat] = m
	}
	return out, nil
}
