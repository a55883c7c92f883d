package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategoryGeneral is the fallback bucket for prompts no keyword matches.
const CategoryGeneral = "General"

// CategoryRule maps a query category to the keywords that select it.
// Rules are evaluated in order; the first category with a matching keyword wins.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// DefaultCategoryRules is the built-in query classifier used by analytics.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Name: "Recommendation", Keywords: []string{"best", "recommend", "suggest", "top", "which should"}},
		{Name: "Comparison", Keywords: []string{"vs", "versus", "compare", "difference between", "better than"}},
		{Name: "Review", Keywords: []string{"review", "opinion", "experience", "worth it", "rating"}},
		{Name: "Pricing", Keywords: []string{"price", "cost", "cheap", "expensive", "how much"}},
		{Name: "Location", Keywords: []string{"near", "in ", "where", "location", "closest"}},
	}
}

type categoryYAML struct {
	Categories []CategoryRule `yaml:"categories"`
}

// LoadCategoryRules returns the categorizer rules, reading the YAML override
// at path when it is non-empty.
func LoadCategoryRules(path string) ([]CategoryRule, error) {
	if path == "" {
		return DefaultCategoryRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadCategoryRules: %w", err)
	}
	var doc categoryYAML
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("op=config.LoadCategoryRules: parse %s: %w", path, err)
	}
	if len(doc.Categories) == 0 {
		return DefaultCategoryRules(), nil
	}
	return doc.Categories, nil
}
