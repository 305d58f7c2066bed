package safety

import (
	"encoding/json"
	"fmt"
	"os"
)

// Resource is a single crisis contact line supplied by the external
// content-management collaborator.
type Resource struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// ResourceDirectory maps a crisis category to its contact resources.
type ResourceDirectory struct {
	byCategory map[Category][]Resource
}

// NewResourceDirectory returns the built-in directory. The defaults are
// US-centric (988/911 style); deployments override them from file.
func NewResourceDirectory() *ResourceDirectory {
	return &ResourceDirectory{byCategory: map[Category][]Resource{
		CategorySuicide: {
			{Name: "988 Suicide & Crisis Lifeline", Contact: "call or text 988"},
			{Name: "Crisis Text Line", Contact: "text HOME to 741741"},
		},
		CategorySelfHarm: {
			{Name: "988 Suicide & Crisis Lifeline", Contact: "call or text 988"},
			{Name: "Crisis Text Line", Contact: "text HOME to 741741"},
		},
		CategoryAbuse: {
			{Name: "National Domestic Violence Hotline", Contact: "call 1-800-799-7233"},
			{Name: "Childhelp Hotline", Contact: "call 1-800-422-4453"},
		},
		CategoryMedical: {
			{Name: "Emergency Services", Contact: "call 911"},
			{Name: "Poison Control", Contact: "call 1-800-222-1222"},
		},
	}}
}

// LoadResourceDirectory reads a category → resources mapping from a JSON
// file, replacing the built-in defaults for the categories it names.
func LoadResourceDirectory(path string) (*ResourceDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource directory: %w", err)
	}

	var raw map[string][]Resource
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse resource directory: %w", err)
	}

	dir := NewResourceDirectory()
	for name, resources := range raw {
		category := categoryByName(name)
		if category == CategoryNone {
			return nil, fmt.Errorf("unknown crisis category %q in resource directory", name)
		}
		if len(resources) == 0 {
			return nil, fmt.Errorf("crisis category %q has no resources", name)
		}
		dir.byCategory[category] = resources
	}
	return dir, nil
}

// Lookup returns the resources for a category. Every crisis category is
// guaranteed at least one resource; an unknown category falls back to the
// suicide lifeline set, the safest default.
func (rd *ResourceDirectory) Lookup(category Category) []Resource {
	if resources, ok := rd.byCategory[category]; ok && len(resources) > 0 {
		return resources
	}
	return rd.byCategory[CategorySuicide]
}

func categoryByName(name string) Category {
	switch name {
	case "suicide":
		return CategorySuicide
	case "self-harm":
		return CategorySelfHarm
	case "abuse":
		return CategoryAbuse
	case "medical":
		return CategoryMedical
	default:
		return CategoryNone
	}
}
