package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldSpec describes one attribute the extractor should pull out of a
// scrap blob.
type FieldSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Example     string `yaml:"example,omitempty"`
}

// Schema is the set of fields an extraction run targets.
type Schema struct {
	Fields []FieldSpec `yaml:"fields"`
}

// DefaultSchema returns the built-in lead field schema used when no schema
// file is configured.
func DefaultSchema() *Schema {
	return &Schema{Fields: []FieldSpec{
		{Name: "first_name", Description: "Contact person's first name"},
		{Name: "last_name", Description: "Contact person's last name"},
		{Name: "property_name", Description: "Name of the glamping or camping property", Example: "Camp Mazury Resort"},
		{Name: "city", Description: "City or town where the property is located"},
		{Name: "country", Description: "ISO 3166-1 alpha-2 country code", Example: "PL"},
		{Name: "phone", Description: "Contact phone number, digits as found"},
	}}
}

// LoadSchema reads a field schema from a YAML file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read schema %s", path)
	}
	return ParseSchema(data)
}

// ParseSchema decodes a YAML field schema and validates it.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "extract: parse schema")
	}
	if len(s.Fields) == 0 {
		return nil, eris.New("extract: schema has no fields")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return nil, eris.New("extract: schema field with empty name")
		}
		if seen[f.Name] {
			return nil, eris.Errorf("extract: duplicate schema field %q", f.Name)
		}
		seen[f.Name] = true
	}
	return &s, nil
}

// Prompt renders the schema into the extraction system prompt.
func (s *Schema) Prompt() string {
	var b strings.Builder
	b.WriteString("You extract structured lead attributes from raw scraped text.\n")
	b.WriteString("Return a single JSON object with exactly these keys, using an empty string for anything the text does not contain:\n\n")
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "- %s: %s", f.Name, f.Description)
		if f.Example != "" {
			fmt.Fprintf(&b, " (e.g. %q)", f.Example)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nNever invent values. Respond with the JSON object only, no prose and no code fences.")
	return b.String()
}
