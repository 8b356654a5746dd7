package links

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// AlertsTable is the one non-form from-table a definition may reference.
const AlertsTable = "alerts"

// Definition declares how rows of two tables are joined and reconciled over
// time. Loaded once per linking pass and read-only during it.
type Definition struct {
	ID            string    `yaml:"id" json:"id"`
	Name          string    `yaml:"name" json:"name"`
	FromTable     string    `yaml:"from_table" json:"from_table"`
	FromColumn    string    `yaml:"from_column" json:"from_column"`
	FromCondition string    `yaml:"from_condition" json:"from_condition"`
	FromDate      string    `yaml:"from_date" json:"from_date"`
	ToTable       string    `yaml:"to_table" json:"to_table"`
	ToColumn      string    `yaml:"to_column" json:"to_column"`
	ToCondition   string    `yaml:"to_condition" json:"to_condition"`
	ToDate        string    `yaml:"to_date" json:"to_date"`
	CompareLower  bool      `yaml:"compare_lower" json:"compare_lower"`
	Which         string    `yaml:"which" json:"which"`
	Data          DataSpec  `yaml:"data" json:"data"`
}

// Filter is a parsed column:value condition on one side of a definition.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter rejects anything but the column:value syntax. A bad filter is
// a configuration defect and fails the whole pass.
func ParseFilter(spec string) (*Filter, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return nil, nil
	}
	column, value, found := strings.Cut(trimmed, ":")
	if !found || column == "" {
		return nil, fmt.Errorf("unsupported link condition %q", spec)
	}
	return &Filter{Column: column, Value: value}, nil
}

// Validate checks the parts of a definition that would otherwise only fail
// mid-pass.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("link definition %q has no id", d.Name)
	}
	if d.Which != "last" {
		return fmt.Errorf("link definition %q: unsupported tie-break policy %q", d.ID, d.Which)
	}
	if _, err := ParseFilter(d.FromCondition); err != nil {
		return fmt.Errorf("link definition %q: %w", d.ID, err)
	}
	if _, err := ParseFilter(d.ToCondition); err != nil {
		return fmt.Errorf("link definition %q: %w", d.ID, err)
	}
	return nil
}

// DataSpec declares how a matched to-row is translated into the link's data
// payload. Field and candidate order is meaningful, so both are slices.
type DataSpec []FieldSpec

type FieldSpec struct {
	Field      string      `yaml:"field" json:"field"`
	Candidates []Candidate `yaml:"candidates" json:"candidates"`
}

// Candidate is one possible value of an output field. Column may name one or
// several source columns; Condition may be a scalar or a list.
type Candidate struct {
	Name      string       `yaml:"name" json:"name"`
	Column    StringOrList `yaml:"column" json:"column"`
	Condition StringOrList `yaml:"condition" json:"condition"`
}

// StringOrList accepts either a YAML scalar or a sequence of scalars and
// remembers which form was used, since the translator treats them
// differently.
type StringOrList struct {
	IsList bool
	Values []string
}

func (s *StringOrList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		s.IsList = false
		s.Values = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		s.IsList = true
		s.Values = make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			s.Values = append(s.Values, item.Value)
		}
		return nil
	default:
		return fmt.Errorf("expected scalar or sequence, got yaml kind %d", node.Kind)
	}
}

func (s StringOrList) MarshalYAML() (interface{}, error) {
	if s.IsList {
		return s.Values, nil
	}
	if len(s.Values) == 0 {
		return "", nil
	}
	return s.Values[0], nil
}

// Scalar returns the single value of a non-list spec.
func (s StringOrList) Scalar() string {
	if len(s.Values) == 0 {
		return ""
	}
	return s.Values[0]
}

// LinksFile is the YAML document holding all link definitions.
type LinksFile struct {
	Links []Definition `yaml:"links"`
}

// ParseLinksFile decodes and validates a links document.
func ParseLinksFile(content []byte) ([]Definition, error) {
	var file LinksFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse links file: %w", err)
	}
	for _, def := range file.Links {
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Links, nil
}
