package codes

import (
	"fmt"
	"sort"
)

// VariableRow is one row of the codes catalog as it arrives from storage or
// the codes file.
type VariableRow struct {
	ID                 string
	Name               string
	Form               string
	CalculationGroup   string
	Column             string
	SecondaryCondition string
	TestType           string
	Condition          string
	Alert              bool
}

// RuleDefinition is an immutable compiled rule. Rules sharing a Group are
// mutually exclusive: at most one of them matches a given row.
type RuleDefinition struct {
	ID     string
	Name   string
	Form   string
	Group  string
	Column string
	Alert  bool
	Guard  Guard
	Test   Test
}

// Catalog indexes compiled rules by form and calculation group. Group order
// and within-group rule order are fixed at load time so evaluation is
// deterministic.
type Catalog struct {
	groups     map[string]map[string][]*RuleDefinition
	groupOrder map[string][]string
}

// LoadCatalog compiles the variable rows. Ungrouped rules become singleton
// groups keyed by their own id. Duplicate ids, malformed conditions and
// guard disagreements within a group all abort the load.
func LoadCatalog(rows []VariableRow) (*Catalog, error) {
	catalog := &Catalog{
		groups:     make(map[string]map[string][]*RuleDefinition),
		groupOrder: make(map[string][]string),
	}

	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.ID == "" {
			return nil, fmt.Errorf("variable row for form %q has no id", row.Form)
		}
		if _, dup := seen[row.ID]; dup {
			return nil, fmt.Errorf("duplicate variable id %q", row.ID)
		}
		seen[row.ID] = struct{}{}

		guard, err := ParseGuard(row.SecondaryCondition)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", row.ID, err)
		}
		test, err := ParseTest(row.TestType, row.Condition)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", row.ID, err)
		}

		group := row.CalculationGroup
		if group == "" {
			group = row.ID
		}

		rule := &RuleDefinition{
			ID:     row.ID,
			Name:   row.Name,
			Form:   row.Form,
			Group:  group,
			Column: row.Column,
			Alert:  row.Alert,
			Guard:  guard,
			Test:   test,
		}

		if catalog.groups[row.Form] == nil {
			catalog.groups[row.Form] = make(map[string][]*RuleDefinition)
		}
		if _, exists := catalog.groups[row.Form][group]; !exists {
			catalog.groupOrder[row.Form] = append(catalog.groupOrder[row.Form], group)
		}
		catalog.groups[row.Form][group] = append(catalog.groups[row.Form][group], rule)
	}

	for form, groups := range catalog.groups {
		for group, rules := range groups {
			representative := rules[0]
			for _, rule := range rules[1:] {
				if rule.Guard.Spec() != representative.Guard.Spec() {
					return nil, fmt.Errorf(
						"group %q in form %q mixes secondary conditions %q and %q",
						group, form, representative.Guard.Spec(), rule.Guard.Spec())
				}
			}
		}
		sort.Strings(catalog.groupOrder[form])
	}

	return catalog, nil
}

// Groups returns the ordered group keys for a form.
func (c *Catalog) Groups(form string) []string {
	return c.groupOrder[form]
}

// Rules returns the rules of one group in catalog insertion order.
func (c *Catalog) Rules(form, group string) []*RuleDefinition {
	return c.groups[form][group]
}

// HasForm reports whether any rules are registered for the form.
func (c *Catalog) HasForm(form string) bool {
	_, ok := c.groups[form]
	return ok
}

// Rule finds a rule by id, used when dispatching alert notifications.
func (c *Catalog) Rule(id string) (*RuleDefinition, bool) {
	for _, groups := range c.groups {
		for _, rules := range groups {
			for _, rule := range rules {
				if rule.ID == id {
					return rule, true
				}
			}
		}
	}
	return nil, false
}
