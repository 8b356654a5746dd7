package codes

import (
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
)

// MatchResult is the outcome of evaluating one row against a form's rule
// groups. AlertRule carries the alert-flagged rule that matched, if any; by
// construction at most one survives per row.
type MatchResult struct {
	Variables map[string]interface{}
	AlertRule *RuleDefinition
}

// Match evaluates the rule groups for a form against a raw row. For each
// group the shared guard is checked once; if it passes, the group's source
// column is read and rules are tested in catalog order until one matches.
// The rest of the group is then skipped: rules in a group are mutually
// exclusive.
func (c *Catalog) Match(form string, row models.Row) MatchResult {
	result := MatchResult{Variables: make(map[string]interface{})}
	if !c.HasForm(form) {
		return result
	}

	for _, group := range c.Groups(form) {
		rules := c.Rules(form, group)
		// All rules in a group share the same guard, so test the representative.
		if !rules[0].Guard.Eval(row) {
			continue
		}
		value, present := row.GetString(rules[0].Column)
		for _, rule := range rules {
			outcome := rule.Test.Eval(row, value, present)
			if outcome == nil {
				continue
			}
			result.Variables[rule.ID] = outcome
			if rule.Alert {
				result.AlertRule = rule
			}
			break
		}
	}
	return result
}
