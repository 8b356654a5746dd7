package codes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
)

// Guard gates a whole calculation group before any rule in it is tested.
// The zero value passes everything.
type Guard struct {
	Column string
	Value  string
	always bool
}

// ParseGuard understands an empty spec (always true) or "column:value".
func ParseGuard(spec string) (Guard, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return Guard{always: true}, nil
	}
	column, value, found := strings.Cut(trimmed, ":")
	if !found || column == "" {
		return Guard{}, fmt.Errorf("malformed secondary condition %q", spec)
	}
	return Guard{Column: column, Value: value}, nil
}

func (g Guard) Eval(row models.Row) bool {
	if g.always {
		return true
	}
	return row.String(g.Column) == g.Value
}

// Spec returns the canonical text of the guard, used to check that all rules
// in a group agree.
func (g Guard) Spec() string {
	if g.always {
		return ""
	}
	return g.Column + ":" + g.Value
}

// Test is one rule's predicate over (row, candidate value). Outcome is nil
// when the rule does not apply.
type Test interface {
	Eval(row models.Row, value string, present bool) interface{}
}

// ParseTest builds a predicate from its catalog row. The supported kinds are
// a closed set; anything else aborts the catalog load.
func ParseTest(testType, condition string) (Test, error) {
	switch testType {
	case "match":
		return matchTest{condition: condition}, nil
	case "sub_match":
		return subMatchTest{condition: condition}, nil
	case "in":
		values := splitList(condition)
		if len(values) == 0 {
			return nil, fmt.Errorf("in test has empty condition")
		}
		return inTest{values: values}, nil
	case "between":
		parts := splitList(condition)
		if len(parts) != 2 {
			return nil, fmt.Errorf("between test needs two bounds, got %q", condition)
		}
		low, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("between lower bound %q: %w", parts[0], err)
		}
		high, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("between upper bound %q: %w", parts[1], err)
		}
		return betweenTest{low: low, high: high}, nil
	case "not_null":
		return notNullTest{}, nil
	case "value":
		return valueTest{}, nil
	default:
		return nil, fmt.Errorf("unknown test type %q", testType)
	}
}

// matchTest: the cell equals the condition exactly.
type matchTest struct {
	condition string
}

func (t matchTest) Eval(_ models.Row, value string, present bool) interface{} {
	if present && value == t.condition {
		return 1
	}
	return nil
}

// subMatchTest: the condition is one element of a multi-select cell.
type subMatchTest struct {
	condition string
}

func (t subMatchTest) Eval(_ models.Row, value string, present bool) interface{} {
	if !present {
		return nil
	}
	for _, part := range strings.Split(value, " ") {
		if strings.TrimSpace(part) == t.condition {
			return 1
		}
	}
	return nil
}

// inTest: the cell is one of the listed values.
type inTest struct {
	values []string
}

func (t inTest) Eval(_ models.Row, value string, present bool) interface{} {
	if !present {
		return nil
	}
	for _, candidate := range t.values {
		if value == candidate {
			return 1
		}
	}
	return nil
}

// betweenTest: the cell parses as a number within [low, high].
type betweenTest struct {
	low  float64
	high float64
}

func (t betweenTest) Eval(_ models.Row, value string, present bool) interface{} {
	if !present {
		return nil
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil
	}
	if number >= t.low && number <= t.high {
		return 1
	}
	return nil
}

// notNullTest: the cell exists and is non-empty.
type notNullTest struct{}

func (t notNullTest) Eval(_ models.Row, value string, present bool) interface{} {
	if present && strings.TrimSpace(value) != "" {
		return 1
	}
	return nil
}

// valueTest: copy the cell through as the outcome.
type valueTest struct{}

func (t valueTest) Eval(_ models.Row, value string, present bool) interface{} {
	if !present || strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func splitList(condition string) []string {
	var out []string
	for _, part := range strings.Split(condition, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
