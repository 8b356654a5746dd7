package links

import (
	"strings"
	"testing"
)

const demoLinksYAML = `
links:
  - id: alert_investigation
    name: Alert Investigation
    from_table: alerts
    from_column: id
    from_date: date
    to_table: demo_alert
    to_column: pt./alert_id
    to_date: end
    compare_lower: true
    which: last
    data:
      - field: status
        candidates:
          - name: confirmed
            column: alert_labs./status
            condition: confirmed
          - name: ongoing
            condition: default_value
      - field: checked
        candidates:
          - name: yes
            column: [check_a, check_b]
            condition: yes
      - field: outcome
        candidates:
          - name: closed
            column: state
            condition: [dismissed, resolved]
`

func TestParseLinksFile(t *testing.T) {
	defs, err := ParseLinksFile([]byte(demoLinksYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}

	def := defs[0]
	if def.ID != "alert_investigation" || !def.CompareLower || def.Which != "last" {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if len(def.Data) != 3 {
		t.Fatalf("expected 3 data fields, got %d", len(def.Data))
	}
	if def.Data[0].Field != "status" || def.Data[1].Field != "checked" {
		t.Fatal("expected data fields to keep document order")
	}

	column := def.Data[1].Candidates[0].Column
	if !column.IsList || len(column.Values) != 2 || column.Values[0] != "check_a" {
		t.Fatalf("expected column list, got %+v", column)
	}
	condition := def.Data[2].Candidates[0].Condition
	if !condition.IsList || condition.Values[1] != "resolved" {
		t.Fatalf("expected condition list, got %+v", condition)
	}
	status := def.Data[0].Candidates[0]
	if status.Column.IsList || status.Column.Scalar() != "alert_labs./status" {
		t.Fatalf("expected scalar column, got %+v", status.Column)
	}
}

func TestValidateRejectsUnsupportedPolicy(t *testing.T) {
	def := Definition{ID: "x", Which: "first"}
	if err := def.Validate(); err == nil || !strings.Contains(err.Error(), "tie-break") {
		t.Fatalf("expected tie-break policy error, got %v", err)
	}
}

func TestValidateRejectsBadConditionSyntax(t *testing.T) {
	def := Definition{ID: "x", Which: "last", ToCondition: "status >= confirmed"}
	if err := def.Validate(); err == nil {
		t.Fatal("expected error for non column:value condition")
	}
}

func TestParseFilter(t *testing.T) {
	filter, err := ParseFilter("type:case")
	if err != nil || filter.Column != "type" || filter.Value != "case" {
		t.Fatalf("unexpected result: %+v err=%v", filter, err)
	}
	filter, err = ParseFilter("")
	if err != nil || filter != nil {
		t.Fatalf("expected nil filter for empty spec, got %+v err=%v", filter, err)
	}
	if _, err := ParseFilter(":case"); err == nil {
		t.Fatal("expected error for empty column")
	}
}
