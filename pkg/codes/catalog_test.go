package codes

import (
	"strings"
	"testing"
)

func TestLoadCatalogCompilesGroups(t *testing.T) {
	catalog, err := LoadCatalog([]VariableRow{
		{ID: "gen_1", Form: "demo_case", CalculationGroup: "gender", Column: "pt/gender", TestType: "match", Condition: "male"},
		{ID: "gen_2", Form: "demo_case", CalculationGroup: "gender", Column: "pt/gender", TestType: "match", Condition: "female"},
		{ID: "age_1", Form: "demo_case", Column: "pt/age", TestType: "between", Condition: "0,5"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	groups := catalog.Groups("demo_case")
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %v", groups)
	}
	if len(catalog.Rules("demo_case", "gender")) != 2 {
		t.Fatalf("expected 2 rules in gender group")
	}
	// Ungrouped rules become singleton groups under their own id.
	if len(catalog.Rules("demo_case", "age_1")) != 1 {
		t.Fatalf("expected singleton group for age_1")
	}
}

func TestLoadCatalogOrdersGroupsDeterministically(t *testing.T) {
	catalog, err := LoadCatalog([]VariableRow{
		{ID: "z_1", Form: "demo_case", CalculationGroup: "zeta", Column: "a", TestType: "not_null"},
		{ID: "a_1", Form: "demo_case", CalculationGroup: "alpha", Column: "a", TestType: "not_null"},
		{ID: "m_1", Form: "demo_case", CalculationGroup: "mid", Column: "a", TestType: "not_null"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	groups := catalog.Groups("demo_case")
	want := []string{"alpha", "mid", "zeta"}
	for i, group := range groups {
		if group != want[i] {
			t.Fatalf("expected group order %v, got %v", want, groups)
		}
	}
}

func TestLoadCatalogRejectsDuplicateIDs(t *testing.T) {
	_, err := LoadCatalog([]VariableRow{
		{ID: "dup_1", Form: "demo_case", Column: "a", TestType: "not_null"},
		{ID: "dup_1", Form: "demo_case", Column: "b", TestType: "not_null"},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestLoadCatalogRejectsMalformedRules(t *testing.T) {
	_, err := LoadCatalog([]VariableRow{
		{ID: "bad_1", Form: "demo_case", Column: "a", TestType: "teleport"},
	})
	if err == nil {
		t.Fatal("expected error for unknown test type")
	}

	_, err = LoadCatalog([]VariableRow{
		{ID: "bad_2", Form: "demo_case", Column: "a", TestType: "between", Condition: "0"},
	})
	if err == nil {
		t.Fatal("expected error for between with one bound")
	}

	_, err = LoadCatalog([]VariableRow{
		{ID: "bad_3", Form: "demo_case", Column: "a", TestType: "match", SecondaryCondition: "no colon"},
	})
	if err == nil {
		t.Fatal("expected error for secondary condition without column:value shape")
	}
	_, err = LoadCatalog([]VariableRow{
		{ID: "bad_4", Form: "demo_case", Column: "a", TestType: "match", SecondaryCondition: ":value"},
	})
	if err == nil {
		t.Fatal("expected error for secondary condition with empty column")
	}
}

func TestLoadCatalogRejectsGuardDisagreement(t *testing.T) {
	_, err := LoadCatalog([]VariableRow{
		{ID: "g_1", Form: "demo_case", CalculationGroup: "grp", Column: "a", TestType: "match", Condition: "x", SecondaryCondition: "intro./visit:new"},
		{ID: "g_2", Form: "demo_case", CalculationGroup: "grp", Column: "a", TestType: "match", Condition: "y", SecondaryCondition: "intro./visit:return"},
	})
	if err == nil || !strings.Contains(err.Error(), "secondary conditions") {
		t.Fatalf("expected guard disagreement error, got %v", err)
	}
}

func TestCatalogRuleLookup(t *testing.T) {
	catalog, err := LoadCatalog([]VariableRow{
		{ID: "cmd_1", Name: "Fever", Form: "demo_case", Column: "symptom", TestType: "sub_match", Condition: "fever", Alert: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rule, ok := catalog.Rule("cmd_1")
	if !ok || rule.Name != "Fever" || !rule.Alert {
		t.Fatalf("expected to find alert rule cmd_1, got %+v ok=%v", rule, ok)
	}
	if _, ok := catalog.Rule("missing"); ok {
		t.Fatal("expected lookup miss for unknown id")
	}
}
