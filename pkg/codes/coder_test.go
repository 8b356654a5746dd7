package codes

import (
	"testing"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"github.com/meerkat-code/meerkat-abacus/pkg/locations"
)

func demoLocations() *locations.Index {
	return locations.NewIndex([]locations.Location{
		{ID: 1, Name: "Demo", Level: "country"},
		{ID: 2, Name: "North", ParentLocation: 1, Level: "region"},
		{ID: 3, Name: "Hilltop", ParentLocation: 2, Level: "district"},
		{ID: 4, Name: "Clinic A", ParentLocation: 3, Level: "clinic", DeviceID: "1,2", Geolocation: "1.5,2.5", ClinicType: "Hospital"},
		{ID: 5, Name: "Clinic B", ParentLocation: 2, Level: "clinic", DeviceID: "7"},
	})
}

func demoCoder(t *testing.T) *Coder {
	t.Helper()
	catalog, err := LoadCatalog([]VariableRow{
		{ID: "tot_1", Form: "demo_case", Column: "intro./visit", TestType: "not_null"},
		{ID: "cmd_1", Form: "demo_case", Column: "disease", TestType: "match", Condition: "cholera", Alert: true},
	})
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	alertData := map[string]string{"age": "pt./age", "gender": "pt./gender"}
	return NewCoder(catalog, demoLocations(), alertData, "meta/instanceID", "deviceid")
}

func TestToCodeResolvesLocationTree(t *testing.T) {
	coder := demoCoder(t)
	record, alert := coder.ToCode(models.Row{
		"meta/instanceID": "uuid:abc-123",
		"deviceid":        "2",
		"submission_date": "2026-03-01T10:00:00",
		"intro./visit":    "new",
	}, "submission_date", "demo_case")
	if record == nil {
		t.Fatal("expected a coded record")
	}
	if alert != nil {
		t.Fatalf("expected no alert, got %+v", alert)
	}
	if record.Clinic != 4 || record.District != 3 || record.Region != 2 || record.Country != 1 {
		t.Fatalf("unexpected location resolution: %+v", record)
	}
	if record.ClinicType != "Hospital" || record.Geolocation != "1.5,2.5" {
		t.Fatalf("unexpected clinic attributes: %+v", record)
	}
	if record.Variables["tot_1"] != 1 {
		t.Fatalf("expected tot_1=1, got %v", record.Variables)
	}
}

func TestToCodeClinicUnderRegionHasNoDistrict(t *testing.T) {
	coder := demoCoder(t)
	record, _ := coder.ToCode(models.Row{
		"meta/instanceID": "uuid:def-456",
		"deviceid":        "7",
		"submission_date": "2026-03-01",
		"intro./visit":    "new",
	}, "submission_date", "demo_case")
	if record == nil {
		t.Fatal("expected a coded record")
	}
	if record.District != 0 || record.Region != 2 {
		t.Fatalf("expected district=0 region=2, got %+v", record)
	}
}

func TestToCodeDropsUnregisteredDevice(t *testing.T) {
	coder := demoCoder(t)
	record, alert := coder.ToCode(models.Row{
		"meta/instanceID": "uuid:ghi-789",
		"deviceid":        "99",
		"submission_date": "2026-03-01",
	}, "submission_date", "demo_case")
	if record != nil || alert != nil {
		t.Fatalf("expected silent drop, got record=%v alert=%v", record, alert)
	}
}

func TestToCodeDropsUnparseableDate(t *testing.T) {
	coder := demoCoder(t)
	record, alert := coder.ToCode(models.Row{
		"meta/instanceID": "uuid:jkl-012",
		"deviceid":        "1",
		"submission_date": "sometime last week",
	}, "submission_date", "demo_case")
	if record != nil || alert != nil {
		t.Fatalf("expected silent drop, got record=%v alert=%v", record, alert)
	}
}

func TestToCodeBuildsAlertFromMatchedRule(t *testing.T) {
	coder := demoCoder(t)
	record, alert := coder.ToCode(models.Row{
		"meta/instanceID": "uuid:mno-345",
		"deviceid":        "1",
		"submission_date": "2026-03-02",
		"disease":         "cholera",
		"pt./age":         "23",
		"pt./gender":      "female",
	}, "submission_date", "demo_case")
	if record == nil || alert == nil {
		t.Fatal("expected record and alert")
	}
	if alert.Reason != "cmd_1" || alert.Clinic != 4 || alert.Region != 2 {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	if alert.UUIDs != "uuid:mno-345" {
		t.Fatalf("expected alert to reference the row uuid, got %q", alert.UUIDs)
	}
	if alert.Data["age"] != "23" || alert.Data["gender"] != "female" {
		t.Fatalf("unexpected alert payload: %v", alert.Data)
	}
}

func TestToCodeIsRepeatable(t *testing.T) {
	coder := demoCoder(t)
	row := models.Row{
		"meta/instanceID": "uuid:pqr-678",
		"deviceid":        "1",
		"submission_date": "2026-03-02",
		"intro./visit":    "return",
	}
	first, _ := coder.ToCode(row, "submission_date", "demo_case")
	second, _ := coder.ToCode(row, "submission_date", "demo_case")
	if first == nil || second == nil {
		t.Fatal("expected records from both passes")
	}
	if first.UUID != second.UUID || len(first.Variables) != len(second.Variables) {
		t.Fatalf("expected identical coding across passes: %+v vs %+v", first, second)
	}
}
