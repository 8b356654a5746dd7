package links

import (
	"context"
	"testing"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
)

// fakeSource serves rows from memory, applying the same filter semantics as
// the table-backed source.
type fakeSource struct {
	tables map[string][]SourceRow
}

func (s *fakeSource) Rows(_ context.Context, table string, filter *Filter, requireColumn string) ([]SourceRow, error) {
	var out []SourceRow
	for _, row := range s.tables[table] {
		if filter != nil && row.Data.String(filter.Column) != filter.Value {
			continue
		}
		if requireColumn != "" && !row.Data.Has(requireColumn) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

type fakeStore struct {
	links   map[string]map[string]*models.Link
	toIDs   map[string]struct{}
	inserts int
	updates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		links: make(map[string]map[string]*models.Link),
		toIDs: make(map[string]struct{}),
	}
}

func (s *fakeStore) Existing(context.Context) (map[string]map[string]*models.Link, map[string]struct{}, error) {
	links := make(map[string]map[string]*models.Link, len(s.links))
	for def, byValue := range s.links {
		links[def] = make(map[string]*models.Link, len(byValue))
		for value, link := range byValue {
			copied := *link
			links[def][value] = &copied
		}
	}
	toIDs := make(map[string]struct{}, len(s.toIDs))
	for id := range s.toIDs {
		toIDs[id] = struct{}{}
	}
	for _, byValue := range s.links {
		for _, link := range byValue {
			toIDs[link.ToID] = struct{}{}
		}
	}
	return links, toIDs, nil
}

func (s *fakeStore) Insert(_ context.Context, link *models.Link) error {
	if s.links[link.LinkDef] == nil {
		s.links[link.LinkDef] = make(map[string]*models.Link)
	}
	copied := *link
	s.links[link.LinkDef][link.LinkValue] = &copied
	s.inserts++
	return nil
}

func (s *fakeStore) Update(_ context.Context, link *models.Link) error {
	copied := *link
	s.links[link.LinkDef][link.LinkValue] = &copied
	s.updates++
	return nil
}

func investigationDef() Definition {
	return Definition{
		ID:         "alert_investigation",
		FromTable:  "alerts",
		FromColumn: "id",
		FromDate:   "date",
		ToTable:    "demo_alert",
		ToColumn:   "pt./alert_id",
		ToDate:     "end",
		Which:      "last",
	}
}

func alertRow(id, date string) SourceRow {
	return SourceRow{UUID: "uuid-" + id, Data: models.Row{"id": id, "date": date}}
}

func investigationRow(uuid, alertID, end, status string) SourceRow {
	return SourceRow{UUID: uuid, Data: models.Row{"pt./alert_id": alertID, "end": end, "status": status}}
}

func TestEngineLinksMatchingRows(t *testing.T) {
	source := &fakeSource{tables: map[string][]SourceRow{
		"alerts": {alertRow("abc123", "2026-03-01")},
		"demo_alert": {
			investigationRow("inv-1", "abc123", "2026-03-05", "ongoing"),
			investigationRow("inv-2", "zzz999", "2026-03-05", "ongoing"),
		},
	}}
	store := newFakeStore()

	if err := NewEngine([]Definition{investigationDef()}, source, store).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.inserts != 1 || store.updates != 0 {
		t.Fatalf("expected 1 insert, got inserts=%d updates=%d", store.inserts, store.updates)
	}
	link := store.links["alert_investigation"]["abc123"]
	if link == nil || link.ToID != "inv-1" {
		t.Fatalf("unexpected link: %+v", link)
	}
}

func TestEngineLastPolicyKeepsNewestToRow(t *testing.T) {
	older := investigationRow("inv-old", "abc123", "2026-03-02", "ongoing")
	newer := investigationRow("inv-new", "abc123", "2026-03-08", "confirmed")

	for name, rows := range map[string][]SourceRow{
		"older first": {older, newer},
		"newer first": {newer, older},
	} {
		source := &fakeSource{tables: map[string][]SourceRow{
			"alerts":     {alertRow("abc123", "2026-03-01")},
			"demo_alert": rows,
		}}
		store := newFakeStore()
		if err := NewEngine([]Definition{investigationDef()}, source, store).Run(context.Background()); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		link := store.links["alert_investigation"]["abc123"]
		if link == nil || link.ToID != "inv-new" {
			t.Fatalf("%s: expected newest to-row to win, got %+v", name, link)
		}
	}
}

func TestEngineRerunIsIdempotent(t *testing.T) {
	source := &fakeSource{tables: map[string][]SourceRow{
		"alerts":     {alertRow("abc123", "2026-03-01")},
		"demo_alert": {investigationRow("inv-1", "abc123", "2026-03-05", "ongoing")},
	}}
	store := newFakeStore()
	engine := NewEngine([]Definition{investigationDef()}, source, store)

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.inserts != 1 {
		t.Fatalf("expected a single insert across reruns, got %d", store.inserts)
	}
	// The second pass sees inv-1 in the already-linked set and leaves the
	// stored link alone.
	if store.updates != 0 {
		t.Fatalf("expected no updates on rerun, got %d", store.updates)
	}
	link := store.links["alert_investigation"]["abc123"]
	if link.ToID != "inv-1" {
		t.Fatalf("rerun changed the link: %+v", link)
	}
}

func TestEngineLaterFromRowCompletesPendingLink(t *testing.T) {
	// First pass: the investigation references an alert that does not
	// exist yet, so no link is written.
	source := &fakeSource{tables: map[string][]SourceRow{
		"alerts":     {},
		"demo_alert": {investigationRow("inv-1", "abc123", "2026-03-05", "ongoing")},
	}}
	store := newFakeStore()
	engine := NewEngine([]Definition{investigationDef()}, source, store)
	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.inserts != 0 {
		t.Fatalf("expected no links yet, got %d inserts", store.inserts)
	}

	// The alert arrives later; the next pass completes the join.
	source.tables["alerts"] = []SourceRow{alertRow("abc123", "2026-03-01")}
	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link := store.links["alert_investigation"]["abc123"]; link == nil || link.ToID != "inv-1" {
		t.Fatalf("expected link after from-row arrived, got %+v", link)
	}
}

func TestEngineFoldsCaseWhenConfigured(t *testing.T) {
	def := investigationDef()
	def.CompareLower = true
	source := &fakeSource{tables: map[string][]SourceRow{
		"alerts":     {alertRow("ABC123", "2026-03-01")},
		"demo_alert": {investigationRow("inv-1", "abc123", "2026-03-05", "ongoing")},
	}}
	store := newFakeStore()
	if err := NewEngine([]Definition{def}, source, store).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link := store.links["alert_investigation"]["abc123"]; link == nil {
		t.Fatal("expected case-folded join to match")
	}
}

func TestEngineSkipsAlreadyLinkedToRows(t *testing.T) {
	source := &fakeSource{tables: map[string][]SourceRow{
		"alerts":     {alertRow("abc123", "2026-03-01")},
		"demo_alert": {investigationRow("inv-1", "abc123", "2026-03-05", "ongoing")},
	}}
	store := newFakeStore()
	// inv-1 was finalized under another definition in an earlier pass.
	store.toIDs["inv-1"] = struct{}{}

	if err := NewEngine([]Definition{investigationDef()}, source, store).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.inserts != 0 {
		t.Fatalf("expected already-linked to-row to be skipped, got %d inserts", store.inserts)
	}
}

func TestEngineSkipsRowsWithBadDates(t *testing.T) {
	source := &fakeSource{tables: map[string][]SourceRow{
		"alerts": {alertRow("abc123", "2026-03-01")},
		"demo_alert": {
			investigationRow("inv-bad", "abc123", "not a date", "ongoing"),
		},
	}}
	store := newFakeStore()
	if err := NewEngine([]Definition{investigationDef()}, source, store).Run(context.Background()); err != nil {
		t.Fatalf("bad data must not abort the pass: %v", err)
	}
	if store.inserts != 0 {
		t.Fatalf("expected no links from unparseable dates, got %d", store.inserts)
	}
}

func TestEngineRejectsBadConfiguration(t *testing.T) {
	def := investigationDef()
	def.Which = "first"
	err := NewEngine([]Definition{def}, &fakeSource{}, newFakeStore()).Run(context.Background())
	if err == nil {
		t.Fatal("expected unsupported tie-break policy to abort the pass")
	}

	def = investigationDef()
	def.ToCondition = "status >= confirmed"
	err = NewEngine([]Definition{def}, &fakeSource{}, newFakeStore()).Run(context.Background())
	if err == nil {
		t.Fatal("expected unsupported condition syntax to abort the pass")
	}
}

func TestEngineTranslatesLinkData(t *testing.T) {
	def := investigationDef()
	def.Data = DataSpec{
		{
			Field: "status",
			Candidates: []Candidate{
				{Name: "confirmed", Column: scalar("status"), Condition: scalar("confirmed")},
				{Name: "ongoing", Condition: scalar("default_value")},
			},
		},
	}
	source := &fakeSource{tables: map[string][]SourceRow{
		"alerts":     {alertRow("abc123", "2026-03-01")},
		"demo_alert": {investigationRow("inv-1", "abc123", "2026-03-05", "confirmed")},
	}}
	store := newFakeStore()
	if err := NewEngine([]Definition{def}, source, store).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	link := store.links["alert_investigation"]["abc123"]
	if link == nil || link.Data["status"] != "confirmed" {
		t.Fatalf("unexpected link data: %+v", link)
	}
}
