package ingest

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"github.com/meerkat-code/meerkat-abacus/pkg/countryconfig"
	"github.com/meerkat-code/meerkat-abacus/pkg/locations"
)

// Generator produces consistent fake submissions for demo deployments:
// device ids come from the registered clinics and alert-id fields reference
// case rows generated earlier in the same run.
type Generator struct {
	country   *countryconfig.CountryConfig
	locations *locations.Index
	rng       *rand.Rand
	alertIDs  []string
}

func NewGenerator(country *countryconfig.CountryConfig, index *locations.Index) *Generator {
	return &Generator{
		country:   country,
		locations: index,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Forms returns the configured forms with case forms first, so the alert-id
// pool is filled before any follow-up form needs it.
func (g *Generator) Forms() []string {
	var caseForms, others []string
	for form := range g.country.FakeData {
		if g.country.IsCaseForm(form) {
			caseForms = append(caseForms, form)
		} else {
			others = append(others, form)
		}
	}
	return append(caseForms, others...)
}

// Generate builds count rows for one form. datesNow pins the date column to
// the current time for stream feeds; otherwise dates spread over the last
// year.
func (g *Generator) Generate(form string, count int, datesNow bool) ([]models.Row, error) {
	spec, ok := g.country.FakeData[form]
	if !ok {
		return nil, fmt.Errorf("no fake data spec for form %q", form)
	}

	devices := spec.DeviceIDs
	if len(devices) == 0 {
		devices = g.locations.DeviceIDs(g.country.IsCaseForm(form))
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no registered devices for form %q", form)
	}

	dateColumn := g.country.FormDates[form]
	rows := make([]models.Row, 0, count)
	for i := 0; i < count; i++ {
		instanceID := "uuid:" + uuid.New().String()
		row := models.Row{
			g.country.UUIDField:   instanceID,
			g.country.DeviceField: devices[g.rng.Intn(len(devices))],
			dateColumn:            g.date(datesNow),
		}
		for column, field := range spec.Fields {
			if value, ok := g.fieldValue(field); ok {
				row[column] = value
			}
		}
		if g.country.IsCaseForm(form) {
			g.alertIDs = append(g.alertIDs, shortID(instanceID, g.country.AlertIDLength))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (g *Generator) fieldValue(field countryconfig.Field) (string, bool) {
	switch {
	case field.AlertID:
		if len(g.alertIDs) == 0 {
			return "", false
		}
		return g.alertIDs[g.rng.Intn(len(g.alertIDs))], true
	case len(field.Choices) > 0:
		if field.Multiple {
			picks := g.rng.Intn(len(field.Choices)) + 1
			chosen := make([]string, 0, picks)
			for _, index := range g.rng.Perm(len(field.Choices))[:picks] {
				chosen = append(chosen, field.Choices[index])
			}
			return strings.Join(chosen, ","), true
		}
		return field.Choices[g.rng.Intn(len(field.Choices))], true
	case field.IntB > field.IntA:
		return fmt.Sprint(field.IntA + g.rng.Intn(field.IntB-field.IntA)), true
	default:
		return "", false
	}
}

func (g *Generator) date(datesNow bool) string {
	if datesNow {
		return time.Now().UTC().Format(time.RFC3339)
	}
	past := time.Now().UTC().AddDate(-1, 0, 0)
	offset := time.Duration(g.rng.Int63n(int64(365 * 24 * time.Hour)))
	return past.Add(offset).Format(time.RFC3339)
}

func shortID(value string, length int) string {
	if length <= 0 || length >= len(value) {
		return value
	}
	return value[len(value)-length:]
}
