package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meerkat-code/meerkat-abacus/pkg/codes"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"github.com/meerkat-code/meerkat-abacus/pkg/countryconfig"
	"github.com/meerkat-code/meerkat-abacus/pkg/links"
	"github.com/meerkat-code/meerkat-abacus/pkg/locations"
	"gopkg.in/yaml.v3"
)

// ImportLocations reads the region, district and clinic files and replaces
// the stored hierarchy.
func ImportLocations(ctx context.Context, country *countryconfig.CountryConfig, configDir string, repo *locations.Repository) error {
	builder := locations.NewBuilder(country.CountryName)

	regions, err := readLocationCSV(filepath.Join(configDir, "locations", country.Locations.Regions))
	if err != nil {
		return err
	}
	builder.AddRegions(regions)

	districts, err := readLocationCSV(filepath.Join(configDir, "locations", country.Locations.Districts))
	if err != nil {
		return err
	}
	if err := builder.AddDistricts(districts); err != nil {
		return err
	}

	clinics, err := readLocationCSV(filepath.Join(configDir, "locations", country.Locations.Clinics))
	if err != nil {
		return err
	}
	if err := builder.AddClinics(clinics); err != nil {
		return err
	}

	return repo.Replace(ctx, builder.Locations())
}

func readLocationCSV(path string) ([]locations.CSVRow, error) {
	rows, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	out := make([]locations.CSVRow, 0, len(rows))
	for _, row := range rows {
		converted := make(locations.CSVRow, len(row))
		for key := range row {
			converted[key] = row.String(key)
		}
		out = append(out, converted)
	}
	return out, nil
}

// ImportVariables reads the codes file, compiles it once to reject a broken
// catalog before anything is stored, and replaces the stored rows.
func ImportVariables(ctx context.Context, country *countryconfig.CountryConfig, configDir string, repo *codes.Repository) error {
	path := filepath.Join(configDir, country.CodesFile)
	raw, err := ReadCSV(path)
	if err != nil {
		return err
	}

	rows := make([]codes.VariableRow, 0, len(raw))
	for _, record := range raw {
		rows = append(rows, codes.VariableRow{
			ID:                 record.String("id"),
			Name:               record.String("name"),
			Form:               record.String("form"),
			CalculationGroup:   record.String("calculation_group"),
			Column:             record.String("db_column"),
			SecondaryCondition: record.String("secondary_condition"),
			TestType:           record.String("test_type"),
			Condition:          record.String("condition"),
			Alert:              parseBool(record.String("alert")),
		})
	}

	if _, err := codes.LoadCatalog(rows); err != nil {
		return fmt.Errorf("codes file %s: %w", path, err)
	}
	return repo.ReplaceVariables(ctx, rows)
}

// ImportLinks parses the links file and replaces the stored definitions,
// keeping each data spec in its YAML form.
func ImportLinks(ctx context.Context, country *countryconfig.CountryConfig, configDir string, repo *links.Repository) ([]links.Definition, error) {
	path := filepath.Join(configDir, country.LinksFile)
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read links file: %w", err)
	}
	defs, err := links.ParseLinksFile(content)
	if err != nil {
		return nil, err
	}

	specs := make(map[string]string, len(defs))
	for _, def := range defs {
		spec, err := yaml.Marshal(def.Data)
		if err != nil {
			return nil, err
		}
		specs[def.ID] = string(spec)
	}
	if err := repo.ReplaceDefinitions(ctx, defs, specs); err != nil {
		return nil, err
	}
	return defs, nil
}

// RegisteredDevices builds the device filter used when adding new rows:
// case forms only accept case-report clinics.
func RegisteredDevices(country *countryconfig.CountryConfig, index *locations.Index, form string) map[string]struct{} {
	devices := index.DeviceIDs(country.IsCaseForm(form))
	out := make(map[string]struct{}, len(devices))
	for _, device := range devices {
		out[device] = struct{}{}
	}
	return out
}

func parseBool(value string) bool {
	switch models.NormalizeKey(value) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
