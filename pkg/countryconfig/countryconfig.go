package countryconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CountryConfig carries the per-deployment surveillance semantics: which
// forms exist, where their dates live, how alerts are annotated and which
// pipeline steps run. One file per country, loaded once at startup.
type CountryConfig struct {
	CountryName   string            `yaml:"country_name"`
	Tables        map[string]string `yaml:"tables"`     // form -> raw table name
	FormDates     map[string]string `yaml:"form_dates"` // form -> date column
	UUIDField     string            `yaml:"uuid_field"`
	DeviceField   string            `yaml:"device_field"`
	AlertData     map[string]string `yaml:"alert_data"` // alert payload field -> source column
	AlertIDLength int               `yaml:"alert_id_length"`
	Pipeline      []string          `yaml:"pipeline"`
	CodesFile     string            `yaml:"codes_file"`
	LinksFile     string            `yaml:"links_file"`
	Locations     LocationFiles     `yaml:"locations"`
	CaseForms     []string          `yaml:"case_forms"` // forms restricted to case-report devices
	FakeData      map[string]Form   `yaml:"fake_data"`
}

type LocationFiles struct {
	Regions   string `yaml:"regions"`
	Districts string `yaml:"districts"`
	Clinics   string `yaml:"clinics"`
}

// Form describes how to generate fake submissions for one form.
type Form struct {
	DeviceIDs []string         `yaml:"deviceids"` // restrict devices for this form
	Fields    map[string]Field `yaml:"fields"`
}

// Field is a fake-data column: either a fixed choice list or an integer range.
type Field struct {
	Choices  []string `yaml:"choices"`
	IntA     int      `yaml:"int_a"`
	IntB     int      `yaml:"int_b"`
	Multiple bool     `yaml:"multiple"` // comma-join several choices
	AlertID  bool     `yaml:"alert_id"` // pull from the case-form alert id pool
}

func Load(path string) (*CountryConfig, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read country config: %w", err)
	}

	var cfg CountryConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse country config: %w", err)
	}

	if cfg.UUIDField == "" {
		cfg.UUIDField = "meta/instanceID"
	}
	if cfg.DeviceField == "" {
		cfg.DeviceField = "deviceid"
	}
	if cfg.AlertIDLength <= 0 {
		cfg.AlertIDLength = 6
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *CountryConfig) validate() error {
	if len(c.Tables) == 0 {
		return errors.New("country config has no form tables")
	}
	for form := range c.Tables {
		if _, ok := c.FormDates[form]; !ok {
			return fmt.Errorf("form %q has no date column configured", form)
		}
	}
	if len(c.Pipeline) == 0 {
		return errors.New("country config has no pipeline steps")
	}
	return nil
}

// TableName maps a form to its raw table, falling back to the form name.
func (c *CountryConfig) TableName(form string) string {
	if name, ok := c.Tables[form]; ok {
		return name
	}
	return form
}

// IsCaseForm reports whether a form only accepts case-report devices.
func (c *CountryConfig) IsCaseForm(form string) bool {
	for _, f := range c.CaseForms {
		if f == form {
			return true
		}
	}
	return false
}
