package codes

import (
	"github.com/meerkat-code/meerkat-abacus/pkg/common/dates"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"github.com/meerkat-code/meerkat-abacus/pkg/locations"
)

// countryID is fixed: the location arena always roots the country at id 1.
const countryID = 1

// Coder turns raw rows into coded records using a catalog and location
// snapshot loaded once per pass.
type Coder struct {
	catalog     *Catalog
	locations   *locations.Index
	alertData   map[string]string // alert payload field -> source column
	uuidField   string
	deviceField string
}

func NewCoder(catalog *Catalog, index *locations.Index, alertData map[string]string, uuidField, deviceField string) *Coder {
	return &Coder{
		catalog:     catalog,
		locations:   index,
		alertData:   alertData,
		uuidField:   uuidField,
		deviceField: deviceField,
	}
}

// ToCode codes one raw row. Rows from unregistered devices and rows with
// unparseable dates are expected stream noise and return (nil, nil) without
// error. The returned record is only worth persisting when it matched at
// least one variable.
func (c *Coder) ToCode(row models.Row, dateColumn, tableName string) (*models.CodedRecord, *models.Alert) {
	clinicID, ok := c.locations.Clinic(row.String(c.deviceField))
	if !ok {
		return nil, nil
	}
	date, err := dates.Parse(row.String(dateColumn))
	if err != nil {
		return nil, nil
	}

	clinic := c.locations.ByID[clinicID]
	record := &models.CodedRecord{
		Date:        date,
		UUID:        row.String(c.uuidField),
		Clinic:      clinicID,
		ClinicType:  clinic.ClinicType,
		Country:     countryID,
		Geolocation: clinic.Geolocation,
	}

	// One parent step resolves the administrative levels: a clinic hangs
	// off either a district or directly off a region.
	if _, isDistrict := c.locations.Districts[clinic.ParentLocation]; isDistrict {
		record.District = clinic.ParentLocation
		record.Region = c.locations.ByID[clinic.ParentLocation].ParentLocation
	} else if _, isRegion := c.locations.Regions[clinic.ParentLocation]; isRegion {
		record.Region = clinic.ParentLocation
	}

	match := c.catalog.Match(tableName, row)
	record.Variables = match.Variables

	var alert *models.Alert
	if match.AlertRule != nil {
		payload := make(map[string]interface{}, len(c.alertData))
		for field, column := range c.alertData {
			payload[field] = row.String(column)
		}
		alert = &models.Alert{
			UUIDs:  record.UUID,
			Clinic: clinicID,
			Region: record.Region,
			Reason: match.AlertRule.ID,
			Data:   payload,
			Date:   date,
		}
	}

	return record, alert
}
