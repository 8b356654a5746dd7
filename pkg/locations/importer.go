package locations

import (
	"fmt"
)

// CSVRow is a header-keyed record from one of the location files.
type CSVRow map[string]string

// Builder assembles the location arena from the three location files. Ids are
// assigned sequentially with the country always at id 1, matching how
// downstream records reference country=1.
type Builder struct {
	locations []Location
	regions   map[string]int // name -> id
	districts map[string]int
	nextID    int
}

func NewBuilder(countryName string) *Builder {
	b := &Builder{
		regions:   make(map[string]int),
		districts: make(map[string]int),
		nextID:    1,
	}
	b.add(Location{Name: countryName, Level: "country"})
	return b
}

func (b *Builder) add(loc Location) int {
	loc.ID = b.nextID
	b.nextID++
	b.locations = append(b.locations, loc)
	return loc.ID
}

func (b *Builder) AddRegions(rows []CSVRow) {
	for _, row := range rows {
		id := b.add(Location{
			Name:           row["region"],
			ParentLocation: 1,
			Geolocation:    row["geo"],
			Level:          "region",
		})
		b.regions[row["region"]] = id
	}
}

func (b *Builder) AddDistricts(rows []CSVRow) error {
	for _, row := range rows {
		parent, ok := b.regions[row["region"]]
		if !ok {
			return fmt.Errorf("district %q references unknown region %q", row["district"], row["region"])
		}
		id := b.add(Location{
			Name:           row["district"],
			ParentLocation: parent,
			Level:          "district",
		})
		b.districts[row["district"]] = id
	}
	return nil
}

// AddClinics registers clinic rows. Rows without a device id are skipped.
// Two rows with the same clinic name and parent are two tablets at the same
// clinic, so their device ids are merged into one location.
func (b *Builder) AddClinics(rows []CSVRow) error {
	for _, row := range rows {
		if row["deviceid"] == "" {
			continue
		}

		var parent int
		if district := row["district"]; district != "" {
			id, ok := b.districts[district]
			if !ok {
				return fmt.Errorf("clinic %q references unknown district %q", row["clinic"], district)
			}
			parent = id
		} else if region := row["region"]; region != "" {
			id, ok := b.regions[region]
			if !ok {
				return fmt.Errorf("clinic %q references unknown region %q", row["clinic"], region)
			}
			parent = id
		} else {
			return fmt.Errorf("clinic %q has neither district nor region", row["clinic"])
		}

		if existing := b.findClinic(row["clinic"], parent); existing != nil {
			existing.DeviceID = existing.DeviceID + "," + row["deviceid"]
			continue
		}

		geolocation := ""
		if row["latitude"] != "" && row["longitude"] != "" {
			geolocation = row["latitude"] + "," + row["longitude"]
		}
		b.add(Location{
			Name:           row["clinic"],
			ParentLocation: parent,
			Geolocation:    geolocation,
			DeviceID:       row["deviceid"],
			ClinicType:     row["clinic_type"],
			CaseReport:     row["case_report"] == "Yes",
			Level:          "clinic",
		})
	}
	return nil
}

func (b *Builder) findClinic(name string, parent int) *Location {
	for i := range b.locations {
		loc := &b.locations[i]
		if loc.Level == "clinic" && loc.Name == name && loc.ParentLocation == parent && loc.ClinicType != "" {
			return loc
		}
	}
	return nil
}

func (b *Builder) Locations() []Location {
	return b.locations
}
