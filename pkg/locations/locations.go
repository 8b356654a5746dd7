package locations

import (
	"strings"
)

// Location is one node in the country -> region -> district -> clinic tree.
// ParentLocation is 0 only for the country root. DeviceID holds a
// comma-joined list for clinics reachable from several tablets.
type Location struct {
	ID             int
	Name           string
	ParentLocation int
	Level          string // country, region, district or clinic
	DeviceID       string
	Geolocation    string
	ClinicType     string
	CaseReport     bool
}

// Index is the read-only location snapshot a coding pass works against.
type Index struct {
	ByID       map[int]Location
	ByDeviceID map[string]int
	Regions    map[int]struct{}
	Districts  map[int]struct{}
}

// NewIndex builds the lookup maps from a flat location list. Clinic device
// ids are split on commas so every tablet resolves to its clinic.
func NewIndex(locs []Location) *Index {
	idx := &Index{
		ByID:       make(map[int]Location, len(locs)),
		ByDeviceID: make(map[string]int),
		Regions:    make(map[int]struct{}),
		Districts:  make(map[int]struct{}),
	}
	for _, loc := range locs {
		idx.ByID[loc.ID] = loc
		switch loc.Level {
		case "region":
			idx.Regions[loc.ID] = struct{}{}
		case "district":
			idx.Districts[loc.ID] = struct{}{}
		case "clinic":
			for _, device := range strings.Split(loc.DeviceID, ",") {
				if trimmed := strings.TrimSpace(device); trimmed != "" {
					idx.ByDeviceID[trimmed] = loc.ID
				}
			}
		}
	}
	return idx
}

// Clinic resolves a device id to its clinic id.
func (i *Index) Clinic(deviceID string) (int, bool) {
	id, ok := i.ByDeviceID[strings.TrimSpace(deviceID)]
	return id, ok
}

// DeviceIDs returns all registered device ids, optionally restricted to
// case-report clinics.
func (i *Index) DeviceIDs(caseReportOnly bool) []string {
	var out []string
	for device, clinicID := range i.ByDeviceID {
		if caseReportOnly && !i.ByID[clinicID].CaseReport {
			continue
		}
		out = append(out, device)
	}
	return out
}
