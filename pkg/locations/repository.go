package locations

import (
	"context"

	"gorm.io/gorm"
)

type LocationModel struct {
	ID             int    `gorm:"primaryKey;column:id"`
	Name           string `gorm:"column:name"`
	ParentLocation int    `gorm:"column:parent_location"`
	Level          string `gorm:"column:level"`
	DeviceID       string `gorm:"column:deviceid"`
	Geolocation    string `gorm:"column:geolocation"`
	ClinicType     string `gorm:"column:clinic_type"`
	CaseReport     bool   `gorm:"column:case_report"`
}

func (LocationModel) TableName() string {
	return "locations"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&LocationModel{})
}

// Replace clears the locations table and stores a fresh hierarchy.
func (r *Repository) Replace(ctx context.Context, locs []Location) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&LocationModel{}).Error; err != nil {
			return err
		}
		for _, loc := range locs {
			model := LocationModel{
				ID:             loc.ID,
				Name:           loc.Name,
				ParentLocation: loc.ParentLocation,
				Level:          loc.Level,
				DeviceID:       loc.DeviceID,
				Geolocation:    loc.Geolocation,
				ClinicType:     loc.ClinicType,
				CaseReport:     loc.CaseReport,
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadIndex reads the full hierarchy into an in-memory snapshot.
func (r *Repository) LoadIndex(ctx context.Context) (*Index, error) {
	var rows []LocationModel
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	locs := make([]Location, 0, len(rows))
	for _, row := range rows {
		locs = append(locs, Location{
			ID:             row.ID,
			Name:           row.Name,
			ParentLocation: row.ParentLocation,
			Level:          row.Level,
			DeviceID:       row.DeviceID,
			Geolocation:    row.Geolocation,
			ClinicType:     row.ClinicType,
			CaseReport:     row.CaseReport,
		})
	}
	return NewIndex(locs), nil
}
