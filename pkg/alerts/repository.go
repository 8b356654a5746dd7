package alerts

import (
	"context"
	"time"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AlertModel struct {
	ID     string            `gorm:"primaryKey;column:id"`
	UUIDs  string            `gorm:"column:uuids"`
	Clinic int               `gorm:"column:clinic"`
	Region int               `gorm:"column:region"`
	Reason string            `gorm:"column:reason"`
	Data   datatypes.JSONMap `gorm:"column:data"`
	Date   time.Time         `gorm:"column:date"`
}

func (AlertModel) TableName() string {
	return "alerts"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&AlertModel{})
}

// Insert stores one alert. Re-coding the same row produces the same short
// id, so conflicts are treated as already-inserted.
func (r *Repository) Insert(ctx context.Context, alert *models.Alert) error {
	model := AlertModel{
		ID:     alert.ID,
		UUIDs:  alert.UUIDs,
		Clinic: alert.Clinic,
		Region: alert.Region,
		Reason: alert.Reason,
		Data:   datatypes.JSONMap(alert.Data),
		Date:   alert.Date,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}
