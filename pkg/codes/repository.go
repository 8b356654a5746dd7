package codes

import (
	"context"
	"time"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DataModel struct {
	ID          uint              `gorm:"primaryKey;column:id"`
	Date        time.Time         `gorm:"column:date;index"`
	UUID        string            `gorm:"column:uuid;uniqueIndex"`
	Clinic      int               `gorm:"column:clinic"`
	ClinicType  string            `gorm:"column:clinic_type"`
	Country     int               `gorm:"column:country"`
	Geolocation string            `gorm:"column:geolocation"`
	District    int               `gorm:"column:district"`
	Region      int               `gorm:"column:region"`
	Variables   datatypes.JSONMap `gorm:"column:variables"`
}

func (DataModel) TableName() string {
	return "data"
}

type VariableModel struct {
	ID                 string `gorm:"primaryKey;column:id"`
	Name               string `gorm:"column:name"`
	Form               string `gorm:"column:form"`
	CalculationGroup   string `gorm:"column:calculation_group"`
	Column             string `gorm:"column:db_column"`
	SecondaryCondition string `gorm:"column:secondary_condition"`
	TestType           string `gorm:"column:test_type"`
	Condition          string `gorm:"column:condition"`
	Alert              bool   `gorm:"column:alert"`
}

func (VariableModel) TableName() string {
	return "aggregation_variables"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&DataModel{}, &VariableModel{})
}

// SaveRecord upserts a coded record keyed by the source row uuid, so
// re-coding a row is idempotent.
func (r *Repository) SaveRecord(ctx context.Context, record *models.CodedRecord) error {
	model := DataModel{
		Date:        record.Date,
		UUID:        record.UUID,
		Clinic:      record.Clinic,
		ClinicType:  record.ClinicType,
		Country:     record.Country,
		Geolocation: record.Geolocation,
		District:    record.District,
		Region:      record.Region,
		Variables:   datatypes.JSONMap(record.Variables),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		UpdateAll: true,
	}).Create(&model).Error
}

// ReplaceVariables clears and re-imports the catalog rows.
func (r *Repository) ReplaceVariables(ctx context.Context, rows []VariableRow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&VariableModel{}).Error; err != nil {
			return err
		}
		for _, row := range rows {
			model := VariableModel{
				ID:                 row.ID,
				Name:               row.Name,
				Form:               row.Form,
				CalculationGroup:   row.CalculationGroup,
				Column:             row.Column,
				SecondaryCondition: row.SecondaryCondition,
				TestType:           row.TestType,
				Condition:          row.Condition,
				Alert:              row.Alert,
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadVariables reads the stored catalog rows back for compilation.
func (r *Repository) LoadVariables(ctx context.Context) ([]VariableRow, error) {
	var stored []VariableModel
	if err := r.db.WithContext(ctx).Order("id").Find(&stored).Error; err != nil {
		return nil, err
	}
	rows := make([]VariableRow, 0, len(stored))
	for _, model := range stored {
		rows = append(rows, VariableRow{
			ID:                 model.ID,
			Name:               model.Name,
			Form:               model.Form,
			CalculationGroup:   model.CalculationGroup,
			Column:             model.Column,
			SecondaryCondition: model.SecondaryCondition,
			TestType:           model.TestType,
			Condition:          model.Condition,
			Alert:              model.Alert,
		})
	}
	return rows, nil
}
