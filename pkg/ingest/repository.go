package ingest

import (
	"context"
	"fmt"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FormRowModel is the shape of every raw form table: the stable submission
// uuid and the untouched key/value payload.
type FormRowModel struct {
	UUID string            `gorm:"primaryKey;column:uuid"`
	Data datatypes.JSONMap `gorm:"column:data"`
}

// FormStore persists raw submissions, one table per configured form.
type FormStore struct {
	db     *gorm.DB
	tables map[string]string // form -> physical table
}

func NewFormStore(db *gorm.DB, tables map[string]string) *FormStore {
	return &FormStore{db: db, tables: tables}
}

func (s *FormStore) AutoMigrate() error {
	for _, table := range s.tables {
		if err := s.db.Table(table).AutoMigrate(&FormRowModel{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *FormStore) table(form string) (string, error) {
	table, ok := s.tables[form]
	if !ok {
		return "", fmt.Errorf("unknown form %q", form)
	}
	return table, nil
}

// Upsert stores a raw row, replacing any earlier upload with the same uuid.
func (s *FormStore) Upsert(ctx context.Context, form, uuid string, row models.Row) error {
	if uuid == "" {
		return fmt.Errorf("form %q row has no uuid", form)
	}
	table, err := s.table(form)
	if err != nil {
		return err
	}
	model := FormRowModel{UUID: uuid, Data: datatypes.JSONMap(row)}
	return s.db.WithContext(ctx).Table(table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		UpdateAll: true,
	}).Create(&model).Error
}

// ExistingUUIDs lists the uuids already stored for a form.
func (s *FormStore) ExistingUUIDs(ctx context.Context, form string) (map[string]struct{}, error) {
	table, err := s.table(form)
	if err != nil {
		return nil, err
	}
	var uuids []string
	if err := s.db.WithContext(ctx).Table(table).Pluck("uuid", &uuids).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(uuids))
	for _, id := range uuids {
		out[id] = struct{}{}
	}
	return out, nil
}

// AddNew stores rows whose uuid is not yet present and whose device is
// registered, returning the rows that were actually added.
func (s *FormStore) AddNew(ctx context.Context, form string, rows []models.Row, registered map[string]struct{}, uuidField, deviceField string) ([]models.Row, error) {
	existing, err := s.ExistingUUIDs(ctx, form)
	if err != nil {
		return nil, err
	}

	var added []models.Row
	for _, row := range rows {
		uuid := row.String(uuidField)
		if uuid == "" {
			continue
		}
		if _, done := existing[uuid]; done {
			continue
		}
		if registered != nil {
			if _, ok := registered[row.String(deviceField)]; !ok {
				continue
			}
		}
		if err := s.Upsert(ctx, form, uuid, row); err != nil {
			return nil, err
		}
		existing[uuid] = struct{}{}
		added = append(added, row)
	}
	return added, nil
}
