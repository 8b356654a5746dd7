package links

import (
	"context"
	"fmt"
	"time"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"github.com/meerkat-code/meerkat-abacus/pkg/observability/metrics"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LinkModel struct {
	ID        uint              `gorm:"primaryKey;column:id"`
	LinkDef   string            `gorm:"column:link_def;uniqueIndex:idx_link_def_value"`
	LinkValue string            `gorm:"column:link_value;uniqueIndex:idx_link_def_value"`
	ToID      string            `gorm:"column:to_id;index"`
	ToDate    time.Time         `gorm:"column:to_date"`
	FromDate  time.Time         `gorm:"column:from_date"`
	Data      datatypes.JSONMap `gorm:"column:data"`
}

func (LinkModel) TableName() string {
	return "links"
}

type DefinitionModel struct {
	ID            string `gorm:"primaryKey;column:id"`
	Name          string `gorm:"column:name"`
	FromTable     string `gorm:"column:from_table"`
	FromColumn    string `gorm:"column:from_column"`
	FromCondition string `gorm:"column:from_condition"`
	FromDate      string `gorm:"column:from_date"`
	ToTable       string `gorm:"column:to_table"`
	ToColumn      string `gorm:"column:to_column"`
	ToCondition   string `gorm:"column:to_condition"`
	ToDate        string `gorm:"column:to_date"`
	CompareLower  bool   `gorm:"column:compare_lower"`
	Which         string `gorm:"column:which"`
	Data          string `gorm:"column:data;type:text"` // data spec as YAML
}

func (DefinitionModel) TableName() string {
	return "link_definitions"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&LinkModel{}, &DefinitionModel{})
}

// Existing implements Store: all current links plus every to-id referenced
// by any of them.
func (r *Repository) Existing(ctx context.Context) (map[string]map[string]*models.Link, map[string]struct{}, error) {
	var stored []LinkModel
	if err := r.db.WithContext(ctx).Find(&stored).Error; err != nil {
		return nil, nil, err
	}
	links := make(map[string]map[string]*models.Link)
	toIDs := make(map[string]struct{}, len(stored))
	for _, model := range stored {
		if links[model.LinkDef] == nil {
			links[model.LinkDef] = make(map[string]*models.Link)
		}
		links[model.LinkDef][model.LinkValue] = &models.Link{
			LinkDef:   model.LinkDef,
			LinkValue: model.LinkValue,
			ToID:      model.ToID,
			ToDate:    model.ToDate,
			FromDate:  model.FromDate,
			Data:      model.Data,
		}
		toIDs[model.ToID] = struct{}{}
	}
	return links, toIDs, nil
}

func (r *Repository) Insert(ctx context.Context, link *models.Link) error {
	model := LinkModel{
		LinkDef:   link.LinkDef,
		LinkValue: link.LinkValue,
		ToID:      link.ToID,
		ToDate:    link.ToDate,
		FromDate:  link.FromDate,
		Data:      datatypes.JSONMap(link.Data),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	metrics.ObserveLink()
	return nil
}

func (r *Repository) Update(ctx context.Context, link *models.Link) error {
	err := r.db.WithContext(ctx).
		Model(&LinkModel{}).
		Where("link_def = ? AND link_value = ?", link.LinkDef, link.LinkValue).
		Updates(map[string]interface{}{
			"to_id":   link.ToID,
			"to_date": link.ToDate,
			"data":    datatypes.JSONMap(link.Data),
		}).Error
	if err != nil {
		return err
	}
	metrics.ObserveLink()
	return nil
}

// ReplaceDefinitions stores the parsed links file, keeping each data spec in
// its source YAML form for audit.
func (r *Repository) ReplaceDefinitions(ctx context.Context, defs []Definition, specs map[string]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&DefinitionModel{}).Error; err != nil {
			return err
		}
		for _, def := range defs {
			model := DefinitionModel{
				ID:            def.ID,
				Name:          def.Name,
				FromTable:     def.FromTable,
				FromColumn:    def.FromColumn,
				FromCondition: def.FromCondition,
				FromDate:      def.FromDate,
				ToTable:       def.ToTable,
				ToColumn:      def.ToColumn,
				ToCondition:   def.ToCondition,
				ToDate:        def.ToDate,
				CompareLower:  def.CompareLower,
				Which:         def.Which,
				Data:          specs[def.ID],
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// TableSource implements RowSource over the raw form tables and the alerts
// table.
type TableSource struct {
	db     *gorm.DB
	tables map[string]string // logical table -> physical raw table
}

func NewTableSource(db *gorm.DB, tables map[string]string) *TableSource {
	return &TableSource{db: db, tables: tables}
}

type rawRow struct {
	UUID string            `gorm:"column:uuid"`
	Data datatypes.JSONMap `gorm:"column:data"`
}

func (s *TableSource) Rows(ctx context.Context, table string, filter *Filter, requireColumn string) ([]SourceRow, error) {
	if table == AlertsTable {
		return s.alertRows(ctx, filter)
	}

	physical, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown link table %q", table)
	}

	query := s.db.WithContext(ctx).Table(physical).Select("uuid, data")
	if filter != nil {
		query = query.Where("data ->> ? = ?", filter.Column, filter.Value)
	}
	if requireColumn != "" {
		query = query.Where("data ->> ? IS NOT NULL", requireColumn)
	}

	var stored []rawRow
	if err := query.Find(&stored).Error; err != nil {
		return nil, err
	}
	rows := make([]SourceRow, 0, len(stored))
	for _, row := range stored {
		rows = append(rows, SourceRow{UUID: row.UUID, Data: models.Row(row.Data)})
	}
	return rows, nil
}

type alertModel struct {
	ID     string            `gorm:"column:id"`
	UUIDs  string            `gorm:"column:uuids"`
	Clinic int               `gorm:"column:clinic"`
	Region int               `gorm:"column:region"`
	Reason string            `gorm:"column:reason"`
	Date   time.Time         `gorm:"column:date"`
	Data   datatypes.JSONMap `gorm:"column:data"`
}

// alertRows renders alerts as plain rows so one code path joins both table
// kinds. Filtering happens in memory; the alerts table is small relative to
// the form tables.
func (s *TableSource) alertRows(ctx context.Context, filter *Filter) ([]SourceRow, error) {
	var stored []alertModel
	if err := s.db.WithContext(ctx).Table(AlertsTable).Find(&stored).Error; err != nil {
		return nil, err
	}
	rows := make([]SourceRow, 0, len(stored))
	for _, alert := range stored {
		row := models.Row{
			"id":     alert.ID,
			"uuids":  alert.UUIDs,
			"clinic": alert.Clinic,
			"region": alert.Region,
			"reason": alert.Reason,
			"date":   alert.Date.Format(time.RFC3339),
		}
		for key, value := range alert.Data {
			row[key] = value
		}
		if filter != nil && row.String(filter.Column) != filter.Value {
			continue
		}
		rows = append(rows, SourceRow{UUID: alert.UUIDs, Data: row})
	}
	return rows, nil
}
