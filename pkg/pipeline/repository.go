package pipeline

import (
	"context"
	"time"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StepFailureModel struct {
	ID        uint              `gorm:"primaryKey;column:id"`
	Form      string            `gorm:"column:form"`
	StepName  string            `gorm:"column:step_name"`
	Error     string            `gorm:"column:error"`
	Data      datatypes.JSONMap `gorm:"column:data"`
	CreatedAt time.Time         `gorm:"column:created_at"`
}

func (StepFailureModel) TableName() string {
	return "step_failures"
}

// FailureLog is the gorm-backed FailureSink.
type FailureLog struct {
	db *gorm.DB
}

func NewFailureLog(db *gorm.DB) *FailureLog {
	return &FailureLog{db: db}
}

func (f *FailureLog) AutoMigrate() error {
	return f.db.AutoMigrate(&StepFailureModel{})
}

func (f *FailureLog) Record(ctx context.Context, failure models.StepFailure) error {
	model := StepFailureModel{
		Form:     failure.Form,
		StepName: failure.StepName,
		Error:    failure.Error,
		Data:     datatypes.JSONMap(failure.Data),
	}
	return f.db.WithContext(ctx).Create(&model).Error
}
