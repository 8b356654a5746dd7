package ingest

import (
	"context"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/kafka"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/logger"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
)

// RowReader yields the raw rows of one form from whichever source is
// configured (local CSV, S3 download or the fake generator).
type RowReader func(form string) ([]models.Row, error)

// PublishStationaryData reads every form through the reader and ships the
// rows to the pipeline worker in fixed-size batches.
func PublishStationaryData(ctx context.Context, forms []string, reader RowReader, producer *kafka.Producer, source string, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	for _, form := range forms {
		rows, err := reader(form)
		if err != nil {
			return err
		}

		var batch []models.RawRecord
		for _, row := range rows {
			batch = append(batch, models.RawRecord{Form: form, Data: row})
			if len(batch) == batchSize {
				if err := producer.PublishBatch(ctx, source, batch); err != nil {
					return err
				}
				batch = nil
			}
		}
		if len(batch) > 0 {
			if err := producer.PublishBatch(ctx, source, batch); err != nil {
				return err
			}
		}

		logger.Log.WithFields(map[string]interface{}{
			"form": form,
			"rows": len(rows),
		}).Info("Published form data")
	}
	return nil
}
