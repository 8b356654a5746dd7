package pipeline

import (
	"context"
	"fmt"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/logger"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"github.com/meerkat-code/meerkat-abacus/pkg/observability/metrics"
)

// Step is one named stage of the processing pipeline. Run takes a single
// record and returns zero or more records for the next stage. StartStep and
// EndStep bracket each batch; EndStep receives the number of records that
// survived the stage and may flush buffered work.
type Step interface {
	Name() string
	StartStep()
	Run(ctx context.Context, form string, row models.Row) ([]models.RawRecord, error)
	EndStep(ctx context.Context, survivors int) error
}

// FailureSink persists records a step could not process, for operator
// triage.
type FailureSink interface {
	Record(ctx context.Context, failure models.StepFailure) error
}

// Pipeline runs batches of raw records through an ordered list of steps.
// Processing is single-threaded: one batch moves through the whole step
// sequence before the next is taken.
type Pipeline struct {
	steps    []Step
	failures FailureSink
}

// New builds the pipeline from the configured step names. An unknown step
// name is a deployment defect and fails construction, as is a coding step
// without the alerting step that drains its buffer.
func New(names []string, deps Deps) (*Pipeline, error) {
	steps := make([]Step, 0, len(names))
	hasCodes, hasAlerts := false, false
	for _, name := range names {
		step, err := buildStep(name, deps)
		if err != nil {
			return nil, err
		}
		switch name {
		case "to_codes":
			hasCodes = true
		case "send_alerts":
			hasAlerts = true
		}
		steps = append(steps, step)
	}
	if hasCodes && !hasAlerts {
		return nil, fmt.Errorf("pipeline runs to_codes without send_alerts to drain its alerts")
	}
	return &Pipeline{steps: steps, failures: deps.Failures}, nil
}

// ProcessBatch feeds the batch through each step in order. A record that
// fails a step is logged to the failure sink and removed; its siblings
// continue. An empty intermediate batch short-circuits the remaining steps.
// The returned error is reserved for configuration defects, which abort the
// pass.
func (p *Pipeline) ProcessBatch(ctx context.Context, records []models.RawRecord) ([]models.RawRecord, error) {
	data := records
	failed := 0
	for _, step := range p.steps {
		step.StartStep()
		survivors := len(data)
		var next []models.RawRecord
		for _, record := range data {
			outputs, err := step.Run(ctx, record.Form, record.Data)
			if err != nil {
				p.handleFailure(ctx, record, step, err)
				survivors--
				failed++
				continue
			}
			next = append(next, outputs...)
		}
		if err := step.EndStep(ctx, survivors); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.Name(), err)
		}
		data = next
		if len(data) == 0 {
			break
		}
	}
	metrics.ObserveBatch(len(records), len(data), failed)
	return data, nil
}

func (p *Pipeline) handleFailure(ctx context.Context, record models.RawRecord, step Step, err error) {
	logger.Log.WithError(err).WithFields(map[string]interface{}{
		"form": record.Form,
		"step": step.Name(),
	}).Error("Record failed pipeline step")

	failure := models.StepFailure{
		Form:     record.Form,
		StepName: step.Name(),
		Error:    err.Error(),
		Data:     record.Data,
	}
	if sinkErr := p.failures.Record(ctx, failure); sinkErr != nil {
		logger.Log.WithError(sinkErr).Error("Failed to persist step failure")
	}
}
