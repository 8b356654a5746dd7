package pipeline

import (
	"context"
	"fmt"

	"github.com/meerkat-code/meerkat-abacus/pkg/alerts"
	"github.com/meerkat-code/meerkat-abacus/pkg/codes"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/logger"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"github.com/meerkat-code/meerkat-abacus/pkg/countryconfig"
	"github.com/meerkat-code/meerkat-abacus/pkg/ingest"
	"github.com/meerkat-code/meerkat-abacus/pkg/links"
	"github.com/meerkat-code/meerkat-abacus/pkg/observability/metrics"
)

// Deps carries the collaborators the steps are wired with. Everything is
// built once at startup and read-only during a pass.
type Deps struct {
	Country    *countryconfig.CountryConfig
	Coder      *codes.Coder
	CodedSink  *codes.Repository
	Forms      *ingest.FormStore
	AlertSink  *alerts.Repository
	Notifier   *alerts.Notifier
	LinkEngine *links.Engine
	Failures   FailureSink
	Alerts     *AlertBuffer
}

// AlertBuffer hands candidate alerts from the coding step to the alerting
// step. The pipeline is single-threaded so no locking is needed.
type AlertBuffer struct {
	pending []*models.Alert
}

func (b *AlertBuffer) Add(alert *models.Alert) {
	b.pending = append(b.pending, alert)
}

func (b *AlertBuffer) Drain() []*models.Alert {
	pending := b.pending
	b.pending = nil
	return pending
}

func buildStep(name string, deps Deps) (Step, error) {
	switch name {
	case "do_nothing":
		return &doNothing{}, nil
	case "quality_control":
		return &qualityControl{
			uuidField:   deps.Country.UUIDField,
			deviceField: deps.Country.DeviceField,
		}, nil
	case "write_to_db":
		return &writeToDB{forms: deps.Forms, uuidField: deps.Country.UUIDField}, nil
	case "to_codes":
		return &toCodes{
			coder:   deps.Coder,
			country: deps.Country,
			sink:    deps.CodedSink,
			alerts:  deps.Alerts,
		}, nil
	case "add_links":
		return &addLinks{engine: deps.LinkEngine}, nil
	case "send_alerts":
		return &sendAlerts{
			buffer:   deps.Alerts,
			sink:     deps.AlertSink,
			notifier: deps.Notifier,
			idLength: deps.Country.AlertIDLength,
		}, nil
	default:
		return nil, fmt.Errorf("unknown pipeline step %q", name)
	}
}

type doNothing struct{}

func (s *doNothing) Name() string { return "do_nothing" }
func (s *doNothing) StartStep()   {}
func (s *doNothing) Run(_ context.Context, form string, row models.Row) ([]models.RawRecord, error) {
	return []models.RawRecord{{Form: form, Data: row}}, nil
}
func (s *doNothing) EndStep(context.Context, int) error { return nil }

// qualityControl weeds out malformed submissions before anything is stored.
// A missing uuid is a hard failure; a missing device id is expected stream
// noise and just drops the row.
type qualityControl struct {
	uuidField   string
	deviceField string
}

func (s *qualityControl) Name() string { return "quality_control" }
func (s *qualityControl) StartStep()   {}

func (s *qualityControl) Run(_ context.Context, form string, row models.Row) ([]models.RawRecord, error) {
	if row == nil {
		return nil, fmt.Errorf("record has no data")
	}
	if !row.Has(s.uuidField) {
		return nil, fmt.Errorf("record is missing %s", s.uuidField)
	}
	if !row.Has(s.deviceField) {
		return nil, nil
	}
	// Some upload formats rename the index column on export.
	if row.Has("_index") && !row.Has("index") {
		row = row.Clone()
		row["index"] = row["_index"]
		delete(row, "_index")
	}
	return []models.RawRecord{{Form: form, Data: row}}, nil
}

func (s *qualityControl) EndStep(context.Context, int) error { return nil }

// writeToDB persists the raw row so the link engine and reprocessing runs
// can query it later.
type writeToDB struct {
	forms     *ingest.FormStore
	uuidField string
}

func (s *writeToDB) Name() string { return "write_to_db" }
func (s *writeToDB) StartStep()   {}

func (s *writeToDB) Run(ctx context.Context, form string, row models.Row) ([]models.RawRecord, error) {
	if err := s.forms.Upsert(ctx, form, row.String(s.uuidField), row); err != nil {
		return nil, err
	}
	return []models.RawRecord{{Form: form, Data: row}}, nil
}

func (s *writeToDB) EndStep(context.Context, int) error { return nil }

// toCodes runs the record coder. Rows the coder drops (unregistered device,
// unparseable date) leave the batch silently; coded rows continue so the
// later steps see them.
type toCodes struct {
	coder   *codes.Coder
	country *countryconfig.CountryConfig
	sink    *codes.Repository
	alerts  *AlertBuffer
}

func (s *toCodes) Name() string { return "to_codes" }
func (s *toCodes) StartStep()   {}

func (s *toCodes) Run(ctx context.Context, form string, row models.Row) ([]models.RawRecord, error) {
	record, alert := s.coder.ToCode(row, s.country.FormDates[form], s.country.TableName(form))
	if record == nil {
		return nil, nil
	}
	if len(record.Variables) > 0 {
		if err := s.sink.SaveRecord(ctx, record); err != nil {
			return nil, err
		}
	}
	if alert != nil {
		s.alerts.Add(alert)
	}
	return []models.RawRecord{{Form: form, Data: row}}, nil
}

func (s *toCodes) EndStep(context.Context, int) error { return nil }

// addLinks triggers a linking pass once the whole batch has been coded and
// stored. A configuration defect in a link definition aborts the pass.
type addLinks struct {
	engine *links.Engine
}

func (s *addLinks) Name() string { return "add_links" }
func (s *addLinks) StartStep()   {}

func (s *addLinks) Run(_ context.Context, form string, row models.Row) ([]models.RawRecord, error) {
	return []models.RawRecord{{Form: form, Data: row}}, nil
}

func (s *addLinks) EndStep(ctx context.Context, survivors int) error {
	if survivors == 0 {
		return nil
	}
	return s.engine.Run(ctx)
}

// sendAlerts drains the buffered alerts: assigns the short alert id, stores
// the alert and dispatches the notification.
type sendAlerts struct {
	buffer   *AlertBuffer
	sink     *alerts.Repository
	notifier *alerts.Notifier
	idLength int
}

func (s *sendAlerts) Name() string { return "send_alerts" }
func (s *sendAlerts) StartStep()   {}

func (s *sendAlerts) Run(_ context.Context, form string, row models.Row) ([]models.RawRecord, error) {
	return []models.RawRecord{{Form: form, Data: row}}, nil
}

func (s *sendAlerts) EndStep(ctx context.Context, _ int) error {
	for _, alert := range s.buffer.Drain() {
		alert.ID = shortAlertID(alert.UUIDs, s.idLength)
		if err := s.sink.Insert(ctx, alert); err != nil {
			logger.Log.WithError(err).WithField("alert_id", alert.ID).Error("Failed to insert alert")
			continue
		}
		metrics.ObserveAlert()
		s.notifier.Send(ctx, alert)
	}
	return nil
}

func shortAlertID(uuid string, length int) string {
	if length <= 0 || length >= len(uuid) {
		return uuid
	}
	return uuid[len(uuid)-length:]
}
