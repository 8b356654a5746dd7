package links

import (
	"context"
	"fmt"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/dates"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/logger"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
)

// SourceRow is one row of a from- or to-table, keyed by its stable uuid.
type SourceRow struct {
	UUID string
	Data models.Row
}

// RowSource abstracts the tables the engine joins over: raw form tables and
// the alerts table. When filter is nil, requireColumn (if set) restricts the
// scan to rows where that column is present and non-null.
type RowSource interface {
	Rows(ctx context.Context, table string, filter *Filter, requireColumn string) ([]SourceRow, error)
}

// Store is the link sink. Existing returns the current links keyed by
// definition then link value, plus the set of to-row uuids that are already
// linked under any definition.
type Store interface {
	Existing(ctx context.Context) (map[string]map[string]*models.Link, map[string]struct{}, error)
	Insert(ctx context.Context, link *models.Link) error
	Update(ctx context.Context, link *models.Link) error
}

// Engine executes a linking pass: one state machine per definition over the
// shared already-linked set.
type Engine struct {
	defs   []Definition
	source RowSource
	store  Store
}

func NewEngine(defs []Definition, source RowSource, store Store) *Engine {
	return &Engine{defs: defs, source: source, store: store}
}

// Run processes every definition once. Configuration defects (bad filter
// syntax, unknown tie-break policy) abort the whole pass; data defects only
// skip the offending row.
func (e *Engine) Run(ctx context.Context) error {
	for _, def := range e.defs {
		if err := def.Validate(); err != nil {
			return err
		}
	}

	existing, linkedToIDs, err := e.store.Existing(ctx)
	if err != nil {
		return fmt.Errorf("failed to load existing links: %w", err)
	}

	for _, def := range e.defs {
		if existing[def.ID] == nil {
			existing[def.ID] = make(map[string]*models.Link)
		}
		if err := e.runDefinition(ctx, def, existing[def.ID], linkedToIDs); err != nil {
			return fmt.Errorf("link definition %q: %w", def.ID, err)
		}
	}
	return nil
}

func (e *Engine) runDefinition(ctx context.Context, def Definition, links map[string]*models.Link, linkedToIDs map[string]struct{}) error {
	fromFilter, err := ParseFilter(def.FromCondition)
	if err != nil {
		return err
	}
	requireFrom := ""
	if fromFilter != nil {
		requireFrom = def.FromColumn
	}
	fromRows, err := e.source.Rows(ctx, def.FromTable, fromFilter, requireFrom)
	if err != nil {
		return err
	}

	// Join-key map over the from side; on duplicate keys the later row wins.
	fromValues := make(map[string]SourceRow, len(fromRows))
	for _, row := range fromRows {
		value, ok := row.Data.GetString(def.FromColumn)
		if !ok || value == "" {
			continue
		}
		fromValues[def.fold(value)] = row
	}

	toFilter, err := ParseFilter(def.ToCondition)
	if err != nil {
		return err
	}
	requireTo := ""
	if toFilter == nil {
		requireTo = def.ToColumn
	}
	toRows, err := e.source.Rows(ctx, def.ToTable, toFilter, requireTo)
	if err != nil {
		return err
	}

	for _, row := range toRows {
		// To-rows finalized under another definition in a prior pass are
		// not re-processed; updates under this definition still go through
		// the link map below.
		if _, done := linkedToIDs[row.UUID]; done {
			continue
		}
		value, ok := row.Data.GetString(def.ToColumn)
		if !ok || value == "" {
			continue
		}
		linkValue := def.fold(value)
		fromRow, found := fromValues[linkValue]
		if !found {
			// No from-row yet; a later pass may still produce this link.
			continue
		}

		toDate, err := dates.Parse(row.Data.String(def.ToDate))
		if err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"link_def": def.ID,
				"to_id":    row.UUID,
			}).Debug("Skipping to-row with unparseable date")
			continue
		}
		data := Translate(def.Data, row.Data)

		if old, exists := links[linkValue]; exists {
			// "last" keeps the most recent to-row; ties favour the newest
			// write.
			if def.Which == "last" && !toDate.Before(old.ToDate) {
				old.Data = data
				old.ToDate = toDate
				old.ToID = row.UUID
				if err := e.store.Update(ctx, old); err != nil {
					return err
				}
			}
			continue
		}

		fromDate, err := dates.Parse(fromRow.Data.String(def.FromDate))
		if err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"link_def": def.ID,
				"from_id":  fromRow.UUID,
			}).Debug("Skipping link with unparseable from date")
			continue
		}

		link := &models.Link{
			LinkDef:   def.ID,
			LinkValue: linkValue,
			ToID:      row.UUID,
			ToDate:    toDate,
			FromDate:  fromDate,
			Data:      data,
		}
		if err := e.store.Insert(ctx, link); err != nil {
			return err
		}
		links[linkValue] = link
	}
	return nil
}

func (d Definition) fold(value string) string {
	if d.CompareLower {
		return models.NormalizeKey(value)
	}
	return value
}
