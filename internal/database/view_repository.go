package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sqldb "github.com/dreamlog/dreamlog/internal/database/sqlc"
)

// ViewRepository answers map/reduce view queries. View rows live in the
// view_rows table: document writes maintain them incrementally and a view whose
// design document changed is rebuilt from scratch on its next query.
type ViewRepository struct {
	ctx *Context
}

func NewViewRepository(dbCtx *Context) *ViewRepository {
	return &ViewRepository{ctx: dbCtx}
}

type viewSpec struct {
	designID  string
	designRev string
	name      string
	def       ViewDefinition
}

// Query reads the named view of the design document designID.
func (r *ViewRepository) Query(ctx context.Context, designID, viewName string, query ViewQuery) ([]ViewRow, error) {
	var result []ViewRow
	err := withTx(ctx, r.ctx, func(q *sqldb.Queries) error {
		spec, err := loadView(ctx, q, designID, viewName)
		if err != nil {
			return err
		}
		if spec.def.Reduce != ReduceCount {
			return fmt.Errorf("%w: view %s/%s has unsupported reduce %q", ErrInvalidQuery, designID, viewName, spec.def.Reduce)
		}
		if err := ensureFresh(ctx, q, spec); err != nil {
			return err
		}

		var startKey, endKey sql.NullString
		if query.StartKey != nil {
			startKey = sql.NullString{String: *query.StartKey, Valid: true}
		}
		if query.EndKey != nil {
			endKey = sql.NullString{String: *query.EndKey, Valid: true}
		}

		if !query.Group {
			total, err := q.CountViewRows(ctx, sqldb.CountViewRowsParams{
				DesignID: designID,
				ViewName: viewName,
				StartKey: startKey,
				EndKey:   endKey,
			})
			if err != nil {
				return fmt.Errorf("failed to reduce view: %w", err)
			}
			result = []ViewRow{{Value: total}}
			return nil
		}

		limit := int64(query.Limit)
		if limit <= 0 {
			limit = -1
		}
		rows, err := q.GroupViewRows(ctx, sqldb.GroupViewRowsParams{
			DesignID: designID,
			ViewName: viewName,
			StartKey: startKey,
			EndKey:   endKey,
			Limit:    limit,
		})
		if err != nil {
			return fmt.Errorf("failed to group view: %w", err)
		}

		result = make([]ViewRow, 0, len(rows))
		for _, row := range rows {
			result = append(result, ViewRow{Key: row.Key, Value: row.Value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Rebuild discards and recomputes every view of designID.
func (r *ViewRepository) Rebuild(ctx context.Context, designID string) error {
	return withTx(ctx, r.ctx, func(q *sqldb.Queries) error {
		specs, err := loadViews(ctx, q)
		if err != nil {
			return err
		}
		rebuilt := 0
		for _, spec := range specs {
			if spec.designID != designID {
				continue
			}
			if err := rebuildView(ctx, q, spec); err != nil {
				return err
			}
			rebuilt++
		}
		if rebuilt == 0 {
			return fmt.Errorf("%w: design document %s has no views", ErrInvalidQuery, designID)
		}
		return nil
	})
}

func loadView(ctx context.Context, q *sqldb.Queries, designID, viewName string) (viewSpec, error) {
	row, err := q.GetDocument(ctx, designID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return viewSpec{}, fmt.Errorf("%w: design document %s does not exist", ErrInvalidQuery, designID)
		}
		return viewSpec{}, fmt.Errorf("failed to read design document: %w", err)
	}

	design, err := parseDesign(row)
	if err != nil {
		return viewSpec{}, err
	}
	def, ok := design.Views[viewName]
	if !ok {
		return viewSpec{}, fmt.Errorf("%w: view %s/%s does not exist", ErrInvalidQuery, designID, viewName)
	}
	return viewSpec{designID: row.ID, designRev: row.Rev, name: viewName, def: def}, nil
}

func loadViews(ctx context.Context, q *sqldb.Queries) ([]viewSpec, error) {
	rows, err := q.ListDesignDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list design documents: %w", err)
	}

	var specs []viewSpec
	for _, row := range rows {
		design, err := parseDesign(row)
		if err != nil {
			return nil, err
		}
		for name, def := range design.Views {
			specs = append(specs, viewSpec{designID: row.ID, designRev: row.Rev, name: name, def: def})
		}
	}
	return specs, nil
}

func parseDesign(row sqldb.Document) (DesignDocument, error) {
	var design DesignDocument
	if err := json.Unmarshal([]byte(row.Body), &design); err != nil {
		return DesignDocument{}, fmt.Errorf("%w: design document %s: %w", ErrInvalidQuery, row.ID, err)
	}
	for name, def := range design.Views {
		if err := validateField(def.Map.Emit); err != nil {
			return DesignDocument{}, fmt.Errorf("view %s/%s: %w", row.ID, name, err)
		}
	}
	return design, nil
}

func isFresh(ctx context.Context, q *sqldb.Queries, spec viewSpec) (bool, error) {
	state, err := q.GetViewState(ctx, sqldb.GetViewStateParams{DesignID: spec.designID, ViewName: spec.name})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read view state: %w", err)
	}
	return state.DesignRev == spec.designRev, nil
}

func ensureFresh(ctx context.Context, q *sqldb.Queries, spec viewSpec) error {
	fresh, err := isFresh(ctx, q, spec)
	if err != nil || fresh {
		return err
	}
	return rebuildView(ctx, q, spec)
}

func rebuildView(ctx context.Context, q *sqldb.Queries, spec viewSpec) error {
	if err := q.DeleteViewRows(ctx, sqldb.DeleteViewRowsParams{DesignID: spec.designID, ViewName: spec.name}); err != nil {
		return fmt.Errorf("failed to clear view rows: %w", err)
	}

	docs, err := q.ListRecordDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	for _, doc := range docs {
		if err := emitRows(ctx, q, spec, doc.ID, json.RawMessage(doc.Body)); err != nil {
			return err
		}
	}

	if err := q.UpsertViewState(ctx, sqldb.UpsertViewStateParams{
		DesignID:  spec.designID,
		ViewName:  spec.name,
		DesignRev: spec.designRev,
	}); err != nil {
		return fmt.Errorf("failed to record view state: %w", err)
	}
	return nil
}

// indexDocument replaces the view rows of one record document. Views not yet
// built are skipped; their first query builds them.
func indexDocument(ctx context.Context, q *sqldb.Queries, docID string, body json.RawMessage) error {
	if err := q.DeleteViewRowsForDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete view rows: %w", err)
	}

	specs, err := loadViews(ctx, q)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		fresh, err := isFresh(ctx, q, spec)
		if err != nil {
			return err
		}
		if !fresh {
			continue
		}
		if err := emitRows(ctx, q, spec, docID, body); err != nil {
			return err
		}
	}
	return nil
}

func resetDesignViews(ctx context.Context, q *sqldb.Queries, designID string) error {
	if err := q.DeleteViewRowsForDesign(ctx, designID); err != nil {
		return fmt.Errorf("failed to clear view rows: %w", err)
	}
	if err := q.DeleteViewStateForDesign(ctx, designID); err != nil {
		return fmt.Errorf("failed to clear view state: %w", err)
	}
	return nil
}

func emitRows(ctx context.Context, q *sqldb.Queries, spec viewSpec, docID string, body json.RawMessage) error {
	keys, err := emitKeys(body, spec.def.Map)
	if err != nil {
		return fmt.Errorf("view %s/%s on %s: %w", spec.designID, spec.name, docID, err)
	}
	for seq, key := range keys {
		if err := q.InsertViewRow(ctx, sqldb.InsertViewRowParams{
			DesignID: spec.designID,
			ViewName: spec.name,
			DocID:    docID,
			Seq:      int64(seq),
			Key:      key,
		}); err != nil {
			return fmt.Errorf("failed to insert view row: %w", err)
		}
	}
	return nil
}

// emitKeys applies a map definition to a document body. A string field emits
// itself, an array emits each string element in order, anything else emits
// nothing.
func emitKeys(body json.RawMessage, m MapDefinition) ([]string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("document body is not an object: %w", err)
	}

	raw, ok := fields[m.Emit]
	if !ok {
		return nil, nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []any:
		keys := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				keys = append(keys, s)
			}
		}
		return keys, nil
	default:
		return nil, nil
	}
}
