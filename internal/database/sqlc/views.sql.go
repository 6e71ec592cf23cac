package sqldb

import (
	"context"
	"database/sql"
)

const insertViewRow = `INSERT INTO view_rows (design_id, view_name, doc_id, seq, key) VALUES (?, ?, ?, ?, ?)`

type InsertViewRowParams struct {
	DesignID string
	ViewName string
	DocID    string
	Seq      int64
	Key      string
}

func (q *Queries) InsertViewRow(ctx context.Context, arg InsertViewRowParams) error {
	_, err := q.db.ExecContext(ctx, insertViewRow, arg.DesignID, arg.ViewName, arg.DocID, arg.Seq, arg.Key)
	return err
}

const deleteViewRowsForDocument = `DELETE FROM view_rows WHERE doc_id = ?`

func (q *Queries) DeleteViewRowsForDocument(ctx context.Context, docID string) error {
	_, err := q.db.ExecContext(ctx, deleteViewRowsForDocument, docID)
	return err
}

const deleteViewRows = `DELETE FROM view_rows WHERE design_id = ? AND view_name = ?`

type DeleteViewRowsParams struct {
	DesignID string
	ViewName string
}

func (q *Queries) DeleteViewRows(ctx context.Context, arg DeleteViewRowsParams) error {
	_, err := q.db.ExecContext(ctx, deleteViewRows, arg.DesignID, arg.ViewName)
	return err
}

const getViewState = `SELECT design_id, view_name, design_rev, built_at FROM view_state
WHERE design_id = ? AND view_name = ?`

type GetViewStateParams struct {
	DesignID string
	ViewName string
}

func (q *Queries) GetViewState(ctx context.Context, arg GetViewStateParams) (ViewState, error) {
	row := q.db.QueryRowContext(ctx, getViewState, arg.DesignID, arg.ViewName)
	var i ViewState
	err := row.Scan(&i.DesignID, &i.ViewName, &i.DesignRev, &i.BuiltAt)
	return i, err
}

const upsertViewState = `INSERT INTO view_state (design_id, view_name, design_rev) VALUES (?, ?, ?)
ON CONFLICT (design_id, view_name)
DO UPDATE SET design_rev = excluded.design_rev, built_at = CURRENT_TIMESTAMP`

type UpsertViewStateParams struct {
	DesignID  string
	ViewName  string
	DesignRev string
}

func (q *Queries) UpsertViewState(ctx context.Context, arg UpsertViewStateParams) error {
	_, err := q.db.ExecContext(ctx, upsertViewState, arg.DesignID, arg.ViewName, arg.DesignRev)
	return err
}

const groupViewRows = `SELECT key, COUNT(*) AS value FROM view_rows
WHERE design_id = ? AND view_name = ?
  AND (? IS NULL OR key >= ?)
  AND (? IS NULL OR key <= ?)
GROUP BY key
ORDER BY key
LIMIT ?`

type GroupViewRowsParams struct {
	DesignID string
	ViewName string
	StartKey sql.NullString
	EndKey   sql.NullString
	Limit    int64
}

type GroupViewRowsRow struct {
	Key   string
	Value int64
}

func (q *Queries) GroupViewRows(ctx context.Context, arg GroupViewRowsParams) ([]GroupViewRowsRow, error) {
	rows, err := q.db.QueryContext(ctx, groupViewRows,
		arg.DesignID, arg.ViewName,
		arg.StartKey, arg.StartKey,
		arg.EndKey, arg.EndKey,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GroupViewRowsRow
	for rows.Next() {
		var i GroupViewRowsRow
		if err := rows.Scan(&i.Key, &i.Value); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countViewRows = `SELECT COUNT(*) FROM view_rows
WHERE design_id = ? AND view_name = ?
  AND (? IS NULL OR key >= ?)
  AND (? IS NULL OR key <= ?)`

type CountViewRowsParams struct {
	DesignID string
	ViewName string
	StartKey sql.NullString
	EndKey   sql.NullString
}

func (q *Queries) CountViewRows(ctx context.Context, arg CountViewRowsParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countViewRows,
		arg.DesignID, arg.ViewName,
		arg.StartKey, arg.StartKey,
		arg.EndKey, arg.EndKey,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteViewRowsForDesign = `DELETE FROM view_rows WHERE design_id = ?`

func (q *Queries) DeleteViewRowsForDesign(ctx context.Context, designID string) error {
	_, err := q.db.ExecContext(ctx, deleteViewRowsForDesign, designID)
	return err
}

const deleteViewStateForDesign = `DELETE FROM view_state WHERE design_id = ?`

func (q *Queries) DeleteViewStateForDesign(ctx context.Context, designID string) error {
	_, err := q.db.ExecContext(ctx, deleteViewStateForDesign, designID)
	return err
}
