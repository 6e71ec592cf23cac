package sqldb

import "context"

const deleteAllViewState = `DELETE FROM view_state`

func (q *Queries) DeleteAllViewState(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllViewState)
	return err
}

const deleteAllViewRows = `DELETE FROM view_rows`

func (q *Queries) DeleteAllViewRows(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllViewRows)
	return err
}

const deleteAllDocuments = `DELETE FROM documents`

func (q *Queries) DeleteAllDocuments(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllDocuments)
	return err
}
