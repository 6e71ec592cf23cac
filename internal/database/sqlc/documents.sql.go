package sqldb

import "context"

const getDocument = `SELECT id, rev, body, updated_at FROM documents WHERE id = ?`

func (q *Queries) GetDocument(ctx context.Context, id string) (Document, error) {
	row := q.db.QueryRowContext(ctx, getDocument, id)
	var i Document
	err := row.Scan(&i.ID, &i.Rev, &i.Body, &i.UpdatedAt)
	return i, err
}

const insertDocument = `INSERT INTO documents (id, rev, body) VALUES (?, ?, ?)`

type InsertDocumentParams struct {
	ID   string
	Rev  string
	Body string
}

func (q *Queries) InsertDocument(ctx context.Context, arg InsertDocumentParams) error {
	_, err := q.db.ExecContext(ctx, insertDocument, arg.ID, arg.Rev, arg.Body)
	return err
}

const updateDocument = `UPDATE documents
SET rev = ?, body = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND rev = ?`

type UpdateDocumentParams struct {
	Rev     string
	Body    string
	ID      string
	PrevRev string
}

func (q *Queries) UpdateDocument(ctx context.Context, arg UpdateDocumentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateDocument, arg.Rev, arg.Body, arg.ID, arg.PrevRev)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteDocument = `DELETE FROM documents WHERE id = ? AND rev = ?`

type DeleteDocumentParams struct {
	ID  string
	Rev string
}

func (q *Queries) DeleteDocument(ctx context.Context, arg DeleteDocumentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDocument, arg.ID, arg.Rev)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listDesignDocuments = `SELECT id, rev, body, updated_at FROM documents
WHERE substr(id, 1, 8) = '_design/'
ORDER BY id`

func (q *Queries) ListDesignDocuments(ctx context.Context) ([]Document, error) {
	return q.listDocuments(ctx, listDesignDocuments)
}

const listRecordDocuments = `SELECT id, rev, body, updated_at FROM documents
WHERE substr(id, 1, 8) <> '_design/'
ORDER BY id`

func (q *Queries) ListRecordDocuments(ctx context.Context) ([]Document, error) {
	return q.listDocuments(ctx, listRecordDocuments)
}

func (q *Queries) listDocuments(ctx context.Context, query string) ([]Document, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Document
	for rows.Next() {
		var i Document
		if err := rows.Scan(&i.ID, &i.Rev, &i.Body, &i.UpdatedAt); err != nil {
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
