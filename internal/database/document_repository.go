package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sqldb "github.com/dreamlog/dreamlog/internal/database/sqlc"
)

// DiffFunc computes the new body of an upserted document. existing is nil when
// the document is absent. Returning changed=false leaves the document alone.
type DiffFunc func(existing json.RawMessage) (body json.RawMessage, changed bool, err error)

// DocumentRepository stores revisioned JSON documents. Every successful write
// assigns a new revision and keeps the views current in the same transaction.
type DocumentRepository struct {
	ctx *Context
}

func NewDocumentRepository(dbCtx *Context) *DocumentRepository {
	return &DocumentRepository{ctx: dbCtx}
}

// Get returns the document stored under id, or ErrNotFound.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*Document, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("document repository: missing database context")
	}

	row, err := queries.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc := mapDocumentRow(row)
	return &doc, nil
}

// Post inserts body under a freshly generated id.
func (r *DocumentRepository) Post(ctx context.Context, body json.RawMessage) (id, rev string, err error) {
	if !json.Valid(body) {
		return "", "", fmt.Errorf("%w: document body is not valid JSON", ErrInvalidQuery)
	}

	id = newDocumentID()
	rev = newRevision("")
	err = withTx(ctx, r.ctx, func(q *sqldb.Queries) error {
		if err := q.InsertDocument(ctx, sqldb.InsertDocumentParams{ID: id, Rev: rev, Body: string(body)}); err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
		return afterWrite(ctx, q, id, body)
	})
	if err != nil {
		return "", "", err
	}
	return id, rev, nil
}

// Put writes body under id. An existing document requires its current rev;
// an empty rev creates the document and fails with ErrConflict if it exists.
func (r *DocumentRepository) Put(ctx context.Context, id, rev string, body json.RawMessage) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: document id is required", ErrInvalidQuery)
	}
	if !json.Valid(body) {
		return "", fmt.Errorf("%w: document body is not valid JSON", ErrInvalidQuery)
	}

	var newRev string
	err := withTx(ctx, r.ctx, func(q *sqldb.Queries) error {
		current, err := q.GetDocument(ctx, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if rev != "" {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			newRev, err = insertDocument(ctx, q, id, body)
			return err
		case err != nil:
			return fmt.Errorf("failed to read document: %w", err)
		}

		if rev != current.Rev {
			return fmt.Errorf("%w: %s has revision %s, not %q", ErrConflict, id, current.Rev, rev)
		}
		newRev, err = updateDocument(ctx, q, id, rev, body)
		return err
	})
	if err != nil {
		return "", err
	}
	return newRev, nil
}

// Remove deletes the document if rev is its current revision.
func (r *DocumentRepository) Remove(ctx context.Context, id, rev string) error {
	return withTx(ctx, r.ctx, func(q *sqldb.Queries) error {
		current, err := q.GetDocument(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return fmt.Errorf("failed to read document: %w", err)
		}
		if rev != current.Rev {
			return fmt.Errorf("%w: %s has revision %s, not %q", ErrConflict, id, current.Rev, rev)
		}

		if IsReservedID(id) {
			if err := resetDesignViews(ctx, q, id); err != nil {
				return err
			}
		} else if err := q.DeleteViewRowsForDocument(ctx, id); err != nil {
			return fmt.Errorf("failed to delete view rows: %w", err)
		}

		affected, err := q.DeleteDocument(ctx, sqldb.DeleteDocumentParams{ID: id, Rev: rev})
		if err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		if affected != 1 {
			return fmt.Errorf("%w: %s changed during delete", ErrConflict, id)
		}
		return nil
	})
}

// Upsert reads the document under id and writes whatever diff returns, all in
// one transaction. A diff reporting no change costs no new revision.
func (r *DocumentRepository) Upsert(ctx context.Context, id string, diff DiffFunc) (UpsertResult, error) {
	result := UpsertResult{ID: id}
	if id == "" {
		return result, fmt.Errorf("%w: document id is required", ErrInvalidQuery)
	}

	err := withTx(ctx, r.ctx, func(q *sqldb.Queries) error {
		var existing json.RawMessage
		current, err := q.GetDocument(ctx, id)
		found := err == nil
		switch {
		case found:
			existing = json.RawMessage(current.Body)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to read document: %w", err)
		}

		body, changed, err := diff(existing)
		if err != nil {
			return err
		}
		if !changed {
			result.Rev = current.Rev
			return nil
		}
		if !json.Valid(body) {
			return fmt.Errorf("%w: document body is not valid JSON", ErrInvalidQuery)
		}

		if found {
			result.Rev, err = updateDocument(ctx, q, id, current.Rev, body)
		} else {
			result.Rev, err = insertDocument(ctx, q, id, body)
		}
		if err != nil {
			return err
		}
		result.Updated = true
		return nil
	})
	if err != nil {
		return UpsertResult{ID: id}, err
	}
	return result, nil
}

func insertDocument(ctx context.Context, q *sqldb.Queries, id string, body json.RawMessage) (string, error) {
	rev := newRevision("")
	if err := q.InsertDocument(ctx, sqldb.InsertDocumentParams{ID: id, Rev: rev, Body: string(body)}); err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return rev, afterWrite(ctx, q, id, body)
}

func updateDocument(ctx context.Context, q *sqldb.Queries, id, prevRev string, body json.RawMessage) (string, error) {
	rev := newRevision(prevRev)
	affected, err := q.UpdateDocument(ctx, sqldb.UpdateDocumentParams{
		Rev:     rev,
		Body:    string(body),
		ID:      id,
		PrevRev: prevRev,
	})
	if err != nil {
		return "", fmt.Errorf("failed to update document: %w", err)
	}
	if affected != 1 {
		return "", fmt.Errorf("%w: %s changed during update", ErrConflict, id)
	}
	return rev, afterWrite(ctx, q, id, body)
}

// afterWrite keeps views in step with a written document. Design documents
// invalidate their views, which rebuild on the next query.
func afterWrite(ctx context.Context, q *sqldb.Queries, id string, body json.RawMessage) error {
	if IsReservedID(id) {
		return resetDesignViews(ctx, q, id)
	}
	return indexDocument(ctx, q, id, body)
}

func mapDocumentRow(row sqldb.Document) Document {
	return Document{
		ID:        row.ID,
		Rev:       row.Rev,
		Body:      json.RawMessage(row.Body),
		UpdatedAt: optionalTime(row.UpdatedAt),
	}
}
