package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqldb "github.com/dreamlog/dreamlog/internal/database/sqlc"
)

const indexExistsQuery = `SELECT name FROM sqlite_master WHERE type = 'index' AND name = ?`

// IndexManager declares expression indexes over document body fields and runs
// sorted queries that rely on them.
type IndexManager struct {
	ctx *Context
}

func NewIndexManager(dbCtx *Context) *IndexManager {
	return &IndexManager{ctx: dbCtx}
}

// IndexName returns the SQLite index name used for the given fields.
func IndexName(fields []string) string {
	return "idx_documents_" + strings.Join(fields, "_")
}

// CreateIndex builds the composite index described by def. Creating an index
// that already exists is not an error; the result reports IndexExists.
func (m *IndexManager) CreateIndex(ctx context.Context, def IndexDefinition) (IndexResult, error) {
	if err := validateFields(def.Fields); err != nil {
		return IndexResult{}, err
	}
	if m.ctx == nil || m.ctx.DB == nil {
		return IndexResult{}, fmt.Errorf("index manager: missing database context")
	}

	name := IndexName(def.Fields)
	exists, err := m.indexExists(ctx, m.ctx.DB, name)
	if err != nil {
		return IndexResult{}, err
	}
	if exists {
		return IndexResult{Name: name, Result: IndexExists}, nil
	}

	exprs := make([]string, 0, len(def.Fields))
	for _, field := range def.Fields {
		exprs = append(exprs, fieldExpr(field))
	}
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON documents(%s)", name, strings.Join(exprs, ", "))
	if _, err := m.ctx.DB.ExecContext(ctx, stmt); err != nil {
		return IndexResult{}, fmt.Errorf("failed to create index %s: %w", name, err)
	}

	return IndexResult{Name: name, Result: IndexCreated}, nil
}

// Find returns the record documents matching req. Sorting requires an index
// over exactly the sort fields, as created by CreateIndex.
func (m *IndexManager) Find(ctx context.Context, req FindRequest) ([]Document, error) {
	if m.ctx == nil || m.ctx.DB == nil {
		return nil, fmt.Errorf("index manager: missing database context")
	}
	for _, field := range req.NonNull {
		if err := validateField(field); err != nil {
			return nil, err
		}
	}

	var query strings.Builder
	query.WriteString("SELECT id, rev, body, updated_at FROM documents WHERE substr(id, 1, 8) <> '")
	query.WriteString(DesignPrefix)
	query.WriteString("'")
	for _, field := range req.NonNull {
		query.WriteString(" AND ")
		query.WriteString(fieldExpr(field))
		query.WriteString(" IS NOT NULL")
	}

	if len(req.Sort) > 0 {
		fields := make([]string, 0, len(req.Sort))
		order := make([]string, 0, len(req.Sort)+1)
		direction := SortAsc
		for _, s := range req.Sort {
			if err := validateField(s.Field); err != nil {
				return nil, err
			}
			direction = s.Direction
			if direction == "" {
				direction = SortAsc
			}
			if direction != SortAsc && direction != SortDesc {
				return nil, fmt.Errorf("%w: invalid sort direction %q", ErrInvalidQuery, s.Direction)
			}
			fields = append(fields, s.Field)
			order = append(order, fieldExpr(s.Field)+" "+strings.ToUpper(string(direction)))
		}

		name := IndexName(fields)
		exists, err := m.indexExists(ctx, m.ctx.DB, name)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: no index exists for sort on %s", ErrInvalidQuery, strings.Join(fields, ", "))
		}

		order = append(order, "id "+strings.ToUpper(string(direction)))
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(order, ", "))
	}

	rows, err := m.ctx.DB.QueryContext(ctx, query.String())
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	defer rows.Close()

	var result []Document
	for rows.Next() {
		var row sqldb.Document
		if err := rows.Scan(&row.ID, &row.Rev, &row.Body, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		result = append(result, mapDocumentRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	return result, nil
}

func (m *IndexManager) indexExists(ctx context.Context, db sqldb.DBTX, name string) (bool, error) {
	var found string
	err := db.QueryRowContext(ctx, indexExistsQuery, name).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up index %s: %w", name, err)
	}
	return true, nil
}

func validateFields(fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", ErrInvalidQuery)
	}
	for _, field := range fields {
		if err := validateField(field); err != nil {
			return err
		}
	}
	return nil
}
