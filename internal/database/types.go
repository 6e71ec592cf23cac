package database

import (
	"encoding/json"
	"time"
)

// DesignPrefix marks reserved document ids. Ordinary record scans skip them.
const DesignPrefix = "_design/"

// Document is a stored JSON body together with its identity and revision.
type Document struct {
	ID        string
	Rev       string
	Body      json.RawMessage
	UpdatedAt time.Time
}

// DesignDocument declares versioned views over the record documents.
type DesignDocument struct {
	Version int                       `json:"version"`
	Views   map[string]ViewDefinition `json:"views"`
}

// ViewDefinition is a declarative map/reduce pair. Map emits the value of a
// document field, one row per element when the field is an array. Reduce is
// either empty or "_count".
type ViewDefinition struct {
	Map    MapDefinition `json:"map"`
	Reduce string        `json:"reduce,omitempty"`
}

// MapDefinition names the document field whose values become view keys.
type MapDefinition struct {
	Emit string `json:"emit"`
}

// ReduceCount is the only built-in reducer.
const ReduceCount = "_count"

// ViewQuery selects rows from a view. Keys are compared bytewise, which is
// codepoint order for UTF-8. EndKey is inclusive. Limit <= 0 means no limit.
type ViewQuery struct {
	Group    bool
	StartKey *string
	EndKey   *string
	Limit    int
}

// ViewRow is one reduced row. Without grouping a single row with an empty key
// carries the total.
type ViewRow struct {
	Key   string
	Value int64
}

// IndexDefinition lists the body fields of a composite index, in order.
type IndexDefinition struct {
	Fields []string
}

// IndexResult reports whether CreateIndex built the index or found it.
type IndexResult struct {
	Name   string
	Result string
}

const (
	IndexCreated = "created"
	IndexExists  = "exists"
)

// SortDirection orders a sort field.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortField orders Find results by one body field.
type SortField struct {
	Field     string
	Direction SortDirection
}

// FindRequest selects record documents whose NonNull fields are all present
// and not null, ordered by Sort.
type FindRequest struct {
	NonNull []string
	Sort    []SortField
}

// UpsertResult reports the outcome of Upsert.
type UpsertResult struct {
	ID      string
	Rev     string
	Updated bool
}
