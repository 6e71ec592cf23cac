package sqldb

import "database/sql"

type Document struct {
	ID        string
	Rev       string
	Body      string
	UpdatedAt sql.NullTime
}

type ViewRow struct {
	DesignID string
	ViewName string
	DocID    string
	Seq      int64
	Key      string
}

type ViewState struct {
	DesignID  string
	ViewName  string
	DesignRev string
	BuiltAt   sql.NullTime
}
