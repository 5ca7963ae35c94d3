package repository

import "context"

// RowStore is the raw repeater-row persistence contract, mirroring the
// legacy field store: scalar fields by name, repeater rows addressed by
// 1-based index. Higher layers translate to 0-based indexes; nothing above
// the sqlite package should use this interface directly.
type RowStore interface {
	GetField(ctx context.Context, name string, taskID int64) (string, error)
	UpdateField(ctx context.Context, name, value string, taskID int64) error
	CountRows(ctx context.Context, repeater string, taskID int64) (int, error)
	GetRows(ctx context.Context, repeater string, taskID int64) ([]map[string]string, error)
	AddRow(ctx context.Context, repeater string, row map[string]string, taskID int64) (int, error)
	UpdateSubField(ctx context.Context, repeater string, index1 int, field, value string, taskID int64) error
	DeleteRow(ctx context.Context, repeater string, index1 int, taskID int64) error
}

// TaxonomyLookup resolves status/client/project term names for report
// grouping. Read-only; taxonomy management is out of scope.
type TaxonomyLookup interface {
	TermName(ctx context.Context, taxonomy string, id int64) (string, error)
}

// UserResolver resolves an acting user from a bearer token.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (int64, error)
}
