package client

import (
	"context"

	"github.com/dmitrijs2005/ledgermail/internal/client/models"
)

// Query selects rows of Table where Column = Value, newest first by OrderBy
// when it is set, at most Limit rows.
type Query struct {
	Table   string
	Column  string
	Value   any
	OrderBy string
	Limit   int
}

// Remote is the table and RPC surface of the document service.
type Remote interface {
	ListMyOrgs(ctx context.Context) ([]models.Row, error)
	Select(ctx context.Context, q Query) ([]models.Row, error)
	ListAttachmentTree(ctx context.Context, scopeType, scopeID string, limit, offset int) ([]models.Row, error)
	Insert(ctx context.Context, table string, row models.Row) error
}

// Storage writes objects into buckets.
type Storage interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
}
