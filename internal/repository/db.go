package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultTimeout bounds every persistence call.
const DefaultTimeout = 5 * time.Second

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db, timeout: DefaultTimeout}
}

type Queries struct {
	db      DBTX
	timeout time.Duration
}

var _ Querier = (*Queries)(nil)

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx, timeout: q.timeout}
}

// WithTimeout returns a copy whose calls are bounded by d.
func (q *Queries) WithTimeout(d time.Duration) *Queries {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Queries{db: q.db, timeout: d}
}

func (q *Queries) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, q.timeout)
}
