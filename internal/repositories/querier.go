package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of the pgx surface the repositories use. It is
// satisfied by *pgxpool.Pool, pgx.Tx and the pgxmock pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner opens transactions. Satisfied by *pgxpool.Pool and the
// pgxmock pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
