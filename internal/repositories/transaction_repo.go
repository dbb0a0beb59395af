package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wordledger/internal/models"

	"github.com/shopspring/decimal"
)

type TransactionRepository interface {
	// History returns a tenant's transactions, most recent first.
	History(ctx context.Context, tenantID string, limit, offset int) ([]*models.Transaction, error)

	// List returns transactions across all tenants with optional filters.
	List(ctx context.Context, filters *models.TransactionFilters) ([]*models.Transaction, error)

	// ExportAll returns the full log in chronological order.
	ExportAll(ctx context.Context) ([]*models.Transaction, error)

	// SumByTenant returns the sum of applied amounts for a tenant.
	SumByTenant(ctx context.Context, tenantID string) (decimal.Decimal, error)

	// Destructive maintenance. Each runs as a single statement so a
	// purge removes all matching records or none.
	DeleteRange(ctx context.Context, start, end time.Time) (int64, error)
	DeleteByTenant(ctx context.Context, tenantID string) (int64, error)
	DeleteByService(ctx context.Context, service string) (int64, error)
	Reset(ctx context.Context) (int64, error)
}

type transactionRepo struct {
	db Querier
}

func NewTransactionRepo(db Querier) TransactionRepository {
	return &transactionRepo{db: db}
}

const transactionColumns = "id, tenant_id, ts, kind, service, quantity, unit_price, amount, resulting_balance, context"

func (r *transactionRepo) History(ctx context.Context, tenantID string, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE tenant_id = $1
		ORDER BY ts DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *transactionRepo) List(ctx context.Context, filters *models.TransactionFilters) ([]*models.Transaction, error) {
	if filters == nil {
		filters = &models.TransactionFilters{}
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	args := []interface{}{}
	argIdx := 0

	if filters.TenantID != nil {
		argIdx++
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, *filters.TenantID)
	}
	if filters.Kind != nil {
		argIdx++
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, *filters.Kind)
	}
	if filters.Service != nil {
		argIdx++
		query += fmt.Sprintf(" AND service = $%d", argIdx)
		args = append(args, *filters.Service)
	}
	if filters.Start != nil {
		argIdx++
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, *filters.Start)
	}
	if filters.End != nil {
		argIdx++
		query += fmt.Sprintf(" AND ts <= $%d", argIdx)
		args = append(args, *filters.End)
	}

	query += " ORDER BY ts DESC, id DESC"

	if filters.Limit > 0 {
		argIdx++
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			argIdx++
			query += fmt.Sprintf(" OFFSET $%d", argIdx)
			args = append(args, filters.Offset)
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *transactionRepo) ExportAll(ctx context.Context) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY ts ASC, id ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *transactionRepo) SumByTenant(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE tenant_id = $1`
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&sum)
	return sum, err
}

func (r *transactionRepo) DeleteRange(ctx context.Context, start, end time.Time) (int64, error) {
	query := `DELETE FROM transactions WHERE ts BETWEEN $1 AND $2`
	tag, err := r.db.Exec(ctx, query, start, end)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *transactionRepo) DeleteByTenant(ctx context.Context, tenantID string) (int64, error) {
	query := `DELETE FROM transactions WHERE tenant_id = $1`
	tag, err := r.db.Exec(ctx, query, tenantID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *transactionRepo) DeleteByService(ctx context.Context, service string) (int64, error) {
	query := `DELETE FROM transactions WHERE service = $1`
	tag, err := r.db.Exec(ctx, query, service)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *transactionRepo) Reset(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type txRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectTransactions(rows txRows) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	for rows.Next() {
		rec := &models.Transaction{}
		var reqContext []byte

		err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.Timestamp,
			&rec.Kind,
			&rec.Service,
			&rec.Quantity,
			&rec.UnitPrice,
			&rec.Amount,
			&rec.ResultingBalance,
			&reqContext,
		)
		if err != nil {
			return nil, err
		}
		if len(reqContext) > 0 {
			if err := json.Unmarshal(reqContext, &rec.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal context: %w", err)
			}
		}
		transactions = append(transactions, rec)
	}
	return transactions, rows.Err()
}
