package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"wordledger/internal/common"
	"wordledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// MutationFunc computes a balance change for a tenant. It receives the
// tenant as currently locked in storage and returns the transaction to
// record; ResultingBalance becomes the tenant's new balance. It must
// not perform I/O.
type MutationFunc func(tenant *models.Tenant) (*models.Transaction, error)

// LedgerRepository is the only writer of tenant balances. Apply runs
// the read-compute-write-append sequence atomically: either the new
// balance and its transaction record both commit, or neither does.
type LedgerRepository interface {
	Apply(ctx context.Context, tenantID string, mutate MutationFunc) (*models.Transaction, error)
}

type ledgerRepo struct {
	db    TxBeginner
	locks sync.Map // tenant id -> *sync.Mutex
}

func NewLedgerRepo(db TxBeginner) LedgerRepository {
	return &ledgerRepo{db: db}
}

const maxApplyAttempts = 3

func (r *ledgerRepo) Apply(ctx context.Context, tenantID string, mutate MutationFunc) (*models.Transaction, error) {
	// In-process serialization keeps same-tenant callers from piling up
	// on the row lock. The row lock below remains authoritative when
	// several processes share the database.
	mu := r.tenantLock(tenantID)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		rec, err := r.applyOnce(ctx, tenantID, mutate)
		if err == nil {
			return rec, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: gave up after %d attempts: %v", common.ErrConcurrencyConflict, maxApplyAttempts, lastErr)
}

func (r *ledgerRepo) applyOnce(ctx context.Context, tenantID string, mutate MutationFunc) (*models.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", common.ErrStorageFailure, err)
	}
	defer tx.Rollback(ctx)

	tenant, err := lockTenantRow(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}

	rec, err := mutate(tenant)
	if err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.TenantID = tenantID
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	updateQuery := `UPDATE tenants SET balance = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(ctx, updateQuery, rec.ResultingBalance, tenantID); err != nil {
		return nil, fmt.Errorf("%w: update balance: %w", common.ErrStorageFailure, err)
	}

	reqContext, err := json.Marshal(rec.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context: %w", err)
	}
	insertQuery := `
		INSERT INTO transactions (id, tenant_id, ts, kind, service, quantity, unit_price, amount, resulting_balance, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Exec(ctx, insertQuery,
		rec.ID,
		rec.TenantID,
		rec.Timestamp,
		rec.Kind,
		rec.Service,
		rec.Quantity,
		rec.UnitPrice,
		rec.Amount,
		rec.ResultingBalance,
		reqContext,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: append transaction: %w", common.ErrStorageFailure, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", common.ErrStorageFailure, err)
	}
	return rec, nil
}

func lockTenantRow(ctx context.Context, tx pgx.Tx, tenantID string) (*models.Tenant, error) {
	tenant := &models.Tenant{ID: tenantID}
	var balance decimal.Decimal
	var tariffs []byte

	query := `SELECT balance, tariffs FROM tenants WHERE id = $1 FOR UPDATE`
	err := tx.QueryRow(ctx, query, tenantID).Scan(&balance, &tariffs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrTenantNotFound, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock tenant: %w", common.ErrStorageFailure, err)
	}
	tenant.Balance = balance

	if len(tariffs) > 0 {
		if err := json.Unmarshal(tariffs, &tenant.Tariffs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tariffs: %w", err)
		}
	}
	if tenant.Tariffs == nil {
		tenant.Tariffs = models.TariffTable{}
	}
	return tenant, nil
}

// isRetryable reports whether the error is a transient serialization
// or deadlock failure worth another attempt.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (r *ledgerRepo) tenantLock(tenantID string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(tenantID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
