package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wordledger/internal/common"
	"wordledger/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.Tenant, error)
	UpdateTariffs(ctx context.Context, id string, tariffs models.TariffTable) error
	UpdateMetadata(ctx context.Context, id string, metadata models.JSONB) error
	UpdateAPIKeyHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	ListIDs(ctx context.Context) ([]string, error)
}

type tenantRepo struct {
	db Querier
}

func NewTenantRepo(db Querier) TenantRepository {
	return &tenantRepo{db: db}
}

const tenantColumns = "id, name, api_key_hash, balance, tariffs, metadata, created_at, updated_at"

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	tariffs, err := json.Marshal(tenant.Tariffs)
	if err != nil {
		return fmt.Errorf("failed to marshal tariffs: %w", err)
	}
	metadata, err := json.Marshal(tenant.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO tenants (id, name, api_key_hash, balance, tariffs, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query, tenant.ID, tenant.Name, tenant.APIKeyHash, tenant.Balance, tariffs, metadata)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", common.ErrTenantExists, tenant.ID)
	}
	return err
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

func (r *tenantRepo) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE api_key_hash = $1`
	return scanTenant(r.db.QueryRow(ctx, query, hash))
}

func (r *tenantRepo) UpdateTariffs(ctx context.Context, id string, tariffs models.TariffTable) error {
	payload, err := json.Marshal(tariffs)
	if err != nil {
		return fmt.Errorf("failed to marshal tariffs: %w", err)
	}
	query := `UPDATE tenants SET tariffs = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, payload, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", common.ErrTenantNotFound, id)
	}
	return nil
}

func (r *tenantRepo) UpdateMetadata(ctx context.Context, id string, metadata models.JSONB) error {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	query := `UPDATE tenants SET metadata = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, payload, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", common.ErrTenantNotFound, id)
	}
	return nil
}

func (r *tenantRepo) UpdateAPIKeyHash(ctx context.Context, id, hash string) error {
	query := `UPDATE tenants SET api_key_hash = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, hash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", common.ErrTenantNotFound, id)
	}
	return nil
}

// Delete removes the tenant record only. Its transaction history is
// kept until explicitly purged.
func (r *tenantRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM tenants WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", common.ErrTenantNotFound, id)
	}
	return nil
}

func (r *tenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := scanTenantRow(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

func (r *tenantRepo) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	tenant, err := scanTenantRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTenantNotFound
	}
	return tenant, err
}

func scanTenantRow(row rowScanner) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	var balance decimal.Decimal
	var tariffs, metadata []byte

	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.APIKeyHash,
		&balance,
		&tariffs,
		&metadata,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
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
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tenant.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return tenant, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
