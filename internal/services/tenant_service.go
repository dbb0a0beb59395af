package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"wordledger/internal/caching"
	"wordledger/internal/common"
	"wordledger/internal/models"
	"wordledger/internal/repositories"

	"github.com/labstack/gommon/random"
	"github.com/shopspring/decimal"
)

const apiKeyLength = 40

// authCacheTTL bounds how long a revoked key can keep resolving from
// cache; deletes and rotations also invalidate eagerly.
const authCacheTTL = 5 * time.Minute

type CreateTenantRequest struct {
	ID       string             `json:"tenant_id"`
	Name     string             `json:"name"`
	Tariffs  models.TariffTable `json:"tariffs"`
	Metadata models.JSONB       `json:"metadata"`
}

// TenantService manages tenant configuration. Balance changes are the
// ledger's business, never this service's.
type TenantService interface {
	Create(ctx context.Context, req *CreateTenantRequest) (*models.Tenant, string, error)
	Delete(ctx context.Context, id string) error
	SetTariffs(ctx context.Context, id string, tariffs models.TariffTable) error
	UpdateMetadata(ctx context.Context, id string, metadata models.JSONB) error
	RotateAPIKey(ctx context.Context, id string) (string, error)
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	ListIDs(ctx context.Context) ([]string, error)
	Export(ctx context.Context) ([]*models.Tenant, error)
}

type tenantService struct {
	tenantRepo repositories.TenantRepository
	opsRepo    repositories.OpsLogRepository
	cache      caching.CacheService
}

func NewTenantService(tenantRepo repositories.TenantRepository, opsRepo repositories.OpsLogRepository, cache caching.CacheService) TenantService {
	return &tenantService{
		tenantRepo: tenantRepo,
		opsRepo:    opsRepo,
		cache:      cache,
	}
}

// Create provisions a tenant and returns it together with the one
// plaintext exposure of its API key.
func (s *tenantService) Create(ctx context.Context, req *CreateTenantRequest) (*models.Tenant, string, error) {
	if err := common.ValidateTenantID(req.ID); err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}
	if err := validateTariffs(req.Tariffs); err != nil {
		return nil, "", err
	}

	apiKey := random.String(apiKeyLength)
	tenant := &models.Tenant{
		ID:         req.ID,
		Name:       req.Name,
		APIKeyHash: common.HashAPIKey(apiKey),
		Balance:    decimal.Zero,
		Tariffs:    req.Tariffs,
		Metadata:   req.Metadata,
	}
	if tenant.Name == "" {
		tenant.Name = req.ID
	}
	if tenant.Tariffs == nil {
		tenant.Tariffs = models.TariffTable{}
	}

	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, "", err
	}

	if err := s.recordOp(ctx, models.OpsTenantCreated, tenant.ID, models.JSONB{"tariffs": tenant.Tariffs}); err != nil {
		return nil, "", err
	}
	return tenant, apiKey, nil
}

func (s *tenantService) Delete(ctx context.Context, id string) error {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tenantRepo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.DeleteTenantKeyHash(ctx, tenant.APIKeyHash); err != nil {
		// The cache entry expires on its own; the delete itself stands.
		log.Printf("WARN: failed to invalidate auth cache for %s: %v", id, err)
	}
	return s.recordOp(ctx, models.OpsTenantDeleted, id, nil)
}

func (s *tenantService) SetTariffs(ctx context.Context, id string, tariffs models.TariffTable) error {
	if err := validateTariffs(tariffs); err != nil {
		return err
	}
	if err := s.tenantRepo.UpdateTariffs(ctx, id, tariffs); err != nil {
		return err
	}
	return s.recordOp(ctx, models.OpsTariffsUpdated, id, models.JSONB{"tariffs": tariffs})
}

func (s *tenantService) UpdateMetadata(ctx context.Context, id string, metadata models.JSONB) error {
	if err := s.tenantRepo.UpdateMetadata(ctx, id, metadata); err != nil {
		return err
	}
	return s.recordOp(ctx, models.OpsMetadataUpdated, id, metadata)
}

func (s *tenantService) RotateAPIKey(ctx context.Context, id string) (string, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	apiKey := random.String(apiKeyLength)
	if err := s.tenantRepo.UpdateAPIKeyHash(ctx, id, common.HashAPIKey(apiKey)); err != nil {
		return "", err
	}
	if err := s.cache.DeleteTenantKeyHash(ctx, tenant.APIKeyHash); err != nil {
		log.Printf("WARN: failed to invalidate auth cache for %s: %v", id, err)
	}
	if err := s.recordOp(ctx, models.OpsKeyRotated, id, nil); err != nil {
		return "", err
	}
	return apiKey, nil
}

func (s *tenantService) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.tenantRepo.List(ctx, limit, offset)
}

func (s *tenantService) ListIDs(ctx context.Context) ([]string, error) {
	return s.tenantRepo.ListIDs(ctx)
}

// Export returns every tenant record for backup purposes.
func (s *tenantService) Export(ctx context.Context) ([]*models.Tenant, error) {
	var all []*models.Tenant
	const page = 500
	for offset := 0; ; offset += page {
		tenants, err := s.tenantRepo.List(ctx, page, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, tenants...)
		if len(tenants) < page {
			return all, nil
		}
	}
}

func (s *tenantService) recordOp(ctx context.Context, action, tenantID string, details models.JSONB) error {
	actor, _ := common.GetActorFromContext(ctx)
	err := s.opsRepo.Append(ctx, &models.OpsEntry{
		Actor:    actor,
		Action:   action,
		TenantID: tenantID,
		Details:  details,
	})
	if err != nil {
		return fmt.Errorf("%w: operation applied but not recorded in ops log: %w", common.ErrStorageFailure, err)
	}
	return nil
}

func validateTariffs(tariffs models.TariffTable) error {
	for service, price := range tariffs {
		if service == "" {
			return fmt.Errorf("%w: tariff service name must not be empty", common.ErrInvalidArgument)
		}
		if price.IsNegative() {
			return fmt.Errorf("%w: tariff for %q must not be negative", common.ErrInvalidArgument, service)
		}
	}
	return nil
}
