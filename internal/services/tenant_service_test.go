package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"wordledger/internal/common"
	"wordledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Tenant, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) UpdateTariffs(ctx context.Context, id string, tariffs models.TariffTable) error {
	args := m.Called(ctx, id, tariffs)
	return args.Error(0)
}

func (m *MockTenantRepository) UpdateMetadata(ctx context.Context, id string, metadata models.JSONB) error {
	args := m.Called(ctx, id, metadata)
	return args.Error(0)
}

func (m *MockTenantRepository) UpdateAPIKeyHash(ctx context.Context, id, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockTenantRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTenantRepository) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) ListIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

type MockOpsLogRepository struct {
	mock.Mock
}

func (m *MockOpsLogRepository) Append(ctx context.Context, entry *models.OpsEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockOpsLogRepository) List(ctx context.Context, limit, offset int) ([]*models.OpsEntry, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.OpsEntry), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetTenantIDByKeyHash(ctx context.Context, hash string) (string, error) {
	args := m.Called(ctx, hash)
	return args.String(0), args.Error(1)
}

func (m *MockCacheService) SetTenantKeyHash(ctx context.Context, hash, tenantID string, ttl time.Duration) error {
	args := m.Called(ctx, hash, tenantID, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteTenantKeyHash(ctx context.Context, hash string) error {
	args := m.Called(ctx, hash)
	return args.Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) IncrementRateLimit(ctx context.Context, key string, window time.Duration) error {
	args := m.Called(ctx, key, window)
	return args.Error(0)
}

type TenantServiceTestSuite struct {
	suite.Suite
	mockRepo  *MockTenantRepository
	mockOps   *MockOpsLogRepository
	mockCache *MockCacheService
	service   TenantService
}

func (suite *TenantServiceTestSuite) SetupTest() {
	suite.mockRepo = &MockTenantRepository{}
	suite.mockOps = &MockOpsLogRepository{}
	suite.mockCache = &MockCacheService{}
	suite.service = NewTenantService(suite.mockRepo, suite.mockOps, suite.mockCache)

	suite.mockRepo.Test(suite.T())
	suite.mockOps.Test(suite.T())
	suite.mockCache.Test(suite.T())
}

func (suite *TenantServiceTestSuite) TearDownTest() {
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockOps.AssertExpectations(suite.T())
	suite.mockCache.AssertExpectations(suite.T())
}

func TestTenantServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TenantServiceTestSuite))
}

func (suite *TenantServiceTestSuite) TestCreate_Success() {
	ctx := context.Background()
	req := &CreateTenantRequest{
		ID:      "acme",
		Name:    "Acme Translations",
		Tariffs: models.TariffTable{"translation": dec("0.02")},
	}

	suite.mockRepo.On("Create", ctx, mock.AnythingOfType("*models.Tenant")).Return(nil).Run(func(args mock.Arguments) {
		tenant := args.Get(1).(*models.Tenant)
		assert.Equal(suite.T(), "acme", tenant.ID)
		assert.Equal(suite.T(), "Acme Translations", tenant.Name)
		assert.True(suite.T(), tenant.Balance.IsZero())
		assert.NotEmpty(suite.T(), tenant.APIKeyHash)
	})
	suite.mockOps.On("Append", ctx, mock.AnythingOfType("*models.OpsEntry")).Return(nil).Run(func(args mock.Arguments) {
		entry := args.Get(1).(*models.OpsEntry)
		assert.Equal(suite.T(), models.OpsTenantCreated, entry.Action)
		assert.Equal(suite.T(), "acme", entry.TenantID)
	})

	tenant, apiKey, err := suite.service.Create(ctx, req)
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), tenant)
	assert.Len(suite.T(), apiKey, apiKeyLength)
	// only the hash is stored
	assert.Equal(suite.T(), common.HashAPIKey(apiKey), tenant.APIKeyHash)
}

func (suite *TenantServiceTestSuite) TestCreate_DefaultsNameToID() {
	ctx := context.Background()

	suite.mockRepo.On("Create", ctx, mock.AnythingOfType("*models.Tenant")).Return(nil)
	suite.mockOps.On("Append", ctx, mock.AnythingOfType("*models.OpsEntry")).Return(nil)

	tenant, _, err := suite.service.Create(ctx, &CreateTenantRequest{ID: "acme"})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "acme", tenant.Name)
	assert.NotNil(suite.T(), tenant.Tariffs)
}

func (suite *TenantServiceTestSuite) TestCreate_InvalidID() {
	ctx := context.Background()

	for _, id := range []string{"", "AB", "has space", "-leading", "a"} {
		tenant, _, err := suite.service.Create(ctx, &CreateTenantRequest{ID: id})
		assert.Error(suite.T(), err, "id %q", id)
		assert.ErrorIs(suite.T(), err, common.ErrInvalidArgument)
		assert.Nil(suite.T(), tenant)
	}
}

func (suite *TenantServiceTestSuite) TestCreate_NegativeTariffRejected() {
	ctx := context.Background()
	req := &CreateTenantRequest{
		ID:      "acme",
		Tariffs: models.TariffTable{"translation": dec("-0.02")},
	}

	tenant, _, err := suite.service.Create(ctx, req)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidArgument)
	assert.Nil(suite.T(), tenant)
}

func (suite *TenantServiceTestSuite) TestCreate_DuplicateID() {
	ctx := context.Background()

	suite.mockRepo.On("Create", ctx, mock.AnythingOfType("*models.Tenant")).Return(common.ErrTenantExists)

	_, _, err := suite.service.Create(ctx, &CreateTenantRequest{ID: "acme"})
	assert.ErrorIs(suite.T(), err, common.ErrTenantExists)
}

func (suite *TenantServiceTestSuite) TestDelete_InvalidatesAuthCache() {
	ctx := context.Background()
	tenant := &models.Tenant{ID: "acme", APIKeyHash: "somehash"}

	suite.mockRepo.On("GetByID", ctx, "acme").Return(tenant, nil)
	suite.mockRepo.On("Delete", ctx, "acme").Return(nil)
	suite.mockCache.On("DeleteTenantKeyHash", ctx, "somehash").Return(nil)
	suite.mockOps.On("Append", ctx, mock.AnythingOfType("*models.OpsEntry")).Return(nil).Run(func(args mock.Arguments) {
		entry := args.Get(1).(*models.OpsEntry)
		assert.Equal(suite.T(), models.OpsTenantDeleted, entry.Action)
	})

	err := suite.service.Delete(ctx, "acme")
	assert.NoError(suite.T(), err)
}

func (suite *TenantServiceTestSuite) TestDelete_NotFound() {
	ctx := context.Background()

	suite.mockRepo.On("GetByID", ctx, "ghost").Return(nil, common.ErrTenantNotFound)

	err := suite.service.Delete(ctx, "ghost")
	assert.ErrorIs(suite.T(), err, common.ErrTenantNotFound)
}

func (suite *TenantServiceTestSuite) TestDelete_SurvivesCacheFailure() {
	ctx := context.Background()
	tenant := &models.Tenant{ID: "acme", APIKeyHash: "somehash"}

	suite.mockRepo.On("GetByID", ctx, "acme").Return(tenant, nil)
	suite.mockRepo.On("Delete", ctx, "acme").Return(nil)
	suite.mockCache.On("DeleteTenantKeyHash", ctx, "somehash").Return(errors.New("redis down"))
	suite.mockOps.On("Append", ctx, mock.AnythingOfType("*models.OpsEntry")).Return(nil)

	err := suite.service.Delete(ctx, "acme")
	assert.NoError(suite.T(), err)
}

func (suite *TenantServiceTestSuite) TestSetTariffs_RecordsOp() {
	ctx := context.Background()
	tariffs := models.TariffTable{"translation": dec("0.03"), "ocr": dec("0.001")}

	suite.mockRepo.On("UpdateTariffs", ctx, "acme", tariffs).Return(nil)
	suite.mockOps.On("Append", ctx, mock.AnythingOfType("*models.OpsEntry")).Return(nil).Run(func(args mock.Arguments) {
		entry := args.Get(1).(*models.OpsEntry)
		assert.Equal(suite.T(), models.OpsTariffsUpdated, entry.Action)
	})

	err := suite.service.SetTariffs(ctx, "acme", tariffs)
	assert.NoError(suite.T(), err)
}

func (suite *TenantServiceTestSuite) TestSetTariffs_OpsLogFailureSurfaces() {
	ctx := context.Background()
	tariffs := models.TariffTable{"translation": dec("0.03")}

	suite.mockRepo.On("UpdateTariffs", ctx, "acme", tariffs).Return(nil)
	suite.mockOps.On("Append", ctx, mock.AnythingOfType("*models.OpsEntry")).Return(errors.New("insert failed"))

	err := suite.service.SetTariffs(ctx, "acme", tariffs)
	assert.ErrorIs(suite.T(), err, common.ErrStorageFailure)
}

func (suite *TenantServiceTestSuite) TestRotateAPIKey() {
	ctx := context.Background()
	tenant := &models.Tenant{ID: "acme", APIKeyHash: "oldhash"}

	suite.mockRepo.On("GetByID", ctx, "acme").Return(tenant, nil)
	suite.mockRepo.On("UpdateAPIKeyHash", ctx, "acme", mock.AnythingOfType("string")).Return(nil)
	suite.mockCache.On("DeleteTenantKeyHash", ctx, "oldhash").Return(nil)
	suite.mockOps.On("Append", ctx, mock.AnythingOfType("*models.OpsEntry")).Return(nil).Run(func(args mock.Arguments) {
		entry := args.Get(1).(*models.OpsEntry)
		assert.Equal(suite.T(), models.OpsKeyRotated, entry.Action)
	})

	apiKey, err := suite.service.RotateAPIKey(ctx, "acme")
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), apiKey, apiKeyLength)
}

func (suite *TenantServiceTestSuite) TestList_ClampsPagination() {
	ctx := context.Background()

	suite.mockRepo.On("List", ctx, 50, 0).Return([]*models.Tenant{}, nil)

	_, err := suite.service.List(ctx, 0, -5)
	assert.NoError(suite.T(), err)
}

func (suite *TenantServiceTestSuite) TestExport_PagesThroughAllTenants() {
	ctx := context.Background()

	firstPage := make([]*models.Tenant, 500)
	for i := range firstPage {
		firstPage[i] = &models.Tenant{ID: "tenant"}
	}
	secondPage := []*models.Tenant{{ID: "last"}}

	suite.mockRepo.On("List", ctx, 500, 0).Return(firstPage, nil)
	suite.mockRepo.On("List", ctx, 500, 500).Return(secondPage, nil)

	all, err := suite.service.Export(ctx)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), all, 501)
}
