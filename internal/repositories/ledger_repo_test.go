package repositories

import (
	"context"
	"fmt"
	"testing"

	"wordledger/internal/common"
	"wordledger/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type LedgerRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    LedgerRepository
	context context.Context
}

func (suite *LedgerRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewLedgerRepo(mock)
	suite.context = context.Background()
}

func (suite *LedgerRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestLedgerRepoTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerRepoTestSuite))
}

func chargeMutation(service string, quantity int64) MutationFunc {
	return func(tenant *models.Tenant) (*models.Transaction, error) {
		unitPrice, ok := tenant.Tariffs[service]
		if !ok {
			return nil, fmt.Errorf("%w: %q", common.ErrUnknownService, service)
		}
		amount := unitPrice.Mul(decimal.NewFromInt(quantity)).Round(2)
		return &models.Transaction{
			Kind:             models.KindCharge,
			Service:          service,
			Quantity:         quantity,
			UnitPrice:        unitPrice,
			Amount:           amount,
			ResultingBalance: tenant.Balance.Add(amount),
		}, nil
	}
}

func (suite *LedgerRepoTestSuite) expectLockedRow(balance string, tariffs string) {
	rows := pgxmock.NewRows([]string{"balance", "tariffs"}).
		AddRow(mustDec(balance), []byte(tariffs))
	suite.mock.ExpectQuery(`SELECT balance, tariffs FROM tenants WHERE id = \$1 FOR UPDATE`).
		WithArgs("acme").
		WillReturnRows(rows)
}

func (suite *LedgerRepoTestSuite) TestApply_CommitsBalanceAndRecordTogether() {
	suite.mock.ExpectBegin()
	suite.expectLockedRow("5.00", `{"translation": "0.02"}`)
	suite.mock.ExpectExec(`UPDATE tenants SET balance = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs(pgxmock.AnyArg(), "acme").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), "acme", pgxmock.AnyArg(), models.KindCharge, "translation",
			int64(1000), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectCommit()

	rec, err := suite.repo.Apply(suite.context, "acme", chargeMutation("translation", 1000))
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), rec.Amount.Equal(mustDec("20.00")))
	assert.True(suite.T(), rec.ResultingBalance.Equal(mustDec("25.00")))
	assert.Equal(suite.T(), "acme", rec.TenantID)
	assert.False(suite.T(), rec.Timestamp.IsZero())
}

func (suite *LedgerRepoTestSuite) TestApply_TenantNotFound() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`SELECT balance, tariffs FROM tenants WHERE id = \$1 FOR UPDATE`).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"balance", "tariffs"}))
	suite.mock.ExpectRollback()

	_, err := suite.repo.Apply(suite.context, "acme", chargeMutation("translation", 10))
	assert.ErrorIs(suite.T(), err, common.ErrTenantNotFound)
}

func (suite *LedgerRepoTestSuite) TestApply_MutationErrorRollsBack() {
	suite.mock.ExpectBegin()
	suite.expectLockedRow("5.00", `{"translation": "0.02"}`)
	suite.mock.ExpectRollback()

	_, err := suite.repo.Apply(suite.context, "acme", chargeMutation("proofreading", 10))
	assert.ErrorIs(suite.T(), err, common.ErrUnknownService)
}

func (suite *LedgerRepoTestSuite) TestApply_RetriesSerializationFailure() {
	// First attempt fails at commit with a serialization error.
	suite.mock.ExpectBegin()
	suite.expectLockedRow("0", `{"translation": "0.02"}`)
	suite.mock.ExpectExec(`UPDATE tenants SET balance`).
		WithArgs(pgxmock.AnyArg(), "acme").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), "acme", pgxmock.AnyArg(), models.KindCharge, "translation",
			int64(100), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001"})

	// Second attempt succeeds.
	suite.mock.ExpectBegin()
	suite.expectLockedRow("0", `{"translation": "0.02"}`)
	suite.mock.ExpectExec(`UPDATE tenants SET balance`).
		WithArgs(pgxmock.AnyArg(), "acme").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), "acme", pgxmock.AnyArg(), models.KindCharge, "translation",
			int64(100), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectCommit()

	rec, err := suite.repo.Apply(suite.context, "acme", chargeMutation("translation", 100))
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), rec.Amount.Equal(mustDec("2.00")))
}

func (suite *LedgerRepoTestSuite) TestApply_GivesUpAfterRepeatedConflicts() {
	for i := 0; i < 3; i++ {
		suite.mock.ExpectBegin()
		suite.expectLockedRow("0", `{"translation": "0.02"}`)
		suite.mock.ExpectExec(`UPDATE tenants SET balance`).
			WithArgs(pgxmock.AnyArg(), "acme").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		suite.mock.ExpectExec(`INSERT INTO transactions`).
			WithArgs(pgxmock.AnyArg(), "acme", pgxmock.AnyArg(), models.KindCharge, "translation",
				int64(100), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		suite.mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001"})
	}

	_, err := suite.repo.Apply(suite.context, "acme", chargeMutation("translation", 100))
	assert.ErrorIs(suite.T(), err, common.ErrConcurrencyConflict)
}

func (suite *LedgerRepoTestSuite) TestApply_NonRetryableFailureSurfacesImmediately() {
	suite.mock.ExpectBegin()
	suite.expectLockedRow("0", `{"translation": "0.02"}`)
	suite.mock.ExpectExec(`UPDATE tenants SET balance`).
		WithArgs(pgxmock.AnyArg(), "acme").
		WillReturnError(&pgconn.PgError{Code: "23514"})
	suite.mock.ExpectRollback()

	_, err := suite.repo.Apply(suite.context, "acme", chargeMutation("translation", 100))
	assert.ErrorIs(suite.T(), err, common.ErrStorageFailure)
}
