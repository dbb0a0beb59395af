package services

import (
	"context"
	"fmt"

	"wordledger/internal/common"
	"wordledger/internal/models"
	"wordledger/internal/repositories"

	"github.com/shopspring/decimal"
)

// currencyPrecision is the number of decimal places an applied amount
// is rounded to.
const currencyPrecision = 2

// paymentFloor is the lowest balance a payment may produce. Payments
// settle debt; they never turn it into credit.
var paymentFloor = decimal.Zero

type ChargeResult struct {
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

type BalanceSnapshot struct {
	Balance  decimal.Decimal    `json:"balance"`
	Tariffs  models.TariffTable `json:"tariffs"`
	Metadata models.JSONB       `json:"metadata"`
}

// LedgerService owns every balance mutation. Charges are priced from
// the tenant's tariff table; a service missing from the table is
// rejected rather than treated as free, so nothing billable can slip
// through unmetered.
type LedgerService interface {
	Charge(ctx context.Context, tenantID, service string, quantity int64, reqContext models.JSONB) (*ChargeResult, error)
	RegisterPayment(ctx context.Context, tenantID string, amount decimal.Decimal, reqContext models.JSONB) (decimal.Decimal, error)
	AdminAdjustment(ctx context.Context, tenantID string, delta decimal.Decimal, reason string) (decimal.Decimal, error)
	GetBalance(ctx context.Context, tenantID string) (*BalanceSnapshot, error)
}

type ledgerService struct {
	ledgerRepo repositories.LedgerRepository
	tenantRepo repositories.TenantRepository
}

func NewLedgerService(ledgerRepo repositories.LedgerRepository, tenantRepo repositories.TenantRepository) LedgerService {
	return &ledgerService{
		ledgerRepo: ledgerRepo,
		tenantRepo: tenantRepo,
	}
}

func (s *ledgerService) Charge(ctx context.Context, tenantID, service string, quantity int64, reqContext models.JSONB) (*ChargeResult, error) {
	if service == "" {
		return nil, fmt.Errorf("%w: service is required", common.ErrInvalidArgument)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", common.ErrInvalidArgument)
	}

	rec, err := s.ledgerRepo.Apply(ctx, tenantID, func(tenant *models.Tenant) (*models.Transaction, error) {
		unitPrice, ok := tenant.Tariffs[service]
		if !ok {
			return nil, fmt.Errorf("%w: %q", common.ErrUnknownService, service)
		}
		amount := unitPrice.Mul(decimal.NewFromInt(quantity)).Round(currencyPrecision)
		return &models.Transaction{
			Kind:             models.KindCharge,
			Service:          service,
			Quantity:         quantity,
			UnitPrice:        unitPrice,
			Amount:           amount,
			ResultingBalance: tenant.Balance.Add(amount),
			Context:          reqContext,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &ChargeResult{
		UnitPrice:  rec.UnitPrice,
		Amount:     rec.Amount,
		NewBalance: rec.ResultingBalance,
	}, nil
}

func (s *ledgerService) RegisterPayment(ctx context.Context, tenantID string, amount decimal.Decimal, reqContext models.JSONB) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: payment amount must be positive", common.ErrInvalidArgument)
	}

	rec, err := s.ledgerRepo.Apply(ctx, tenantID, func(tenant *models.Tenant) (*models.Transaction, error) {
		newBalance := tenant.Balance.Sub(amount)
		if newBalance.LessThan(paymentFloor) {
			newBalance = paymentFloor
		}
		// The applied delta, not the requested amount, is recorded, so
		// replaying the log always reproduces the balance even when a
		// payment was clamped at the floor.
		return &models.Transaction{
			Kind:             models.KindPayment,
			Amount:           newBalance.Sub(tenant.Balance),
			ResultingBalance: newBalance,
			Context:          withActor(ctx, reqContext),
		}, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return rec.ResultingBalance, nil
}

func (s *ledgerService) AdminAdjustment(ctx context.Context, tenantID string, delta decimal.Decimal, reason string) (decimal.Decimal, error) {
	reqContext := withActor(ctx, models.JSONB{})
	if reason != "" {
		reqContext["reason"] = reason
	}

	rec, err := s.ledgerRepo.Apply(ctx, tenantID, func(tenant *models.Tenant) (*models.Transaction, error) {
		return &models.Transaction{
			Kind:             models.KindAdminAdjustment,
			Amount:           delta,
			ResultingBalance: tenant.Balance.Add(delta),
			Context:          reqContext,
		}, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return rec.ResultingBalance, nil
}

func (s *ledgerService) GetBalance(ctx context.Context, tenantID string) (*BalanceSnapshot, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &BalanceSnapshot{
		Balance:  tenant.Balance,
		Tariffs:  tenant.Tariffs,
		Metadata: tenant.Metadata,
	}, nil
}

// withActor stamps the administrative actor into a transaction context
// for traceability.
func withActor(ctx context.Context, reqContext models.JSONB) models.JSONB {
	actor, ok := common.GetActorFromContext(ctx)
	if !ok {
		return reqContext
	}
	if reqContext == nil {
		reqContext = models.JSONB{}
	}
	reqContext["actor"] = actor
	return reqContext
}
