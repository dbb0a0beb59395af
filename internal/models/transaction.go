package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction kinds
const (
	KindCharge          = "charge"
	KindPayment         = "payment"
	KindAdminAdjustment = "admin_adjustment"
)

// Transaction is one immutable record of a balance-affecting event.
// Amount is the signed delta actually applied to the balance, so
// summing Amount over a tenant's transactions reproduces its balance.
type Transaction struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	TenantID         string          `json:"tenant_id" db:"tenant_id"`
	Timestamp        time.Time       `json:"timestamp" db:"ts"`
	Kind             string          `json:"kind" db:"kind"`
	Service          string          `json:"service" db:"service"`
	Quantity         int64           `json:"quantity" db:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price" db:"unit_price"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	ResultingBalance decimal.Decimal `json:"resulting_balance" db:"resulting_balance"`
	Context          JSONB           `json:"context" db:"context"`
}

// TransactionFilters represents filters for querying the transaction log
type TransactionFilters struct {
	TenantID *string    `json:"tenant_id"`
	Kind     *string    `json:"kind"`
	Service  *string    `json:"service"`
	Start    *time.Time `json:"start"`
	End      *time.Time `json:"end"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}
