package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TariffTable maps a service name to the unit price billed per metered
// word. A service absent from the table is not billable for the tenant.
type TariffTable map[string]decimal.Decimal

// Tenant represents an agency account with its own balance and tariffs.
// Balance is the amount currently owed by the tenant: charges increase
// it, payments decrease it.
type Tenant struct {
	ID         string          `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	APIKeyHash string          `json:"-" db:"api_key_hash"`
	Balance    decimal.Decimal `json:"balance" db:"balance"`
	Tariffs    TariffTable     `json:"tariffs" db:"tariffs"`
	Metadata   JSONB           `json:"metadata" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}
