package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alimansour/cardvault-backend/pkg/enums"
)

// Wallet holds a customer's prepaid balance. The balance never goes
// negative; reveal deducts via a conditional update inside a transaction.
type Wallet struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_wallets_tenant_user"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_wallets_tenant_user"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	Currency  string          `gorm:"column:currency;type:text;not null;default:'USD'"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// WalletTransaction is an append-only ledger row recording before/after
// balances for auditability.
type WalletTransaction struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	WalletID      uuid.UUID          `gorm:"column:wallet_id;type:uuid;not null;index"`
	OrderID       *uuid.UUID         `gorm:"column:order_id;type:uuid;index"`
	Type          enums.WalletTxType `gorm:"column:type;type:text;not null"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceBefore decimal.Decimal    `gorm:"column:balance_before;type:numeric(12,2);not null"`
	BalanceAfter  decimal.Decimal    `gorm:"column:balance_after;type:numeric(12,2);not null"`
	Note          *string            `gorm:"column:note"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}
