package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alimansour/cardvault-backend/pkg/enums"
)

// Card is one digital code (serial + optional PIN) tracked in inventory.
// (tenant_id, card_code) is globally unique; ownership is set at most once
// per sale and only changed by reconciliation healing.
type Card struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TenantID     uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_cards_tenant_code"`
	ProductID    uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	CardCode     string           `gorm:"column:card_code;not null;uniqueIndex:ux_cards_tenant_code"`
	CardPin      *string          `gorm:"column:card_pin"`
	Status       enums.CardStatus `gorm:"column:status;type:text;not null;default:'available';index"`
	SoldToUserID *uuid.UUID       `gorm:"column:sold_to_user_id;type:uuid;index"`
	OrderID      *uuid.UUID       `gorm:"column:order_id;type:uuid;index"`
	SoldAt       *time.Time       `gorm:"column:sold_at"`
	ExpiryDate   *time.Time       `gorm:"column:expiry_date"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
