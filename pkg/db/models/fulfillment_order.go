package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alimansour/cardvault-backend/pkg/enums"
)

// FulfillmentOrder is the order record this core fulfills. Checkout creates
// it; this core reads it and only mutates payment/billing state on reveal.
type FulfillmentOrder struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TenantID       uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;index"`
	UserID         *uuid.UUID           `gorm:"column:user_id;type:uuid;index"`
	CustomerEmail  *string              `gorm:"column:customer_email;index"`
	CustomerPhone  *string              `gorm:"column:customer_phone"`
	TotalAmount    decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency       string               `gorm:"column:currency;type:text;not null;default:'USD'"`
	PaymentStatus  enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	BillingState   enums.BillingState   `gorm:"column:billing_state;type:text;not null;default:'none'"`
	DeliveryOption enums.DeliveryOption `gorm:"column:delivery_option;type:text;not null;default:'inventory'"`
	Metadata       json.RawMessage      `gorm:"column:metadata;type:jsonb;serializer:json"`
	Items          []OrderLineItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
