package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeliveryRecord stores the raw payload handed to a delivery channel when an
// order was fulfilled. The reconciler mines these blobs for serials that
// never made it into card rows.
type DeliveryRecord struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	Email     *string         `gorm:"column:email;index"`
	Channel   string          `gorm:"column:channel;not null"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb;serializer:json"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// LegacyCardOrder is the historical parallel order table kept for
// reconciliation reads only. New writes never touch it.
type LegacyCardOrder struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID    uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	Email       string          `gorm:"column:email;not null;index"`
	ProductName string          `gorm:"column:product_name"`
	Codes       json.RawMessage `gorm:"column:codes;type:jsonb;serializer:json"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (LegacyCardOrder) TableName() string {
	return "legacy_card_orders"
}
