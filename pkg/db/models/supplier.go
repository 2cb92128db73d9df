package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alimansour/cardvault-backend/pkg/enums"
)

// Supplier is an external fulfillment provider reachable over HTTP.
type Supplier struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name       string               `gorm:"column:name;not null"`
	BaseURL    string               `gorm:"column:base_url;not null"`
	APIKey     string               `gorm:"column:api_key;not null"`
	CodePrefix *string              `gorm:"column:code_prefix"`
	Status     enums.SupplierStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductSupplierLink ranks suppliers per product. Priority order is
// (is_primary desc, created_at asc).
type ProductSupplierLink struct {
	ID                     uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID              uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	SupplierID             uuid.UUID `gorm:"column:supplier_id;type:uuid;not null;index"`
	ProductCodeForSupplier string    `gorm:"column:product_code_for_supplier;not null"`
	IsPrimary              bool      `gorm:"column:is_primary;not null;default:false"`
	PriceExceed            bool      `gorm:"column:price_exceed;not null;default:false"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
}

// SupplierProductCode is the known-good catalog of supplier product codes
// used by the self-heal fuzzy matcher.
type SupplierProductCode struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID  uuid.UUID `gorm:"column:supplier_id;type:uuid;not null;index"`
	Code        string    `gorm:"column:code;not null"`
	DisplayName string    `gorm:"column:display_name;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
