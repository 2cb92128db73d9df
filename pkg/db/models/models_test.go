package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Every model must migrate cleanly on the sqlite test driver; postgres-only
// column defaults in the gorm tags would break the DDL here.
func TestAutoMigrateAllModels(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, conn.AutoMigrate(
		&Tenant{},
		&User{},
		&Product{},
		&Supplier{},
		&ProductSupplierLink{},
		&SupplierProductCode{},
		&Card{},
		&FulfillmentOrder{},
		&OrderLineItem{},
		&Wallet{},
		&WalletTransaction{},
		&DeliveryRecord{},
		&LegacyCardOrder{},
		&OutboxEvent{},
	))
}

func TestBeforeCreateAssignsID(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&Card{}))

	card := Card{
		TenantID:  uuid.New(),
		ProductID: uuid.New(),
		CardCode:  "CODE-HOOK",
		Status:    "available",
	}
	require.NoError(t, conn.Create(&card).Error)
	require.NotEqual(t, uuid.Nil, card.ID)
}
