package reveal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/internal/inventory"
	"github.com/alimansour/cardvault-backend/internal/orders"
	"github.com/alimansour/cardvault-backend/internal/wallet"
	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
	"github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
	"github.com/alimansour/cardvault-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	svc  *Service
	conn *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.FulfillmentOrder{},
		&models.OrderLineItem{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Card{},
		&models.OutboxEvent{},
	))

	log := logger.NewNop()
	svc := NewService(
		gormTxRunner{db: conn},
		orders.NewRepository(conn),
		wallet.NewRepository(conn),
		inventory.NewRepository(conn),
		outbox.NewService(outbox.NewRepository(conn), log),
		nil,
		nil,
		log,
	)
	return &fixture{svc: svc, conn: conn}
}

func (f *fixture) seedOrder(t *testing.T, tenantID uuid.UUID, total string, state enums.BillingState, metadata map[string]any) *models.FulfillmentOrder {
	t.Helper()
	order := &models.FulfillmentOrder{
		ID:            uuid.New(),
		TenantID:      tenantID,
		TotalAmount:   decimal.RequireFromString(total),
		Currency:      "USD",
		PaymentStatus: enums.PaymentStatusPending,
		BillingState:  state,
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		require.NoError(t, err)
		order.Metadata = raw
	}
	require.NoError(t, f.conn.Create(order).Error)
	return order
}

func (f *fixture) seedWallet(t *testing.T, tenantID, userID uuid.UUID, balance string) *models.Wallet {
	t.Helper()
	w := &models.Wallet{
		ID:       uuid.New(),
		TenantID: tenantID,
		UserID:   userID,
		Balance:  decimal.RequireFromString(balance),
		Currency: "USD",
	}
	require.NoError(t, f.conn.Create(w).Error)
	return w
}

func (f *fixture) seedCard(t *testing.T, tenantID, orderID uuid.UUID, code, pin string) {
	t.Helper()
	card := &models.Card{
		ID:        uuid.New(),
		TenantID:  tenantID,
		ProductID: uuid.New(),
		CardCode:  code,
		CardPin:   &pin,
		Status:    enums.CardStatusSold,
		OrderID:   &orderID,
	}
	require.NoError(t, f.conn.Create(card).Error)
}

func TestReveal_ChargesWalletAndReturnsCodes(t *testing.T) {
	f := newFixture(t)
	tenantID, userID := uuid.New(), uuid.New()
	order := f.seedOrder(t, tenantID, "25.00", enums.BillingStateWalletPending, nil)
	f.seedWallet(t, tenantID, userID, "100.00")
	f.seedCard(t, tenantID, order.ID, "SER-1", "1234")

	result, err := f.svc.Reveal(context.Background(), tenantID, order.ID, userID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyRevealed)
	assert.True(t, result.AmountCharged.Equal(decimal.RequireFromString("25.00")))
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, "SER-1", result.Pairs[0].SerialNumber)
	assert.Equal(t, "1234", result.Pairs[0].PIN)

	var w models.Wallet
	require.NoError(t, f.conn.Where("tenant_id = ? AND user_id = ?", tenantID, userID).First(&w).Error)
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("75.00")))

	var stored models.FulfillmentOrder
	require.NoError(t, f.conn.Where("id = ?", order.ID).First(&stored).Error)
	assert.Equal(t, enums.BillingStateRevealed, stored.BillingState)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)

	var ledger models.WalletTransaction
	require.NoError(t, f.conn.Where("order_id = ?", order.ID).First(&ledger).Error)
	assert.Equal(t, enums.WalletTxTypePurchaseDeduction, ledger.Type)
	assert.True(t, ledger.BalanceBefore.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, ledger.BalanceAfter.Equal(decimal.RequireFromString("75.00")))

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Count(&events).Error)
	assert.EqualValues(t, 2, events)
}

func TestReveal_SecondCallIsFreeRepeat(t *testing.T) {
	f := newFixture(t)
	tenantID, userID := uuid.New(), uuid.New()
	order := f.seedOrder(t, tenantID, "10.00", enums.BillingStateWalletPending, nil)
	f.seedWallet(t, tenantID, userID, "50.00")
	f.seedCard(t, tenantID, order.ID, "SER-2", "9999")

	_, err := f.svc.Reveal(context.Background(), tenantID, order.ID, userID)
	require.NoError(t, err)

	result, err := f.svc.Reveal(context.Background(), tenantID, order.ID, userID)
	require.NoError(t, err)
	assert.True(t, result.AlreadyRevealed)
	require.Len(t, result.Pairs, 1)

	// Charged exactly once.
	var w models.Wallet
	require.NoError(t, f.conn.Where("user_id = ?", userID).First(&w).Error)
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("40.00")))

	var ledgerRows int64
	require.NoError(t, f.conn.Model(&models.WalletTransaction{}).Count(&ledgerRows).Error)
	assert.EqualValues(t, 1, ledgerRows)
}

func TestReveal_InsufficientBalanceLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	tenantID, userID := uuid.New(), uuid.New()
	order := f.seedOrder(t, tenantID, "60.00", enums.BillingStateWalletPending, nil)
	f.seedWallet(t, tenantID, userID, "59.99")

	_, err := f.svc.Reveal(context.Background(), tenantID, order.ID, userID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInsufficientBalance))
	assert.NotEmpty(t, errors.As(err).MessageAr())

	var stored models.FulfillmentOrder
	require.NoError(t, f.conn.Where("id = ?", order.ID).First(&stored).Error)
	assert.Equal(t, enums.BillingStateWalletPending, stored.BillingState)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)

	var w models.Wallet
	require.NoError(t, f.conn.Where("user_id = ?", userID).First(&w).Error)
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("59.99")))

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

// staleReadWalletRepo inflates the balance returned by reads, standing in
// for a concurrent credit landing between the read and the deduction.
type staleReadWalletRepo struct {
	wallet.Repository
	inflate decimal.Decimal
}

func (r staleReadWalletRepo) WithTx(tx *gorm.DB) wallet.Repository {
	return staleReadWalletRepo{Repository: r.Repository.WithTx(tx), inflate: r.inflate}
}

func (r staleReadWalletRepo) FindByUser(ctx context.Context, tenantID, userID uuid.UUID) (*models.Wallet, error) {
	w, err := r.Repository.FindByUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	w.Balance = w.Balance.Add(r.inflate)
	return w, nil
}

func TestReveal_LedgerReflectsDeductedBalanceNotEarlierRead(t *testing.T) {
	f := newFixture(t)
	tenantID, userID := uuid.New(), uuid.New()
	order := f.seedOrder(t, tenantID, "25.00", enums.BillingStateWalletPending, nil)
	f.seedWallet(t, tenantID, userID, "100.00")
	f.seedCard(t, tenantID, order.ID, "SER-4", "4444")

	log := logger.NewNop()
	svc := NewService(
		gormTxRunner{db: f.conn},
		orders.NewRepository(f.conn),
		staleReadWalletRepo{Repository: wallet.NewRepository(f.conn), inflate: decimal.RequireFromString("50.00")},
		inventory.NewRepository(f.conn),
		outbox.NewService(outbox.NewRepository(f.conn), log),
		nil,
		nil,
		log,
	)

	_, err := svc.Reveal(context.Background(), tenantID, order.ID, userID)
	require.NoError(t, err)

	// Ledger rows come from the balance the deduction statement produced,
	// not from the row read before it.
	var ledger models.WalletTransaction
	require.NoError(t, f.conn.Where("order_id = ?", order.ID).First(&ledger).Error)
	assert.True(t, ledger.BalanceBefore.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, ledger.BalanceAfter.Equal(decimal.RequireFromString("75.00")))
}

func TestReveal_LegacyMetadataFlagHonored(t *testing.T) {
	f := newFixture(t)
	tenantID, userID := uuid.New(), uuid.New()
	order := f.seedOrder(t, tenantID, "5.00", enums.BillingStateNone,
		map[string]any{"walletPending": true})
	f.seedWallet(t, tenantID, userID, "20.00")
	f.seedCard(t, tenantID, order.ID, "SER-3", "0000")

	result, err := f.svc.Reveal(context.Background(), tenantID, order.ID, userID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyRevealed)

	var stored models.FulfillmentOrder
	require.NoError(t, f.conn.Where("id = ?", order.ID).First(&stored).Error)
	assert.Equal(t, enums.BillingStateRevealed, stored.BillingState)
}

func TestReveal_NotPendingIsSuccessfulNoOp(t *testing.T) {
	f := newFixture(t)
	tenantID, userID := uuid.New(), uuid.New()
	order := f.seedOrder(t, tenantID, "5.00", enums.BillingStateNone, nil)
	f.seedWallet(t, tenantID, userID, "20.00")

	result, err := f.svc.Reveal(context.Background(), tenantID, order.ID, userID)
	require.NoError(t, err)
	assert.True(t, result.AlreadyRevealed)

	// Nothing charged, order untouched.
	var w models.Wallet
	require.NoError(t, f.conn.Where("user_id = ?", userID).First(&w).Error)
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("20.00")))
}

func TestReveal_WrongTenantLooksLikeMissingOrder(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	order := f.seedOrder(t, tenantID, "5.00", enums.BillingStateWalletPending, nil)

	_, err := f.svc.Reveal(context.Background(), uuid.New(), order.ID, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestReveal_MissingOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reveal(context.Background(), uuid.New(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}
