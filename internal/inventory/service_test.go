package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
	"github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Card{}))
	return conn
}

func testService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn := testDB(t)
	repo := NewRepository(conn)
	return NewService(gormTxRunner{db: conn}, repo, logger.NewNop()), conn
}

func seedCards(t *testing.T, conn *gorm.DB, tenantID, productID uuid.UUID, count int) []models.Card {
	t.Helper()
	cards := make([]models.Card, 0, count)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < count; i++ {
		card := models.Card{
			ID:        uuid.New(),
			TenantID:  tenantID,
			ProductID: productID,
			CardCode:  uuid.NewString(),
			Status:    enums.CardStatusAvailable,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, conn.Create(&card).Error)
		cards = append(cards, card)
	}
	return cards
}

func TestReserve_MarksExactlyRequestedQuantity(t *testing.T) {
	svc, conn := testService(t)
	tenantID, productID := uuid.New(), uuid.New()
	seedCards(t, conn, tenantID, productID, 5)

	orderID := uuid.New()
	reserved, err := svc.Reserve(context.Background(), tenantID, productID, 3, orderID)
	require.NoError(t, err)
	require.Len(t, reserved, 3)

	for _, card := range reserved {
		assert.Equal(t, enums.CardStatusSold, card.Status)
		require.NotNil(t, card.OrderID)
		assert.Equal(t, orderID, *card.OrderID)
		assert.NotNil(t, card.SoldAt)
	}

	var remaining int64
	require.NoError(t, conn.Model(&models.Card{}).
		Where("status = ?", enums.CardStatusAvailable).
		Count(&remaining).Error)
	assert.EqualValues(t, 2, remaining)
}

func TestReserve_InsufficientStockRollsBack(t *testing.T) {
	svc, conn := testService(t)
	tenantID, productID := uuid.New(), uuid.New()
	seedCards(t, conn, tenantID, productID, 2)

	_, err := svc.Reserve(context.Background(), tenantID, productID, 3, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInsufficientStock))
	assert.NotEmpty(t, errors.As(err).MessageAr())

	// All-or-nothing: no card may have changed state.
	var sold int64
	require.NoError(t, conn.Model(&models.Card{}).
		Where("status = ?", enums.CardStatusSold).
		Count(&sold).Error)
	assert.Zero(t, sold)
}

func TestReserve_SequentialOrdersGetDisjointCards(t *testing.T) {
	svc, conn := testService(t)
	tenantID, productID := uuid.New(), uuid.New()
	seedCards(t, conn, tenantID, productID, 6)

	firstOrder, secondOrder := uuid.New(), uuid.New()
	first, err := svc.Reserve(context.Background(), tenantID, productID, 3, firstOrder)
	require.NoError(t, err)
	second, err := svc.Reserve(context.Background(), tenantID, productID, 3, secondOrder)
	require.NoError(t, err)

	seen := map[uuid.UUID]bool{}
	for _, card := range append(first, second...) {
		assert.False(t, seen[card.ID], "card %s reserved twice", card.ID)
		seen[card.ID] = true
	}
	assert.Len(t, seen, 6)

	// Third order finds the pool empty.
	_, err = svc.Reserve(context.Background(), tenantID, productID, 1, uuid.New())
	assert.True(t, errors.HasCode(err, errors.CodeInsufficientStock))

	var remaining int64
	require.NoError(t, conn.Model(&models.Card{}).
		Where("status = ?", enums.CardStatusAvailable).
		Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestReserve_ConcurrentOrdersGetDisjointCards(t *testing.T) {
	// Shared-cache memory DB so all goroutines hit the same database.
	conn, err := gorm.Open(sqlite.Open("file:reserve_concurrent?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.Card{}))

	svc := NewService(gormTxRunner{db: conn}, NewRepository(conn), logger.NewNop())
	tenantID, productID := uuid.New(), uuid.New()
	seedCards(t, conn, tenantID, productID, 3)

	const attempts = 6
	orderIDs := make([]uuid.UUID, attempts)
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		orderIDs[i] = uuid.New()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Reserve(context.Background(), tenantID, productID, 1, orderIDs[i])
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, resErr := range results {
		if resErr == nil {
			wins++
			continue
		}
		assert.True(t, errors.HasCode(resErr, errors.CodeInsufficientStock))
	}
	assert.Equal(t, 3, wins)

	// Every sold card belongs to exactly one winning order.
	var sold []models.Card
	require.NoError(t, conn.Where("status = ?", enums.CardStatusSold).Find(&sold).Error)
	require.Len(t, sold, 3)
	seenOrders := map[uuid.UUID]bool{}
	for _, card := range sold {
		require.NotNil(t, card.OrderID)
		assert.False(t, seenOrders[*card.OrderID], "order %s holds two cards", *card.OrderID)
		seenOrders[*card.OrderID] = true
	}
}

func TestReserve_ScopedToTenantAndProduct(t *testing.T) {
	svc, conn := testService(t)
	tenantID, productID := uuid.New(), uuid.New()
	seedCards(t, conn, tenantID, productID, 1)
	seedCards(t, conn, uuid.New(), productID, 3)   // other tenant
	seedCards(t, conn, tenantID, uuid.New(), 3)    // other product

	_, err := svc.Reserve(context.Background(), tenantID, productID, 2, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInsufficientStock))
}

func TestReserve_OldestCardsFirst(t *testing.T) {
	svc, conn := testService(t)
	tenantID, productID := uuid.New(), uuid.New()
	cards := seedCards(t, conn, tenantID, productID, 4)

	reserved, err := svc.Reserve(context.Background(), tenantID, productID, 2, uuid.New())
	require.NoError(t, err)
	require.Len(t, reserved, 2)

	got := map[uuid.UUID]bool{reserved[0].ID: true, reserved[1].ID: true}
	assert.True(t, got[cards[0].ID])
	assert.True(t, got[cards[1].ID])
}

func TestReserve_RejectsNonPositiveQuantity(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.Reserve(context.Background(), uuid.New(), uuid.New(), 0, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestUpsertOwnership_CreatesNewCard(t *testing.T) {
	svc, conn := testService(t)
	tenantID, userID := uuid.New(), uuid.New()
	pin := "4321"

	card, err := svc.UpsertOwnership(context.Background(), tenantID, "CODE-1", UpsertInput{
		ProductID:    uuid.New(),
		CardPin:      &pin,
		Status:       enums.CardStatusSold,
		SoldToUserID: &userID,
	})
	require.NoError(t, err)
	assert.Equal(t, "CODE-1", card.CardCode)
	assert.Equal(t, enums.CardStatusSold, card.Status)

	var stored models.Card
	require.NoError(t, conn.Where("tenant_id = ? AND card_code = ?", tenantID, "CODE-1").First(&stored).Error)
	require.NotNil(t, stored.SoldToUserID)
	assert.Equal(t, userID, *stored.SoldToUserID)
}

func TestUpsertOwnership_IdempotentOnRepeat(t *testing.T) {
	svc, conn := testService(t)
	tenantID, userID := uuid.New(), uuid.New()
	productID := uuid.New()
	pin := "9876"
	input := UpsertInput{
		ProductID:    productID,
		CardPin:      &pin,
		Status:       enums.CardStatusSold,
		SoldToUserID: &userID,
	}

	first, err := svc.UpsertOwnership(context.Background(), tenantID, "CODE-2", input)
	require.NoError(t, err)
	second, err := svc.UpsertOwnership(context.Background(), tenantID, "CODE-2", input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, conn.Model(&models.Card{}).
		Where("tenant_id = ? AND card_code = ?", tenantID, "CODE-2").
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpsertOwnership_FillsMissingFieldsOnly(t *testing.T) {
	svc, conn := testService(t)
	tenantID := uuid.New()
	originalOwner := uuid.New()

	seeded := models.Card{
		ID:           uuid.New(),
		TenantID:     tenantID,
		ProductID:    uuid.New(),
		CardCode:     "CODE-3",
		Status:       enums.CardStatusSold,
		SoldToUserID: &originalOwner,
	}
	require.NoError(t, conn.Create(&seeded).Error)

	otherOwner := uuid.New()
	pin := "1111"
	card, err := svc.UpsertOwnership(context.Background(), tenantID, "CODE-3", UpsertInput{
		CardPin:      &pin,
		SoldToUserID: &otherOwner,
	})
	require.NoError(t, err)

	// PIN was absent so it fills in; ownership is already set and sticks.
	require.NotNil(t, card.CardPin)
	assert.Equal(t, "1111", *card.CardPin)
	require.NotNil(t, card.SoldToUserID)
	assert.Equal(t, originalOwner, *card.SoldToUserID)
}

func TestUpsertOwnership_NeverReturnsSoldCardToPool(t *testing.T) {
	svc, conn := testService(t)
	tenantID := uuid.New()
	owner := uuid.New()
	soldAt := time.Now().Add(-time.Minute)

	seeded := models.Card{
		ID:           uuid.New(),
		TenantID:     tenantID,
		ProductID:    uuid.New(),
		CardCode:     "CODE-4",
		Status:       enums.CardStatusSold,
		SoldToUserID: &owner,
		SoldAt:       &soldAt,
	}
	require.NoError(t, conn.Create(&seeded).Error)

	card, err := svc.UpsertOwnership(context.Background(), tenantID, "CODE-4", UpsertInput{
		ProductID: seeded.ProductID,
		Status:    enums.CardStatusAvailable,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CardStatusSold, card.Status)

	var stored models.Card
	require.NoError(t, conn.Where("tenant_id = ? AND card_code = ?", tenantID, "CODE-4").First(&stored).Error)
	assert.Equal(t, enums.CardStatusSold, stored.Status)
	require.NotNil(t, stored.SoldToUserID)
	assert.Equal(t, owner, *stored.SoldToUserID)
}

func TestUpsertOwnership_StampsSoldAt(t *testing.T) {
	svc, conn := testService(t)
	tenantID := uuid.New()
	owner := uuid.New()

	// Insert path: a supplier-sourced card arrives already sold.
	created, err := svc.UpsertOwnership(context.Background(), tenantID, "CODE-5", UpsertInput{
		ProductID:    uuid.New(),
		Status:       enums.CardStatusSold,
		SoldToUserID: &owner,
	})
	require.NoError(t, err)
	require.NotNil(t, created.SoldAt)

	// Patch path: an available card upserted to sold gets the stamp too.
	seeded := models.Card{
		ID:        uuid.New(),
		TenantID:  tenantID,
		ProductID: uuid.New(),
		CardCode:  "CODE-6",
		Status:    enums.CardStatusAvailable,
	}
	require.NoError(t, conn.Create(&seeded).Error)

	patched, err := svc.UpsertOwnership(context.Background(), tenantID, "CODE-6", UpsertInput{
		ProductID:    seeded.ProductID,
		Status:       enums.CardStatusSold,
		SoldToUserID: &owner,
	})
	require.NoError(t, err)
	require.NotNil(t, patched.SoldAt)

	var stored models.Card
	require.NoError(t, conn.Where("tenant_id = ? AND card_code = ?", tenantID, "CODE-6").First(&stored).Error)
	assert.Equal(t, enums.CardStatusSold, stored.Status)
	require.NotNil(t, stored.SoldAt)
}

func TestUpsertOwnership_RequiresCardCode(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.UpsertOwnership(context.Background(), uuid.New(), "", UpsertInput{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestAvailable(t *testing.T) {
	svc, conn := testService(t)
	tenantID, productID := uuid.New(), uuid.New()
	seedCards(t, conn, tenantID, productID, 4)

	count, err := svc.Available(context.Background(), tenantID, productID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	_, err = svc.Reserve(context.Background(), tenantID, productID, 1, uuid.New())
	require.NoError(t, err)

	count, err = svc.Available(context.Background(), tenantID, productID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}
