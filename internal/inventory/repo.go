package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
)

// Repository manages persistence for card inventory rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	MarkSold(ctx context.Context, tenantID, productID uuid.UUID, qty int, orderID uuid.UUID) (int64, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Card, error)
	FindByTenantAndCode(ctx context.Context, tenantID uuid.UUID, cardCode string) (*models.Card, error)
	FindOwnedBy(ctx context.Context, tenantID uuid.UUID, ownerIDs []uuid.UUID) ([]models.Card, error)
	Create(ctx context.Context, card *models.Card) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CountAvailable(ctx context.Context, tenantID, productID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a card repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// MarkSold flips up to qty available cards to sold in one conditional
// statement. The subquery plus the outer status guard keep concurrent
// reservations from claiming overlapping rows on both Postgres and SQLite.
func (r *repository) MarkSold(ctx context.Context, tenantID, productID uuid.UUID, qty int, orderID uuid.UUID) (int64, error) {
	if qty <= 0 {
		return 0, errors.New("quantity must be positive")
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE cards
		SET status = ?, order_id = ?, sold_at = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM cards
			WHERE tenant_id = ? AND product_id = ? AND status = ?
			ORDER BY created_at ASC, id ASC
			LIMIT ?
		)
		AND status = ?
	`, enums.CardStatusSold, orderID, time.Now(), time.Now(),
		tenantID, productID, enums.CardStatusAvailable, qty,
		enums.CardStatusAvailable)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Card, error) {
	var cards []models.Card
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&cards).Error
	if err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *repository) FindByTenantAndCode(ctx context.Context, tenantID uuid.UUID, cardCode string) (*models.Card, error) {
	var card models.Card
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND card_code = ?", tenantID, cardCode).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *repository) FindOwnedBy(ctx context.Context, tenantID uuid.UUID, ownerIDs []uuid.UUID) ([]models.Card, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	var cards []models.Card
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sold_to_user_id IN ?", tenantID, ownerIDs).
		Order("sold_at DESC").
		Find(&cards).Error
	if err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *repository) Create(ctx context.Context, card *models.Card) error {
	return r.db.WithContext(ctx).Create(card).Error
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Card{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) CountAvailable(ctx context.Context, tenantID, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Card{}).
		Where("tenant_id = ? AND product_id = ? AND status = ?", tenantID, productID, enums.CardStatusAvailable).
		Count(&count).Error
	return count, err
}
