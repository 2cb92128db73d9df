package reconcile

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/pkg/db/models"
)

// Repository reads the historical sources the reconciler mines: delivery
// payload blobs, the legacy parallel order table, users and the product
// catalog.
type Repository interface {
	FindUserIDsByEmail(ctx context.Context, email string) ([]uuid.UUID, error)
	FindDeliveryRecords(ctx context.Context, tenantID uuid.UUID, email string) ([]models.DeliveryRecord, error)
	FindLegacyOrders(ctx context.Context, tenantID uuid.UUID, email string) ([]models.LegacyCardOrder, error)
	FindProducts(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindUserIDsByEmail(ctx context.Context, email string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("LOWER(email) = LOWER(?)", email).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) FindDeliveryRecords(ctx context.Context, tenantID uuid.UUID, email string) ([]models.DeliveryRecord, error) {
	var records []models.DeliveryRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND LOWER(email) = LOWER(?)", tenantID, email).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) FindLegacyOrders(ctx context.Context, tenantID uuid.UUID, email string) ([]models.LegacyCardOrder, error) {
	var rows []models.LegacyCardOrder
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND LOWER(email) = LOWER(?)", tenantID, email).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindProducts(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
