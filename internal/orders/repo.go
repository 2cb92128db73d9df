package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
)

// Repository reads and mutates fulfillment orders. Checkout owns creation;
// this core only flips payment/billing state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.FulfillmentOrder, error)
	Create(ctx context.Context, order *models.FulfillmentOrder) error
	// TransitionBillingState flips billing_state only when the row still
	// carries one of the expected states. Returns true when the flip landed.
	TransitionBillingState(ctx context.Context, orderID uuid.UUID, from []enums.BillingState, to enums.BillingState) (bool, error)
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error
	SetBillingState(ctx context.Context, orderID uuid.UUID, state enums.BillingState) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FulfillmentOrder, error) {
	var order models.FulfillmentOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Create(ctx context.Context, order *models.FulfillmentOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) TransitionBillingState(ctx context.Context, orderID uuid.UUID, from []enums.BillingState, to enums.BillingState) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE fulfillment_orders
		SET billing_state = ?, updated_at = ?
		WHERE id = ? AND billing_state IN ?
	`, to, time.Now(), orderID, from)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.FulfillmentOrder{}).
		Where("id = ?", orderID).
		Update("payment_status", status).Error
}

func (r *repository) SetBillingState(ctx context.Context, orderID uuid.UUID, state enums.BillingState) error {
	return r.db.WithContext(ctx).
		Model(&models.FulfillmentOrder{}).
		Where("id = ?", orderID).
		Update("billing_state", state).Error
}
