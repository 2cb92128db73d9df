package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/pkg/db/models"
)

// Repository manages wallet balances and the transaction ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUser(ctx context.Context, tenantID, userID uuid.UUID) (*models.Wallet, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	// DeductIfSufficient subtracts amount from the wallet only when the
	// current balance covers it. Returns the post-deduction balance; ok is
	// false when the balance could not cover the amount.
	DeductIfSufficient(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool, error)
	Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error
	CreateTransaction(ctx context.Context, tx *models.WalletTransaction) error
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

func (r *repository) FindByUser(ctx context.Context, tenantID, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) DeductIfSufficient(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	// RETURNING ties the ledger to the balance this exact statement
	// produced, not to a row read earlier in the transaction.
	var rows []struct {
		Balance decimal.Decimal
	}
	err := r.db.WithContext(ctx).Raw(`
		UPDATE wallets
		SET balance = balance - ?, updated_at = ?
		WHERE id = ? AND balance >= ?
		RETURNING balance
	`, amount, time.Now(), walletID, amount).Scan(&rows).Error
	if err != nil {
		return decimal.Zero, false, err
	}
	if len(rows) == 0 {
		return decimal.Zero, false, nil
	}
	return rows[0].Balance, true, nil
}

func (r *repository) Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE wallets
		SET balance = balance + ?, updated_at = ?
		WHERE id = ?
	`, amount, time.Now(), walletID).Error
}

func (r *repository) CreateTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}
