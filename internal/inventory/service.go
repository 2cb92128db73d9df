package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/pkg/db"
	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
	"github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

const msgArInsufficientStock = "الكمية المطلوبة غير متوفرة في المخزون"

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns reservation and ownership semantics for local card stock.
type Service struct {
	tx   TxRunner
	repo Repository
	log  *logger.Logger
}

// UpsertInput carries the fields reconciliation and fulfillment may set on a
// card. Nil pointers leave the stored value untouched.
type UpsertInput struct {
	ProductID    uuid.UUID
	CardPin      *string
	Status       enums.CardStatus
	SoldToUserID *uuid.UUID
	OrderID      *uuid.UUID
}

func NewService(tx TxRunner, repo Repository, log *logger.Logger) *Service {
	return &Service{tx: tx, repo: repo, log: log}
}

// Reserve atomically marks qty available cards as sold to the given order.
// All-or-nothing: when fewer than qty cards are available the transaction
// rolls back and no card changes state.
func (s *Service) Reserve(ctx context.Context, tenantID, productID uuid.UUID, qty int, orderID uuid.UUID) ([]models.Card, error) {
	if qty <= 0 {
		return nil, errors.New(errors.CodeValidation, "reservation quantity must be positive")
	}

	var reserved []models.Card
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		affected, err := repo.MarkSold(ctx, tenantID, productID, qty, orderID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "marking cards sold")
		}
		if affected < int64(qty) {
			return errors.New(errors.CodeInsufficientStock,
				fmt.Sprintf("requested %d cards, only %d available", qty, affected)).
				WithMessageAr(msgArInsufficientStock).
				WithDetails(map[string]any{
					"requested": qty,
					"available": affected,
				})
		}

		reserved, err = repo.FindByOrder(ctx, orderID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "loading reserved cards")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// UpsertOwnership creates the card when (tenant, code) is new, otherwise
// fills in whatever fields the existing row is missing. Safe to call
// repeatedly with the same code.
func (s *Service) UpsertOwnership(ctx context.Context, tenantID uuid.UUID, cardCode string, input UpsertInput) (*models.Card, error) {
	if cardCode == "" {
		return nil, errors.New(errors.CodeValidation, "card code is required")
	}

	existing, err := s.repo.FindByTenantAndCode(ctx, tenantID, cardCode)
	switch {
	case err == nil:
		return s.patchExisting(ctx, existing, input)
	case err == gorm.ErrRecordNotFound:
		// fall through to insert
	default:
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up card")
	}

	card := &models.Card{
		ID:           uuid.New(),
		TenantID:     tenantID,
		ProductID:    input.ProductID,
		CardCode:     cardCode,
		CardPin:      input.CardPin,
		Status:       input.Status,
		SoldToUserID: input.SoldToUserID,
		OrderID:      input.OrderID,
	}
	if card.Status == "" {
		card.Status = enums.CardStatusAvailable
	}
	if card.Status == enums.CardStatusSold && card.SoldAt == nil {
		now := time.Now()
		card.SoldAt = &now
	}

	if err := s.repo.Create(ctx, card); err != nil {
		if db.IsUniqueViolation(err, "") {
			// A concurrent writer landed the same code first; converge on it.
			existing, lookupErr := s.repo.FindByTenantAndCode(ctx, tenantID, cardCode)
			if lookupErr != nil {
				return nil, errors.Wrap(errors.CodeInternal, lookupErr, "resolving duplicate card")
			}
			return s.patchExisting(ctx, existing, input)
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "creating card")
	}
	return card, nil
}

func (s *Service) patchExisting(ctx context.Context, card *models.Card, input UpsertInput) (*models.Card, error) {
	updates := map[string]any{}
	if card.CardPin == nil && input.CardPin != nil && *input.CardPin != "" {
		updates["card_pin"] = *input.CardPin
		card.CardPin = input.CardPin
	}
	if card.SoldToUserID == nil && input.SoldToUserID != nil {
		updates["sold_to_user_id"] = *input.SoldToUserID
		card.SoldToUserID = input.SoldToUserID
	}
	if card.OrderID == nil && input.OrderID != nil {
		updates["order_id"] = *input.OrderID
		card.OrderID = input.OrderID
	}
	if input.Status != "" && input.Status != card.Status && !statusDowngrade(card.Status, input.Status) {
		updates["status"] = input.Status
		card.Status = input.Status
		if input.Status == enums.CardStatusSold && card.SoldAt == nil {
			now := time.Now()
			updates["sold_at"] = now
			card.SoldAt = &now
		}
	}
	if len(updates) == 0 {
		return card, nil
	}
	if err := s.repo.Update(ctx, card.ID, updates); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "updating card")
	}
	return card, nil
}

// statusDowngrade reports whether the change would return a sold or used
// card to the reservable pool. A sale is final through the upsert path.
func statusDowngrade(current, next enums.CardStatus) bool {
	if current != enums.CardStatusSold && current != enums.CardStatusUsed {
		return false
	}
	return next == enums.CardStatusAvailable || next == enums.CardStatusReserved
}

// Available reports how many cards of a product are currently reservable.
func (s *Service) Available(ctx context.Context, tenantID, productID uuid.UUID) (int64, error) {
	return s.repo.CountAvailable(ctx, tenantID, productID)
}
