package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/internal/inventory"
	"github.com/alimansour/cardvault-backend/internal/normalize"
	"github.com/alimansour/cardvault-backend/internal/orders"
	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
	"github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

type lineItemCandidate struct {
	item models.OrderLineItem
}

func (c lineItemCandidate) productName() string { return c.item.ProductName }

type productCandidate struct {
	product models.Product
}

func (c productCandidate) productName() string { return c.product.Name }

// Service heals a customer's card inventory on read: serials buried in
// historical delivery payloads or the legacy order table that never became
// card rows are upserted, and orphaned rows are claimed for the caller.
type Service struct {
	repo      Repository
	inventory *inventory.Service
	cards     inventory.Repository
	orders    orders.Repository
	log       *logger.Logger
}

func NewService(repo Repository, inv *inventory.Service, cards inventory.Repository, ordersRepo orders.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, inventory: inv, cards: cards, orders: ordersRepo, log: log}
}

// ReadInventory resolves the caller's identity set, reconciles historical
// records into card rows, and returns everything the identity set owns.
// Idempotent: a second call with unchanged history performs zero writes.
func (s *Service) ReadInventory(ctx context.Context, tenantID, userID uuid.UUID, email string) ([]models.Card, error) {
	identity, err := s.resolveIdentity(ctx, userID, email)
	if err != nil {
		return nil, err
	}

	if email != "" {
		if err := s.heal(ctx, tenantID, userID, email); err != nil {
			// Healing must never block the read itself.
			s.log.Warn(ctx, fmt.Sprintf("inventory reconciliation failed: %v", err))
		}
	}

	cards, err := s.cards.FindOwnedBy(ctx, tenantID, identity)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading owned cards")
	}
	return cards, nil
}

// resolveIdentity is the caller's raw ID plus every local account sharing
// the email, case-insensitively.
func (s *Service) resolveIdentity(ctx context.Context, userID uuid.UUID, email string) ([]uuid.UUID, error) {
	ids := []uuid.UUID{userID}
	if email == "" {
		return ids, nil
	}
	matched, err := s.repo.FindUserIDsByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "resolving identity set")
	}
	seen := map[uuid.UUID]bool{userID: true}
	for _, id := range matched {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Service) heal(ctx context.Context, tenantID, userID uuid.UUID, email string) error {
	records, err := s.repo.FindDeliveryRecords(ctx, tenantID, email)
	if err != nil {
		return fmt.Errorf("loading delivery records: %w", err)
	}
	for _, record := range records {
		if err := s.healDeliveryRecord(ctx, tenantID, userID, record); err != nil {
			s.log.Warn(ctx, fmt.Sprintf("healing delivery record %s: %v", record.ID, err))
		}
	}

	legacy, err := s.repo.FindLegacyOrders(ctx, tenantID, email)
	if err != nil {
		return fmt.Errorf("loading legacy orders: %w", err)
	}
	if len(legacy) == 0 {
		return nil
	}

	products, err := s.repo.FindProducts(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("loading products: %w", err)
	}
	for _, row := range legacy {
		if err := s.healLegacyOrder(ctx, tenantID, userID, row, products); err != nil {
			s.log.Warn(ctx, fmt.Sprintf("healing legacy order %s: %v", row.ID, err))
		}
	}
	return nil
}

func (s *Service) healDeliveryRecord(ctx context.Context, tenantID, userID uuid.UUID, record models.DeliveryRecord) error {
	groups := deliveryGroups(record.Payload)
	if len(groups) == 0 {
		return nil
	}

	var items []models.OrderLineItem
	order, err := s.orders.FindByID(ctx, record.OrderID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("loading order: %w", err)
	}
	if order != nil {
		items = order.Items
	}
	candidates := make([]lineItemCandidate, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, lineItemCandidate{item: item})
	}

	for _, group := range groups {
		var productID uuid.UUID
		if idx := matchIndex(group.ProductName, candidates); idx >= 0 && candidates[idx].item.ProductID != nil {
			productID = *candidates[idx].item.ProductID
		}

		for _, pair := range group.Codes {
			if pair.SerialNumber == "" {
				continue
			}
			exists, err := s.cardExists(ctx, tenantID, pair.SerialNumber)
			if err != nil {
				return err
			}
			if exists {
				// Existing row: at most claim it when orphaned.
				if err := s.claimIfOrphaned(ctx, tenantID, userID, pair.SerialNumber); err != nil {
					return err
				}
				continue
			}

			orderID := record.OrderID
			pin := pair.PIN
			input := inventory.UpsertInput{
				ProductID:    productID,
				Status:       enums.CardStatusSold,
				SoldToUserID: &userID,
				OrderID:      &orderID,
			}
			if pin != "" {
				input.CardPin = &pin
			}
			if _, err := s.inventory.UpsertOwnership(ctx, tenantID, pair.SerialNumber, input); err != nil {
				return err
			}
		}
	}
	return nil
}

// deliveryGroups reads the grouped payload shape written by fulfillment,
// falling back to a flat normalize pass (one unnamed group) for records
// predating it.
func deliveryGroups(payload json.RawMessage) []normalize.DeliveryItem {
	if items, ok := normalize.DecodeDeliveryItems(payload); ok {
		return items
	}
	result, err := normalize.Normalize(payload)
	if err != nil || len(result.Pairs) == 0 {
		return nil
	}
	return []normalize.DeliveryItem{{Codes: result.Pairs}}
}

func (s *Service) healLegacyOrder(ctx context.Context, tenantID, userID uuid.UUID, row models.LegacyCardOrder, products []models.Product) error {
	result, err := normalize.Normalize(row.Codes)
	if err != nil || len(result.Pairs) == 0 {
		return err
	}

	var productID uuid.UUID
	candidates := make([]productCandidate, 0, len(products))
	for _, p := range products {
		candidates = append(candidates, productCandidate{product: p})
	}
	if idx := matchIndex(row.ProductName, candidates); idx >= 0 {
		productID = candidates[idx].product.ID
	}

	for _, pair := range result.Pairs {
		if pair.SerialNumber == "" {
			continue
		}
		exists, err := s.cardExists(ctx, tenantID, pair.SerialNumber)
		if err != nil {
			return err
		}
		if exists {
			if err := s.claimIfOrphaned(ctx, tenantID, userID, pair.SerialNumber); err != nil {
				return err
			}
			continue
		}

		pin := pair.PIN
		input := inventory.UpsertInput{
			ProductID:    productID,
			Status:       enums.CardStatusSold,
			SoldToUserID: &userID,
		}
		if pin != "" {
			input.CardPin = &pin
		}
		if _, err := s.inventory.UpsertOwnership(ctx, tenantID, pair.SerialNumber, input); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) cardExists(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	_, err := s.cards.FindByTenantAndCode(ctx, tenantID, code)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking card existence: %w", err)
	}
	return true, nil
}

// claimIfOrphaned assigns ownership of a card nobody owns to the caller.
// Cards already owned by someone else are left alone.
func (s *Service) claimIfOrphaned(ctx context.Context, tenantID, userID uuid.UUID, code string) error {
	card, err := s.cards.FindByTenantAndCode(ctx, tenantID, code)
	if err != nil {
		return err
	}
	if card.SoldToUserID != nil {
		return nil
	}
	return s.cards.Update(ctx, card.ID, map[string]any{
		"sold_to_user_id": userID,
		"status":          enums.CardStatusSold,
	})
}
