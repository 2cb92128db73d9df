package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/internal/export"
	"github.com/alimansour/cardvault-backend/internal/inventory"
	"github.com/alimansour/cardvault-backend/internal/normalize"
	"github.com/alimansour/cardvault-backend/internal/notify"
	"github.com/alimansour/cardvault-backend/internal/orders"
	"github.com/alimansour/cardvault-backend/internal/supplier"
	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
	"github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
	"github.com/alimansour/cardvault-backend/pkg/metrics"
	"github.com/alimansour/cardvault-backend/pkg/outbox"
)

// Purchaser is the supplier gateway surface the orchestrator depends on.
type Purchaser interface {
	Purchase(ctx context.Context, input supplier.PurchaseInput) (*supplier.PurchaseResult, error)
}

// Service drives per-item fulfillment: local stock first, supplier fallback,
// independent success/failure per line item.
type Service struct {
	tx        inventory.TxRunner
	repo      Repository
	inventory *inventory.Service
	cards     inventory.Repository
	orders    orders.Repository
	gateway   Purchaser
	exporter  *export.Service
	notifier  notify.Dispatcher
	outbox    *outbox.Service
	metrics   *metrics.FulfillmentMetrics
	log       *logger.Logger
}

func NewService(
	tx inventory.TxRunner,
	repo Repository,
	inv *inventory.Service,
	cards inventory.Repository,
	ordersRepo orders.Repository,
	gateway Purchaser,
	exporter *export.Service,
	notifier notify.Dispatcher,
	ob *outbox.Service,
	m *metrics.FulfillmentMetrics,
	log *logger.Logger,
) *Service {
	return &Service{
		tx:        tx,
		repo:      repo,
		inventory: inv,
		cards:     cards,
		orders:    ordersRepo,
		gateway:   gateway,
		exporter:  exporter,
		notifier:  notifier,
		outbox:    ob,
		metrics:   m,
		log:       log,
	}
}

// FulfillOrder processes every line item of the order and aggregates the
// outcome. Item failures never abort sibling items; a fully failed order is
// reported through Result.Error/ErrorAr, not as a Go error, so the caller's
// order flow can complete and retry later.
func (s *Service) FulfillOrder(ctx context.Context, tenantID, orderID uuid.UUID, callerUserID *uuid.UUID) (*Result, error) {
	ctx = s.log.WithOrderID(ctx, orderID.String())

	order, err := s.orders.FindByID(ctx, orderID)
	if err == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order")
	}
	if order.TenantID != tenantID {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}

	owner := s.resolveOwner(ctx, order, callerUserID)

	result := &Result{OrderID: orderID}
	var itemErrs error
	for _, item := range order.Items {
		itemResult := s.processItem(ctx, order, item, owner)
		if itemResult.Err != nil {
			itemErrs = multierr.Append(itemErrs, itemResult.Err)
			s.metrics.IncFailed(string(errors.As(itemResult.Err).Code()))
		} else {
			s.metrics.IncFulfilled(string(itemResult.Source))
			result.Pairs = append(result.Pairs, itemResult.Pairs...)
		}
		result.Items = append(result.Items, itemResult)
	}

	if !result.Fulfilled() {
		// Zero codes across all items: surface the first cause, bilingually.
		first := firstError(result.Items)
		result.Error, result.ErrorAr = publicMessages(first)
		s.log.Error(ctx, "order yielded no codes", itemErrs)
		return result, nil
	}
	if itemErrs != nil {
		s.log.Warn(ctx, fmt.Sprintf("partial fulfillment: %v", itemErrs))
	}

	if err := s.recordFulfillment(ctx, order, owner, result); err != nil {
		s.log.Error(ctx, "recording fulfillment", err)
	}
	s.deliver(ctx, order, result)
	return result, nil
}

// resolveOwner picks whose inventory the codes land in: email match within
// the tenant, then email match anywhere, then the caller-supplied ID.
func (s *Service) resolveOwner(ctx context.Context, order *models.FulfillmentOrder, callerUserID *uuid.UUID) *uuid.UUID {
	if order.CustomerEmail != nil && *order.CustomerEmail != "" {
		if user, err := s.repo.FindUserByEmailInTenant(ctx, order.TenantID, *order.CustomerEmail); err == nil {
			return &user.ID
		}
		if user, err := s.repo.FindUserByEmailAnyTenant(ctx, *order.CustomerEmail); err == nil {
			return &user.ID
		}
	}
	if callerUserID != nil {
		return callerUserID
	}
	return order.UserID
}

func (s *Service) processItem(ctx context.Context, order *models.FulfillmentOrder, item models.OrderLineItem, owner *uuid.UUID) ItemResult {
	result := ItemResult{
		ItemID:      item.ID,
		ProductName: item.ProductName,
	}
	if item.ProductID == nil {
		result.Err = errors.New(errors.CodeValidation,
			fmt.Sprintf("line item %q has no product reference", item.ProductName))
		result.Error = result.Err.Error()
		return result
	}
	result.ProductID = *item.ProductID

	pairs, err := s.fulfillLocally(ctx, order, item, owner)
	if err == nil {
		result.Source = SourceLocal
		result.Pairs = pairs
		return result
	}
	if !errors.HasCode(err, errors.CodeInsufficientStock) {
		result.Err = err
		result.Error = publicText(err)
		return result
	}

	// Local stock exhausted: expected, fall through to the supplier.
	pairs, err = s.fulfillFromSupplier(ctx, order, item, owner)
	if err != nil {
		result.Err = err
		result.Error = publicText(err)
		return result
	}
	result.Source = SourceSupplier
	result.Pairs = pairs
	return result
}

func (s *Service) fulfillLocally(ctx context.Context, order *models.FulfillmentOrder, item models.OrderLineItem, owner *uuid.UUID) ([]normalize.DeliverablePair, error) {
	cards, err := s.inventory.Reserve(ctx, order.TenantID, *item.ProductID, item.Qty, order.ID)
	if err != nil {
		return nil, err
	}

	pairs := make([]normalize.DeliverablePair, 0, len(cards))
	for _, card := range cards {
		if owner != nil {
			if updErr := s.cards.Update(ctx, card.ID, map[string]any{"sold_to_user_id": *owner}); updErr != nil {
				s.log.Warn(ctx, fmt.Sprintf("attaching card %s to owner: %v", card.ID, updErr))
			}
		}
		pair := normalize.DeliverablePair{SerialNumber: card.CardCode}
		if card.CardPin != nil {
			pair.PIN = *card.CardPin
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (s *Service) fulfillFromSupplier(ctx context.Context, order *models.FulfillmentOrder, item models.OrderLineItem, owner *uuid.UUID) ([]normalize.DeliverablePair, error) {
	product, err := s.repo.FindProduct(ctx, *item.ProductID)
	if err == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("product %q not found", item.ProductName))
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading product")
	}

	purchase, err := s.gateway.Purchase(ctx, supplier.PurchaseInput{
		TenantID:    order.TenantID,
		ProductID:   product.ID,
		ProductCode: supplierCode(product),
		ProductName: product.Name,
		Quantity:    item.Qty,
		SellPrice:   item.UnitPrice,
		Currency:    order.Currency,
		CustomerMeta: map[string]any{
			"orderId": order.ID.String(),
			"email":   order.CustomerEmail,
		},
	})
	if err != nil {
		return nil, err
	}

	normalized, err := normalize.Normalize(purchase.Payload)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSupplierValidation, err, "normalizing supplier payload")
	}
	if len(normalized.Pairs) == 0 {
		return nil, errors.New(errors.CodeSupplierValidation,
			fmt.Sprintf("supplier %s returned no usable codes", purchase.SupplierName))
	}
	if normalized.Dropped > 0 {
		s.log.Warn(ctx, fmt.Sprintf("dropped %d empty supplier records", normalized.Dropped))
	}

	orderID := order.ID
	for _, pair := range normalized.Pairs {
		if pair.SerialNumber == "" {
			continue
		}
		pin := pair.PIN
		input := inventory.UpsertInput{
			ProductID:    product.ID,
			Status:       enums.CardStatusSold,
			SoldToUserID: owner,
			OrderID:      &orderID,
		}
		if pin != "" {
			input.CardPin = &pin
		}
		if _, err := s.inventory.UpsertOwnership(ctx, order.TenantID, pair.SerialNumber, input); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "persisting purchased card")
		}
	}
	return normalized.Pairs, nil
}

// recordFulfillment persists the delivery payload (mined later by the
// reconciler) and queues the domain events, in one transaction.
func (s *Service) recordFulfillment(ctx context.Context, order *models.FulfillmentOrder, owner *uuid.UUID, result *Result) error {
	record := &models.DeliveryRecord{
		ID:       uuid.New(),
		TenantID: order.TenantID,
		OrderID:  order.ID,
		Email:    order.CustomerEmail,
		Channel:  string(order.DeliveryOption),
		Payload:  deliveryPayload(result),
	}
	if err := s.repo.CreateDeliveryRecord(ctx, record); err != nil {
		return fmt.Errorf("persisting delivery record: %w", err)
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var actor *outbox.ActorRef
		if owner != nil {
			tenantID := order.TenantID
			actor = &outbox.ActorRef{UserID: *owner, TenantID: &tenantID}
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderFulfilled,
			AggregateType: enums.AggregateFulfillmentOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: map[string]any{
				"codeCount": len(result.Pairs),
				"items":     len(result.Items),
			},
			Version: 1,
		}); err != nil {
			return err
		}
		if owner == nil {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCardsAttached,
			AggregateType: enums.AggregateCard,
			AggregateID:   order.ID,
			Actor:         actor,
			Data:          map[string]any{"ownerId": owner},
			Version:       1,
		})
	})
}

// deliver runs the post-persistence side effects. All best effort: a failed
// export or notification never undoes persisted inventory.
func (s *Service) deliver(ctx context.Context, order *models.FulfillmentOrder, result *Result) {
	switch order.DeliveryOption {
	case enums.DeliveryOptionFile:
		if s.exporter != nil {
			rows := make([]export.Row, 0, len(result.Pairs))
			for _, item := range result.Items {
				for _, pair := range item.Pairs {
					rows = append(rows, export.Row{
						ProductName:  item.ProductName,
						SerialNumber: pair.SerialNumber,
						PIN:          pair.PIN,
					})
				}
			}
			s.exporter.WriteAll(ctx, order.TenantID, order.ID, rows)
		}
	case enums.DeliveryOptionEmail:
		if s.notifier != nil && order.CustomerEmail != nil && *order.CustomerEmail != "" {
			if err := s.notifier.SendEmail(ctx, notify.EmailMessage{
				To:      *order.CustomerEmail,
				Subject: "Your card codes",
				OrderID: order.ID.String(),
				Pairs:   result.Pairs,
			}); err != nil {
				s.log.Warn(ctx, fmt.Sprintf("delivery email failed: %v", err))
			}
		}
	case enums.DeliveryOptionWhatsApp:
		if s.notifier != nil && order.CustomerPhone != nil && *order.CustomerPhone != "" {
			if err := s.notifier.SendWhatsApp(ctx, notify.WhatsAppMessage{
				Phone:   *order.CustomerPhone,
				OrderID: order.ID.String(),
				Pairs:   result.Pairs,
			}); err != nil {
				s.log.Warn(ctx, fmt.Sprintf("delivery whatsapp failed: %v", err))
			}
		}
	}
}

func supplierCode(product *models.Product) string {
	if product.ProductCode != nil && *product.ProductCode != "" {
		return *product.ProductCode
	}
	if product.SKU != nil && *product.SKU != "" {
		return *product.SKU
	}
	return product.Name
}

func firstError(items []ItemResult) error {
	for _, item := range items {
		if item.Err != nil {
			return item.Err
		}
	}
	return errors.New(errors.CodeInternal, "order has no line items")
}

// deliveryPayload groups the delivered codes by line item so a later read of
// the record can map each serial back to a product by name.
func deliveryPayload(result *Result) json.RawMessage {
	items := make([]normalize.DeliveryItem, 0, len(result.Items))
	for _, item := range result.Items {
		if len(item.Pairs) == 0 {
			continue
		}
		items = append(items, normalize.DeliveryItem{
			ProductName: item.ProductName,
			Codes:       item.Pairs,
		})
	}
	return mustJSON(map[string]any{"items": items})
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`[]`)
	}
	return raw
}

func publicText(err error) string {
	if typed := errors.As(err); typed != nil {
		return typed.Message()
	}
	return "item processing failed"
}
