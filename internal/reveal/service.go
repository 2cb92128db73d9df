package reveal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/internal/inventory"
	"github.com/alimansour/cardvault-backend/internal/normalize"
	"github.com/alimansour/cardvault-backend/internal/notify"
	"github.com/alimansour/cardvault-backend/internal/orders"
	"github.com/alimansour/cardvault-backend/internal/wallet"
	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
	"github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
	"github.com/alimansour/cardvault-backend/pkg/metrics"
	"github.com/alimansour/cardvault-backend/pkg/outbox"
)

const msgArInsufficientBalance = "رصيد المحفظة غير كافٍ لإتمام العملية"

// Result is the outcome of a reveal. AlreadyRevealed marks the idempotent
// repeat case where no balance was charged.
type Result struct {
	Pairs           []normalize.DeliverablePair
	AlreadyRevealed bool
	AmountCharged   decimal.Decimal
}

// Service is the reveal gate: it deducts the order total from the buyer's
// wallet and uncovers the codes, exactly once per order.
type Service struct {
	tx       inventory.TxRunner
	orders   orders.Repository
	wallets  wallet.Repository
	cards    inventory.Repository
	outbox   *outbox.Service
	notifier notify.Dispatcher
	metrics  *metrics.FulfillmentMetrics
	log      *logger.Logger
}

func NewService(
	tx inventory.TxRunner,
	ordersRepo orders.Repository,
	wallets wallet.Repository,
	cards inventory.Repository,
	ob *outbox.Service,
	notifier notify.Dispatcher,
	m *metrics.FulfillmentMetrics,
	log *logger.Logger,
) *Service {
	return &Service{
		tx:       tx,
		orders:   ordersRepo,
		wallets:  wallets,
		cards:    cards,
		outbox:   ob,
		notifier: notifier,
		metrics:  m,
		log:      log,
	}
}

// Reveal charges the wallet and finalizes the order. Safe to call twice: a
// repeat on a revealed order returns the codes again without charging. An
// insufficient balance rolls everything back, leaving the order still
// pending.
func (s *Service) Reveal(ctx context.Context, tenantID, orderID, userID uuid.UUID) (*Result, error) {
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

	if order.BillingState == enums.BillingStateRevealed {
		s.metrics.IncReveal("already_revealed")
		return s.revealedResult(ctx, orderID, true)
	}
	if !s.isWalletPending(order) {
		// Not gated on a wallet deduction: report success without charging.
		s.metrics.IncReveal("not_pending")
		return s.revealedResult(ctx, orderID, true)
	}

	var charged decimal.Decimal
	var repeat bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersTx := s.orders.WithTx(tx)
		walletsTx := s.wallets.WithTx(tx)

		// Pending rows come in two flavors: the explicit column, and legacy
		// rows carrying only the metadata flag with an unset column.
		flipped, err := ordersTx.TransitionBillingState(ctx, orderID,
			[]enums.BillingState{enums.BillingStateWalletPending, enums.BillingStateNone, ""},
			enums.BillingStateRevealed)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "transitioning billing state")
		}
		if !flipped {
			// A concurrent reveal won; treat this call as the repeat.
			repeat = true
			return nil
		}

		w, err := walletsTx.FindByUser(ctx, tenantID, userID)
		if err == gorm.ErrRecordNotFound {
			return errors.New(errors.CodeInsufficientBalance, "wallet not found").
				WithMessageAr(msgArInsufficientBalance)
		}
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "loading wallet")
		}

		amount := order.TotalAmount
		balanceAfter, deducted, err := walletsTx.DeductIfSufficient(ctx, w.ID, amount)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "deducting wallet balance")
		}
		if !deducted {
			return errors.New(errors.CodeInsufficientBalance,
				fmt.Sprintf("balance %s cannot cover %s", w.Balance, amount)).
				WithMessageAr(msgArInsufficientBalance).
				WithDetails(map[string]any{
					"balance":  w.Balance,
					"required": amount,
				})
		}

		note := fmt.Sprintf("reveal of order %s", orderID)
		ledger := &models.WalletTransaction{
			ID:            uuid.New(),
			WalletID:      w.ID,
			OrderID:       &orderID,
			Type:          enums.WalletTxTypePurchaseDeduction,
			Amount:        amount,
			BalanceBefore: balanceAfter.Add(amount),
			BalanceAfter:  balanceAfter,
			Note:          &note,
		}
		if err := walletsTx.CreateTransaction(ctx, ledger); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "recording wallet transaction")
		}

		if err := ordersTx.UpdatePaymentStatus(ctx, orderID, enums.PaymentStatusPaid); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "updating payment status")
		}

		actor := &outbox.ActorRef{UserID: userID, TenantID: &tenantID}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRevealed,
			AggregateType: enums.AggregateFulfillmentOrder,
			AggregateID:   orderID,
			Actor:         actor,
			Data:          map[string]any{"amount": amount, "currency": order.Currency},
			Version:       1,
		}); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "queueing reveal event")
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletDebited,
			AggregateType: enums.AggregateWallet,
			AggregateID:   w.ID,
			Actor:         actor,
			Data:          map[string]any{"orderId": orderID, "amount": amount},
			Version:       1,
		}); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "queueing wallet event")
		}

		charged = amount
		return nil
	})
	if err != nil {
		if errors.HasCode(err, errors.CodeInsufficientBalance) {
			s.metrics.IncReveal("insufficient_balance")
		} else {
			s.metrics.IncReveal("error")
		}
		return nil, err
	}

	if repeat {
		s.metrics.IncReveal("already_revealed")
		return s.revealedResult(ctx, orderID, true)
	}

	s.metrics.IncReveal("revealed")
	result, err := s.revealedResult(ctx, orderID, false)
	if err != nil {
		return nil, err
	}
	result.AmountCharged = charged

	s.sendCodesEmail(ctx, order, result.Pairs)
	return result, nil
}

func (s *Service) isWalletPending(order *models.FulfillmentOrder) bool {
	if order.BillingState == enums.BillingStateWalletPending {
		return true
	}
	if order.BillingState != enums.BillingStateNone && order.BillingState != "" {
		return false
	}
	return legacyWalletPending(order.Metadata)
}

// legacyWalletPending reads the pending flag out of the order metadata blob.
// Read-path only: new writes always set the billing_state column.
func legacyWalletPending(metadata json.RawMessage) bool {
	if len(metadata) == 0 {
		return false
	}
	var blob map[string]any
	if err := json.Unmarshal(metadata, &blob); err != nil {
		return false
	}
	switch v := blob["walletPending"].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	default:
		return false
	}
}

func (s *Service) revealedResult(ctx context.Context, orderID uuid.UUID, repeat bool) (*Result, error) {
	cards, err := s.cards.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order cards")
	}
	pairs := make([]normalize.DeliverablePair, 0, len(cards))
	for _, card := range cards {
		pair := normalize.DeliverablePair{SerialNumber: card.CardCode}
		if card.CardPin != nil {
			pair.PIN = *card.CardPin
		}
		pairs = append(pairs, pair)
	}
	return &Result{Pairs: pairs, AlreadyRevealed: repeat}, nil
}

// sendCodesEmail is best effort; a failed send never fails the reveal.
func (s *Service) sendCodesEmail(ctx context.Context, order *models.FulfillmentOrder, pairs []normalize.DeliverablePair) {
	if s.notifier == nil || order.CustomerEmail == nil || *order.CustomerEmail == "" {
		return
	}
	err := s.notifier.SendEmail(ctx, notify.EmailMessage{
		To:      *order.CustomerEmail,
		Subject: "Your card codes",
		OrderID: order.ID.String(),
		Pairs:   pairs,
	})
	if err != nil {
		s.log.Warn(ctx, fmt.Sprintf("sending reveal email failed: %v", err))
	}
}
