package supplier

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alimansour/cardvault-backend/internal/normalize"
	"github.com/alimansour/cardvault-backend/pkg/config"
	"github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
	"github.com/alimansour/cardvault-backend/pkg/metrics"
)

// SlotStore bounds concurrent outbound calls per tenant. Satisfied by the
// shared redis client.
type SlotStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	SupplierSlotKey(tenantID string) string
}

// PurchaseInput describes one line item to buy from an external supplier.
type PurchaseInput struct {
	TenantID     uuid.UUID
	ProductID    uuid.UUID
	ProductCode  string
	ProductName  string
	Quantity     int
	SellPrice    decimal.Decimal
	Currency     string
	CustomerMeta map[string]any
}

// PurchaseResult is a successful supplier purchase with its raw payload.
type PurchaseResult struct {
	SupplierID    uuid.UUID
	SupplierName  string
	RemoteOrderID string
	OrderRef      string
	Payload       any
}

// Gateway walks the ranked supplier list for a product, placing the order
// with the first supplier that accepts it.
type Gateway struct {
	repo    Repository
	client  Client
	slots   SlotStore
	cfg     config.SupplierConfig
	metrics *metrics.FulfillmentMetrics
	log     *logger.Logger
}

func NewGateway(repo Repository, client Client, slots SlotStore, cfg config.SupplierConfig, m *metrics.FulfillmentMetrics, log *logger.Logger) *Gateway {
	return &Gateway{repo: repo, client: client, slots: slots, cfg: cfg, metrics: m, log: log}
}

// Purchase tries each ranked supplier in order until one accepts. Validation
// rejections trigger the self-heal step and move on to the next supplier;
// unreachable suppliers are skipped. The last failure is returned when the
// list is exhausted.
func (g *Gateway) Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	if input.Quantity <= 0 {
		return nil, errors.New(errors.CodeValidation, "purchase quantity must be positive")
	}

	attempts, err := g.resolveAttempts(ctx, input.TenantID, input.ProductID, input.ProductCode)
	if err != nil {
		return nil, err
	}

	release, err := g.acquireSlot(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	priorityNames := make([]string, 0, len(attempts))
	for _, attempt := range attempts {
		priorityNames = append(priorityNames, attempt.Supplier.Name)
	}

	var lastErr error
	for _, attempt := range attempts {
		result, err := g.tryAttempt(ctx, attempt, input, priorityNames)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if IsValidationFailure(err, "") {
			lastErr = g.selfHeal(ctx, attempt, input.ProductName, err)
			continue
		}
		if errors.HasCode(err, errors.CodeSupplierUnreachable) {
			g.log.Warn(g.log.WithTenantID(ctx, input.TenantID.String()),
				fmt.Sprintf("supplier %s unreachable, trying next", attempt.Supplier.Name))
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (g *Gateway) tryAttempt(ctx context.Context, attempt Attempt, input PurchaseInput, priority []string) (*PurchaseResult, error) {
	req := OrderRequest{
		OrderRef:         newOrderRef(),
		ProductCode:      attempt.ProductCode,
		Quantity:         input.Quantity,
		SellPrice:        input.SellPrice,
		Currency:         input.Currency,
		SupplierPriority: priority,
		AllowPriceExceed: attempt.PriceExceed,
		Metadata:         input.CustomerMeta,
	}

	start := time.Now()
	resp, err := g.client.PlaceOrder(ctx, attempt.Supplier, req)
	g.metrics.ObserveSupplierCall(attempt.Supplier.Name, time.Since(start))
	if err != nil {
		return nil, err
	}

	// Some providers answer 200 with a failure status in the body.
	if IsValidationFailure(nil, resp.Status) {
		return nil, errors.New(errors.CodeSupplierValidation,
			fmt.Sprintf("supplier %s reported %q", attempt.Supplier.Name, resp.Status))
	}

	payload := resp.Payload
	if normalize.HasEmptyValues(payload) {
		payload = g.followUp(ctx, attempt, req.OrderRef, payload)
	}

	return &PurchaseResult{
		SupplierID:    attempt.Supplier.ID,
		SupplierName:  attempt.Supplier.Name,
		RemoteOrderID: resp.OrderID,
		OrderRef:      req.OrderRef,
		Payload:       payload,
	}, nil
}

// followUp re-fetches the order by its reference when the purchase response
// carried placeholder records without values yet. Best effort: the original
// payload is kept if the fetch fails or stays empty.
func (g *Gateway) followUp(ctx context.Context, attempt Attempt, orderRef string, payload any) any {
	for i := 0; i < g.cfg.FollowUpMaxRetries; i++ {
		fetched, err := g.client.FetchOrder(ctx, attempt.Supplier, orderRef)
		if err != nil {
			g.log.Warn(ctx, fmt.Sprintf("follow-up fetch from %s failed: %v", attempt.Supplier.Name, err))
			return payload
		}
		if !normalize.HasEmptyValues(fetched.Payload) {
			return fetched.Payload
		}
	}
	return payload
}

// selfHeal runs after a validation rejection: fuzzy-match the product name
// against the supplier's code catalog and persist a corrected code on the
// link for future orders. The current attempt stays failed; the returned
// error is annotated so the operator knows a retry is worthwhile.
func (g *Gateway) selfHeal(ctx context.Context, attempt Attempt, productName string, cause error) error {
	catalog, err := g.repo.FindCatalog(ctx, attempt.Supplier.ID)
	if err != nil {
		g.log.Warn(ctx, fmt.Sprintf("loading catalog for %s failed: %v", attempt.Supplier.Name, err))
		return cause
	}

	match, ok := BestMatch(productName, catalog, g.cfg.SelfHealThreshold)
	if !ok || match.Code == attempt.ProductCode {
		return cause
	}

	if attempt.LinkID != nil {
		if err := g.repo.UpdateLinkProductCode(ctx, *attempt.LinkID, match.Code); err != nil {
			g.log.Error(ctx, "persisting corrected supplier product code", err)
			return cause
		}
	}

	g.log.Info(ctx, fmt.Sprintf("supplier product code corrected to %q (score %.2f) for %s",
		match.Code, match.Score, attempt.Supplier.Name))
	return errors.Wrap(errors.CodeSupplierValidation, cause,
		fmt.Sprintf("product code corrected to %q; retry the order", match.Code)).
		WithDetails(map[string]any{
			"corrected_code": match.Code,
			"score":          match.Score,
			"retry":          true,
		})
}

func (g *Gateway) acquireSlot(ctx context.Context, tenantID uuid.UUID) (func(), error) {
	if g.slots == nil || g.cfg.MaxConcurrent <= 0 {
		return func() {}, nil
	}

	key := g.slots.SupplierSlotKey(tenantID.String())
	count, err := g.slots.IncrWithTTL(ctx, key, g.cfg.ConcurrencyWindow)
	if err != nil {
		// Redis being down must not block fulfillment.
		g.log.Warn(ctx, fmt.Sprintf("supplier slot tracking unavailable: %v", err))
		return func() {}, nil
	}
	if count > int64(g.cfg.MaxConcurrent) {
		_, _ = g.slots.Decr(ctx, key)
		return nil, errors.New(errors.CodeRateLimit,
			fmt.Sprintf("tenant supplier concurrency limit %d reached", g.cfg.MaxConcurrent))
	}
	return func() {
		_, _ = g.slots.Decr(context.WithoutCancel(ctx), key)
	}, nil
}

// newOrderRef builds an idempotency reference unique per attempt, so a
// retried order never collides with an earlier one on the supplier side.
func newOrderRef() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
