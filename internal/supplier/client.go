package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/errors"
)

const maxResponseBytes = 1 << 20

// OrderRequest is the outbound purchase payload.
type OrderRequest struct {
	OrderRef         string          `json:"order_ref"`
	ProductCode      string          `json:"product_code"`
	Quantity         int             `json:"quantity"`
	SellPrice        decimal.Decimal `json:"sell_price"`
	Currency         string          `json:"currency"`
	SupplierPriority []string        `json:"supplier_priority"`
	AllowPriceExceed bool            `json:"allow_price_exceed"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}

// OrderResponse carries whatever the supplier answered. Payload stays raw
// until the normalizer classifies it.
type OrderResponse struct {
	OrderID string
	Status  string
	Payload any
}

// Client performs HTTP calls against one supplier.
type Client interface {
	PlaceOrder(ctx context.Context, sup models.Supplier, req OrderRequest) (*OrderResponse, error)
	FetchOrder(ctx context.Context, sup models.Supplier, orderRef string) (*OrderResponse, error)
}

type httpClient struct {
	http *http.Client
}

// NewClient builds a supplier HTTP client with the given call timeout.
func NewClient(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{http: &http.Client{Timeout: timeout}}
}

func (c *httpClient) PlaceOrder(ctx context.Context, sup models.Supplier, req OrderRequest) (*OrderResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "encoding supplier order")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(sup.BaseURL, "/")+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "building supplier request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-KEY", sup.APIKey)

	return c.do(httpReq, sup.Name)
}

func (c *httpClient) FetchOrder(ctx context.Context, sup models.Supplier, orderRef string) (*OrderResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(sup.BaseURL, "/")+"/orders/"+orderRef, nil)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "building supplier request")
	}
	httpReq.Header.Set("X-API-KEY", sup.APIKey)

	return c.do(httpReq, sup.Name)
}

func (c *httpClient) do(req *http.Request, supplierName string) (*OrderResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSupplierUnreachable, err,
			fmt.Sprintf("calling supplier %s", supplierName))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(errors.CodeSupplierUnreachable, err,
			fmt.Sprintf("reading response from supplier %s", supplierName))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return decodeOrderResponse(raw)
	}

	message := remoteErrorMessage(raw)
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return nil, errors.New(errors.CodeSupplierValidation,
			fmt.Sprintf("supplier %s rejected order (%d): %s", supplierName, resp.StatusCode, message))
	default:
		return nil, errors.New(errors.CodeSupplierUnreachable,
			fmt.Sprintf("supplier %s returned %d: %s", supplierName, resp.StatusCode, message))
	}
}

func decodeOrderResponse(raw []byte) (*OrderResponse, error) {
	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// Some providers answer with a bare array of codes.
		var list []any
		if listErr := json.Unmarshal(raw, &list); listErr == nil {
			return &OrderResponse{Payload: list}, nil
		}
		return nil, errors.Wrap(errors.CodeSupplierValidation, err, "decoding supplier response")
	}

	out := &OrderResponse{Payload: envelope}
	for _, key := range []string{"orderId", "order_id", "id", "reference"} {
		if v, ok := envelope[key].(string); ok && v != "" {
			out.OrderID = v
			break
		}
	}
	if v, ok := envelope["status"].(string); ok {
		out.Status = v
	}
	return out, nil
}

// remoteErrorMessage digs a human-readable message out of an error body.
func remoteErrorMessage(raw []byte) string {
	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err == nil {
		for _, key := range []string{"message", "error", "detail"} {
			if v, ok := envelope[key].(string); ok && v != "" {
				return v
			}
		}
	}
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}

// IsValidationFailure reports whether err indicates the supplier rejected the
// request for a bad product code or payload, the trigger for self-healing.
// Some providers answer 200 with a "validation failed" status body, so the
// status string is checked too.
func IsValidationFailure(err error, status string) bool {
	if errors.HasCode(err, errors.CodeSupplierValidation) {
		return true
	}
	return strings.Contains(strings.ToLower(status), "validation failed")
}
