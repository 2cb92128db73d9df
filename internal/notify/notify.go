package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alimansour/cardvault-backend/internal/normalize"
	"github.com/alimansour/cardvault-backend/pkg/config"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

// Dispatcher pushes fulfilled codes to the customer over the configured
// messaging channels. Delivery is best effort; failures are logged and never
// fail the order.
type Dispatcher interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
	SendWhatsApp(ctx context.Context, msg WhatsAppMessage) error
}

type EmailMessage struct {
	To      string                      `json:"to"`
	From    string                      `json:"from,omitempty"`
	Subject string                      `json:"subject"`
	OrderID string                      `json:"orderId"`
	Pairs   []normalize.DeliverablePair `json:"codes"`
}

type WhatsAppMessage struct {
	Phone   string                      `json:"phone"`
	OrderID string                      `json:"orderId"`
	Pairs   []normalize.DeliverablePair `json:"codes"`
}

type dispatcher struct {
	cfg  config.NotifyConfig
	http *http.Client
	log  *logger.Logger
}

func NewDispatcher(cfg config.NotifyConfig, log *logger.Logger) Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &dispatcher{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

func (d *dispatcher) SendEmail(ctx context.Context, msg EmailMessage) error {
	if d.cfg.EmailEndpoint == "" {
		return fmt.Errorf("email endpoint not configured")
	}
	if msg.From == "" {
		msg.From = d.cfg.DefaultFrom
	}
	return d.post(ctx, d.cfg.EmailEndpoint, msg)
}

func (d *dispatcher) SendWhatsApp(ctx context.Context, msg WhatsAppMessage) error {
	if d.cfg.WhatsAppEndpoint == "" {
		return fmt.Errorf("whatsapp endpoint not configured")
	}
	return d.post(ctx, d.cfg.WhatsAppEndpoint, msg)
}

func (d *dispatcher) post(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.APIKey != "" {
		req.Header.Set("X-API-KEY", d.cfg.APIKey)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
