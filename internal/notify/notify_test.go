package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimansour/cardvault-backend/internal/normalize"
	"github.com/alimansour/cardvault-backend/pkg/config"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

func TestSendEmail(t *testing.T) {
	t.Parallel()

	var got EmailMessage
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	d := NewDispatcher(config.NotifyConfig{
		EmailEndpoint: server.URL,
		APIKey:        "secret",
		DefaultFrom:   "noreply@example.com",
	}, logger.NewNop())

	err := d.SendEmail(context.Background(), EmailMessage{
		To:      "buyer@example.com",
		Subject: "Your codes",
		OrderID: "ord-1",
		Pairs:   []normalize.DeliverablePair{{SerialNumber: "S1", PIN: "1111"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "buyer@example.com", got.To)
	assert.Equal(t, "noreply@example.com", got.From)
	require.Len(t, got.Pairs, 1)
}

func TestSendEmail_EndpointNotConfigured(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(config.NotifyConfig{}, logger.NewNop())
	err := d.SendEmail(context.Background(), EmailMessage{To: "x@example.com"})
	require.Error(t, err)
}

func TestSendWhatsApp_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewDispatcher(config.NotifyConfig{WhatsAppEndpoint: server.URL}, logger.NewNop())
	err := d.SendWhatsApp(context.Background(), WhatsAppMessage{Phone: "+100000000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
