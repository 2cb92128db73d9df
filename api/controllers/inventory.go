package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alimansour/cardvault-backend/api/responses"
	"github.com/alimansour/cardvault-backend/api/validators"
	"github.com/alimansour/cardvault-backend/internal/inventory"
	"github.com/alimansour/cardvault-backend/internal/reconcile"
	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
	pkgerrors "github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

type cardView struct {
	ID        string     `json:"id"`
	ProductID string     `json:"productId"`
	CardCode  string     `json:"cardCode"`
	CardPin   *string    `json:"cardPin,omitempty"`
	Status    string     `json:"status"`
	OrderID   *string    `json:"orderId,omitempty"`
	SoldAt    *time.Time `json:"soldAt,omitempty"`
}

// UserInventory returns the caller's owned cards, after the reconciler has
// healed any delivery records that never made it into the cards table.
func UserInventory(svc *reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		tenantID, err := tenantFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := userFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		email := strings.TrimSpace(r.URL.Query().Get("email"))

		cards, err := svc.ReadInventory(r.Context(), tenantID, userID, email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cards": toCardViews(cards)})
	}
}

// ProductAvailability reports how many cards are in local stock for a product.
func ProductAvailability(svc *inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		tenantID, err := tenantFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rawProductID := strings.TrimSpace(chi.URLParam(r, "productId"))
		productID, err := uuid.Parse(rawProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		available, err := svc.Available(r.Context(), tenantID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"productId": productID.String(),
			"available": available,
		})
	}
}

type upsertCardRequest struct {
	ProductID    string  `json:"productId" validate:"required,uuid"`
	CardCode     string  `json:"cardCode" validate:"required,min=1"`
	CardPin      *string `json:"cardPin,omitempty"`
	SoldToUserID *string `json:"soldToUserId,omitempty" validate:"omitempty,uuid"`
	OrderID      *string `json:"orderId,omitempty" validate:"omitempty,uuid"`
	Status       string  `json:"status,omitempty" validate:"omitempty,oneof=available reserved sold used invalid expired"`
}

// UpsertCard converges a card row onto the submitted fields. Re-submitting the
// same code never duplicates a row and never overwrites an existing owner.
func UpsertCard(svc *inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		tenantID, err := tenantFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req upsertCardRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := buildUpsertInput(req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		card, err := svc.UpsertOwnership(r.Context(), tenantID, strings.TrimSpace(req.CardCode), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCardView(*card))
	}
}

func buildUpsertInput(req upsertCardRequest) (inventory.UpsertInput, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return inventory.UpsertInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}

	// Status stays empty unless the caller asked for one; the service only
	// defaults brand-new rows to available, never existing ones.
	input := inventory.UpsertInput{
		ProductID: productID,
		CardPin:   req.CardPin,
	}
	if req.Status != "" {
		input.Status = enums.CardStatus(req.Status)
	}
	if req.SoldToUserID != nil {
		ownerID, err := uuid.Parse(*req.SoldToUserID)
		if err != nil {
			return inventory.UpsertInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner id")
		}
		input.SoldToUserID = &ownerID
		input.Status = enums.CardStatusSold
	}
	if req.OrderID != nil {
		orderID, err := uuid.Parse(*req.OrderID)
		if err != nil {
			return inventory.UpsertInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
		}
		input.OrderID = &orderID
	}
	return input, nil
}

func toCardViews(cards []models.Card) []cardView {
	views := make([]cardView, 0, len(cards))
	for _, card := range cards {
		views = append(views, toCardView(card))
	}
	return views
}

func toCardView(card models.Card) cardView {
	view := cardView{
		ID:        card.ID.String(),
		ProductID: card.ProductID.String(),
		CardCode:  card.CardCode,
		CardPin:   card.CardPin,
		Status:    string(card.Status),
		SoldAt:    card.SoldAt,
	}
	if card.OrderID != nil {
		id := card.OrderID.String()
		view.OrderID = &id
	}
	return view
}
