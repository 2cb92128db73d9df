package controllers

import (
	"net/http"

	"github.com/alimansour/cardvault-backend/api/responses"
	"github.com/alimansour/cardvault-backend/internal/normalize"
	"github.com/alimansour/cardvault-backend/internal/reveal"
	pkgerrors "github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

type revealResponse struct {
	OrderID         string                      `json:"orderId"`
	Codes           []normalize.DeliverablePair `json:"codes"`
	AlreadyRevealed bool                        `json:"alreadyRevealed"`
	AmountCharged   string                      `json:"amountCharged"`
}

// RevealOrder flips a wallet-pending order to revealed, charging the buyer's
// wallet exactly once. Repeats return the stored codes without a new charge.
func RevealOrder(svc *reveal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reveal service unavailable"))
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
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}

		result, err := svc.Reveal(ctx, tenantID, orderID, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, revealResponse{
			OrderID:         orderID.String(),
			Codes:           result.Pairs,
			AlreadyRevealed: result.AlreadyRevealed,
			AmountCharged:   result.AmountCharged.String(),
		})
	}
}
