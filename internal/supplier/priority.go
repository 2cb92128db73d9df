package supplier

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/errors"
)

// Attempt is one ranked (supplier, product code) candidate for a purchase.
// LinkID is set when the candidate came from a configured link, which is the
// only case self-healing may persist a corrected code to.
type Attempt struct {
	Supplier    models.Supplier
	ProductCode string
	LinkID      *uuid.UUID
	// PriceExceed carries the link's flag letting the supplier fill the
	// order even when its price exceeds the sell price.
	PriceExceed bool
}

// resolveAttempts builds the ranked supplier list for a product. Configured
// links come first (primary before secondary, oldest first). Without links
// the tenant's active suppliers are tried with the product's own code, and
// as a last resort any tenant supplier whose code prefix matches the
// product code family.
func (g *Gateway) resolveAttempts(ctx context.Context, tenantID, productID uuid.UUID, productCode string) ([]Attempt, error) {
	links, err := g.repo.FindLinksForProduct(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading supplier links")
	}
	if len(links) > 0 {
		attempts := make([]Attempt, 0, len(links))
		for _, ranked := range links {
			link := ranked.Link
			attempts = append(attempts, Attempt{
				Supplier:    ranked.Supplier,
				ProductCode: link.ProductCodeForSupplier,
				LinkID:      &link.ID,
				PriceExceed: link.PriceExceed,
			})
		}
		return attempts, nil
	}

	active, err := g.repo.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading tenant suppliers")
	}
	if len(active) > 0 {
		attempts := make([]Attempt, 0, len(active))
		for _, sup := range active {
			attempts = append(attempts, Attempt{Supplier: sup, ProductCode: productCode})
		}
		return attempts, nil
	}

	all, err := g.repo.FindAllByTenant(ctx, tenantID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading tenant suppliers")
	}
	var attempts []Attempt
	for _, sup := range all {
		if sup.CodePrefix == nil || *sup.CodePrefix == "" {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(productCode), strings.ToUpper(*sup.CodePrefix)) {
			attempts = append(attempts, Attempt{Supplier: sup, ProductCode: productCode})
		}
	}
	if len(attempts) == 0 {
		return nil, errors.New(errors.CodeNoSupplier, "no supplier could be determined for product").
			WithMessageAr("لا يوجد مزوّد متاح لهذا المنتج").
			WithDetails(map[string]any{"product_id": productID})
	}
	return attempts, nil
}
