package supplier

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
)

// RankedLink is a product-supplier link joined with its supplier row.
type RankedLink struct {
	Link     models.ProductSupplierLink
	Supplier models.Supplier
}

// Repository manages supplier records, product links and the code catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLinksForProduct(ctx context.Context, productID uuid.UUID) ([]RankedLink, error)
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Supplier, error)
	FindAllByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Supplier, error)
	FindCatalog(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierProductCode, error)
	UpdateLinkProductCode(ctx context.Context, linkID uuid.UUID, code string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindLinksForProduct returns the product's supplier links in priority order:
// primary links first, oldest first within each group. Inactive suppliers are
// filtered out.
func (r *repository) FindLinksForProduct(ctx context.Context, productID uuid.UUID) ([]RankedLink, error) {
	var links []models.ProductSupplierLink
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("is_primary DESC, created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedLink, 0, len(links))
	for _, link := range links {
		var sup models.Supplier
		err := r.db.WithContext(ctx).Where("id = ?", link.SupplierID).First(&sup).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if sup.Status != enums.SupplierStatusActive {
			continue
		}
		ranked = append(ranked, RankedLink{Link: link, Supplier: sup})
	}
	return ranked, nil
}

func (r *repository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, enums.SupplierStatusActive).
		Order("created_at ASC").
		Find(&suppliers).Error
	if err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (r *repository) FindAllByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&suppliers).Error
	if err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (r *repository) FindCatalog(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierProductCode, error) {
	var catalog []models.SupplierProductCode
	err := r.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("code ASC").
		Find(&catalog).Error
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func (r *repository) UpdateLinkProductCode(ctx context.Context, linkID uuid.UUID, code string) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductSupplierLink{}).
		Where("id = ?", linkID).
		Update("product_code_for_supplier", code).Error
}
