package supplier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alimansour/cardvault-backend/pkg/config"
	"github.com/alimansour/cardvault-backend/pkg/db/models"
	"github.com/alimansour/cardvault-backend/pkg/enums"
	"github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

type fakeRepo struct {
	links        []RankedLink
	active       []models.Supplier
	all          []models.Supplier
	catalogs     map[uuid.UUID][]models.SupplierProductCode
	updatedLinks map[uuid.UUID]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		catalogs:     map[uuid.UUID][]models.SupplierProductCode{},
		updatedLinks: map[uuid.UUID]string{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindLinksForProduct(ctx context.Context, productID uuid.UUID) ([]RankedLink, error) {
	return f.links, nil
}

func (f *fakeRepo) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Supplier, error) {
	return f.active, nil
}

func (f *fakeRepo) FindAllByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Supplier, error) {
	return f.all, nil
}

func (f *fakeRepo) FindCatalog(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierProductCode, error) {
	return f.catalogs[supplierID], nil
}

func (f *fakeRepo) UpdateLinkProductCode(ctx context.Context, linkID uuid.UUID, code string) error {
	f.updatedLinks[linkID] = code
	return nil
}

type fakeSlots struct {
	count int64
	limit bool
}

func (f *fakeSlots) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	f.count++
	if f.limit {
		return 1000, nil
	}
	return f.count, nil
}

func (f *fakeSlots) Decr(ctx context.Context, key string) (int64, error) {
	f.count--
	return f.count, nil
}

func (f *fakeSlots) SupplierSlotKey(tenantID string) string { return "cv:supplier_slots:" + tenantID }

func testGateway(repo Repository, slots SlotStore) *Gateway {
	cfg := config.SupplierConfig{
		HTTPTimeout:        2 * time.Second,
		MaxConcurrent:      8,
		ConcurrencyWindow:  30 * time.Second,
		SelfHealThreshold:  0.6,
		FollowUpMaxRetries: 1,
	}
	return NewGateway(repo, NewClient(cfg.HTTPTimeout), slots, cfg, nil, logger.NewNop())
}

func supplierFor(server *httptest.Server, name string) models.Supplier {
	return models.Supplier{
		ID:      uuid.New(),
		Name:    name,
		BaseURL: server.URL,
		APIKey:  "test-key",
		Status:  enums.SupplierStatusActive,
	}
}

func linkFor(sup models.Supplier, code string, primary bool) RankedLink {
	return RankedLink{
		Link: models.ProductSupplierLink{
			ID:                     uuid.New(),
			SupplierID:             sup.ID,
			ProductCodeForSupplier: code,
			IsPrimary:              primary,
		},
		Supplier: sup,
	}
}

func TestPurchase_SucceedsWithPrimarySupplier(t *testing.T) {
	var gotKey string
	var gotReq OrderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"orderId": "R-77",
			"status":  "completed",
			"deliverables": []any{
				map[string]any{"serial": "AAA", "pin": "1111"},
			},
		})
	}))
	defer server.Close()

	repo := newFakeRepo()
	sup := supplierFor(server, "alpha")
	link := linkFor(sup, "ALPHA-50", true)
	link.Link.PriceExceed = true
	repo.links = []RankedLink{link}

	result, err := testGateway(repo, nil).Purchase(context.Background(), PurchaseInput{
		TenantID:  uuid.New(),
		ProductID: uuid.New(),
		Quantity:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, "R-77", result.RemoteOrderID)
	assert.Equal(t, sup.ID, result.SupplierID)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "ALPHA-50", gotReq.ProductCode)
	assert.NotEmpty(t, gotReq.OrderRef)
	assert.Equal(t, []string{"alpha"}, gotReq.SupplierPriority)
	// The link's price-exceed flag travels with the outbound order.
	assert.True(t, gotReq.AllowPriceExceed)
}

func TestPurchase_FallsBackWhenPrimaryUnreachable(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"orderId": "R-2", "data": []any{"CODE-1"}})
	}))
	defer up.Close()

	repo := newFakeRepo()
	primary := supplierFor(down, "primary")
	secondary := supplierFor(up, "secondary")
	repo.links = []RankedLink{
		linkFor(primary, "P-1", true),
		linkFor(secondary, "S-1", false),
	}

	result, err := testGateway(repo, nil).Purchase(context.Background(), PurchaseInput{
		TenantID:  uuid.New(),
		ProductID: uuid.New(),
		Quantity:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, secondary.ID, result.SupplierID)
}

func TestPurchase_ValidationRejectionHealsCodeButStillFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"message": "unknown product code"})
	}))
	defer server.Close()

	repo := newFakeRepo()
	sup := supplierFor(server, "alpha")
	link := linkFor(sup, "WRONG-CODE", true)
	repo.links = []RankedLink{link}
	repo.catalogs[sup.ID] = []models.SupplierProductCode{
		{Code: "STM-50", DisplayName: "Steam 50"},
	}

	_, err := testGateway(repo, nil).Purchase(context.Background(), PurchaseInput{
		TenantID:    uuid.New(),
		ProductID:   uuid.New(),
		ProductName: "Steam $50 (US)",
		Quantity:    1,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeSupplierValidation))

	// Corrected code persisted for future orders; the current attempt is
	// reported failed with a retry annotation.
	assert.Equal(t, "STM-50", repo.updatedLinks[link.Link.ID])
	details, ok := errors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "STM-50", details["corrected_code"])
	assert.Equal(t, true, details["retry"])
}

func TestPurchase_ValidationFailedInSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"orderId": "R-9", "status": "Validation Failed"})
	}))
	defer server.Close()

	repo := newFakeRepo()
	sup := supplierFor(server, "alpha")
	repo.links = []RankedLink{linkFor(sup, "A-1", true)}

	_, err := testGateway(repo, nil).Purchase(context.Background(), PurchaseInput{
		TenantID:  uuid.New(),
		ProductID: uuid.New(),
		Quantity:  1,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeSupplierValidation))
}

func TestPurchase_FollowUpFetchFillsEmptyValues(t *testing.T) {
	var fetches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fetches++
			json.NewEncoder(w).Encode(map[string]any{
				"orderId": "R-5",
				"deliverables": []any{
					map[string]any{"type": "serial", "value": "FILLED-1"},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"orderId": "R-5",
			"deliverables": []any{
				map[string]any{"type": "serial", "value": ""},
			},
		})
	}))
	defer server.Close()

	repo := newFakeRepo()
	sup := supplierFor(server, "alpha")
	repo.links = []RankedLink{linkFor(sup, "A-1", true)}

	result, err := testGateway(repo, nil).Purchase(context.Background(), PurchaseInput{
		TenantID:  uuid.New(),
		ProductID: uuid.New(),
		Quantity:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)

	payload, ok := result.Payload.(map[string]any)
	require.True(t, ok)
	deliverables := payload["deliverables"].([]any)
	first := deliverables[0].(map[string]any)
	assert.Equal(t, "FILLED-1", first["value"])
}

func TestPurchase_NoSupplierConfigured(t *testing.T) {
	repo := newFakeRepo()

	_, err := testGateway(repo, nil).Purchase(context.Background(), PurchaseInput{
		TenantID:    uuid.New(),
		ProductID:   uuid.New(),
		ProductCode: "XYZ-1",
		Quantity:    1,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNoSupplier))
	assert.NotEmpty(t, errors.As(err).MessageAr())
}

func TestPurchase_CodePrefixHeuristic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"orderId": "R-1", "data": []any{"C1"}})
	}))
	defer server.Close()

	repo := newFakeRepo()
	prefix := "STM"
	matching := supplierFor(server, "steam-provider")
	matching.CodePrefix = &prefix
	other := "AMZ"
	nonMatching := supplierFor(server, "amazon-provider")
	nonMatching.CodePrefix = &other
	repo.all = []models.Supplier{nonMatching, matching}

	result, err := testGateway(repo, nil).Purchase(context.Background(), PurchaseInput{
		TenantID:    uuid.New(),
		ProductID:   uuid.New(),
		ProductCode: "STM-100",
		Quantity:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, matching.ID, result.SupplierID)
}

func TestPurchase_ConcurrencyLimitRejected(t *testing.T) {
	repo := newFakeRepo()
	repo.links = []RankedLink{linkFor(models.Supplier{ID: uuid.New()}, "A-1", true)}

	slots := &fakeSlots{limit: true}
	_, err := testGateway(repo, slots).Purchase(context.Background(), PurchaseInput{
		TenantID:  uuid.New(),
		ProductID: uuid.New(),
		Quantity:  1,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeRateLimit))
}

func TestNewOrderRef_UniquePerAttempt(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ref := newOrderRef()
		assert.False(t, seen[ref])
		seen[ref] = true
	}
}
