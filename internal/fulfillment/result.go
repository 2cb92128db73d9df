package fulfillment

import (
	"github.com/google/uuid"

	"github.com/alimansour/cardvault-backend/internal/normalize"
	"github.com/alimansour/cardvault-backend/pkg/errors"
)

// Source records where an item's codes came from.
type Source string

const (
	SourceLocal    Source = "local"
	SourceSupplier Source = "supplier"
)

// ItemResult is the per-line-item outcome. Failed items carry the public
// error text; the underlying cause stays in Err for logging.
type ItemResult struct {
	ItemID      uuid.UUID                   `json:"itemId"`
	ProductID   uuid.UUID                   `json:"productId"`
	ProductName string                      `json:"productName"`
	Source      Source                      `json:"source,omitempty"`
	Pairs       []normalize.DeliverablePair `json:"codes,omitempty"`
	Error       string                      `json:"error,omitempty"`
	Err         error                       `json:"-"`
}

// Result aggregates an order's fulfillment. Error/ErrorAr are set only when
// not a single code was obtained; partial success is not an error.
type Result struct {
	OrderID uuid.UUID                   `json:"orderId"`
	Items   []ItemResult                `json:"items"`
	Pairs   []normalize.DeliverablePair `json:"codes"`
	Error   string                      `json:"error,omitempty"`
	ErrorAr string                      `json:"errorAr,omitempty"`
}

// Fulfilled reports whether at least one code was obtained.
func (r *Result) Fulfilled() bool {
	return len(r.Pairs) > 0
}

var arabicByCode = map[errors.Code]string{
	errors.CodeInsufficientStock:   "الكمية المطلوبة غير متوفرة حالياً",
	errors.CodeNoSupplier:          "لا يوجد مزوّد متاح لهذا المنتج",
	errors.CodeSupplierValidation:  "رفض المزوّد طلب الشراء",
	errors.CodeSupplierUnreachable: "تعذّر الوصول إلى المزوّد، يرجى المحاولة لاحقاً",
	errors.CodeRateLimit:           "تم تجاوز الحد المسموح من الطلبات، يرجى المحاولة لاحقاً",
}

const arabicFallback = "تعذّر تجهيز الطلب، يرجى المحاولة لاحقاً"

// publicMessages extracts the English and Arabic texts to surface for a
// failure. An explicitly attached Arabic message wins over the per-code map.
func publicMessages(err error) (string, string) {
	typed := errors.As(err)
	if typed == nil {
		return "order processing failed", arabicFallback
	}
	ar := typed.MessageAr()
	if ar == "" {
		if mapped, ok := arabicByCode[typed.Code()]; ok {
			ar = mapped
		} else {
			ar = arabicFallback
		}
	}
	return typed.Message(), ar
}
