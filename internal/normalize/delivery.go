package normalize

import "encoding/json"

// DeliveryItem groups delivered codes under the product they were sold
// against. Fulfillment writes this shape into delivery records so serials
// can later be mapped back to products by name.
type DeliveryItem struct {
	ProductName string            `json:"productName"`
	Codes       []DeliverablePair `json:"codes"`
}

// DecodeDeliveryItems parses a grouped delivery payload. ok is false for
// historical payloads predating the grouped shape; those still go through
// Normalize.
func DecodeDeliveryItems(payload json.RawMessage) ([]DeliveryItem, bool) {
	if len(payload) == 0 {
		return nil, false
	}
	var envelope struct {
		Items []DeliveryItem `json:"items"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || len(envelope.Items) == 0 {
		return nil, false
	}

	// Legacy blobs can also carry an "items" list; only accept the envelope
	// when it actually yields codes.
	usable := false
	for _, item := range envelope.Items {
		for _, code := range item.Codes {
			if code.SerialNumber != "" || code.PIN != "" {
				usable = true
			}
		}
	}
	if !usable {
		return nil, false
	}
	return envelope.Items, true
}
