package enums

import "fmt"

// DeliveryOption selects how fulfilled codes reach the customer.
type DeliveryOption string

const (
	DeliveryOptionInventory DeliveryOption = "inventory"
	DeliveryOptionEmail     DeliveryOption = "email"
	DeliveryOptionWhatsApp  DeliveryOption = "whatsapp"
	DeliveryOptionFile      DeliveryOption = "file"
)

var validDeliveryOptions = []DeliveryOption{
	DeliveryOptionInventory,
	DeliveryOptionEmail,
	DeliveryOptionWhatsApp,
	DeliveryOptionFile,
}

// IsValid reports whether the value is a known DeliveryOption.
func (d DeliveryOption) IsValid() bool {
	for _, candidate := range validDeliveryOptions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliveryOption converts raw input into a DeliveryOption.
func ParseDeliveryOption(value string) (DeliveryOption, error) {
	for _, candidate := range validDeliveryOptions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery option %q", value)
}
