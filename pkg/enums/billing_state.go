package enums

import "fmt"

// BillingState models the reveal lifecycle explicitly instead of burying a
// pending flag inside the order metadata blob. Legacy rows may still carry
// the blob flag; readers fall back to it only when this column is empty.
type BillingState string

const (
	BillingStateNone          BillingState = "none"
	BillingStateWalletPending BillingState = "wallet_pending"
	BillingStateRevealed      BillingState = "revealed"
)

var validBillingStates = []BillingState{
	BillingStateNone,
	BillingStateWalletPending,
	BillingStateRevealed,
}

// IsValid reports whether the value is a known BillingState.
func (b BillingState) IsValid() bool {
	for _, candidate := range validBillingStates {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingState converts raw input into a BillingState.
func ParseBillingState(value string) (BillingState, error) {
	for _, candidate := range validBillingStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing state %q", value)
}
