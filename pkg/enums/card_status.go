package enums

import "fmt"

// CardStatus tracks the lifecycle of a single code in inventory.
type CardStatus string

const (
	CardStatusAvailable CardStatus = "available"
	CardStatusReserved  CardStatus = "reserved"
	CardStatusSold      CardStatus = "sold"
	CardStatusUsed      CardStatus = "used"
	CardStatusInvalid   CardStatus = "invalid"
	CardStatusExpired   CardStatus = "expired"
)

var validCardStatuses = []CardStatus{
	CardStatusAvailable,
	CardStatusReserved,
	CardStatusSold,
	CardStatusUsed,
	CardStatusInvalid,
	CardStatusExpired,
}

// String implements fmt.Stringer.
func (c CardStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CardStatus.
func (c CardStatus) IsValid() bool {
	for _, candidate := range validCardStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCardStatus converts raw input into a CardStatus.
func ParseCardStatus(value string) (CardStatus, error) {
	for _, candidate := range validCardStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid card status %q", value)
}
