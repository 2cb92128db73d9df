package enums

import "fmt"

// WalletTxType classifies append-only wallet ledger rows.
type WalletTxType string

const (
	WalletTxTypePurchaseDeduction WalletTxType = "purchase_deduction"
	WalletTxTypeRefund            WalletTxType = "refund"
	WalletTxTypeTopup             WalletTxType = "topup"
)

var validWalletTxTypes = []WalletTxType{
	WalletTxTypePurchaseDeduction,
	WalletTxTypeRefund,
	WalletTxTypeTopup,
}

// IsValid reports whether the value is a known WalletTxType.
func (w WalletTxType) IsValid() bool {
	for _, candidate := range validWalletTxTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletTxType converts raw input into a WalletTxType.
func ParseWalletTxType(value string) (WalletTxType, error) {
	for _, candidate := range validWalletTxTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}
