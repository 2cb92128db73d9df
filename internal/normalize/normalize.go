package normalize

import "strings"

// Historical field names suppliers have used for serials and PINs. Matching
// is case-insensitive and order expresses priority.
var serialKeys = []string{
	"serial", "serial_number", "serialnumber", "code", "cardcode",
	"card_code", "value", "sn", "number", "voucher",
}

var pinKeys = []string{
	"pin", "pin_code", "pincode", "secret", "cardpin", "card_pin", "password",
}

// Result carries the canonical pairs plus the count of entries dropped for
// yielding neither serial nor PIN. Callers log the drops; Normalize itself
// performs no I/O.
type Result struct {
	Pairs   []DeliverablePair
	Dropped int
}

// Normalize converts a heterogeneous supplier payload into canonical
// DeliverablePairs, deduplicated by serial value. Deterministic for
// identical input; no side effects.
func Normalize(payload any) (Result, error) {
	records, err := DecodeRecords(payload)
	if err != nil {
		return Result{}, err
	}

	var (
		ordered  []string // serial values in first-seen order
		bySerial = map[string]*DeliverablePair{}
		pinOnly  []DeliverablePair
		dropped  int
	)

	appendPair := func(serial, pin string) {
		if serial == "" && pin == "" {
			dropped++
			return
		}
		if serial == "" {
			pinOnly = append(pinOnly, DeliverablePair{PIN: pin})
			return
		}
		existing, ok := bySerial[serial]
		if !ok {
			ordered = append(ordered, serial)
			bySerial[serial] = &DeliverablePair{SerialNumber: serial, PIN: pin}
			return
		}
		if existing.PIN == "" && pin != "" {
			existing.PIN = pin
		}
	}

	// First pass collects serial records so that PIN records arriving before
	// their serial still pair up.
	var pendingPins []TypedDeliverable
	for _, record := range records {
		switch record.Kind {
		case KindString:
			appendPair(record.Str, "")
		case KindKeyed:
			serial := lookupKeyed(record.Keyed, serialKeys)
			pin := lookupKeyed(record.Keyed, pinKeys)
			appendPair(serial, pin)
		case KindTyped:
			if record.Typed.Type == "serial" {
				appendPair(record.Typed.Value, extraString(record.Typed.Extra, pinKeys))
			} else {
				pendingPins = append(pendingPins, record.Typed)
			}
		}
	}

	for _, pinRecord := range pendingPins {
		serial := extraString(pinRecord.Extra, []string{"serialnumber", "serial_number", "serial"})
		appendPair(serial, pinRecord.Value)
	}

	pairs := make([]DeliverablePair, 0, len(ordered)+len(pinOnly))
	for _, serial := range ordered {
		pairs = append(pairs, *bySerial[serial])
	}
	pairs = append(pairs, pinOnly...)

	return Result{Pairs: pairs, Dropped: dropped}, nil
}

func lookupKeyed(entry map[string]any, candidates []string) string {
	for _, candidate := range candidates {
		for key, value := range entry {
			if strings.EqualFold(strings.TrimSpace(key), candidate) {
				if s := stringify(value); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func extraString(extra map[string]any, candidates []string) string {
	if len(extra) == 0 {
		return ""
	}
	return lookupKeyed(extra, candidates)
}

// HasEmptyValues reports whether a decoded payload contains typed records
// whose values are blank, signalling that a follow-up order fetch is needed.
func HasEmptyValues(payload any) bool {
	records, err := DecodeRecords(payload)
	if err != nil {
		return false
	}
	sawTyped := false
	for _, record := range records {
		if record.Kind != KindTyped {
			continue
		}
		sawTyped = true
		if record.Typed.Value != "" {
			return false
		}
	}
	return sawTyped
}
