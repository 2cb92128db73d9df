package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DeliverablePair is the canonical unit produced from raw supplier records.
// SerialNumber may be empty for PIN-only deliverables; PIN may be empty for
// serial-only ones. Never both.
type DeliverablePair struct {
	SerialNumber string `json:"serialNumber"`
	PIN          string `json:"pin"`
}

// RecordKind discriminates the closed set of raw record shapes suppliers
// have been observed to send.
type RecordKind int

const (
	KindString RecordKind = iota
	KindKeyed
	KindTyped
)

// TypedDeliverable is the structured {type,key,value,extra} record shape.
type TypedDeliverable struct {
	Type  string
	Key   string
	Value string
	Extra map[string]any
}

// RawRecord is a tagged union over the three supplier record shapes. The
// shape is decided once, at the boundary, so downstream code never probes
// loosely-typed maps.
type RawRecord struct {
	Kind  RecordKind
	Str   string
	Keyed map[string]any
	Typed TypedDeliverable
}

// DecodeRecords classifies a raw supplier payload into RawRecords. Accepted
// payloads: a JSON array, an object carrying a "deliverables" array, or an
// object carrying a "data" array (some providers nest one more level).
func DecodeRecords(payload any) ([]RawRecord, error) {
	list, err := recordList(payload)
	if err != nil {
		return nil, err
	}

	records := make([]RawRecord, 0, len(list))
	for _, entry := range list {
		records = append(records, classify(entry))
	}
	return records, nil
}

func recordList(payload any) ([]any, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range []string{"deliverables", "data", "items", "codes"} {
			if nested, ok := v[key]; ok {
				if list, ok := nested.([]any); ok {
					return list, nil
				}
			}
		}
		return nil, fmt.Errorf("payload object carries no recognizable record list")
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return nil, fmt.Errorf("decoding payload: %w", err)
		}
		return recordList(decoded)
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}
}

func classify(entry any) RawRecord {
	switch v := entry.(type) {
	case map[string]any:
		if typed, ok := asTyped(v); ok {
			return RawRecord{Kind: KindTyped, Typed: typed}
		}
		return RawRecord{Kind: KindKeyed, Keyed: v}
	default:
		return RawRecord{Kind: KindString, Str: stringify(entry)}
	}
}

func asTyped(entry map[string]any) (TypedDeliverable, bool) {
	rawType, ok := entry["type"]
	if !ok {
		return TypedDeliverable{}, false
	}
	kind := strings.ToLower(strings.TrimSpace(stringify(rawType)))
	if kind != "serial" && kind != "pin" {
		return TypedDeliverable{}, false
	}

	typed := TypedDeliverable{
		Type:  kind,
		Key:   stringify(entry["key"]),
		Value: stringify(entry["value"]),
	}
	if extra, ok := entry["extra"].(map[string]any); ok {
		typed.Extra = extra
	}
	return typed, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		// JSON numbers decode as float64; serials are integral in practice.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case bool:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
