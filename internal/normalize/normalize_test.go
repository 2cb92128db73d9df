package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var payload any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

func TestNormalize_FlatStrings(t *testing.T) {
	t.Parallel()

	result, err := Normalize(decode(t, `["AAA-1", "AAA-2", 123456]`))
	require.NoError(t, err)
	require.Len(t, result.Pairs, 3)
	assert.Equal(t, "AAA-1", result.Pairs[0].SerialNumber)
	assert.Equal(t, "123456", result.Pairs[2].SerialNumber)
	assert.Zero(t, result.Dropped)
}

func TestNormalize_LegacyKeyedObjects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		serial string
		pin    string
	}{
		{"serial and pin", `[{"serial":"S1","pin":"1111"}]`, "S1", "1111"},
		{"snake case", `[{"serial_number":"S2","pin_code":"2222"}]`, "S2", "2222"},
		{"card fields", `[{"cardCode":"S3","cardPin":"3333"}]`, "S3", "3333"},
		{"value and secret", `[{"value":"S4","secret":"4444"}]`, "S4", "4444"},
		{"sn only", `[{"sn":"S5"}]`, "S5", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Normalize(decode(t, tc.raw))
			require.NoError(t, err)
			require.Len(t, result.Pairs, 1)
			assert.Equal(t, tc.serial, result.Pairs[0].SerialNumber)
			assert.Equal(t, tc.pin, result.Pairs[0].PIN)
		})
	}
}

func TestNormalize_TypedDeliverablesPairBySerial(t *testing.T) {
	t.Parallel()

	raw := `{"deliverables":[
		{"type":"serial","key":"serial","value":"ABC123"},
		{"type":"pin","key":"pin","value":"9999","extra":{"serialNumber":"ABC123"}}
	]}`

	result, err := Normalize(decode(t, raw))
	require.NoError(t, err)
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, DeliverablePair{SerialNumber: "ABC123", PIN: "9999"}, result.Pairs[0])
}

func TestNormalize_PinArrivesBeforeSerial(t *testing.T) {
	t.Parallel()

	raw := `{"deliverables":[
		{"type":"pin","value":"1234","extra":{"serial_number":"XYZ"}},
		{"type":"serial","value":"XYZ"}
	]}`

	result, err := Normalize(decode(t, raw))
	require.NoError(t, err)
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, "XYZ", result.Pairs[0].SerialNumber)
	assert.Equal(t, "1234", result.Pairs[0].PIN)
}

func TestNormalize_PinOnlyEntryPreserved(t *testing.T) {
	t.Parallel()

	raw := `{"deliverables":[{"type":"pin","value":"777777"}]}`

	result, err := Normalize(decode(t, raw))
	require.NoError(t, err)
	require.Len(t, result.Pairs, 1)
	assert.Empty(t, result.Pairs[0].SerialNumber)
	assert.Equal(t, "777777", result.Pairs[0].PIN)
}

func TestNormalize_EmptyEntriesDropped(t *testing.T) {
	t.Parallel()

	raw := `[{"note":"nothing useful"}, {"serial":"S1"}, ""]`

	result, err := Normalize(decode(t, raw))
	require.NoError(t, err)
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, 2, result.Dropped)
}

func TestNormalize_DuplicateSerialsCollapse(t *testing.T) {
	t.Parallel()

	raw := `[{"serial":"DUP","pin":""},{"serial":"DUP","pin":"555"}]`

	result, err := Normalize(decode(t, raw))
	require.NoError(t, err)
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, "555", result.Pairs[0].PIN)
}

func TestNormalize_Deterministic(t *testing.T) {
	t.Parallel()

	payload := decode(t, `["A","B",{"serial":"C","pin":"3"}]`)
	first, err := Normalize(payload)
	require.NoError(t, err)
	second, err := Normalize(payload)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHasEmptyValues(t *testing.T) {
	t.Parallel()

	assert.True(t, HasEmptyValues(decode(t, `{"deliverables":[{"type":"serial","key":"serial","value":""}]}`)))
	assert.False(t, HasEmptyValues(decode(t, `{"deliverables":[{"type":"serial","value":"X"}]}`)))
	assert.False(t, HasEmptyValues(decode(t, `["plain"]`)))
}

func TestDecodeRecords_UnsupportedPayload(t *testing.T) {
	t.Parallel()

	_, err := DecodeRecords(42)
	require.Error(t, err)
}

func TestDecodeDeliveryItems(t *testing.T) {
	t.Parallel()

	items, ok := DecodeDeliveryItems(json.RawMessage(
		`{"items":[{"productName":"Steam 50","codes":[{"serialNumber":"S-1","pin":"1"}]}]}`))
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "Steam 50", items[0].ProductName)
	require.Len(t, items[0].Codes, 1)
	assert.Equal(t, "S-1", items[0].Codes[0].SerialNumber)

	// Shapes predating the grouped envelope fall back to Normalize.
	_, ok = DecodeDeliveryItems(json.RawMessage(`[{"serial":"S-2","pin":"2"}]`))
	assert.False(t, ok)
	_, ok = DecodeDeliveryItems(json.RawMessage(`{"items":[{"serial":"S-3"}]}`))
	assert.False(t, ok)
	_, ok = DecodeDeliveryItems(nil)
	assert.False(t, ok)
}
