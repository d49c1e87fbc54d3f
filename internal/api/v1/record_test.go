package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRawRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		record  RawRecord
		wantErr string
	}{
		{
			name:   "valid",
			record: RawRecord{Source: "shopify", Entity: EntityOrders, ExternalID: "1001"},
		},
		{
			name:    "missing source",
			record:  RawRecord{Entity: EntityOrders, ExternalID: "1001"},
			wantErr: "source is required",
		},
		{
			name:    "missing entity",
			record:  RawRecord{Source: "shopify", ExternalID: "1001"},
			wantErr: "entity is required",
		},
		{
			name:    "unknown entity",
			record:  RawRecord{Source: "shopify", Entity: "products", ExternalID: "1001"},
			wantErr: "unsupported entity",
		},
		{
			name:    "missing external id",
			record:  RawRecord{Source: "shopify", Entity: EntityOrders},
			wantErr: "externalId is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.record.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestRawRecord_JSONShape(t *testing.T) {
	body := []byte(`{"source":"ga4","entity":"traffic","externalId":"20240301|Direct","cursor":"p2","payload":{"sessions":"12"}}`)

	var rec RawRecord
	require.NoError(t, json.Unmarshal(body, &rec))
	require.Equal(t, "ga4", rec.Source)
	require.Equal(t, EntityTraffic, rec.Entity)
	require.Equal(t, "20240301|Direct", rec.ExternalID)
	require.Equal(t, "p2", rec.Cursor)
	require.Equal(t, "12", rec.Payload["sessions"])
	require.NoError(t, rec.Validate())
}

func TestRawRecord_HashPayloadIsKeyOrderIndependent(t *testing.T) {
	a := RawRecord{Payload: map[string]interface{}{"b": 1.0, "a": "x"}}
	b := RawRecord{Payload: map[string]interface{}{"a": "x", "b": 1.0}}

	_, err := a.HashPayload()
	require.NoError(t, err)
	_, err = b.HashPayload()
	require.NoError(t, err)
	require.Len(t, a.PayloadHash, 64)
	require.Equal(t, a.PayloadHash, b.PayloadHash)

	c := RawRecord{Payload: map[string]interface{}{"a": "y", "b": 1.0}}
	_, err = c.HashPayload()
	require.NoError(t, err)
	require.NotEqual(t, a.PayloadHash, c.PayloadHash)
}

func TestRawRecord_NilPayload(t *testing.T) {
	var rec RawRecord
	data, err := rec.HashPayload()
	require.NoError(t, err)
	require.Equal(t, "{}", string(data))
}

func TestDecodeRawRecord(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantErr     string
		wantID      string
		wantPayload map[string]interface{}
	}{
		{
			name:        "object payload",
			data:        `{"source":"shopify","entity":"orders","externalId":"1","payload":{"total_price":"10.00"}}`,
			wantID:      "1",
			wantPayload: map[string]interface{}{"total_price": "10.00"},
		},
		{
			name:   "missing payload",
			data:   `{"source":"shopify","entity":"orders","externalId":"2"}`,
			wantID: "2",
		},
		{
			name:   "null payload",
			data:   `{"source":"shopify","entity":"orders","externalId":"3","payload":null}`,
			wantID: "3",
		},
		{
			name:    "array payload",
			data:    `{"source":"shopify","entity":"orders","externalId":"4","payload":["not","an","object"]}`,
			wantErr: "payload is not a JSON object",
			wantID:  "4",
		},
		{
			name:    "string payload",
			data:    `{"source":"shopify","entity":"orders","externalId":"5","payload":"x"}`,
			wantErr: "payload is not a JSON object",
			wantID:  "5",
		},
		{
			name:    "element is not an object",
			data:    `42`,
			wantErr: "record is not a JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := DecodeRawRecord([]byte(tt.data))
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.wantPayload, rec.Payload)
			}
			require.Equal(t, tt.wantID, rec.ExternalID)
		})
	}
}
