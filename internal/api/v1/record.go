package v1

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// Entity types understood by the staging normalizer.
const (
	EntityOrders    = "orders"
	EntityCustomers = "customers"
	EntityAdSpend   = "ad_spend"
	EntityTraffic   = "traffic"
)

// Entities lists every supported entity type.
var Entities = []string{EntityOrders, EntityCustomers, EntityAdSpend, EntityTraffic}

// RawRecord is one externally fetched record as handed over by a connector.
// The envelope identifies it; the payload is opaque until staging.
type RawRecord struct {
	// Source is the upstream system, e.g. "shopify", "meta", "google_ads", "ga4".
	Source string `json:"source"`

	// Entity is the record type, one of Entities.
	Entity string `json:"entity"`

	// ExternalID is the upstream identifier. (Source, Entity, ExternalID) is
	// the raw log's natural key; re-capture overwrites the payload.
	ExternalID string `json:"externalId"`

	// Cursor is the connector's sort/pagination token for this record.
	Cursor string `json:"cursor"`

	// Payload is the untouched business document.
	Payload map[string]interface{} `json:"payload"`

	// IngestedAt is set by the capture stage, not the connector.
	IngestedAt time.Time `json:"ingestedAt,omitempty"`

	// PayloadHash is the SHA-256 of the canonical payload JSON, set on capture.
	PayloadHash string `json:"-"`
}

// DecodeRawRecord decodes one connector envelope. When the envelope parses
// but its payload is not a JSON object, the envelope fields are returned
// together with the error so the caller can report which record was skipped.
func DecodeRawRecord(data []byte) (RawRecord, error) {
	var env struct {
		Source     string          `json:"source"`
		Entity     string          `json:"entity"`
		ExternalID string          `json:"externalId"`
		Cursor     string          `json:"cursor"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return RawRecord{}, fmt.Errorf("record is not a JSON object: %w", err)
	}
	rec := RawRecord{
		Source:     env.Source,
		Entity:     env.Entity,
		ExternalID: env.ExternalID,
		Cursor:     env.Cursor,
	}

	payload := bytes.TrimSpace(env.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return rec, nil
	}
	if payload[0] != '{' {
		return rec, fmt.Errorf("payload is not a JSON object")
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return rec, fmt.Errorf("decode payload: %w", err)
	}
	return rec, nil
}

// Validate ensures the envelope carries its natural key and a known entity.
func (r *RawRecord) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("source is required")
	}
	if r.Entity == "" {
		return fmt.Errorf("entity is required")
	}
	if !KnownEntity(r.Entity) {
		return fmt.Errorf("unsupported entity %q", r.Entity)
	}
	if r.ExternalID == "" {
		return fmt.Errorf("externalId is required")
	}
	return nil
}

// KnownEntity reports whether entity is one of the supported types.
func KnownEntity(entity string) bool {
	for _, e := range Entities {
		if e == entity {
			return true
		}
	}
	return false
}

// MarshalPayload encodes the payload as JSON. A nil payload encodes as {}.
// Map keys are sorted by encoding/json, so equal payloads encode equally.
func (r *RawRecord) MarshalPayload() ([]byte, error) {
	if r.Payload == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

// HashPayload sets PayloadHash from the canonical payload encoding and
// returns the encoded bytes.
func (r *RawRecord) HashPayload() ([]byte, error) {
	data, err := r.MarshalPayload()
	if err != nil {
		return nil, err
	}
	r.PayloadHash = fmt.Sprintf("%x", sha256.Sum256(data))
	return data, nil
}
