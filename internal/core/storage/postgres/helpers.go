package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/channel"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRawRow scans a raw_records row and decodes its JSON payload.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanRawRow(row scanner) (*v1.RawRecord, error) {
	var rec v1.RawRecord
	var payloadJSON []byte

	err := row.Scan(
		&rec.Source,
		&rec.Entity,
		&rec.ExternalID,
		&rec.Cursor,
		&payloadJSON,
		&rec.PayloadHash,
		&rec.IngestedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan raw record row: %w", err)
	}

	if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return &rec, nil
}

// channelFromSlug maps a stored slug back to the closed type. Stored slugs
// are written by this package, so an unknown one means the row was edited
// by hand; it degrades to Other instead of failing the read.
func channelFromSlug(slug string) channel.Channel {
	c, err := channel.FromSlug(slug)
	if err != nil {
		return channel.Other
	}
	return c
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// asDate normalises a scanned DATE column to UTC midnight.
func asDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
