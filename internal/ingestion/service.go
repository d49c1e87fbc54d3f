package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/storage"
	"github.com/gin-gonic/gin"
)

// Service is the raw capture stage. It writes connector output to the raw
// log verbatim, keyed by (source, entity, external id).
type Service struct {
	store            storage.RawStore
	maxBodySizeBytes int
	now              func() time.Time
}

// SkippedRecord describes an envelope rejected before storage.
type SkippedRecord struct {
	Index      int    `json:"index"`
	Source     string `json:"source,omitempty"`
	Entity     string `json:"entity,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	Reason     string `json:"reason"`
}

// Result summarizes one capture call.
type Result struct {
	Received int             `json:"received"`
	Written  int             `json:"written"`
	Skipped  []SkippedRecord `json:"skipped,omitempty"`
}

func NewService(store storage.RawStore, maxBodySizeMB int) *Service {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		store:            store,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes registers the raw capture routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/raw", s.CaptureHandler)
}

// Capture stores records in the raw log and returns the number of rows
// inserted or changed. Records with an invalid envelope are skipped and
// logged; payload content is never inspected here.
func (s *Service) Capture(ctx context.Context, records []v1.RawRecord) (int, error) {
	items := make([]batchItem, len(records))
	for i, rec := range records {
		items[i] = batchItem{rec: rec}
	}
	res, err := s.capture(ctx, items)
	if err != nil {
		return 0, err
	}
	return res.Written, nil
}

// batchItem is one element of a capture batch. err is set when the element
// could not be decoded; such items are skipped like invalid envelopes.
type batchItem struct {
	rec v1.RawRecord
	err error
}

func (s *Service) capture(ctx context.Context, items []batchItem) (Result, error) {
	res := Result{Received: len(items)}
	ingestedAt := s.now()

	valid := make([]*v1.RawRecord, 0, len(items))
	for i := range items {
		rec := items[i].rec
		err := items[i].err
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			slog.Warn("[RawCapture] Skipping invalid record",
				"index", i,
				"source", rec.Source,
				"entity", rec.Entity,
				"external_id", rec.ExternalID,
				"error", err)
			res.Skipped = append(res.Skipped, SkippedRecord{
				Index:      i,
				Source:     rec.Source,
				Entity:     rec.Entity,
				ExternalID: rec.ExternalID,
				Reason:     err.Error(),
			})
			continue
		}
		rec.IngestedAt = ingestedAt
		valid = append(valid, &rec)
	}

	if len(valid) == 0 {
		return res, nil
	}

	written, err := s.store.UpsertRawRecords(ctx, dedupe(valid))
	if err != nil {
		return res, fmt.Errorf("raw capture: %w", err)
	}
	res.Written = written

	slog.Info("[RawCapture] Captured raw records",
		"received", res.Received,
		"written", res.Written,
		"skipped", len(res.Skipped))
	return res, nil
}

// dedupe keeps the last occurrence of each natural key so one batch cannot
// upsert the same row twice.
func dedupe(records []*v1.RawRecord) []*v1.RawRecord {
	type key struct{ source, entity, id string }
	last := make(map[key]int, len(records))
	for i, rec := range records {
		last[key{rec.Source, rec.Entity, rec.ExternalID}] = i
	}
	if len(last) == len(records) {
		return records
	}
	out := make([]*v1.RawRecord, 0, len(last))
	for i, rec := range records {
		if last[key{rec.Source, rec.Entity, rec.ExternalID}] == i {
			out = append(out, rec)
		}
	}
	return out
}
