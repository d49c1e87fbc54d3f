package postgres

// SQL for the raw log.

const (
	// queryUpsertRawRecord writes one raw record keyed by (source, entity, external_id).
	// The WHERE clause skips rewrites of an unchanged payload, so identical
	// re-captures affect zero rows.
	queryUpsertRawRecord = `
		INSERT INTO raw_records (
			source, entity, external_id, cursor, payload, payload_hash, ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source, entity, external_id) DO UPDATE SET
			cursor       = EXCLUDED.cursor,
			payload      = EXCLUDED.payload,
			payload_hash = EXCLUDED.payload_hash,
			ingested_at  = EXCLUDED.ingested_at
		WHERE raw_records.payload_hash <> EXCLUDED.payload_hash
	`

	// queryListRawRecords reads one entity type in a stable order so a
	// normalization pass is deterministic.
	queryListRawRecords = `
		SELECT source, entity, external_id, cursor, payload, payload_hash, ingested_at
		FROM raw_records
		WHERE entity = $1
		ORDER BY source ASC, external_id ASC
	`
)
