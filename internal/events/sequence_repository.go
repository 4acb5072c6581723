package events

import (
	"context"
	"database/sql"
	"fmt"
)

const nextSequenceSQL = `
INSERT INTO event_sequences (partition_key, last_sequence, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (partition_key) DO UPDATE
SET last_sequence = event_sequences.last_sequence + 1,
    updated_at = NOW()
RETURNING last_sequence
`

type sequenceRepository struct {
	db *sql.DB
}

// NewSequenceRepository hands out per-partition sequence numbers from the
// event_sequences table. The upsert is a single statement so concurrent
// callers never see the same number.
func NewSequenceRepository(db *sql.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, fmt.Errorf("partition key is required")
	}

	var next int64
	if err := r.db.QueryRowContext(ctx, nextSequenceSQL, partitionKey).Scan(&next); err != nil {
		return 0, fmt.Errorf("increment sequence: %w", err)
	}
	return next, nil
}
