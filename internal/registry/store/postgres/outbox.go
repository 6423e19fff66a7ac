package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"idregistry/internal/events"
	"idregistry/internal/events/outbox"
	txcontext "idregistry/pkg/platform/tx"
)

var _ outbox.Source = (*Store)(nil)

// FetchUnpublished returns the oldest unpublished outbox rows in commit order.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]outbox.Entry, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT seq, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []outbox.Entry
	for rows.Next() {
		var (
			seq     int64
			payload []byte
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		e, err := events.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("outbox row %d: %w", seq, err)
		}
		out = append(out, outbox.Entry{Seq: seq, Event: e})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

// MarkPublished stamps the rows as delivered.
func (s *Store) MarkPublished(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}
	if _, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE seq = ANY($2::bigint[])`,
		time.Now().UTC(), pq.Array(seqs),
	); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
