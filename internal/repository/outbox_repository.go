package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roadworthy/inspection-platform/internal/event"
)

// OutboxRepo persists event envelopes inside the transactions that produce
// them.  A relay drains unpublished rows to the broker, so a crash between
// commit and publish only delays the event instead of losing it.
type OutboxRepo struct {
	db *sql.DB
}

// NewOutboxRepo returns a repo bound to the given database.
func NewOutboxRepo(db *sql.DB) *OutboxRepo { return &OutboxRepo{db: db} }

// OutboxRow is one stored envelope awaiting publication.
type OutboxRow struct {
	ID       uint64
	Envelope event.Envelope
}

// AppendTx serializes the envelope into the outbox within tx.  The unique
// key on event_id makes accidental double-appends harmless.
func (r *OutboxRepo) AppendTx(ctx context.Context, tx *sql.Tx, env event.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO event_outbox (event_id, event_type, correlation_id, payload) VALUES (?, ?, ?, ?)`,
		env.EventID, env.EventType, env.Metadata.CorrelationID, payload)
	if err != nil && isDuplicateKey(err) {
		return nil
	}
	return err
}

// FetchUnpublished returns up to limit pending rows in insertion order.
func (r *OutboxRepo) FetchUnpublished(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, payload FROM event_outbox WHERE published_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OutboxRow
	for rows.Next() {
		var row OutboxRow
		var payload []byte
		if err := rows.Scan(&row.ID, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &row.Envelope); err != nil {
			return nil, fmt.Errorf("unmarshal outbox row %d: %w", row.ID, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MarkPublished stamps a drained row.
func (r *OutboxRepo) MarkPublished(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE event_outbox SET published_at = UTC_TIMESTAMP() WHERE id = ?`, id)
	return err
}
