package repository

import (
	"context"
	"database/sql"
)

// ProcessedEventRepo is the idempotency ledger shared by all consumers.
// A consumer records the event id inside the same transaction as its state
// change; on redelivery the insert fails and the consumer skips the work.
type ProcessedEventRepo struct {
	db *sql.DB
}

// NewProcessedEventRepo returns a repo bound to the given database.
func NewProcessedEventRepo(db *sql.DB) *ProcessedEventRepo { return &ProcessedEventRepo{db: db} }

// MarkTx records (consumer, eventID) inside tx.  ErrAlreadyProcessed is
// returned when the pair exists, which callers treat as "skip, already done".
func (r *ProcessedEventRepo) MarkTx(ctx context.Context, tx *sql.Tx, consumer, eventID, eventType string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO processed_events (consumer, event_id, event_type) VALUES (?, ?, ?)`,
		consumer, eventID, eventType)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrAlreadyProcessed
		}
		return err
	}
	return nil
}

// Seen reports whether the consumer has already processed the event.  Used
// as a cheap pre-check before opening a transaction; MarkTx remains the
// authoritative guard.
func (r *ProcessedEventRepo) Seen(ctx context.Context, consumer, eventID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_events WHERE consumer = ? AND event_id = ?`,
		consumer, eventID).Scan(&n)
	return n > 0, err
}
