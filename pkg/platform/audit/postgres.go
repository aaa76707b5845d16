package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// OutboxSchema creates the audit outbox table. Events land here in the same
// database as the data they describe and are shipped to Kafka by the worker.
const OutboxSchema = `
CREATE TABLE IF NOT EXISTS audit_outbox (
	id           UUID PRIMARY KEY,
	payload      JSONB NOT NULL,
	occurred_at  TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS audit_outbox_unpublished_idx
	ON audit_outbox (occurred_at) WHERE published_at IS NULL;
`

// PostgresStore is a Store and Outbox backed by database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, OutboxSchema); err != nil {
		return fmt.Errorf("ensure audit outbox schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_outbox (id, payload, occurred_at) VALUES ($1, $2, $3)`,
		event.ID, payload, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) NextBatch(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM audit_outbox
		 WHERE published_at IS NULL
		 ORDER BY occurred_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit outbox: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = NOW() WHERE id = ANY($1)`,
		pq.Array(raw))
	if err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

var (
	_ Store  = (*PostgresStore)(nil)
	_ Outbox = (*PostgresStore)(nil)
)
