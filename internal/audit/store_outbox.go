package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // registers the postgres driver for database/sql

	id "vouch/pkg/domain"
)

// OutboxStore implements Store using the transactional outbox pattern.
// Events are written to the outbox table in the same database as the domain
// rows and relayed to Kafka by the outbox relay; Kafka is the source of
// truth for downstream audit consumers.
type OutboxStore struct {
	db *sql.DB
}

func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

// OutboxEntry is one unpublished outbox row.
type OutboxEntry struct {
	ID        uuid.UUID
	Action    string
	Payload   []byte
	CreatedAt time.Time
}

func (s *OutboxStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, subject_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		uuid.New(),
		uuid.UUID(event.SubjectID),
		string(event.Action),
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit outbox entry: %w", err)
	}
	return nil
}

func (s *OutboxStore) ListBySubject(ctx context.Context, subject id.SubjectID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM audit_outbox
		WHERE subject_id = $1
		ORDER BY created_at ASC
	`, uuid.UUID(subject))
	if err != nil {
		return nil, fmt.Errorf("query audit outbox: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit outbox entry: %w", err)
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("unmarshal audit event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Unpublished returns up to limit entries that have not been relayed yet,
// oldest first.
func (s *OutboxStore) Unpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, payload, created_at FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkPublished stamps an entry as relayed. Idempotent.
func (s *OutboxStore) MarkPublished(ctx context.Context, entryID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_outbox SET published_at = now()
		WHERE id = $1 AND published_at IS NULL
	`, entryID)
	if err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}
