package intent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vouch/internal/platform/postgres"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// PostgresStore persists decision intents in PostgreSQL.
//
// Idempotency is enforced by partial unique indexes on the idempotency key:
// one over (workflow_id, kind) where workflow_id is set, one over
// (subject_id, kind) for workflow-less idempotent kinds.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, record Intent) error {
	var workflowID *uuid.UUID
	if record.WorkflowID != nil {
		w := uuid.UUID(*record.WorkflowID)
		workflowID = &w
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO decision_intents (id, subject_id, tenant_id, workflow_id, kind, idempotent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.UUID(record.ID),
		uuid.UUID(record.SubjectID),
		uuid.UUID(record.TenantID),
		workflowID,
		string(record.Kind),
		record.Kind.IdempotentPerWorkflow(),
		record.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert decision intent: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, intentID id.IntentID) (*Intent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, subject_id, tenant_id, workflow_id, kind, created_at
		FROM decision_intents
		WHERE id = $1
	`, uuid.UUID(intentID))
	return scanIntent(row)
}

func (s *PostgresStore) FindByKey(ctx context.Context, subject id.SubjectID, workflow *id.WorkflowID, kind Kind) (*Intent, error) {
	var (
		row pgx.Row
	)
	if workflow != nil {
		row = s.pool.QueryRow(ctx, `
			SELECT id, subject_id, tenant_id, workflow_id, kind, created_at
			FROM decision_intents
			WHERE workflow_id = $1 AND kind = $2 AND idempotent
		`, uuid.UUID(*workflow), string(kind))
	} else {
		row = s.pool.QueryRow(ctx, `
			SELECT id, subject_id, tenant_id, workflow_id, kind, created_at
			FROM decision_intents
			WHERE subject_id = $1 AND workflow_id IS NULL AND kind = $2 AND idempotent
		`, uuid.UUID(subject), string(kind))
	}
	return scanIntent(row)
}

func scanIntent(row pgx.Row) (*Intent, error) {
	var (
		record     Intent
		intentID   uuid.UUID
		subjectID  uuid.UUID
		tenantID   uuid.UUID
		workflowID *uuid.UUID
		kind       string
	)
	err := row.Scan(&intentID, &subjectID, &tenantID, &workflowID, &kind, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan decision intent: %w", err)
	}
	record.ID = id.IntentID(intentID)
	record.SubjectID = id.SubjectID(subjectID)
	record.TenantID = id.TenantID(tenantID)
	record.Kind = Kind(kind)
	if workflowID != nil {
		w := id.WorkflowID(*workflowID)
		record.WorkflowID = &w
	}
	return &record, nil
}
