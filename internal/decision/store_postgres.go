package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vouch/internal/intent"
	"vouch/internal/platform/postgres"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// PostgresStore persists outcomes in PostgreSQL. The full rule result is
// kept as jsonb so historical decisions stay interpretable after rule set
// edits.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, outcome Outcome) error {
	ruleResult, err := json.Marshal(outcome.RuleResult)
	if err != nil {
		return fmt.Errorf("marshal rule result: %w", err)
	}

	var workflowID *uuid.UUID
	if outcome.WorkflowID != nil {
		w := uuid.UUID(*outcome.WorkflowID)
		workflowID = &w
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO decision_outcomes (
			intent_id, subject_id, tenant_id, workflow_id, kind,
			status, no_usable_signal, rule_result, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(outcome.IntentID),
		uuid.UUID(outcome.SubjectID),
		uuid.UUID(outcome.TenantID),
		workflowID,
		string(outcome.Kind),
		string(outcome.Status),
		outcome.NoUsableSignal,
		ruleResult,
		outcome.DecidedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert decision outcome: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByIntent(ctx context.Context, intentID id.IntentID) (*Outcome, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT intent_id, subject_id, tenant_id, workflow_id, kind,
			status, no_usable_signal, rule_result, decided_at
		FROM decision_outcomes
		WHERE intent_id = $1
	`, uuid.UUID(intentID))

	var (
		outcome    Outcome
		intentUUID uuid.UUID
		subject    uuid.UUID
		tenant     uuid.UUID
		workflow   *uuid.UUID
		kind       string
		status     string
		ruleResult []byte
	)
	err := row.Scan(&intentUUID, &subject, &tenant, &workflow, &kind,
		&status, &outcome.NoUsableSignal, &ruleResult, &outcome.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan decision outcome: %w", err)
	}

	outcome.IntentID = id.IntentID(intentUUID)
	outcome.SubjectID = id.SubjectID(subject)
	outcome.TenantID = id.TenantID(tenant)
	if workflow != nil {
		w := id.WorkflowID(*workflow)
		outcome.WorkflowID = &w
	}
	outcome.Kind = intent.Kind(kind)
	outcome.Status = Status(status)
	if err := json.Unmarshal(ruleResult, &outcome.RuleResult); err != nil {
		return nil, fmt.Errorf("unmarshal rule result: %w", err)
	}
	return &outcome, nil
}
