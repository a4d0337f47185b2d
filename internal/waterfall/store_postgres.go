package waterfall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vouch/internal/platform/postgres"
	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// PostgresStore persists waterfall executions in PostgreSQL. Step allocation
// takes SELECT ... FOR UPDATE on the execution row, so step numbers stay
// gap-free under concurrent runners.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateExecution(ctx context.Context, record Execution) error {
	eligible := make([]string, len(record.Eligible))
	for i, api := range record.Eligible {
		eligible[i] = string(api)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO waterfall_executions (id, intent_id, eligible, seqno, latest_step, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
	`,
		uuid.UUID(record.ID),
		uuid.UUID(record.IntentID),
		eligible,
		int64(record.Seqno),
		record.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert waterfall execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetExecution(ctx context.Context, executionID id.ExecutionID) (*Execution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, intent_id, eligible, seqno, latest_step, completed_at, created_at
		FROM waterfall_executions
		WHERE id = $1
	`, uuid.UUID(executionID))
	return scanExecution(row)
}

func (s *PostgresStore) FindByIntent(ctx context.Context, intentID id.IntentID) (*Execution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, intent_id, eligible, seqno, latest_step, completed_at, created_at
		FROM waterfall_executions
		WHERE intent_id = $1
	`, uuid.UUID(intentID))
	return scanExecution(row)
}

func (s *PostgresStore) CreateNextStep(ctx context.Context, executionID id.ExecutionID, api vendorapi.API) (*Step, error) {
	var step *Step
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			latestStep  int
			completedAt *time.Time
		)
		err := tx.QueryRow(ctx, `
			SELECT latest_step, completed_at
			FROM waterfall_executions
			WHERE id = $1
			FOR UPDATE
		`, uuid.UUID(executionID)).Scan(&latestStep, &completedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock waterfall execution: %w", err)
		}
		if completedAt != nil {
			return sentinel.ErrCompleted
		}

		created := &Step{
			ID:          id.NewStepID(),
			ExecutionID: executionID,
			Number:      latestStep + 1,
			API:         api,
			CreatedAt:   time.Now().UTC(),
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO waterfall_steps (id, execution_id, number, api, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.UUID(created.ID), uuid.UUID(executionID), created.Number, string(api), created.CreatedAt); err != nil {
			return fmt.Errorf("insert waterfall step: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE waterfall_executions SET latest_step = $2 WHERE id = $1
		`, uuid.UUID(executionID), created.Number); err != nil {
			return fmt.Errorf("advance latest step: %w", err)
		}
		step = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

func (s *PostgresStore) CompleteStep(ctx context.Context, stepID id.StepID, action StepAction, resultID *id.ResultID) error {
	var result *uuid.UUID
	if resultID != nil {
		r := uuid.UUID(*resultID)
		result = &r
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE waterfall_steps
		SET action = $2, result_id = $3, completed_at = NOW()
		WHERE id = $1 AND completed_at IS NULL
	`, uuid.UUID(stepID), string(action), result)
	if err != nil {
		return fmt.Errorf("complete waterfall step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM waterfall_steps WHERE id = $1)`,
			uuid.UUID(stepID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check waterfall step: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrCompleted
	}
	return nil
}

func (s *PostgresStore) CompleteExecution(ctx context.Context, executionID id.ExecutionID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE waterfall_executions
		SET completed_at = NOW()
		WHERE id = $1 AND completed_at IS NULL
	`, uuid.UUID(executionID))
	if err != nil {
		return fmt.Errorf("complete waterfall execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM waterfall_executions WHERE id = $1)`,
			uuid.UUID(executionID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check waterfall execution: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
	}
	return nil
}

func (s *PostgresStore) ListSteps(ctx context.Context, executionID id.ExecutionID) ([]Step, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, execution_id, number, api, result_id, action, completed_at, created_at
		FROM waterfall_steps
		WHERE execution_id = $1
		ORDER BY number ASC
	`, uuid.UUID(executionID))
	if err != nil {
		return nil, fmt.Errorf("list waterfall steps: %w", err)
	}
	defer rows.Close()

	var out []Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *step)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*Execution, error) {
	var (
		record      Execution
		executionID uuid.UUID
		intentID    uuid.UUID
		eligible    []string
		seqno       int64
	)
	err := row.Scan(&executionID, &intentID, &eligible, &seqno, &record.LatestStep, &record.CompletedAt, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan waterfall execution: %w", err)
	}
	record.ID = id.ExecutionID(executionID)
	record.IntentID = id.IntentID(intentID)
	record.Seqno = vault.Seqno(seqno)
	record.Eligible = make([]vendorapi.API, len(eligible))
	for i, api := range eligible {
		record.Eligible[i] = vendorapi.API(api)
	}
	return &record, nil
}

func scanStep(row rowScanner) (*Step, error) {
	var (
		record   Step
		stepID   uuid.UUID
		execID   uuid.UUID
		api      string
		resultID *uuid.UUID
		action   *string
	)
	err := row.Scan(&stepID, &execID, &record.Number, &api, &resultID, &action, &record.CompletedAt, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan waterfall step: %w", err)
	}
	record.ID = id.StepID(stepID)
	record.ExecutionID = id.ExecutionID(execID)
	record.API = vendorapi.API(api)
	if resultID != nil {
		r := id.ResultID(*resultID)
		record.ResultID = &r
	}
	if action != nil {
		record.Action = StepAction(*action)
	}
	return &record, nil
}
