package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vouch/internal/platform/postgres"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// PostgresStore persists ledger rows in PostgreSQL. Tables are insert-only;
// there are no UPDATE or DELETE statements in this file on purpose.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateRequest(ctx context.Context, record Request) error {
	params, err := json.Marshal(record.Params)
	if err != nil {
		return fmt.Errorf("marshal request params: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ledger_requests (id, intent_id, subject_id, api, params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.UUID(record.ID),
		uuid.UUID(record.IntentID),
		uuid.UUID(record.SubjectID),
		string(record.API),
		params,
		record.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ledger request: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateResult(ctx context.Context, record Result) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_results (id, request_id, api, is_error, scrubbed, sealed, error_category, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(record.ID),
		uuid.UUID(record.RequestID),
		string(record.API),
		record.IsError,
		[]byte(record.Scrubbed),
		record.Sealed,
		string(record.ErrorCategory),
		record.ErrorMessage,
		record.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ledger result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRequest(ctx context.Context, requestID id.RequestID) (*Request, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, intent_id, subject_id, api, params, created_at
		FROM ledger_requests
		WHERE id = $1
	`, uuid.UUID(requestID))
	return scanRequest(row)
}

func (s *PostgresStore) GetResult(ctx context.Context, resultID id.ResultID) (*Result, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, request_id, api, is_error, scrubbed, sealed, error_category, error_message, created_at
		FROM ledger_results
		WHERE id = $1
	`, uuid.UUID(resultID))
	return scanResult(row)
}

func (s *PostgresStore) LatestSuccessfulResult(ctx context.Context, subject id.SubjectID, api vendorapi.API) (*Result, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT r.id, r.request_id, r.api, r.is_error, r.scrubbed, r.sealed, r.error_category, r.error_message, r.created_at
		FROM ledger_results r
		JOIN ledger_requests q ON q.id = r.request_id
		WHERE q.subject_id = $1 AND r.api = $2 AND NOT r.is_error
		ORDER BY r.created_at DESC
		LIMIT 1
	`, uuid.UUID(subject), string(api))
	return scanResult(row)
}

func (s *PostgresStore) ListRequestsByIntent(ctx context.Context, intentID id.IntentID) ([]Request, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, intent_id, subject_id, api, params, created_at
		FROM ledger_requests
		WHERE intent_id = $1
		ORDER BY created_at ASC
	`, uuid.UUID(intentID))
	if err != nil {
		return nil, fmt.Errorf("list ledger requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		record, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (*Request, error) {
	var (
		record    Request
		requestID uuid.UUID
		intentID  uuid.UUID
		subjectID uuid.UUID
		api       string
		params    []byte
	)
	err := row.Scan(&requestID, &intentID, &subjectID, &api, &params, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan ledger request: %w", err)
	}
	record.ID = id.RequestID(requestID)
	record.IntentID = id.IntentID(intentID)
	record.SubjectID = id.SubjectID(subjectID)
	record.API = vendorapi.API(api)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &record.Params); err != nil {
			return nil, fmt.Errorf("unmarshal request params: %w", err)
		}
	}
	return &record, nil
}

func scanResult(row pgx.Row) (*Result, error) {
	var (
		record    Result
		resultID  uuid.UUID
		requestID uuid.UUID
		api       string
		category  string
	)
	err := row.Scan(&resultID, &requestID, &api, &record.IsError,
		(*[]byte)(&record.Scrubbed), &record.Sealed, &category, &record.ErrorMessage, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan ledger result: %w", err)
	}
	record.ID = id.ResultID(resultID)
	record.RequestID = id.RequestID(requestID)
	record.API = vendorapi.API(api)
	record.ErrorCategory = vendors.ErrorCategory(category)
	return &record, nil
}
