package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vouch/internal/platform/postgres"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// PostgresStore persists rule set versions in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Activate(ctx context.Context, record Record) error {
	rulesJSON, err := json.Marshal(record.Rules)
	if err != nil {
		return fmt.Errorf("marshal rule list: %w", err)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE rule_sets SET active = FALSE WHERE name = $1 AND active`,
			record.Name,
		); err != nil {
			return fmt.Errorf("deactivate prior version: %w", err)
		}

		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO rule_sets (id, name, version, rules, active, created_at)
			VALUES ($1, $2, $3, $4, TRUE, $5)
		`, uuid.UUID(record.ID), record.Name, record.Version, rulesJSON, createdAt)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert rule set version: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Active(ctx context.Context, name string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, version, rules, active, created_at
		FROM rule_sets
		WHERE name = $1 AND active
	`, name)
	return scanRecord(row)
}

func (s *PostgresStore) Versions(ctx context.Context, name string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, version, rules, active, created_at
		FROM rule_sets
		WHERE name = $1
		ORDER BY version DESC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query rule set versions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record    Record
		setID     uuid.UUID
		rulesJSON []byte
	)
	err := row.Scan(&setID, &record.Name, &record.Version, &rulesJSON, &record.Active, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan rule set: %w", err)
	}
	record.ID = id.RuleSetID(setID)
	if err := json.Unmarshal(rulesJSON, &record.Rules); err != nil {
		return nil, fmt.Errorf("unmarshal rule list: %w", err)
	}
	return &record, nil
}
