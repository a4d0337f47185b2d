package docverify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vouch/internal/platform/postgres"
	"vouch/internal/vendors/veriscan"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// PostgresStore persists document sessions in PostgreSQL. Reason entries are
// stored as a jsonb column; they are append-only and read back whole.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, session Session) error {
	reasons, err := json.Marshal(session.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reason entries: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO document_sessions (
			id, intent_id, subject_id, tenant_id, kind, state,
			vendor_session_id, front_doc_type, back_doc_type,
			front_uploaded, back_uploaded, consent_given, selfie_uploaded,
			reasons, document_score, face_match_score, scores_ready,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		uuid.UUID(session.ID),
		uuid.UUID(session.IntentID),
		uuid.UUID(session.SubjectID),
		uuid.UUID(session.TenantID),
		string(session.Kind),
		string(session.State),
		session.VendorSessionID,
		string(session.FrontDocType),
		string(session.BackDocType),
		session.FrontUploaded,
		session.BackUploaded,
		session.ConsentGiven,
		session.SelfieUploaded,
		reasons,
		session.DocumentScore,
		session.FaceMatchScore,
		session.ScoresReady,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID id.DocSessionID) (*Session, error) {
	row := s.pool.QueryRow(ctx, selectSession+` WHERE id = $1`, uuid.UUID(sessionID))
	return scanSession(row)
}

func (s *PostgresStore) FindByIntent(ctx context.Context, intentID id.IntentID) (*Session, error) {
	row := s.pool.QueryRow(ctx, selectSession+` WHERE intent_id = $1`, uuid.UUID(intentID))
	return scanSession(row)
}

func (s *PostgresStore) Update(ctx context.Context, session *Session) error {
	reasons, err := json.Marshal(session.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reason entries: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE document_sessions SET
			state = $2, vendor_session_id = $3,
			front_doc_type = $4, back_doc_type = $5,
			front_uploaded = $6, back_uploaded = $7,
			consent_given = $8, selfie_uploaded = $9,
			reasons = $10, document_score = $11, face_match_score = $12,
			scores_ready = $13, updated_at = $14
		WHERE id = $1
	`,
		uuid.UUID(session.ID),
		string(session.State),
		session.VendorSessionID,
		string(session.FrontDocType),
		string(session.BackDocType),
		session.FrontUploaded,
		session.BackUploaded,
		session.ConsentGiven,
		session.SelfieUploaded,
		reasons,
		session.DocumentScore,
		session.FaceMatchScore,
		session.ScoresReady,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectSession = `
	SELECT id, intent_id, subject_id, tenant_id, kind, state,
		vendor_session_id, front_doc_type, back_doc_type,
		front_uploaded, back_uploaded, consent_given, selfie_uploaded,
		reasons, document_score, face_match_score, scores_ready,
		created_at, updated_at
	FROM document_sessions`

func scanSession(row pgx.Row) (*Session, error) {
	var (
		session      Session
		sessionID    uuid.UUID
		intentID     uuid.UUID
		subjectID    uuid.UUID
		tenantID     uuid.UUID
		kind         string
		state        string
		frontDocType string
		backDocType  string
		reasons      []byte
	)
	err := row.Scan(
		&sessionID, &intentID, &subjectID, &tenantID, &kind, &state,
		&session.VendorSessionID, &frontDocType, &backDocType,
		&session.FrontUploaded, &session.BackUploaded, &session.ConsentGiven, &session.SelfieUploaded,
		&reasons, &session.DocumentScore, &session.FaceMatchScore, &session.ScoresReady,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan document session: %w", err)
	}
	session.ID = id.DocSessionID(sessionID)
	session.IntentID = id.IntentID(intentID)
	session.SubjectID = id.SubjectID(subjectID)
	session.TenantID = id.TenantID(tenantID)
	session.Kind = Kind(kind)
	session.State = State(state)
	session.FrontDocType = veriscan.DocType(frontDocType)
	session.BackDocType = veriscan.DocType(backDocType)
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &session.Reasons); err != nil {
			return nil, fmt.Errorf("unmarshal reason entries: %w", err)
		}
	}
	return &session, nil
}
