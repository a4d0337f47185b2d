package docverify

import (
	"context"
	"errors"
	"log/slog"

	"vouch/internal/docverify/credcache"
	"vouch/internal/intent"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/requestcontext"
)

// Progress is the read-only view clients poll while a session is in flight.
// Outstanding lists the ignorable reasons the client should resolve by
// re-submitting input.
type Progress struct {
	SessionID   id.DocSessionID
	State       State
	Outstanding []Reason
	Completed   bool
	Failed      bool

	DocumentScore  float64
	FaceMatchScore float64
	ScoresReady    bool
}

// Service is the public surface of document verification. Every mutation
// loads the session, drives the machine, and persists the result; images
// pass through to the vendor without being stored.
type Service struct {
	sessions Store
	machine  *Machine
	intents  *intent.Service
	creds    credcache.Cache
	logger   *slog.Logger
}

func NewService(sessions Store, machine *Machine, intents *intent.Service, creds credcache.Cache, logger *slog.Logger) (*Service, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if machine == nil {
		return nil, errors.New("machine is required")
	}
	if intents == nil {
		return nil, errors.New("intent service is required")
	}
	if creds == nil {
		return nil, errors.New("credential cache is required")
	}
	return &Service{sessions: sessions, machine: machine, intents: intents, creds: creds, logger: logger}, nil
}

// StartOnboarding opens (or resumes) the document session for a workflow.
// The vendor capture session is created immediately; the returned session is
// waiting for the front image.
func (s *Service) StartOnboarding(ctx context.Context, subject id.SubjectID, tenant id.TenantID, workflow *id.WorkflowID, kind Kind) (*Session, error) {
	record, err := s.intents.GetOrCreate(ctx, subject, tenant, workflow, intent.KindDocumentVerification)
	if err != nil {
		return nil, err
	}

	existing, err := s.sessions.FindByIntent(ctx, record.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find document session")
	}

	now := requestcontext.Now(ctx)
	session := Session{
		ID:        id.NewDocSessionID(),
		IntentID:  record.ID,
		SubjectID: subject,
		TenantID:  tenant,
		Kind:      kind,
		State:     StateStartOnboarding,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.machine.Advance(ctx, &session, &Input{}); err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the creation race; the winner's session must exist now.
			return s.findExisting(ctx, record.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create document session")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "document session started",
			"session_id", session.ID.String(),
			"kind", string(kind),
		)
	}
	return &session, nil
}

func (s *Service) findExisting(ctx context.Context, intentID id.IntentID) (*Session, error) {
	session, err := s.sessions.FindByIntent(ctx, intentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
			"session conflict with no stored session for intent")
	}
	return session, nil
}

// SubmitFront submits the front document image.
func (s *Service) SubmitFront(ctx context.Context, sessionID id.DocSessionID, image []byte) (*Progress, error) {
	return s.advance(ctx, sessionID, &Input{FrontImage: image})
}

// SubmitBack submits the back document image.
func (s *Service) SubmitBack(ctx context.Context, sessionID id.DocSessionID, image []byte) (*Progress, error) {
	return s.advance(ctx, sessionID, &Input{BackImage: image})
}

// SubmitConsent records the subject's processing consent.
func (s *Service) SubmitConsent(ctx context.Context, sessionID id.DocSessionID) (*Progress, error) {
	return s.advance(ctx, sessionID, &Input{Consent: true})
}

// SubmitSelfie submits the selfie capture.
func (s *Service) SubmitSelfie(ctx context.Context, sessionID id.DocSessionID, image []byte) (*Progress, error) {
	return s.advance(ctx, sessionID, &Input{SelfieImage: image})
}

// Poll re-drives the processing tail of the flow without new input. Clients
// call it while waiting for asynchronous vendor processing.
func (s *Service) Poll(ctx context.Context, sessionID id.DocSessionID) (*Progress, error) {
	return s.advance(ctx, sessionID, &Input{})
}

func (s *Service) advance(ctx context.Context, sessionID id.DocSessionID, input *Input) (*Progress, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State.Terminal() {
		return s.progress(session), nil
	}

	if err := s.machine.Advance(ctx, session, input); err != nil {
		// Persist whatever the machine recorded before the failure; the
		// session is re-enterable.
		if saveErr := s.sessions.Update(ctx, session); saveErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "persist document session after vendor failure",
				"session_id", session.ID.String(),
				"error", saveErr,
			)
		}
		return nil, err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist document session")
	}
	return s.progress(session), nil
}

// GetOnboardingStatus returns the session's current progress.
func (s *Service) GetOnboardingStatus(ctx context.Context, sessionID id.DocSessionID) (*Progress, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.progress(session), nil
}

// ProgressByIntent returns progress for the session attached to an intent.
func (s *Service) ProgressByIntent(ctx context.Context, intentID id.IntentID) (*Progress, error) {
	session, err := s.sessions.FindByIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no document session for intent")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find document session")
	}
	return s.progress(session), nil
}

// Session returns the full session record.
func (s *Service) Session(ctx context.Context, sessionID id.DocSessionID) (*Session, error) {
	return s.load(ctx, sessionID)
}

// SessionByIntent returns the full session record attached to an intent.
func (s *Service) SessionByIntent(ctx context.Context, intentID id.IntentID) (*Session, error) {
	session, err := s.sessions.FindByIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no document session for intent")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find document session")
	}
	return session, nil
}

// ClientToken returns the vendor client token for the session's capture
// session, if it is still live.
func (s *Service) ClientToken(ctx context.Context, sessionID id.DocSessionID) (string, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.VendorSessionID == "" {
		return "", dErrors.New(dErrors.CodeRequirementNotMet, "session has no vendor capture session yet")
	}
	token, err := s.creds.Token(ctx, session.VendorSessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "client token expired or absent")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "read client token")
	}
	return token, nil
}

func (s *Service) load(ctx context.Context, sessionID id.DocSessionID) (*Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load document session")
	}
	return session, nil
}

func (s *Service) progress(session *Session) *Progress {
	return &Progress{
		SessionID:      session.ID,
		State:          session.State,
		Outstanding:    session.OutstandingReasons(),
		Completed:      session.State == StateComplete,
		Failed:         session.State == StateFail,
		DocumentScore:  session.DocumentScore,
		FaceMatchScore: session.FaceMatchScore,
		ScoresReady:    session.ScoresReady,
	}
}
