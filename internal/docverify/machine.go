package docverify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vouch/internal/docverify/credcache"
	dvMetrics "vouch/internal/docverify/metrics"
	"vouch/internal/ledger"
	"vouch/internal/vendors"
	"vouch/internal/vendors/veriscan"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/requestcontext"
)

// Machine advances document sessions through the flow. It owns the ledger
// bookkeeping around every Veriscan call: the request row is written before
// the wire call, the result row after, success or not.
type Machine struct {
	adapter *veriscan.Adapter
	ledger  *ledger.Service
	creds   credcache.Cache
	metrics *dvMetrics.Metrics
	logger  *slog.Logger
	steps   map[State]step
}

func NewMachine(
	adapter *veriscan.Adapter,
	ledgerSvc *ledger.Service,
	creds credcache.Cache,
	metrics *dvMetrics.Metrics,
	logger *slog.Logger,
) (*Machine, error) {
	if adapter == nil {
		return nil, errors.New("veriscan adapter is required")
	}
	if ledgerSvc == nil {
		return nil, errors.New("ledger service is required")
	}
	if creds == nil {
		return nil, errors.New("credential cache is required")
	}

	m := &Machine{
		adapter: adapter,
		ledger:  ledgerSvc,
		creds:   creds,
		metrics: metrics,
		logger:  logger,
	}
	m.steps = map[State]step{
		StateStartOnboarding:     startOnboardingStep{m},
		StateAddFront:            addFrontStep{m},
		StateAddBack:             addBackStep{m},
		StateAddConsent:          addConsentStep{m},
		StateAddSelfie:           addSelfieStep{m},
		StateProcessID:           processIDStep{m},
		StateProcessFace:         processFaceStep{m},
		StateGetOnboardingStatus: statusStep{m},
		StateFetchScores:         fetchScoresStep{m},
	}
	return m, nil
}

// Advance runs steps until one is not ready, a vendor reports "not ready",
// a reason stops progress, or the session reaches a terminal state. A
// not-ready step is a no-op: the same call can be repeated after more input
// arrives.
func (m *Machine) Advance(ctx context.Context, session *Session, input *Input) error {
	for !session.State.Terminal() {
		current, ok := m.steps[session.State]
		if !ok {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "no step for state %q", session.State)
		}
		if !current.ready(session, input) {
			return nil
		}

		reasons, err := current.run(ctx, session, input)
		now := requestcontext.Now(ctx)
		session.UpdatedAt = now

		if err != nil {
			if vendors.CategoryOf(err) == vendors.ErrorNotReady {
				// Asynchronous processing has not finished. Not a suspension:
				// the caller re-invokes on the next inbound request.
				return nil
			}
			if m.adapter.Retryable(err) {
				return dErrors.Wrap(err, dErrors.CodeVendorUnavailable, "document vendor unavailable")
			}
			m.fail(session, ReasonVendorRejected, now)
			return nil
		}

		if len(reasons) > 0 {
			for _, reason := range reasons {
				m.metrics.IncrementFailureReason(string(reason), reason.Fatal())
			}
			if fatal := session.AddReasons(reasons, now); fatal {
				m.transition(session, StateFail)
				m.metrics.IncrementSessionOutcome("failed")
				return nil
			}
			// Ignorable: stay in the current state so the client can
			// re-submit a better capture.
			if m.logger != nil {
				m.logger.InfoContext(ctx, "document capture needs re-submission",
					"session_id", session.ID.String(),
					"state", string(session.State),
				)
			}
			return nil
		}

		m.transition(session, current.transition(session))
		if session.State == StateComplete {
			m.metrics.IncrementSessionOutcome("completed")
		}
	}
	return nil
}

func (m *Machine) transition(session *Session, next State) {
	m.metrics.IncrementTransition(string(session.State), string(next))
	session.State = next
}

func (m *Machine) fail(session *Session, reason Reason, at time.Time) {
	session.AddReasons([]Reason{reason}, at)
	m.transition(session, StateFail)
	m.metrics.IncrementSessionOutcome("failed")
	m.metrics.IncrementFailureReason(string(reason), true)
}

// ---------------------------------------------------------------------------
// Ledger-wrapped vendor calls
// ---------------------------------------------------------------------------

func (m *Machine) callCreateSession(ctx context.Context, session *Session, req veriscan.CreateSessionRequest) (*veriscan.SessionResponse, error) {
	request, err := m.ledger.RecordRequest(ctx, session.IntentID, session.SubjectID, req)
	if err != nil {
		return nil, err
	}
	resp, callErr := m.adapter.CreateSession(ctx, req)
	if callErr != nil {
		m.recordCallError(ctx, request, callErr)
		return nil, callErr
	}
	if _, err := m.ledger.RecordSuccess(ctx, request, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *Machine) callUploadSide(ctx context.Context, session *Session, req veriscan.UploadSideRequest) (*veriscan.SideResponse, error) {
	request, err := m.ledger.RecordRequest(ctx, session.IntentID, session.SubjectID, req)
	if err != nil {
		return nil, err
	}
	resp, callErr := m.adapter.UploadSide(ctx, req)
	if callErr != nil {
		m.recordCallError(ctx, request, callErr)
		return nil, callErr
	}
	if _, err := m.ledger.RecordSuccess(ctx, request, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *Machine) callUploadSelfie(ctx context.Context, session *Session, req veriscan.UploadSelfieRequest) (*veriscan.AckResponse, error) {
	request, err := m.ledger.RecordRequest(ctx, session.IntentID, session.SubjectID, req)
	if err != nil {
		return nil, err
	}
	resp, callErr := m.adapter.UploadSelfie(ctx, req)
	if callErr != nil {
		m.recordCallError(ctx, request, callErr)
		return nil, callErr
	}
	if _, err := m.ledger.RecordSuccess(ctx, request, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *Machine) callProcess(ctx context.Context, session *Session, target string) (*veriscan.AckResponse, error) {
	req := veriscan.ProcessRequest{VendorSessionID: session.VendorSessionID, Target: target}
	request, err := m.ledger.RecordRequest(ctx, session.IntentID, session.SubjectID, req)
	if err != nil {
		return nil, err
	}
	resp, callErr := m.adapter.Process(ctx, req)
	if callErr != nil {
		m.recordCallError(ctx, request, callErr)
		return nil, callErr
	}
	if _, err := m.ledger.RecordSuccess(ctx, request, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *Machine) callStatus(ctx context.Context, session *Session) (*veriscan.StatusResponse, error) {
	req := veriscan.StatusRequest{VendorSessionID: session.VendorSessionID, Stage: "status"}
	request, err := m.ledger.RecordRequest(ctx, session.IntentID, session.SubjectID, req)
	if err != nil {
		return nil, err
	}
	resp, callErr := m.adapter.Status(ctx, req)
	if callErr != nil {
		m.recordCallError(ctx, request, callErr)
		return nil, callErr
	}
	if _, err := m.ledger.RecordSuccess(ctx, request, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *Machine) callScores(ctx context.Context, session *Session) (*veriscan.ScoresResponse, error) {
	req := veriscan.StatusRequest{VendorSessionID: session.VendorSessionID, Stage: "scores"}
	request, err := m.ledger.RecordRequest(ctx, session.IntentID, session.SubjectID, req)
	if err != nil {
		return nil, err
	}
	resp, callErr := m.adapter.Scores(ctx, req)
	if callErr != nil {
		m.recordCallError(ctx, request, callErr)
		return nil, callErr
	}
	if _, err := m.ledger.RecordSuccess(ctx, request, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *Machine) recordCallError(ctx context.Context, request *ledger.Request, callErr error) {
	if _, err := m.ledger.RecordError(ctx, request, callErr); err != nil && m.logger != nil {
		m.logger.ErrorContext(ctx, "record vendor error result",
			"request_id", request.ID.String(),
			"error", err,
		)
	}
}
