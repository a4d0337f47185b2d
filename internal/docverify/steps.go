package docverify

import (
	"context"
	"time"

	"vouch/internal/vendors/veriscan"
)

// step is one transition unit of the flow. ready decides whether the step's
// inputs are available; when they are not, the machine returns a no-op and
// the same call can be repeated after more input arrives. run performs the
// vendor call (if any) and records state-local outcome data on the session.
// transition is a pure function of the accumulated session context.
type step interface {
	state() State
	ready(session *Session, input *Input) bool
	run(ctx context.Context, session *Session, input *Input) ([]Reason, error)
	transition(session *Session) State
}

// ---------------------------------------------------------------------------
// StartOnboarding
// ---------------------------------------------------------------------------

type startOnboardingStep struct{ m *Machine }

func (startOnboardingStep) state() State                      { return StateStartOnboarding }
func (startOnboardingStep) ready(*Session, *Input) bool       { return true }
func (startOnboardingStep) transition(session *Session) State { return StateAddFront }

func (s startOnboardingStep) run(ctx context.Context, session *Session, input *Input) ([]Reason, error) {
	req := veriscan.CreateSessionRequest{
		Reference:       session.ID.String(),
		RequireSelfie:   session.Kind.RequiresSelfie(),
		RequireBackside: true,
	}
	resp, err := s.m.callCreateSession(ctx, session, req)
	if err != nil {
		return nil, err
	}

	session.VendorSessionID = resp.VendorSessionID
	ttl := time.Until(resp.ExpiresAt)
	if ttl > 0 {
		if err := s.m.creds.PutToken(ctx, resp.VendorSessionID, resp.ClientToken, ttl); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// AddFront
// ---------------------------------------------------------------------------

type addFrontStep struct{ m *Machine }

func (addFrontStep) state() State { return StateAddFront }

func (addFrontStep) ready(session *Session, input *Input) bool {
	return input != nil && len(input.FrontImage) > 0
}

func (addFrontStep) transition(session *Session) State { return StateAddBack }

func (s addFrontStep) run(ctx context.Context, session *Session, input *Input) ([]Reason, error) {
	resp, err := s.m.callUploadSide(ctx, session, veriscan.UploadSideRequest{
		VendorSessionID: session.VendorSessionID,
		Side:            veriscan.SideFront,
		Image:           input.FrontImage,
	})
	if err != nil {
		return nil, err
	}

	if reasons := reasonsFromSide(resp.Failures); len(reasons) > 0 {
		return reasons, nil
	}
	session.FrontDocType = resp.DocType
	session.FrontUploaded = true
	return nil, nil
}

// ---------------------------------------------------------------------------
// AddBack
// ---------------------------------------------------------------------------

type addBackStep struct{ m *Machine }

func (addBackStep) state() State { return StateAddBack }

func (addBackStep) ready(session *Session, input *Input) bool {
	return input != nil && len(input.BackImage) > 0
}

// transition yields AddSelfie iff the session's kind requires a selfie, else
// AddConsent.
func (addBackStep) transition(session *Session) State {
	if session.Kind.RequiresSelfie() {
		return StateAddSelfie
	}
	return StateAddConsent
}

func (s addBackStep) run(ctx context.Context, session *Session, input *Input) ([]Reason, error) {
	resp, err := s.m.callUploadSide(ctx, session, veriscan.UploadSideRequest{
		VendorSessionID: session.VendorSessionID,
		Side:            veriscan.SideBack,
		Image:           input.BackImage,
	})
	if err != nil {
		return nil, err
	}

	reasons := reasonsFromSide(resp.Failures)
	// Local consistency check, distinct from any vendor-reported failure:
	// the back side must carry the same document type captured on the front.
	if session.FrontDocType != "" && resp.DocType != session.FrontDocType {
		reasons = append(reasons, ReasonTypeMismatch)
	}
	if len(reasons) > 0 {
		return reasons, nil
	}
	session.BackDocType = resp.DocType
	session.BackUploaded = true
	return nil, nil
}

// ---------------------------------------------------------------------------
// AddConsent
// ---------------------------------------------------------------------------

type addConsentStep struct{ m *Machine }

func (addConsentStep) state() State { return StateAddConsent }

func (addConsentStep) ready(session *Session, input *Input) bool {
	return input != nil && input.Consent
}

func (addConsentStep) transition(session *Session) State { return StateProcessID }

// run records consent locally; there is no vendor call for this step.
func (addConsentStep) run(ctx context.Context, session *Session, input *Input) ([]Reason, error) {
	session.ConsentGiven = true
	return nil, nil
}

// ---------------------------------------------------------------------------
// AddSelfie
// ---------------------------------------------------------------------------

type addSelfieStep struct{ m *Machine }

func (addSelfieStep) state() State { return StateAddSelfie }

func (addSelfieStep) ready(session *Session, input *Input) bool {
	return input != nil && len(input.SelfieImage) > 0
}

func (addSelfieStep) transition(session *Session) State { return StateProcessID }

func (s addSelfieStep) run(ctx context.Context, session *Session, input *Input) ([]Reason, error) {
	resp, err := s.m.callUploadSelfie(ctx, session, veriscan.UploadSelfieRequest{
		VendorSessionID: session.VendorSessionID,
		Image:           input.SelfieImage,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Accepted {
		return []Reason{ReasonVendorRejected}, nil
	}
	session.SelfieUploaded = true
	return nil, nil
}

// ---------------------------------------------------------------------------
// ProcessId / ProcessFace
// ---------------------------------------------------------------------------

type processIDStep struct{ m *Machine }

func (processIDStep) state() State                { return StateProcessID }
func (processIDStep) ready(*Session, *Input) bool { return true }

func (processIDStep) transition(session *Session) State {
	if session.Kind.RequiresSelfie() {
		return StateProcessFace
	}
	return StateGetOnboardingStatus
}

func (s processIDStep) run(ctx context.Context, session *Session, input *Input) ([]Reason, error) {
	resp, err := s.m.callProcess(ctx, session, "id")
	if err != nil {
		return nil, err
	}
	if !resp.Accepted {
		return []Reason{ReasonVendorRejected}, nil
	}
	return nil, nil
}

type processFaceStep struct{ m *Machine }

func (processFaceStep) state() State                { return StateProcessFace }
func (processFaceStep) ready(*Session, *Input) bool { return true }
func (processFaceStep) transition(*Session) State   { return StateGetOnboardingStatus }

func (s processFaceStep) run(ctx context.Context, session *Session, input *Input) ([]Reason, error) {
	resp, err := s.m.callProcess(ctx, session, "face")
	if err != nil {
		return nil, err
	}
	if !resp.Accepted {
		return []Reason{ReasonVendorRejected}, nil
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// GetOnboardingStatus / FetchScores
// ---------------------------------------------------------------------------

type statusStep struct{ m *Machine }

func (statusStep) state() State                { return StateGetOnboardingStatus }
func (statusStep) ready(*Session, *Input) bool { return true }
func (statusStep) transition(*Session) State   { return StateFetchScores }

func (s statusStep) run(ctx context.Context, session *Session, input *Input) ([]Reason, error) {
	_, err := s.m.callStatus(ctx, session)
	if err != nil {
		return nil, err
	}
	return nil, nil
}

type fetchScoresStep struct{ m *Machine }

func (fetchScoresStep) state() State                { return StateFetchScores }
func (fetchScoresStep) ready(*Session, *Input) bool { return true }
func (fetchScoresStep) transition(*Session) State   { return StateComplete }

func (s fetchScoresStep) run(ctx context.Context, session *Session, input *Input) ([]Reason, error) {
	resp, err := s.m.callScores(ctx, session)
	if err != nil {
		return nil, err
	}

	session.DocumentScore = resp.DocumentScore
	session.FaceMatchScore = resp.FaceMatchScore
	session.ScoresReady = true
	if resp.Expired {
		return []Reason{ReasonExpired}, nil
	}
	return nil, nil
}
