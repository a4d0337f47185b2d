// Package veriscan adapts the Veriscan document capture/processing API.
//
// Veriscan is session-based and multi-step: create a session, upload document
// sides and a selfie, trigger processing, poll status, fetch scores. It is
// driven by the document verification state machine rather than the flat
// waterfall, so the adapter exposes one typed call per protocol step instead
// of a single Invoke.
package veriscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
)

// Side identifies a document side.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// DocType is Veriscan's detected document classification.
type DocType string

const (
	DocTypeDriversLicense DocType = "drivers_license"
	DocTypePassport       DocType = "passport"
	DocTypeIDCard         DocType = "id_card"
	DocTypeUnknown        DocType = "unknown"
)

// SideFailure is a vendor-reported capture problem for one side.
type SideFailure string

const (
	FailureGlare       SideFailure = "glare"
	FailureBlur        SideFailure = "blur"
	FailureCutoff      SideFailure = "document_cutoff"
	FailureExpired     SideFailure = "document_expired"
	FailureUnsupported SideFailure = "unsupported_document"
)

// ErrNotReady signals asynchronous processing has not finished. For Veriscan
// this is retryable: the caller polls again. Other vendors never produce it.
var ErrNotReady = errors.New("veriscan: results not ready")

// ---------------------------------------------------------------------------
// Typed requests
// ---------------------------------------------------------------------------

// CreateSessionRequest opens a vendor capture session.
type CreateSessionRequest struct {
	Reference       string
	RequireSelfie   bool
	RequireBackside bool
}

func (CreateSessionRequest) API() vendorapi.API { return vendorapi.VeriscanDoc }

func (r CreateSessionRequest) Params() map[string]string {
	return map[string]string{
		"reference":      r.Reference,
		"require_selfie": fmt.Sprintf("%t", r.RequireSelfie),
	}
}

// UploadSideRequest submits one captured document side.
type UploadSideRequest struct {
	VendorSessionID string
	Side            Side
	Image           []byte
}

func (UploadSideRequest) API() vendorapi.API { return vendorapi.VeriscanDoc }

func (r UploadSideRequest) Params() map[string]string {
	return map[string]string{
		"vendor_session_id": r.VendorSessionID,
		"side":              string(r.Side),
		"image_bytes":       fmt.Sprintf("%d", len(r.Image)),
	}
}

// UploadSelfieRequest submits the selfie capture.
type UploadSelfieRequest struct {
	VendorSessionID string
	Image           []byte
}

func (UploadSelfieRequest) API() vendorapi.API { return vendorapi.VeriscanDoc }

func (r UploadSelfieRequest) Params() map[string]string {
	return map[string]string{
		"vendor_session_id": r.VendorSessionID,
		"image_bytes":       fmt.Sprintf("%d", len(r.Image)),
	}
}

// ProcessRequest triggers server-side processing ("id" or "face").
type ProcessRequest struct {
	VendorSessionID string
	Target          string
}

func (ProcessRequest) API() vendorapi.API { return vendorapi.VeriscanDoc }

func (r ProcessRequest) Params() map[string]string {
	return map[string]string{"vendor_session_id": r.VendorSessionID, "target": r.Target}
}

// StatusRequest polls the session status or fetches final scores.
type StatusRequest struct {
	VendorSessionID string
	Stage           string // "status" or "scores"
}

func (StatusRequest) API() vendorapi.API { return vendorapi.VeriscanDoc }

func (r StatusRequest) Params() map[string]string {
	return map[string]string{"vendor_session_id": r.VendorSessionID, "stage": r.Stage}
}

// ---------------------------------------------------------------------------
// Typed responses
// ---------------------------------------------------------------------------

type baseResponse struct{ raw []byte }

func (*baseResponse) API() vendorapi.API { return vendorapi.VeriscanDoc }
func (b *baseResponse) Raw() []byte      { return b.raw }

// SessionResponse holds the vendor session credentials.
type SessionResponse struct {
	baseResponse
	VendorSessionID string    `json:"vendor_session_id"`
	ClientToken     string    `json:"client_token"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Scrub drops the client token; it is a bearer credential.
func (r *SessionResponse) Scrub() any {
	return struct {
		VendorSessionID string    `json:"vendor_session_id"`
		ExpiresAt       time.Time `json:"expires_at"`
	}{r.VendorSessionID, r.ExpiresAt}
}

// SideResponse is the per-side capture result.
type SideResponse struct {
	baseResponse
	Side     Side          `json:"side"`
	DocType  DocType       `json:"doc_type"`
	Failures []SideFailure `json:"failures"`
}

func (r *SideResponse) Scrub() any {
	return struct {
		Side     Side          `json:"side"`
		DocType  DocType       `json:"doc_type"`
		Failures []SideFailure `json:"failures"`
	}{r.Side, r.DocType, r.Failures}
}

// AckResponse is a bare acknowledgement (selfie upload, process triggers).
type AckResponse struct {
	baseResponse
	Accepted bool `json:"accepted"`
}

func (r *AckResponse) Scrub() any {
	return struct {
		Accepted bool `json:"accepted"`
	}{r.Accepted}
}

// StatusResponse reports session progress.
type StatusResponse struct {
	baseResponse
	Complete bool `json:"complete"`
}

func (r *StatusResponse) Scrub() any {
	return struct {
		Complete bool `json:"complete"`
	}{r.Complete}
}

// ScoresResponse carries the final document and face match scores.
type ScoresResponse struct {
	baseResponse
	DocumentScore  float64 `json:"document_score"`
	FaceMatchScore float64 `json:"face_match_score"`
	Expired        bool    `json:"expired"`
}

func (r *ScoresResponse) Scrub() any {
	return struct {
		DocumentScore  float64 `json:"document_score"`
		FaceMatchScore float64 `json:"face_match_score"`
		Expired        bool    `json:"expired"`
	}{r.DocumentScore, r.FaceMatchScore, r.Expired}
}

// ---------------------------------------------------------------------------
// Transport + adapter
// ---------------------------------------------------------------------------

// Transport performs the wire calls.
type Transport interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionResponse, error)
	UploadSide(ctx context.Context, req UploadSideRequest) (*SideResponse, error)
	UploadSelfie(ctx context.Context, req UploadSelfieRequest) (*AckResponse, error)
	Process(ctx context.Context, req ProcessRequest) (*AckResponse, error)
	Status(ctx context.Context, req StatusRequest) (*StatusResponse, error)
	Scores(ctx context.Context, req StatusRequest) (*ScoresResponse, error)
}

// Adapter is the vendor call adapter for Veriscan.
type Adapter struct {
	transport Transport
	timeout   time.Duration
}

func NewAdapter(transport Transport, timeout time.Duration) *Adapter {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Adapter{transport: transport, timeout: timeout}
}

func (a *Adapter) API() vendorapi.API { return vendorapi.VeriscanDoc }

// Retryable treats "not ready" as retryable on top of the generic transport
// categories. This classification is specific to Veriscan's asynchronous
// processing model and must not be generalized to other vendors.
func (a *Adapter) Retryable(err error) bool {
	if errors.Is(err, ErrNotReady) {
		return true
	}
	return vendors.IsRetryable(err)
}

func (a *Adapter) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.transport.CreateSession(ctx, req)
	if err != nil {
		return nil, classify(err, "create session")
	}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func (a *Adapter) UploadSide(ctx context.Context, req UploadSideRequest) (*SideResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.transport.UploadSide(ctx, req)
	if err != nil {
		return nil, classify(err, "upload side")
	}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func (a *Adapter) UploadSelfie(ctx context.Context, req UploadSelfieRequest) (*AckResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.transport.UploadSelfie(ctx, req)
	if err != nil {
		return nil, classify(err, "upload selfie")
	}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func (a *Adapter) Process(ctx context.Context, req ProcessRequest) (*AckResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.transport.Process(ctx, req)
	if err != nil {
		return nil, classify(err, "process "+req.Target)
	}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func (a *Adapter) Status(ctx context.Context, req StatusRequest) (*StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.transport.Status(ctx, req)
	if err != nil {
		return nil, classify(err, "status")
	}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func (a *Adapter) Scores(ctx context.Context, req StatusRequest) (*ScoresResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.transport.Scores(ctx, req)
	if err != nil {
		return nil, classify(err, "scores")
	}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func ensureRaw(base *baseResponse, full any) {
	if base.raw == nil {
		base.raw, _ = json.Marshal(full)
	}
}

func classify(err error, op string) error {
	var ce *vendors.CallError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, ErrNotReady) {
		notReady := vendors.NewCallError(vendors.ErrorNotReady, vendorapi.VeriscanDoc, op+": results not ready", err)
		notReady.Retryable = true
		return notReady
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return vendors.NewCallError(vendors.ErrorTimeout, vendorapi.VeriscanDoc, op+" timed out", err)
	}
	return vendors.NewCallError(vendors.ErrorTransport, vendorapi.VeriscanDoc, op+" failed", err)
}

// ---------------------------------------------------------------------------
// Sandbox transport
// ---------------------------------------------------------------------------

// SandboxTransport simulates Veriscan's sandbox. Sessions live in memory;
// client tokens are short-lived HS256 JWTs like the real vendor issues.
type SandboxTransport struct {
	SigningKey []byte
	TokenTTL   time.Duration

	// DetectedType is reported for every uploaded side.
	DetectedType DocType

	// BackDetectedType, when set, overrides DetectedType for back sides.
	// Lets tests exercise the front/back type consistency check.
	BackDetectedType DocType

	// SideFailures is reported on every uploaded side.
	SideFailures []SideFailure

	// StatusPollsUntilComplete makes Status report not-complete this many
	// times before succeeding.
	StatusPollsUntilComplete int

	DocumentScore  float64
	FaceMatchScore float64
	Expired        bool

	mu       sync.Mutex
	sessions map[string]*sandboxSession
}

type sandboxSession struct {
	statusPolls int
	processed   bool
}

func (t *SandboxTransport) session(id string) *sandboxSession {
	if t.sessions == nil {
		t.sessions = make(map[string]*sandboxSession)
	}
	s, ok := t.sessions[id]
	if !ok {
		s = &sandboxSession{}
		t.sessions[id] = s
	}
	return s
}

func (t *SandboxTransport) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ttl := t.TokenTTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	sessionID := uuid.NewString()
	expires := time.Now().Add(ttl)

	claims := jwt.MapClaims{
		"sid": sessionID,
		"ref": req.Reference,
		"exp": jwt.NewNumericDate(expires),
		"iat": jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("sign client token: %w", err)
	}

	t.session(sessionID)
	resp := &SessionResponse{VendorSessionID: sessionID, ClientToken: token, ExpiresAt: expires}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func (t *SandboxTransport) UploadSide(ctx context.Context, req UploadSideRequest) (*SideResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	docType := t.DetectedType
	if req.Side == SideBack && t.BackDetectedType != "" {
		docType = t.BackDetectedType
	}
	if docType == "" {
		docType = DocTypeDriversLicense
	}
	resp := &SideResponse{Side: req.Side, DocType: docType, Failures: append([]SideFailure(nil), t.SideFailures...)}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func (t *SandboxTransport) UploadSelfie(ctx context.Context, req UploadSelfieRequest) (*AckResponse, error) {
	resp := &AckResponse{Accepted: true}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func (t *SandboxTransport) Process(ctx context.Context, req ProcessRequest) (*AckResponse, error) {
	t.mu.Lock()
	t.session(req.VendorSessionID).processed = true
	t.mu.Unlock()
	resp := &AckResponse{Accepted: true}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func (t *SandboxTransport) Status(ctx context.Context, req StatusRequest) (*StatusResponse, error) {
	t.mu.Lock()
	session := t.session(req.VendorSessionID)
	session.statusPolls++
	complete := session.statusPolls > t.StatusPollsUntilComplete
	t.mu.Unlock()

	if !complete {
		return nil, ErrNotReady
	}
	resp := &StatusResponse{Complete: true}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}

func (t *SandboxTransport) Scores(ctx context.Context, req StatusRequest) (*ScoresResponse, error) {
	t.mu.Lock()
	processed := t.session(req.VendorSessionID).processed
	t.mu.Unlock()

	if !processed {
		return nil, ErrNotReady
	}
	resp := &ScoresResponse{DocumentScore: t.DocumentScore, FaceMatchScore: t.FaceMatchScore, Expired: t.Expired}
	ensureRaw(&resp.baseResponse, resp)
	return resp, nil
}
