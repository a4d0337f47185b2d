package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vouch/internal/docverify"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/httputil"
	"vouch/pkg/requestcontext"
)

// Handler wires document verification endpoints to the docverify service.
type Handler struct {
	service *docverify.Service
	logger  *slog.Logger
}

// New constructs a docverify handler with its dependencies.
func New(service *docverify.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts document verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents/onboarding", h.HandleStartOnboarding)
	r.Post("/documents/{session_id}/sides", h.HandleSubmitSide)
	r.Post("/documents/{session_id}/selfie", h.HandleSubmitSelfie)
	r.Post("/documents/{session_id}/consent", h.HandleSubmitConsent)
	r.Get("/documents/{session_id}", h.HandleGetStatus)
	r.Get("/documents/{session_id}/token", h.HandleGetToken)
}

// HandleStartOnboarding handles POST /documents/onboarding requests.
func (h *Handler) HandleStartOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenant := requestcontext.TenantID(ctx)
	if tenant == (id.TenantID{}) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "tenant context required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[StartOnboardingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.StartOnboarding(ctx, req.ParsedSubject(), tenant, req.ParsedWorkflow(), req.ParsedKind())
	if err != nil {
		h.logger.ErrorContext(ctx, "start document onboarding failed",
			"request_id", requestID,
			"subject_id", req.SubjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromSession(session))
}

// HandleSubmitSide handles POST /documents/{session_id}/sides requests.
func (h *Handler) HandleSubmitSide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var (
		progress *docverify.Progress
		err      error
	)
	if req.Side == "front" {
		progress, err = h.service.SubmitFront(ctx, sessionID, req.ParsedImage())
	} else {
		progress, err = h.service.SubmitBack(ctx, sessionID, req.ParsedImage())
	}
	h.writeProgress(w, r, progress, err, "submit document side")
}

// HandleSubmitSelfie handles POST /documents/{session_id}/selfie requests.
func (h *Handler) HandleSubmitSelfie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SelfieRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	progress, err := h.service.SubmitSelfie(ctx, sessionID, req.ParsedImage())
	h.writeProgress(w, r, progress, err, "submit selfie")
}

// HandleSubmitConsent handles POST /documents/{session_id}/consent requests.
func (h *Handler) HandleSubmitConsent(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	progress, err := h.service.SubmitConsent(r.Context(), sessionID)
	h.writeProgress(w, r, progress, err, "submit consent")
}

// HandleGetStatus handles GET /documents/{session_id} requests. Polling this
// endpoint also pumps any vendor-side asynchronous processing forward.
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	progress, err := h.service.Poll(r.Context(), sessionID)
	h.writeProgress(w, r, progress, err, "poll document session")
}

// HandleGetToken handles GET /documents/{session_id}/token requests.
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	token, err := h.service.ClientToken(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{ClientToken: token})
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.DocSessionID, bool) {
	sessionID, err := id.ParseDocSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DocSessionID{}, false
	}
	return sessionID, true
}

func (h *Handler) writeProgress(w http.ResponseWriter, r *http.Request, progress *docverify.Progress, err error, action string) {
	ctx := r.Context()
	if err != nil {
		h.logger.ErrorContext(ctx, action+" failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProgress(progress))
}
