package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vouch/internal/decision"
	"vouch/internal/intent"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/httputil"
	"vouch/pkg/requestcontext"
)

// Service defines the interface for decision operations.
type Service interface {
	RunWaterfall(ctx context.Context, subject id.SubjectID, tenant id.TenantID, workflow *id.WorkflowID, kind intent.Kind) (*decision.Outcome, error)
	DecideDocument(ctx context.Context, intentID id.IntentID) (*decision.Outcome, error)
	GetRequirements(ctx context.Context, intentID id.IntentID) (*decision.Requirements, error)
}

// Handler wires decision endpoints to the decision service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a decision handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts decision endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/decisions/waterfall", h.HandleRunWaterfall)
	r.Post("/decisions/{intent_id}/document", h.HandleDecideDocument)
	r.Get("/decisions/{intent_id}/requirements", h.HandleGetRequirements)
}

// HandleRunWaterfall handles POST /decisions/waterfall requests.
func (h *Handler) HandleRunWaterfall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	// Require tenant context
	tenant := requestcontext.TenantID(ctx)
	if tenant == (id.TenantID{}) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "tenant context required"))
		return
	}

	// Decode and validate request
	req, ok := httputil.DecodeAndPrepare[WaterfallRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	// Call service
	outcome, err := h.service.RunWaterfall(ctx, req.ParsedSubject(), tenant, req.ParsedWorkflow(), req.ParsedKind())
	if err != nil {
		h.logger.ErrorContext(ctx, "waterfall run failed",
			"request_id", requestID,
			"subject_id", req.SubjectID,
			"kind", req.Kind,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	// Log success
	h.logger.InfoContext(ctx, "waterfall run decided",
		"request_id", requestID,
		"intent_id", outcome.IntentID.String(),
		"kind", req.Kind,
		"status", string(outcome.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// Return response
	httputil.WriteJSON(w, http.StatusOK, FromOutcome(outcome))
}

// HandleDecideDocument handles POST /decisions/{intent_id}/document.
func (h *Handler) HandleDecideDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	intentID, err := id.ParseIntentID(chi.URLParam(r, "intent_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	outcome, err := h.service.DecideDocument(ctx, intentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "document decision failed",
			"request_id", requestID,
			"intent_id", intentID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "document decision made",
		"request_id", requestID,
		"intent_id", intentID.String(),
		"status", string(outcome.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromOutcome(outcome))
}

// HandleGetRequirements handles GET /decisions/{intent_id}/requirements.
func (h *Handler) HandleGetRequirements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	intentID, err := id.ParseIntentID(chi.URLParam(r, "intent_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	requirements, err := h.service.GetRequirements(ctx, intentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get requirements failed",
			"request_id", requestID,
			"intent_id", intentID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRequirements(requirements))
}
