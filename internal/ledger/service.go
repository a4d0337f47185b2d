package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"vouch/internal/ledger/seal"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/requestcontext"
)

// Service writes and reads ledger entries. It owns the write ordering
// contract: a Request row exists before its vendor call starts, and a Result
// row is appended for every completed call, error or not.
type Service struct {
	store  Store
	sealer *seal.Sealer
	logger *slog.Logger
}

func NewService(store Store, sealer *seal.Sealer, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if sealer == nil {
		return nil, errors.New("ledger sealer is required")
	}
	return &Service{store: store, sealer: sealer, logger: logger}, nil
}

// RecordRequest appends the request row for a vendor call about to be made.
func (s *Service) RecordRequest(ctx context.Context, intentID id.IntentID, subject id.SubjectID, req vendors.Request) (*Request, error) {
	record := Request{
		ID:        id.NewRequestID(),
		IntentID:  intentID,
		SubjectID: subject,
		API:       req.API(),
		Params:    req.Params(),
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.CreateRequest(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record ledger request")
	}
	return &record, nil
}

// RecordSuccess appends the result row for a successful vendor call. The
// scrubbed copy is stored in the clear; the raw payload is sealed.
func (s *Service) RecordSuccess(ctx context.Context, request *Request, resp vendors.Response) (*Result, error) {
	scrubbed, err := json.Marshal(resp.Scrub())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal scrubbed response")
	}
	sealed, err := s.sealer.Seal(resp.Raw())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "seal raw response")
	}

	record := Result{
		ID:        id.NewResultID(),
		RequestID: request.ID,
		API:       resp.API(),
		Scrubbed:  scrubbed,
		Sealed:    sealed,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.CreateResult(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record ledger result")
	}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "ledger result recorded",
			"request_id", request.ID.String(),
			"api", string(record.API),
		)
	}
	return &record, nil
}

// RecordError appends the result row for a failed vendor call. Only the
// normalized category and message are stored; raw error bodies never reach
// the ledger.
func (s *Service) RecordError(ctx context.Context, request *Request, callErr error) (*Result, error) {
	record := Result{
		ID:            id.NewResultID(),
		RequestID:     request.ID,
		API:           request.API,
		IsError:       true,
		ErrorCategory: vendors.CategoryOf(callErr),
		ErrorMessage:  callErr.Error(),
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.store.CreateResult(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record ledger error result")
	}
	return &record, nil
}

// LatestSuccessfulResult returns the newest non-error result for a subject
// and vendor API.
func (s *Service) LatestSuccessfulResult(ctx context.Context, subject id.SubjectID, api vendorapi.API) (*Result, error) {
	record, err := s.store.LatestSuccessfulResult(ctx, subject, api)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no successful result for subject and api")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read latest successful result")
	}
	return record, nil
}

// Result returns a result row by ID.
func (s *Service) Result(ctx context.Context, resultID id.ResultID) (*Result, error) {
	record, err := s.store.GetResult(ctx, resultID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ledger result not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read ledger result")
	}
	return record, nil
}

// Unseal decrypts a result's raw payload.
func (s *Service) Unseal(result *Result) ([]byte, error) {
	if result.IsError {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "error results carry no sealed payload")
	}
	raw, err := s.sealer.Open(result.Sealed)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unseal raw response")
	}
	return raw, nil
}
