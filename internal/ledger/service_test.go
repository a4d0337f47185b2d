package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"vouch/internal/ledger/seal"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// =============================================================================
// Ledger Service Test Suite
// =============================================================================
// Justification for unit tests: the ledger's write contract (request before
// call, result after, scrub-in-the-clear / raw-sealed split) is what makes
// decisions auditable. These paths must be pinned independently of any
// orchestration flow.

type fakeRequest struct {
	api    vendorapi.API
	params map[string]string
}

func (r fakeRequest) API() vendorapi.API        { return r.api }
func (r fakeRequest) Params() map[string]string { return r.params }

type fakeResponse struct {
	api      vendorapi.API
	scrubbed any
	raw      []byte
}

func (r fakeResponse) API() vendorapi.API { return r.api }
func (r fakeResponse) Scrub() any         { return r.scrubbed }
func (r fakeResponse) Raw() []byte        { return r.raw }

type LedgerServiceSuite struct {
	suite.Suite
	store   *MemoryStore
	sealer  *seal.Sealer
	service *Service
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.store = NewMemoryStore()

	var err error
	s.sealer, err = seal.New(bytes.Repeat([]byte{0x07}, 32))
	s.Require().NoError(err)

	s.service, err = NewService(s.store, s.sealer, nil)
	s.Require().NoError(err)
}

func (s *LedgerServiceSuite) recordRequest(subject id.SubjectID, api vendorapi.API) *Request {
	request, err := s.service.RecordRequest(context.Background(), id.NewIntentID(), subject, fakeRequest{
		api:    api,
		params: map[string]string{"reference": "ref-1"},
	})
	s.Require().NoError(err)
	return request
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *LedgerServiceSuite) TestNewService() {
	s.Run("nil store returns error", func() {
		_, err := NewService(nil, s.sealer, nil)
		s.Error(err)
		s.Contains(err.Error(), "ledger store is required")
	})

	s.Run("nil sealer returns error", func() {
		_, err := NewService(s.store, nil, nil)
		s.Error(err)
		s.Contains(err.Error(), "ledger sealer is required")
	})
}

// =============================================================================
// Record Tests
// =============================================================================

func (s *LedgerServiceSuite) TestRecordSuccess() {
	ctx := context.Background()
	subject := id.NewSubjectID()
	request := s.recordRequest(subject, vendorapi.TrustlaneKYC)

	raw := []byte(`{"summary":"id_located","ssn":"123-45-6789"}`)
	result, err := s.service.RecordSuccess(ctx, request, fakeResponse{
		api:      vendorapi.TrustlaneKYC,
		scrubbed: map[string]string{"summary": "id_located"},
		raw:      raw,
	})
	s.Require().NoError(err)

	s.Run("scrubbed copy is stored in the clear", func() {
		var scrubbed map[string]string
		s.Require().NoError(json.Unmarshal(result.Scrubbed, &scrubbed))
		s.Equal("id_located", scrubbed["summary"])
		s.NotContains(string(result.Scrubbed), "123-45-6789")
	})

	s.Run("raw payload is sealed, not stored as plaintext", func() {
		s.NotContains(string(result.Sealed), "123-45-6789")

		opened, err := s.service.Unseal(result)
		s.NoError(err)
		s.Equal(raw, opened)
	})

	s.Run("result references its request", func() {
		s.Equal(request.ID, result.RequestID)
		s.False(result.IsError)
	})
}

func (s *LedgerServiceSuite) TestRecordError() {
	ctx := context.Background()
	request := s.recordRequest(id.NewSubjectID(), vendorapi.LumenKYC)

	callErr := vendors.NewCallError(vendors.ErrorTimeout, vendorapi.LumenKYC, "deadline exceeded", nil)
	result, err := s.service.RecordError(ctx, request, callErr)
	s.Require().NoError(err)

	s.True(result.IsError)
	s.Equal(vendors.ErrorTimeout, result.ErrorCategory)
	s.Empty(result.Sealed)

	s.Run("error results carry no sealed payload", func() {
		_, err := s.service.Unseal(result)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// =============================================================================
// LatestSuccessfulResult Tests
// =============================================================================

func (s *LedgerServiceSuite) TestLatestSuccessfulResult() {
	ctx := context.Background()
	subject := id.NewSubjectID()

	s.Run("no results returns not found code", func() {
		_, err := s.service.LatestSuccessfulResult(ctx, subject, vendorapi.TrustlaneKYC)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("error results are not considered usable", func() {
		request := s.recordRequest(subject, vendorapi.TrustlaneKYC)
		callErr := vendors.NewCallError(vendors.ErrorTransport, vendorapi.TrustlaneKYC, "connection reset", nil)
		_, err := s.service.RecordError(ctx, request, callErr)
		s.Require().NoError(err)

		_, err = s.service.LatestSuccessfulResult(ctx, subject, vendorapi.TrustlaneKYC)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("newest success wins", func() {
		first := s.recordRequest(subject, vendorapi.TrustlaneKYC)
		older, err := s.service.RecordSuccess(ctx, first, fakeResponse{
			api: vendorapi.TrustlaneKYC, scrubbed: map[string]string{"summary": "older"}, raw: []byte("{}"),
		})
		s.Require().NoError(err)

		second := s.recordRequest(subject, vendorapi.TrustlaneKYC)
		newer, err := s.service.RecordSuccess(ctx, second, fakeResponse{
			api: vendorapi.TrustlaneKYC, scrubbed: map[string]string{"summary": "newer"}, raw: []byte("{}"),
		})
		s.Require().NoError(err)

		latest, err := s.service.LatestSuccessfulResult(ctx, subject, vendorapi.TrustlaneKYC)
		s.NoError(err)
		s.Equal(newer.ID, latest.ID)
		s.NotEqual(older.ID, latest.ID)
	})

	s.Run("results are scoped to subject and api", func() {
		other := id.NewSubjectID()
		_, err := s.service.LatestSuccessfulResult(ctx, other, vendorapi.TrustlaneKYC)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		_, err = s.service.LatestSuccessfulResult(ctx, subject, vendorapi.SentriwatchAML)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
