package eligibility

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"vouch/internal/intent"
	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	"vouch/internal/vendors/kitesignal"
	"vouch/internal/vendors/lumen"
	"vouch/internal/vendors/sentriwatch"
	"vouch/internal/vendors/trustlane"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// =============================================================================
// Eligibility Service Test Suite
// =============================================================================
// Justification for unit tests: the frozen eligible-vendor list is the input
// every waterfall run is replayed against. Entitlement gating, field
// completeness gating, and priority ordering each need direct exercise.

type EligibilitySuite struct {
	suite.Suite
	vaultStore   *vault.MemoryVault
	entitlements *vault.MemoryEntitlements
	service      *Service

	tenant  id.TenantID
	subject id.SubjectID
}

func TestEligibilitySuite(t *testing.T) {
	suite.Run(t, new(EligibilitySuite))
}

func (s *EligibilitySuite) SetupTest() {
	s.vaultStore = vault.NewMemoryVault()
	s.entitlements = vault.NewMemoryEntitlements()
	s.tenant = id.NewTenantID()
	s.subject = id.NewSubjectID()

	registry := vendors.NewRegistry(
		trustlane.NewAdapter(trustlane.SandboxTransport{}, 0),
		lumen.NewAdapter(lumen.SandboxTransport{Found: true}, 0),
		sentriwatch.NewAdapter(sentriwatch.SandboxTransport{}, 0),
		kitesignal.NewAdapter(kitesignal.SandboxTransport{}, 0),
	)

	var err error
	s.service, err = NewService(s.vaultStore, s.entitlements, s.vaultStore, registry, nil)
	s.Require().NoError(err)
}

// freshIdentities gives a subtest its own tenant and subject. Entitlement
// grants and vault writes accumulate per identity, so sharing them would
// leak state between subtests.
func (s *EligibilitySuite) freshIdentities() {
	s.tenant = id.NewTenantID()
	s.subject = id.NewSubjectID()
}

func (s *EligibilitySuite) putFullProfile() {
	s.vaultStore.Put(s.subject, map[vault.Field]string{
		vault.FieldFirstName:    "Ada",
		vault.FieldLastName:     "Sample",
		vault.FieldDOB:          "1990-01-02",
		vault.FieldSSN:          "123-45-6789",
		vault.FieldAddressLine1: "1 Main St",
		vault.FieldZip:          "94105",
		vault.FieldUserAgent:    "Mozilla/5.0",
		vault.FieldIPAddress:    "203.0.113.10",
	})
}

func (s *EligibilitySuite) TestResolve() {
	ctx := context.Background()

	s.Run("full profile and full entitlements yields the full priority order", func() {
		s.freshIdentities()
		s.putFullProfile()
		s.entitlements.Enable(s.tenant, vendorapi.All()...)

		list, err := s.service.Resolve(ctx, s.tenant, s.subject, intent.KindOnboardingKYC)
		s.Require().NoError(err)
		s.Equal([]vendorapi.API{
			vendorapi.TrustlaneKYC,
			vendorapi.LumenKYC,
			vendorapi.SentriwatchAML,
			vendorapi.KitesignalDevice,
		}, list.Eligible)
	})

	s.Run("missing entitlement removes the vendor without erroring", func() {
		s.freshIdentities()
		s.putFullProfile()
		s.entitlements.Enable(s.tenant, vendorapi.LumenKYC, vendorapi.SentriwatchAML)

		list, err := s.service.Resolve(ctx, s.tenant, s.subject, intent.KindOnboardingKYC)
		s.Require().NoError(err)
		s.Equal([]vendorapi.API{vendorapi.LumenKYC, vendorapi.SentriwatchAML}, list.Eligible)
	})

	s.Run("missing required fields remove vendors needing them", func() {
		s.freshIdentities()
		// No address or device fields: trustlane and kitesignal drop out.
		s.vaultStore.Put(s.subject, map[vault.Field]string{
			vault.FieldFirstName: "Ada",
			vault.FieldLastName:  "Sample",
			vault.FieldDOB:       "1990-01-02",
		})
		s.entitlements.Enable(s.tenant, vendorapi.All()...)

		list, err := s.service.Resolve(ctx, s.tenant, s.subject, intent.KindOnboardingKYC)
		s.Require().NoError(err)
		s.Equal([]vendorapi.API{vendorapi.LumenKYC, vendorapi.SentriwatchAML}, list.Eligible)
	})

	s.Run("watchlist kind resolves to the screening vendor only", func() {
		s.freshIdentities()
		s.putFullProfile()
		s.entitlements.Enable(s.tenant, vendorapi.All()...)

		list, err := s.service.Resolve(ctx, s.tenant, s.subject, intent.KindWatchlistCheck)
		s.Require().NoError(err)
		s.Equal([]vendorapi.API{vendorapi.SentriwatchAML}, list.Eligible)
	})

	s.Run("document verification kind never enters the waterfall", func() {
		s.freshIdentities()
		s.putFullProfile()
		s.entitlements.Enable(s.tenant, vendorapi.All()...)

		list, err := s.service.Resolve(ctx, s.tenant, s.subject, intent.KindDocumentVerification)
		s.Require().NoError(err)
		s.Empty(list.Eligible)
	})

	s.Run("seqno pins the vault consistency point", func() {
		s.freshIdentities()
		s.putFullProfile()
		s.entitlements.Enable(s.tenant, vendorapi.All()...)

		before, err := s.service.Resolve(ctx, s.tenant, s.subject, intent.KindOnboardingKYC)
		s.Require().NoError(err)

		s.vaultStore.Put(s.subject, map[vault.Field]string{vault.FieldEmail: "ada@example.com"})

		after, err := s.service.Resolve(ctx, s.tenant, s.subject, intent.KindOnboardingKYC)
		s.Require().NoError(err)
		s.Greater(int64(after.Seqno), int64(before.Seqno))
	})

	s.Run("degraded vault surfaces a vault unavailable code", func() {
		s.freshIdentities()
		s.putFullProfile()
		s.entitlements.Enable(s.tenant, vendorapi.All()...)
		s.vaultStore.SetDegraded(true)
		defer s.vaultStore.SetDegraded(false)

		_, err := s.service.Resolve(ctx, s.tenant, s.subject, intent.KindOnboardingKYC)
		s.True(dErrors.HasCode(err, dErrors.CodeVaultUnavailable))
	})
}
