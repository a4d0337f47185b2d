// Package eligibility computes the frozen eligible-vendor list for one
// verification attempt. The list is resolved once, before the first vendor
// call, and never re-expanded mid-attempt: data submitted after the attempt
// starts does not widen it.
package eligibility

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"vouch/internal/intent"
	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// List is the frozen outcome of one eligibility resolution. Seqno pins the
// vault consistency point the decision was made against; callers re-check it
// before finalizing an outcome.
type List struct {
	Eligible []vendorapi.API
	Seqno    vault.Seqno
}

// priority orders vendors per intent kind. Primary KYC vendor first, fallback
// second; screening and device checks run after identity data checks.
var priority = map[intent.Kind][]vendorapi.API{
	intent.KindOnboardingKYC: {
		vendorapi.TrustlaneKYC,
		vendorapi.LumenKYC,
		vendorapi.SentriwatchAML,
		vendorapi.KitesignalDevice,
	},
	intent.KindOnboardingKYB: {
		vendorapi.TrustlaneKYC,
		vendorapi.LumenKYC,
		vendorapi.SentriwatchAML,
	},
	intent.KindWatchlistCheck: {
		vendorapi.SentriwatchAML,
	},
	intent.KindDeviceAttestation: {
		vendorapi.KitesignalDevice,
	},
	// Document verification is driven by its own state machine, never the
	// flat waterfall.
	intent.KindDocumentVerification: {},
}

// Service resolves eligibility from tenant entitlements and subject data
// completeness.
type Service struct {
	completeness vault.CompletenessQuery
	entitlements vault.EntitlementQuery
	fields       vault.FieldService
	registry     *vendors.Registry
	logger       *slog.Logger
}

func NewService(
	completeness vault.CompletenessQuery,
	entitlements vault.EntitlementQuery,
	fields vault.FieldService,
	registry *vendors.Registry,
	logger *slog.Logger,
) (*Service, error) {
	if completeness == nil {
		return nil, errors.New("completeness query is required")
	}
	if entitlements == nil {
		return nil, errors.New("entitlement query is required")
	}
	if fields == nil {
		return nil, errors.New("field service is required")
	}
	if registry == nil {
		return nil, errors.New("vendor registry is required")
	}
	return &Service{
		completeness: completeness,
		entitlements: entitlements,
		fields:       fields,
		registry:     registry,
		logger:       logger,
	}, nil
}

// Resolve computes the ordered eligible-vendor list for a subject and intent
// kind. A vendor is eligible when it is wired, the tenant is entitled to it,
// and the subject has every field the vendor requires.
func (s *Service) Resolve(ctx context.Context, tenant id.TenantID, subject id.SubjectID, kind intent.Kind) (*List, error) {
	var (
		populated map[vault.Field]bool
		enabled   map[vendorapi.API]bool
		seqno     vault.Seqno
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		populated, err = s.completeness.PopulatedFields(groupCtx, subject)
		return err
	})
	group.Go(func() error {
		var err error
		enabled, err = s.entitlements.EnabledVendors(groupCtx, tenant)
		return err
	})
	group.Go(func() error {
		var err error
		seqno, err = s.fields.CurrentSeqno(groupCtx, subject)
		return err
	})
	if err := group.Wait(); err != nil {
		if errors.Is(err, vault.ErrDecryptionUnavailable) {
			return nil, dErrors.Wrap(err, dErrors.CodeVaultUnavailable, "resolve eligibility")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve eligibility")
	}

	list := &List{Seqno: seqno}
	for _, api := range priority[kind] {
		invoker, ok := s.registry.Get(api)
		if !ok {
			continue
		}
		if !enabled[api] {
			continue
		}
		if !hasAll(populated, invoker.RequiredFields()) {
			continue
		}
		list.Eligible = append(list.Eligible, api)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "eligibility resolved",
			"subject_id", subject.String(),
			"kind", string(kind),
			"eligible", apiStrings(list.Eligible),
			"seqno", int64(seqno),
		)
	}
	return list, nil
}

func hasAll(populated map[vault.Field]bool, required []vault.Field) bool {
	for _, field := range required {
		if !populated[field] {
			return false
		}
	}
	return true
}

func apiStrings(apis []vendorapi.API) []string {
	out := make([]string, len(apis))
	for i, api := range apis {
		out[i] = string(api)
	}
	return out
}
