package rules

import (
	"vouch/internal/signals"
	id "vouch/pkg/domain"
)

// Rule set names are decisioning targets; versions are managed by the store.
const (
	RuleSetKYCDefault      = "kyc.default"
	RuleSetDocumentDefault = "document.default"
)

// DefaultKYCRuleSet builds the shipped KYC rule set at the given version.
// Predicates live in code; the store only tracks version activation.
func DefaultKYCRuleSet(setID id.RuleSetID, version int) *RuleSet[KYCFeatures] {
	return &RuleSet[KYCFeatures]{
		ID:      setID,
		Name:    RuleSetKYCDefault,
		Version: version,
		Rules: []Rule[KYCFeatures]{
			{Name: "id.not_located", Class: ClassFail, When: has[KYCFeatures](signals.IDNotLocated)},
			{Name: "ssn.does_not_match", Class: ClassFail, When: has[KYCFeatures](signals.SSNDoesNotMatch)},
			{Name: "dob.does_not_match", Class: ClassFail, When: has[KYCFeatures](signals.DOBDoesNotMatch)},
			{Name: "name.does_not_match", Class: ClassFail, When: has[KYCFeatures](signals.NameDoesNotMatch)},
			{Name: "address.does_not_match", Class: ClassFail, When: has[KYCFeatures](signals.AddressDoesNotMatch)},
			{Name: "identity.deceased", Class: ClassFail, When: has[KYCFeatures](signals.IdentityDeceased)},
			{Name: "watchlist.hit", Class: ClassFail, When: has[KYCFeatures](signals.WatchlistHit)},
			{Name: "watchlist.pep", Class: ClassFail, When: has[KYCFeatures](signals.WatchlistPEP)},
			{Name: "device.emulator", Class: ClassFail, When: has[KYCFeatures](signals.DeviceEmulator)},
			{Name: "status.id_located", Class: ClassPass, When: has[KYCFeatures](signals.StatusIDLocated)},
			{Name: "device.trusted", Class: ClassPass, When: has[KYCFeatures](signals.DeviceTrusted)},
		},
	}
}

// DefaultDocumentRuleSet builds the shipped document rule set.
func DefaultDocumentRuleSet(setID id.RuleSetID, version int) *RuleSet[DocumentFeatures] {
	return &RuleSet[DocumentFeatures]{
		ID:      setID,
		Name:    RuleSetDocumentDefault,
		Version: version,
		Rules: []Rule[DocumentFeatures]{
			{Name: "document.expired", Class: ClassFail, When: has[DocumentFeatures](signals.DocumentExpired)},
			{Name: "document.low_score", Class: ClassFail, When: has[DocumentFeatures](signals.DocumentLowScore)},
			{Name: "document.type_mismatch", Class: ClassFail, When: has[DocumentFeatures](signals.DocumentTypeMismatch)},
			{Name: "selfie.does_not_match", Class: ClassFail, When: has[DocumentFeatures](signals.SelfieDoesNotMatch)},
			{Name: "document.ok", Class: ClassPass, When: has[DocumentFeatures](signals.DocumentOK)},
		},
	}
}

type signalHaver interface {
	Has(code signals.ReasonCode) bool
}

func has[F signalHaver](code signals.ReasonCode) func(F) bool {
	return func(features F) bool { return features.Has(code) }
}
