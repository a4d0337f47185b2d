package rules

import (
	"vouch/internal/signals"
)

// KYCFeatures is the feature vector for identity decisioning rule sets.
type KYCFeatures struct {
	Signals *signals.Set
}

// Has reports whether the normalized signal set carries the reason code.
func (f KYCFeatures) Has(code signals.ReasonCode) bool {
	return f.Signals != nil && f.Signals.Has(code)
}

// DocumentFeatures is the feature vector for document verification rule sets.
type DocumentFeatures struct {
	Signals *signals.Set
}

func (f DocumentFeatures) Has(code signals.ReasonCode) bool {
	return f.Signals != nil && f.Signals.Has(code)
}
