package rules

import (
	"context"
	"time"

	id "vouch/pkg/domain"
)

// Record is the persisted identity of one rule set version. Predicates live
// in code; the record keeps the rule names and classes so historical results
// stay interpretable, plus the activation state.
type Record struct {
	ID        id.RuleSetID
	Name      string
	Version   int
	Rules     []RuleOutcome
	Active    bool
	CreatedAt time.Time
}

// RecordOf captures a built rule set as a storable record.
func RecordOf[F any](rs *RuleSet[F]) Record {
	outcomes := make([]RuleOutcome, 0, len(rs.Rules))
	for _, rule := range rs.Rules {
		outcomes = append(outcomes, RuleOutcome{Name: rule.Name, Class: rule.Class})
	}
	return Record{ID: rs.ID, Name: rs.Name, Version: rs.Version, Rules: outcomes}
}

// Store persists rule set versions. Activating a new version deactivates the
// prior one atomically; an active version is immutable once its rules are
// attached.
type Store interface {
	// Activate inserts the record as the active version of its name,
	// deactivating any prior active version in the same transaction.
	Activate(ctx context.Context, record Record) error

	// Active returns the active version for a rule set name.
	Active(ctx context.Context, name string) (*Record, error)

	// Versions lists all versions for a name, newest first.
	Versions(ctx context.Context, name string) ([]Record, error)
}
