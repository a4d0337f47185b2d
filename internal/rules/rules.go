// Package rules evaluates named predicate rules over feature vectors.
// Evaluation is pure domain logic: no I/O, no side effects. The engine
// reports which rules triggered; resolving the overall decision from the
// partitioned result is the caller's policy, not the engine's.
package rules

import (
	"time"

	id "vouch/pkg/domain"
)

// OutcomeClass tags what a triggered rule is evidence of.
type OutcomeClass string

const (
	// ClassFail marks rules whose triggering is evidence of failure.
	ClassFail OutcomeClass = "fail"

	// ClassPass marks rules whose triggering supports a pass.
	ClassPass OutcomeClass = "pass"
)

// Rule is a named predicate over a feature vector. Names are stable across
// versions so historical results remain interpretable after rule edits.
type Rule[F any] struct {
	Name  string
	Class OutcomeClass
	When  func(F) bool
}

// RuleSet is a named, versioned, ordered list of rules.
type RuleSet[F any] struct {
	ID      id.RuleSetID
	Name    string
	Version int
	Rules   []Rule[F]
}

// RuleOutcome pairs a rule name with its outcome class so callers can
// distinguish fail evidence from pass evidence in either partition.
type RuleOutcome struct {
	Name  string       `json:"name"`
	Class OutcomeClass `json:"class"`
}

// Result partitions a rule set's rules into triggered and not-triggered.
// The two lists always partition the full rule list: no overlap, no omission.
type Result struct {
	RuleSetID    id.RuleSetID  `json:"rule_set_id"`
	RuleSet      string        `json:"rule_set"`
	Version      int           `json:"version"`
	Triggered    []RuleOutcome `json:"triggered"`
	NotTriggered []RuleOutcome `json:"not_triggered"`
	AnyTriggered bool          `json:"any_triggered"`
	EvaluatedAt  time.Time     `json:"evaluated_at"`
}

// Evaluate applies every rule's predicate to the feature vector.
// Safe to call concurrently; the rule set is never mutated.
func (rs *RuleSet[F]) Evaluate(features F, at time.Time) Result {
	result := Result{
		RuleSetID:    rs.ID,
		RuleSet:      rs.Name,
		Version:      rs.Version,
		Triggered:    []RuleOutcome{},
		NotTriggered: []RuleOutcome{},
		EvaluatedAt:  at,
	}
	for _, rule := range rs.Rules {
		outcome := RuleOutcome{Name: rule.Name, Class: rule.Class}
		if rule.When(features) {
			result.Triggered = append(result.Triggered, outcome)
			result.AnyTriggered = true
		} else {
			result.NotTriggered = append(result.NotTriggered, outcome)
		}
	}
	return result
}

// TriggeredNames lists the names of triggered rules.
func (r Result) TriggeredNames() []string {
	return names(r.Triggered)
}

// NotTriggeredNames lists the names of rules that did not trigger.
func (r Result) NotTriggeredNames() []string {
	return names(r.NotTriggered)
}

// FailTriggered reports whether any fail-class rule triggered.
func (r Result) FailTriggered() bool {
	return anyOfClass(r.Triggered, ClassFail)
}

// PassTriggered reports whether any pass-class rule triggered.
func (r Result) PassTriggered() bool {
	return anyOfClass(r.Triggered, ClassPass)
}

func names(outcomes []RuleOutcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		out = append(out, outcome.Name)
	}
	return out
}

func anyOfClass(outcomes []RuleOutcome, class OutcomeClass) bool {
	for _, outcome := range outcomes {
		if outcome.Class == class {
			return true
		}
	}
	return false
}
