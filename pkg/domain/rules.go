package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// RuleView provides read-only access to domain entities for rule evaluation.
// It is the same contract a transaction snapshot exposes.
type RuleView = TransactionView

// IssueKind classifies a consistency finding.
type IssueKind string

// Consistency issue kinds detected by the built-in rules.
const (
	// IssueOrphanedRide flags a ride whose driver name has no live driver.
	IssueOrphanedRide IssueKind = "orphaned_ride"
	// IssueDuplicateDriverName flags two live drivers sharing a name. The
	// insert-time uniqueness constraint makes this structurally impossible,
	// but a restore can bypass it.
	IssueDuplicateDriverName IssueKind = "duplicate_driver_name"
	// IssueInvalidPrice flags a configured neighborhood price <= 0.
	IssueInvalidPrice IssueKind = "invalid_price"
)

// Issue reports a single consistency finding.
type Issue struct {
	Kind    IssueKind  `json:"kind"`
	Rule    string     `json:"rule"`
	Message string     `json:"message"`
	Entity  EntityType `json:"entity"`
	Key     string     `json:"key"`
}

// Result aggregates issues from the rules engine.
type Result struct {
	Issues []Issue
}

// Merge appends issues from another result.
func (r *Result) Merge(other Result) {
	if len(other.Issues) == 0 {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// HasIssues returns true when any issue was found.
func (r Result) HasIssues() bool { return len(r.Issues) > 0 }

// Summary renders a short human-readable digest, e.g. "3 issues (2 orphaned_ride, 1 invalid_price)".
func (r Result) Summary() string {
	if len(r.Issues) == 0 {
		return "no issues"
	}
	counts := make(map[IssueKind]int)
	for _, issue := range r.Issues {
		counts[issue.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%d %s", counts[IssueKind(kind)], kind))
	}
	return fmt.Sprintf("%d issues (%s)", len(r.Issues), strings.Join(parts, ", "))
}

// Rule defines a consistency check executed against a state snapshot. Rules
// run advisorily at commit time and on demand via the consistency checker;
// they never block a commit.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
