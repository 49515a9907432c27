package domain

import (
	"context"
	"errors"
	"testing"
)

type stubRule struct {
	name   string
	issues []Issue
	err    error
}

func (r stubRule) Name() string { return r.name }

func (r stubRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{Issues: r.issues}, r.err
}

func TestEngineAggregatesResults(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(stubRule{name: "a", issues: []Issue{{Kind: IssueOrphanedRide, Rule: "a"}}})
	engine.Register(stubRule{name: "b", issues: []Issue{
		{Kind: IssueOrphanedRide, Rule: "b"},
		{Kind: IssueInvalidPrice, Rule: "b"},
	}})

	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Issues) != 3 {
		t.Fatalf("expected 3 issues, got %d", len(res.Issues))
	}
	if !res.HasIssues() {
		t.Fatalf("expected HasIssues")
	}
}

func TestEngineStopsOnRuleError(t *testing.T) {
	boom := errors.New("boom")
	engine := NewRulesEngine()
	engine.Register(stubRule{name: "a", err: boom})
	engine.Register(stubRule{name: "b", issues: []Issue{{Kind: IssueInvalidPrice}}})

	res, err := engine.Evaluate(context.Background(), nil, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if res.HasIssues() {
		t.Fatalf("result must be empty on error")
	}
}

func TestResultSummary(t *testing.T) {
	var empty Result
	if empty.Summary() != "no issues" {
		t.Fatalf("unexpected empty summary %q", empty.Summary())
	}

	res := Result{Issues: []Issue{
		{Kind: IssueOrphanedRide},
		{Kind: IssueOrphanedRide},
		{Kind: IssueInvalidPrice},
	}}
	want := "3 issues (1 invalid_price, 2 orphaned_ride)"
	if got := res.Summary(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
