package guardrail

import (
	"context"
	"regexp"
	"testing"
)

func TestChainPassesWhenNoGuardrails(t *testing.T) {
	c := NewChain()
	out, err := c.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rejected || out.Text != "hello" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestChainShortCircuitsOnReject(t *testing.T) {
	calledSecond := false
	c := NewChain(
		DenyList{Terms: []string{"forbidden"}},
		Func{FuncName: "should_not_run", CheckFn: func(_ context.Context, _ string) (Result, error) {
			calledSecond = true
			return passResult(), nil
		}},
	)
	out, err := c.Run(context.Background(), "this is a forbidden request")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Rejected || out.RejectedBy != "deny_list" {
		t.Fatalf("expected rejection by deny_list, got %+v", out)
	}
	if calledSecond {
		t.Fatalf("chain did not short-circuit after reject")
	}
}

func TestChainAppliesTransformToLaterGuardrails(t *testing.T) {
	seenByDenyList := ""
	c := NewChain(
		Redact{Pattern: regexp.MustCompile(`secret-\d+`)},
		Func{FuncName: "observer", CheckFn: func(_ context.Context, text string) (Result, error) {
			seenByDenyList = text
			return passResult(), nil
		}},
	)
	out, err := c.Run(context.Background(), "token is secret-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rejected {
		t.Fatalf("unexpected rejection: %+v", out)
	}
	want := "token is [redacted]"
	if out.Text != want {
		t.Fatalf("out.Text = %q, want %q", out.Text, want)
	}
	if seenByDenyList != want {
		t.Fatalf("downstream guardrail saw %q, want %q", seenByDenyList, want)
	}
}

func TestMaxLengthRejectsOverLimit(t *testing.T) {
	g := MaxLength{Limit: 5}
	res, err := g.Check(context.Background(), "toolong")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != Reject {
		t.Fatalf("expected reject, got %v", res.Verdict)
	}
}
