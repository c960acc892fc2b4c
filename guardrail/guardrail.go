// Package guardrail implements the Guardrail Chain (C3): an ordered list of
// validators run over input before the first LLM call and over output
// before a turn is surfaced to the caller (§4.3). Any reject short-circuits
// the remaining chain.
package guardrail

import "context"

// Verdict classifies the outcome of one Guardrail check.
type Verdict string

const (
	Pass      Verdict = "pass"
	Reject    Verdict = "reject"
	Transform Verdict = "transform"
)

// Result is the outcome of running a Guardrail, per §4.3.
type Result struct {
	Verdict Verdict
	// Reason explains a Reject verdict; surfaced to the caller via
	// errs.KindInputGuardrailReject / errs.KindOutputGuardrailReject.
	Reason string
	// Text replaces the checked text when Verdict is Transform. Ignored
	// otherwise.
	Text string
}

func passResult() Result { return Result{Verdict: Pass} }

// Guardrail validates or rewrites a single piece of text, either a pending
// user input or a candidate assistant output.
type Guardrail interface {
	Name() string
	Check(ctx context.Context, text string) (Result, error)
}

// Func adapts a plain function to Guardrail.
type Func struct {
	FuncName string
	CheckFn  func(ctx context.Context, text string) (Result, error)
}

// Name implements Guardrail.
func (f Func) Name() string { return f.FuncName }

// Check implements Guardrail.
func (f Func) Check(ctx context.Context, text string) (Result, error) { return f.CheckFn(ctx, text) }

// Chain is an ordered sequence of Guardrails evaluated in declaration order
// (§4.3). The first Reject stops evaluation; a Transform rewrites the text
// seen by every subsequent guardrail in the chain.
type Chain struct {
	guardrails []Guardrail
}

// NewChain returns a Chain running guardrails in the given order.
func NewChain(guardrails ...Guardrail) *Chain {
	return &Chain{guardrails: guardrails}
}

// Outcome is the result of running an entire Chain: either the (possibly
// transformed) text passed every guardrail, or the chain stopped at a
// rejecting guardrail.
type Outcome struct {
	Text       string
	Rejected   bool
	RejectedBy string
	Reason     string
}

// Run evaluates every guardrail in order against text, applying Transform
// results to the text seen by later guardrails, and stopping at the first
// Reject.
func (c *Chain) Run(ctx context.Context, text string) (Outcome, error) {
	current := text
	for _, g := range c.guardrails {
		res, err := g.Check(ctx, current)
		if err != nil {
			return Outcome{}, err
		}
		switch res.Verdict {
		case Reject:
			return Outcome{Text: current, Rejected: true, RejectedBy: g.Name(), Reason: res.Reason}, nil
		case Transform:
			current = res.Text
		case Pass, "":
			// no-op, text unchanged
		}
	}
	return Outcome{Text: current}, nil
}

// Len reports how many guardrails are registered, mostly useful for tests
// and diagnostics.
func (c *Chain) Len() int { return len(c.guardrails) }
