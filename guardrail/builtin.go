package guardrail

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// MaxLength rejects text longer than Limit runes.
type MaxLength struct {
	Limit int
}

// Name implements Guardrail.
func (MaxLength) Name() string { return "max_length" }

// Check implements Guardrail.
func (m MaxLength) Check(_ context.Context, text string) (Result, error) {
	if n := len([]rune(text)); n > m.Limit {
		return Result{Verdict: Reject, Reason: fmt.Sprintf("text length %d exceeds limit %d", n, m.Limit)}, nil
	}
	return passResult(), nil
}

// DenyList rejects text containing any of Terms, case-insensitively.
type DenyList struct {
	Name_ string // optional override, defaults to "deny_list"
	Terms []string
}

// Name implements Guardrail.
func (d DenyList) Name() string {
	if d.Name_ != "" {
		return d.Name_
	}
	return "deny_list"
}

// Check implements Guardrail.
func (d DenyList) Check(_ context.Context, text string) (Result, error) {
	lower := strings.ToLower(text)
	for _, term := range d.Terms {
		if term == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			return Result{Verdict: Reject, Reason: fmt.Sprintf("text contains denied term %q", term)}, nil
		}
	}
	return passResult(), nil
}

// PatternReject rejects text matching Pattern.
type PatternReject struct {
	Name_   string
	Pattern *regexp.Regexp
	Reason  string
}

// Name implements Guardrail.
func (p PatternReject) Name() string {
	if p.Name_ != "" {
		return p.Name_
	}
	return "pattern_reject"
}

// Check implements Guardrail.
func (p PatternReject) Check(_ context.Context, text string) (Result, error) {
	if p.Pattern != nil && p.Pattern.MatchString(text) {
		reason := p.Reason
		if reason == "" {
			reason = fmt.Sprintf("text matches rejected pattern %q", p.Pattern.String())
		}
		return Result{Verdict: Reject, Reason: reason}, nil
	}
	return passResult(), nil
}

// Redact replaces every match of Pattern with Replacement, always returning
// Transform so later guardrails see the redacted text.
type Redact struct {
	Name_       string
	Pattern     *regexp.Regexp
	Replacement string
}

// Name implements Guardrail.
func (r Redact) Name() string {
	if r.Name_ != "" {
		return r.Name_
	}
	return "redact"
}

// Check implements Guardrail.
func (r Redact) Check(_ context.Context, text string) (Result, error) {
	if r.Pattern == nil {
		return passResult(), nil
	}
	replacement := r.Replacement
	if replacement == "" {
		replacement = "[redacted]"
	}
	return Result{Verdict: Transform, Text: r.Pattern.ReplaceAllString(text, replacement)}, nil
}
