package contact

import "strings"

// Violation is one broken rule.
type Violation struct {
	Field   string
	Rule    string
	Message string
}

// Verdict is the result of a check. The zero value is a pass.
type Verdict struct {
	Violations []Violation
}

// Add appends a violation.
func (v *Verdict) Add(field, rule, message string) {
	v.Violations = append(v.Violations, Violation{Field: field, Rule: rule, Message: message})
}

// OK reports whether no rule was violated.
func (v Verdict) OK() bool {
	return len(v.Violations) == 0
}

// Messages returns the violation texts in the order they were found.
func (v Verdict) Messages() []string {
	out := make([]string, len(v.Violations))
	for i, vi := range v.Violations {
		out[i] = vi.Message
	}
	return out
}

// String joins the messages with newlines.
func (v Verdict) String() string {
	return strings.TrimSpace(strings.Join(v.Messages(), "\n"))
}

// Err returns nil for a pass and a *ValidationError otherwise.
func (v Verdict) Err() error {
	if v.OK() {
		return nil
	}
	return &ValidationError{Violations: append([]Violation(nil), v.Violations...)}
}

// ValidationError carries every violation found in one pass.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return Verdict{Violations: e.Violations}.String()
}
