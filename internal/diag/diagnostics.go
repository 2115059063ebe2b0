package diag

import (
	"fmt"
	"strings"
)

// Diagnostic is one recorded error or warning.
type Diagnostic struct {
	Component string `json:"component,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Message   string `json:"message"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Component != "" {
		b.WriteString(d.Component)
		b.WriteString(": ")
	}
	if d.Subject != "" {
		b.WriteString(d.Subject)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	return b.String()
}

// Diagnostics accumulates structural failures and warnings for one transform
// invocation.
type Diagnostics struct {
	Errors   []Diagnostic `json:"errors,omitempty"`
	Warnings []Diagnostic `json:"warnings,omitempty"`
}

// Errorf records a structural failure.
func (d *Diagnostics) Errorf(component, subject, format string, args ...any) {
	d.Errors = append(d.Errors, Diagnostic{Component: component, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// Warnf records an informational policy decision.
func (d *Diagnostics) Warnf(component, subject, format string, args ...any) {
	d.Warnings = append(d.Warnings, Diagnostic{Component: component, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// AddError records err as a structural failure.
func (d *Diagnostics) AddError(component, subject string, err error) {
	if err == nil {
		return
	}
	d.Errors = append(d.Errors, Diagnostic{Component: component, Subject: subject, Message: err.Error()})
}

// Merge appends other's entries.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Errors = append(d.Errors, other.Errors...)
	d.Warnings = append(d.Warnings, other.Warnings...)
}

// HasErrors reports whether any error is recorded.
func (d Diagnostics) HasErrors() bool { return len(d.Errors) > 0 }

// Empty reports whether nothing is recorded.
func (d Diagnostics) Empty() bool { return len(d.Errors) == 0 && len(d.Warnings) == 0 }

// Err folds the recorded errors into a single ErrTransform error, or nil.
func (d Diagnostics) Err() error {
	if len(d.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(d.Errors))
	for _, e := range d.Errors {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %d error(s): %s", ErrTransform, len(d.Errors), strings.Join(msgs, "; "))
}
