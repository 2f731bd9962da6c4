// SPDX-License-Identifier: Apache-2.0

package models

import (
	"fmt"
	"strings"
	"time"
)

// TargetIdentity is the user principal name of the account being remediated.
// It is fixed for the duration of one pipeline run.
type TargetIdentity string

// Validate checks that the identity is syntactically a principal name.
// A malformed target is a fatal precondition failure, not a step failure.
func (t TargetIdentity) Validate() error {
	s := string(t)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("target identity is empty")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return fmt.Errorf("target identity %q contains whitespace", s)
	}
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return fmt.Errorf("target identity %q is not a user principal name", s)
	}
	return nil
}

// StepOutcome is the result of one remediation step. It is produced exactly
// once per step per run and never mutated afterward.
type StepOutcome struct {
	Succeeded bool   `json:"succeeded" yaml:"succeeded"`
	Detail    string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// ReportEntry records the outcome of a single step in execution order.
type ReportEntry struct {
	StepName string      `json:"step_name" yaml:"step_name"`
	Outcome  StepOutcome `json:"outcome" yaml:"outcome"`
}

// Report is the ordered record of one pipeline run. Entries are append-only;
// after a completed run the entry count equals the configured step count,
// however many steps failed.
type Report struct {
	Target      TargetIdentity `json:"target" yaml:"target"`
	StartedAt   time.Time      `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time      `json:"completed_at" yaml:"completed_at"`
	Entries     []ReportEntry  `json:"entries" yaml:"entries"`
}

// Append records the outcome of the named step.
func (r *Report) Append(stepName string, outcome StepOutcome) {
	r.Entries = append(r.Entries, ReportEntry{StepName: stepName, Outcome: outcome})
}

// SucceededCount returns the number of successful entries.
func (r *Report) SucceededCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome.Succeeded {
			n++
		}
	}
	return n
}

// FailedCount returns the number of failed entries.
func (r *Report) FailedCount() int {
	return len(r.Entries) - r.SucceededCount()
}

// AuditWindow bounds an audit-event query.
type AuditWindow struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// NewAuditWindow returns the window [now-lookback, now].
func NewAuditWindow(now time.Time, lookback time.Duration) AuditWindow {
	return AuditWindow{Start: now.Add(-lookback), End: now}
}

// ExecutionOptions contains options for pipeline execution.
type ExecutionOptions struct {
	DryRun         bool
	VerboseLogging bool
}
