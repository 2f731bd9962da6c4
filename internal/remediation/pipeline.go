// SPDX-License-Identifier: Apache-2.0

// Package remediation implements the account-lockdown pipeline: an ordered
// list of idempotent steps executed against the identity gateway, with
// per-step failure isolation and an aggregated report.
package remediation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jdyer-nuvodia/lockdown/internal/core/format"
	"github.com/jdyer-nuvodia/lockdown/internal/core/models"
	"github.com/jdyer-nuvodia/lockdown/internal/core/schema"
	"github.com/jdyer-nuvodia/lockdown/internal/gateway"
)

// SecretSink receives the generated replacement credential. The pipeline
// never persists secrets itself.
type SecretSink interface {
	StoreSecret(identity models.TargetIdentity, secret string) error
}

// AuditSink receives exported audit events.
type AuditSink interface {
	WriteEvents(identity models.TargetIdentity, events []gateway.AuditEvent) error
}

// ConfirmFunc asks the operator to approve an action. Declining is a
// deliberate no-op, not a failure.
type ConfirmFunc func(prompt string) bool

// Deps carries the collaborators the builtin steps run against.
type Deps struct {
	Gateway gateway.Gateway
	Secrets SecretSink
	Audit   AuditSink
	Confirm ConfirmFunc
	Logger  *zap.Logger
	Clock   func() time.Time
}

func (d Deps) normalized() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// StepFunc performs one remediation action. An error return is recorded by
// the runner as a failed outcome; it never aborts the run.
type StepFunc func(ctx context.Context, target models.TargetIdentity, params map[string]interface{}) (models.StepOutcome, error)

// Step is one named, idempotent unit of work in the pipeline. Params have
// already been merged with defaults and validated when a Step is resolved.
type Step struct {
	Name        string
	Description string
	Condition   string // optional CEL expression over the facts map
	Params      map[string]interface{}
	Run         StepFunc
}

// StepDefinition describes a builtin step: its parameter schema, defaults,
// and implementation.
type StepDefinition struct {
	Name        string
	Description string
	Schema      map[string]interface{}
	Defaults    map[string]interface{}
	Run         StepFunc
}

// Options holds registry-level defaults, normally sourced from the config
// file.
type Options struct {
	RecentRuleAgeDays int
	AuditLookbackDays int
	MFAMethod         string
	SecretLength      int
}

func (o Options) withDefaults() Options {
	if o.RecentRuleAgeDays <= 0 {
		o.RecentRuleAgeDays = 7
	}
	if o.AuditLookbackDays <= 0 {
		o.AuditLookbackDays = 7
	}
	if o.MFAMethod == "" {
		o.MFAMethod = "authenticator"
	}
	if o.SecretLength <= 0 {
		o.SecretLength = 24
	}
	return o
}

// Registry maps step names to builtin definitions and preserves the
// reference execution order.
type Registry struct {
	definitions map[string]StepDefinition
	order       []string
}

// NewRegistry creates a registry holding the builtin steps, in the reference
// order: reset-credential, revoke-sessions, remove-delegates,
// remove-recent-rules, disable-forwarding, enable-mfa, export-audit-log.
func NewRegistry(deps Deps, opts Options) *Registry {
	r := &Registry{definitions: make(map[string]StepDefinition)}
	registerBuiltins(r, deps.normalized(), opts.withDefaults())
	return r
}

func (r *Registry) register(def StepDefinition) {
	r.definitions[def.Name] = def
	r.order = append(r.order, def.Name)
}

// Resolve builds an executable Step from a builtin definition, merging
// defaults into params and validating the result against the step's schema.
func (r *Registry) Resolve(name string, params map[string]interface{}) (Step, error) {
	def, ok := r.definitions[name]
	if !ok {
		return Step{}, fmt.Errorf("unknown step: %s", name)
	}

	merged := schema.MergeWithDefaults(params, def.Defaults)
	if def.Schema != nil {
		if err := schema.ValidateParams(def.Schema, merged); err != nil {
			return Step{}, fmt.Errorf("step %s: %w", name, err)
		}
	}

	return Step{
		Name:        def.Name,
		Description: def.Description,
		Params:      merged,
		Run:         def.Run,
	}, nil
}

// DefaultPipeline returns all builtin steps in the reference order with
// default parameters.
func (r *Registry) DefaultPipeline() ([]Step, error) {
	steps := make([]Step, 0, len(r.order))
	for _, name := range r.order {
		step, err := r.Resolve(name, nil)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// PipelineSpec is the on-disk form of a custom pipeline.
type PipelineSpec struct {
	Steps []StepSpec `yaml:"steps" json:"steps"`
}

// StepSpec names one step in a pipeline file.
type StepSpec struct {
	Name      string                 `yaml:"name" json:"name"`
	Condition string                 `yaml:"condition,omitempty" json:"condition,omitempty"`
	Params    map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
}

// LoadPipelineFile loads a pipeline definition (YAML or JSON) and resolves
// every named step through the registry. Unknown steps and invalid params
// are load-time errors; nothing executes.
func LoadPipelineFile(filePath string, reg *Registry) ([]Step, error) {
	var spec PipelineSpec
	if err := format.ParseFile(filePath, &spec); err != nil {
		return nil, fmt.Errorf("error parsing pipeline file: %w", err)
	}
	if len(spec.Steps) == 0 {
		return nil, fmt.Errorf("pipeline file %s defines no steps", filePath)
	}

	steps := make([]Step, 0, len(spec.Steps))
	for _, s := range spec.Steps {
		step, err := reg.Resolve(s.Name, s.Params)
		if err != nil {
			return nil, err
		}
		step.Condition = s.Condition
		steps = append(steps, step)
	}
	return steps, nil
}

// Params arrive from YAML (int) or JSON (float64) depending on the source
// file, so numeric lookups accept both.
func intParam(params map[string]interface{}, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func boolParam(params map[string]interface{}, key string, fallback bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return fallback
}

func stringParam(params map[string]interface{}, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
