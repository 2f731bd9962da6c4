// SPDX-License-Identifier: Apache-2.0

package remediation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jdyer-nuvodia/lockdown/internal/core/models"
	"github.com/jdyer-nuvodia/lockdown/internal/remediation/condition"
)

// Fatal precondition errors. These abort a run before any step executes; no
// report is produced.
var (
	ErrEmptyPipeline = errors.New("remediation pipeline has no steps")
	ErrNilGateway    = errors.New("identity gateway is not configured")
)

// Runner executes a remediation pipeline against a single target identity.
// Steps run strictly in order, one at a time; a failing step is recorded and
// the run continues. One broken integration point must never prevent
// cleaning up everything else.
type Runner struct {
	deps    Deps
	eval    *condition.Evaluator
	options models.ExecutionOptions
	logger  *zap.Logger
}

// NewRunner creates a runner.
func NewRunner(deps Deps, options models.ExecutionOptions) (*Runner, error) {
	eval, err := condition.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("error creating condition evaluator: %w", err)
	}

	deps = deps.normalized()
	return &Runner{
		deps:    deps,
		eval:    eval,
		options: options,
		logger:  deps.Logger,
	}, nil
}

// Run executes the steps in order and returns the report. The report always
// carries one entry per step, in execution order, regardless of how many
// steps failed. Precondition failures (malformed target, empty pipeline,
// missing gateway) return an error and no report.
func (r *Runner) Run(ctx context.Context, target models.TargetIdentity, steps []Step) (*models.Report, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	if len(steps) == 0 {
		return nil, ErrEmptyPipeline
	}
	if r.deps.Gateway == nil {
		return nil, ErrNilGateway
	}

	report := &models.Report{Target: target, StartedAt: r.deps.Clock()}
	r.logger.Info("remediation run started",
		zap.String("target", string(target)),
		zap.Int("steps", len(steps)),
		zap.Bool("dry_run", r.options.DryRun))

	for i, step := range steps {
		fields := []zap.Field{
			zap.Int("position", i+1),
			zap.Int("total", len(steps)),
			zap.String("step", step.Name),
		}
		if r.options.VerboseLogging {
			fields = append(fields, zap.Any("params", step.Params))
		}
		r.logger.Info("executing step", fields...)

		// The outcome is recorded before the next step starts; ordering
		// is total and deterministic.
		report.Append(step.Name, r.runStep(ctx, target, step))
	}

	report.CompletedAt = r.deps.Clock()
	r.logger.Info("remediation run finished",
		zap.String("target", string(target)),
		zap.Int("succeeded", report.SucceededCount()),
		zap.Int("failed", report.FailedCount()))
	return report, nil
}

// runStep is the failure boundary around a single step.
func (r *Runner) runStep(ctx context.Context, target models.TargetIdentity, step Step) models.StepOutcome {
	log := r.logger.With(zap.String("step", step.Name), zap.String("target", string(target)))

	if step.Condition != "" {
		ok, err := r.eval.Evaluate(step.Condition, stepFacts(target, step))
		if err != nil {
			log.Warn("step condition failed to evaluate", zap.Error(err))
			return models.StepOutcome{Succeeded: false, Detail: fmt.Sprintf("condition evaluation failed: %v", err)}
		}
		if !ok {
			log.Info("step skipped", zap.String("condition", step.Condition))
			return models.StepOutcome{Succeeded: true, Detail: "skipped: condition not met"}
		}
	}

	if r.options.DryRun {
		return models.StepOutcome{Succeeded: true, Detail: "dry-run: would " + step.Description}
	}

	outcome, err := step.Run(ctx, target, step.Params)
	if err != nil {
		log.Warn("step failed", zap.Error(err))
		return models.StepOutcome{Succeeded: false, Detail: err.Error()}
	}
	if !outcome.Succeeded {
		log.Warn("step completed with failures", zap.String("detail", outcome.Detail))
	} else {
		log.Info("step completed", zap.String("detail", outcome.Detail))
	}
	return outcome
}

func stepFacts(target models.TargetIdentity, step Step) map[string]interface{} {
	params := step.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	return map[string]interface{}{
		"target": string(target),
		"step":   step.Name,
		"params": params,
	}
}
