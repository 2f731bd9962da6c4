// SPDX-License-Identifier: Apache-2.0

package remediation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jdyer-nuvodia/lockdown/internal/core/models"
	"github.com/jdyer-nuvodia/lockdown/internal/gateway"
)

// Builtin step names, in the reference execution order. Sessions are revoked
// after the credential is invalidated so a stolen session cannot
// re-establish trust, and destructive cleanups run before MFA enablement and
// audit export so the export reflects the post-cleanup state.
const (
	StepResetCredential   = "reset-credential"
	StepRevokeSessions    = "revoke-sessions"
	StepRemoveDelegates   = "remove-delegates"
	StepRemoveRecentRules = "remove-recent-rules"
	StepDisableForwarding = "disable-forwarding"
	StepEnableMFA         = "enable-mfa"
	StepExportAuditLog    = "export-audit-log"
)

func daysSchema(key string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			key: map[string]interface{}{"type": "integer", "minimum": 1},
		},
		"additionalProperties": false,
	}
}

func registerBuiltins(r *Registry, d Deps, opts Options) {
	r.register(StepDefinition{
		Name:        StepResetCredential,
		Description: "replace the account credential and force a change at next sign-in",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"secret_length": map[string]interface{}{"type": "integer", "minimum": 12},
				"force_change":  map[string]interface{}{"type": "boolean"},
			},
			"additionalProperties": false,
		},
		Defaults: map[string]interface{}{
			"secret_length": opts.SecretLength,
			"force_change":  true,
		},
		Run: d.resetCredential,
	})

	r.register(StepDefinition{
		Name:        StepRevokeSessions,
		Description: "invalidate all active sessions for the account",
		Run:         d.revokeSessions,
	})

	r.register(StepDefinition{
		Name:        StepRemoveDelegates,
		Description: "remove mailbox delegate grants held by other principals",
		Run:         d.removeDelegates,
	})

	r.register(StepDefinition{
		Name:        StepRemoveRecentRules,
		Description: "delete inbox rules created recently",
		Schema:      daysSchema("max_age_days"),
		Defaults:    map[string]interface{}{"max_age_days": opts.RecentRuleAgeDays},
		Run:         d.removeRecentRules,
	})

	r.register(StepDefinition{
		Name:        StepDisableForwarding,
		Description: "clear mailbox forwarding and disable forwarding rules",
		Run:         d.disableForwarding,
	})

	r.register(StepDefinition{
		Name:        StepEnableMFA,
		Description: "require a second factor, subject to operator confirmation",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"method": map[string]interface{}{"type": "string"},
			},
			"additionalProperties": false,
		},
		Defaults: map[string]interface{}{"method": opts.MFAMethod},
		Run:      d.enableMFA,
	})

	r.register(StepDefinition{
		Name:        StepExportAuditLog,
		Description: "export directory-audit events initiated by the account",
		Schema:      daysSchema("lookback_days"),
		Defaults:    map[string]interface{}{"lookback_days": opts.AuditLookbackDays},
		Run:         d.exportAuditLog,
	})
}

func (d Deps) resetCredential(ctx context.Context, target models.TargetIdentity, params map[string]interface{}) (models.StepOutcome, error) {
	secret, err := NewSecret(intParam(params, "secret_length", 24))
	if err != nil {
		return models.StepOutcome{}, fmt.Errorf("generating credential: %w", err)
	}

	reset := gateway.CredentialReset{
		NewSecret:           secret,
		ForceChangeAtSignIn: boolParam(params, "force_change", true),
	}
	if err := d.Gateway.ResetCredential(ctx, target, reset); err != nil {
		return models.StepOutcome{}, fmt.Errorf("resetting credential: %w", err)
	}

	if d.Secrets != nil {
		if err := d.Secrets.StoreSecret(target, secret); err != nil {
			return models.StepOutcome{
				Succeeded: false,
				Detail:    fmt.Sprintf("credential reset, but the new secret could not be persisted: %v", err),
			}, nil
		}
	}

	d.Logger.Info("credential reset", zap.String("target", string(target)))
	return models.StepOutcome{Succeeded: true, Detail: "credential replaced; change required at next sign-in"}, nil
}

func (d Deps) revokeSessions(ctx context.Context, target models.TargetIdentity, _ map[string]interface{}) (models.StepOutcome, error) {
	if err := d.Gateway.RevokeSessions(ctx, target); err != nil {
		return models.StepOutcome{}, fmt.Errorf("revoking sessions: %w", err)
	}
	return models.StepOutcome{Succeeded: true, Detail: "all active sessions revoked"}, nil
}

func (d Deps) removeDelegates(ctx context.Context, target models.TargetIdentity, _ map[string]interface{}) (models.StepOutcome, error) {
	grants, err := d.Gateway.ListDelegateGrants(ctx, target)
	if err != nil {
		return models.StepOutcome{}, fmt.Errorf("listing delegate grants: %w", err)
	}

	removed, failed := 0, 0
	for _, grant := range grants {
		// The target's own grant is not a foreign delegate.
		if strings.EqualFold(grant.Grantee, string(target)) {
			continue
		}
		if err := d.Gateway.RemoveDelegateGrant(ctx, target, grant.GrantID); err != nil {
			failed++
			d.Logger.Warn("delegate grant removal failed",
				zap.String("target", string(target)),
				zap.String("grant_id", grant.GrantID),
				zap.Error(err))
			continue
		}
		removed++
	}

	if failed > 0 {
		return models.StepOutcome{
			Succeeded: false,
			Detail:    fmt.Sprintf("removed %d of %d delegate grants; %d removals failed", removed, removed+failed, failed),
		}, nil
	}
	return models.StepOutcome{Succeeded: true, Detail: fmt.Sprintf("removed %d delegate grants", removed)}, nil
}

func (d Deps) removeRecentRules(ctx context.Context, target models.TargetIdentity, params map[string]interface{}) (models.StepOutcome, error) {
	maxAgeDays := intParam(params, "max_age_days", 7)

	rules, err := d.Gateway.ListInboxRules(ctx, target)
	if err != nil {
		return models.StepOutcome{}, fmt.Errorf("listing inbox rules: %w", err)
	}

	cutoff := d.Clock().AddDate(0, 0, -maxAgeDays)
	deleted, failed := 0, 0
	for _, rule := range rules {
		if !rule.CreatedAt.After(cutoff) {
			continue
		}
		if err := d.Gateway.DeleteInboxRule(ctx, target, rule.RuleID); err != nil {
			failed++
			d.Logger.Warn("inbox rule deletion failed",
				zap.String("target", string(target)),
				zap.String("rule_id", rule.RuleID),
				zap.Error(err))
			continue
		}
		deleted++
	}

	if failed > 0 {
		return models.StepOutcome{
			Succeeded: false,
			Detail:    fmt.Sprintf("deleted %d of %d recent inbox rules; %d deletions failed", deleted, deleted+failed, failed),
		}, nil
	}
	return models.StepOutcome{
		Succeeded: true,
		Detail:    fmt.Sprintf("deleted %d inbox rules created in the last %d days", deleted, maxAgeDays),
	}, nil
}

func (d Deps) disableForwarding(ctx context.Context, target models.TargetIdentity, _ map[string]interface{}) (models.StepOutcome, error) {
	if err := d.Gateway.ClearMailboxForwarding(ctx, target); err != nil {
		return models.StepOutcome{}, fmt.Errorf("clearing mailbox forwarding: %w", err)
	}

	rules, err := d.Gateway.ListInboxRules(ctx, target)
	if err != nil {
		return models.StepOutcome{}, fmt.Errorf("listing inbox rules: %w", err)
	}

	disabled, failed := 0, 0
	for _, rule := range rules {
		if !rule.Forwards() || !rule.Enabled {
			continue
		}
		if err := d.Gateway.SetInboxRuleEnabled(ctx, target, rule.RuleID, false); err != nil {
			failed++
			d.Logger.Warn("forwarding rule disable failed",
				zap.String("target", string(target)),
				zap.String("rule_id", rule.RuleID),
				zap.Error(err))
			continue
		}
		disabled++
	}

	if failed > 0 {
		return models.StepOutcome{
			Succeeded: false,
			Detail:    fmt.Sprintf("mailbox forwarding cleared; disabled %d of %d forwarding rules", disabled, disabled+failed),
		}, nil
	}
	return models.StepOutcome{
		Succeeded: true,
		Detail:    fmt.Sprintf("mailbox forwarding cleared; disabled %d forwarding rules", disabled),
	}, nil
}

func (d Deps) enableMFA(ctx context.Context, target models.TargetIdentity, params map[string]interface{}) (models.StepOutcome, error) {
	prompt := fmt.Sprintf("Require a second factor for %s?", target)
	if d.Confirm == nil || !d.Confirm(prompt) {
		return models.StepOutcome{Succeeded: true, Detail: "declined by operator"}, nil
	}

	update := gateway.AuthPolicyUpdate{
		Identity:            target,
		RequireSecondFactor: true,
		Method:              stringParam(params, "method", "authenticator"),
	}
	if err := d.Gateway.SetAuthPolicy(ctx, update); err != nil {
		return models.StepOutcome{}, fmt.Errorf("updating authentication policy: %w", err)
	}
	return models.StepOutcome{Succeeded: true, Detail: "second factor required: " + update.Method}, nil
}

func (d Deps) exportAuditLog(ctx context.Context, target models.TargetIdentity, params map[string]interface{}) (models.StepOutcome, error) {
	lookbackDays := intParam(params, "lookback_days", 7)
	window := models.NewAuditWindow(d.Clock(), time.Duration(lookbackDays)*24*time.Hour)

	events, err := d.Gateway.QueryAuditEvents(ctx, target, window)
	if err != nil {
		return models.StepOutcome{}, fmt.Errorf("querying audit events: %w", err)
	}

	if d.Audit != nil {
		if err := d.Audit.WriteEvents(target, events); err != nil {
			return models.StepOutcome{}, fmt.Errorf("writing audit export: %w", err)
		}
	}

	return models.StepOutcome{
		Succeeded: true,
		Detail:    fmt.Sprintf("exported %d audit events from the last %d days", len(events), lookbackDays),
	}, nil
}
