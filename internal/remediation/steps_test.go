// SPDX-License-Identifier: Apache-2.0

package remediation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdyer-nuvodia/lockdown/internal/core/models"
	"github.com/jdyer-nuvodia/lockdown/internal/gateway"
	"github.com/jdyer-nuvodia/lockdown/internal/remediation"
	"github.com/jdyer-nuvodia/lockdown/internal/testutil"
)

func resolveStep(t *testing.T, deps remediation.Deps, name string, params map[string]interface{}) remediation.Step {
	t.Helper()
	step, err := remediation.NewRegistry(deps, remediation.Options{}).Resolve(name, params)
	require.NoError(t, err)
	return step
}

func runStep(t *testing.T, deps remediation.Deps, name string, params map[string]interface{}) (models.StepOutcome, error) {
	t.Helper()
	step := resolveStep(t, deps, name, params)
	return step.Run(context.Background(), testTarget, step.Params)
}

func TestResetCredential(t *testing.T) {
	t.Run("GeneratesAndStoresSecret", func(t *testing.T) {
		fake := &testutil.FakeGateway{}
		sink := &testutil.MemorySecretSink{}
		deps := testDeps(fake)
		deps.Secrets = sink

		outcome, err := runStep(t, deps, remediation.StepResetCredential, nil)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)

		require.Len(t, fake.Resets, 1)
		assert.True(t, fake.Resets[0].ForceChangeAtSignIn)
		assert.Len(t, fake.Resets[0].NewSecret, 24)
		assert.Equal(t, fake.Resets[0].NewSecret, sink.Secrets[testTarget])
	})

	t.Run("GatewayRejects", func(t *testing.T) {
		fake := &testutil.FakeGateway{Errs: map[string]error{"ResetCredential": errors.New("policy forbids reset")}}
		deps := testDeps(fake)

		_, err := runStep(t, deps, remediation.StepResetCredential, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "policy forbids reset")
	})

	t.Run("SecretSinkFails", func(t *testing.T) {
		deps := testDeps(&testutil.FakeGateway{})
		deps.Secrets = &testutil.MemorySecretSink{Err: errors.New("disk full")}

		outcome, err := runStep(t, deps, remediation.StepResetCredential, nil)
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
		assert.Contains(t, outcome.Detail, "could not be persisted")
	})

	t.Run("SecretLengthParam", func(t *testing.T) {
		fake := &testutil.FakeGateway{}
		deps := testDeps(fake)

		_, err := runStep(t, deps, remediation.StepResetCredential, map[string]interface{}{"secret_length": 32})
		require.NoError(t, err)
		assert.Len(t, fake.Resets[0].NewSecret, 32)
	})
}

func TestRevokeSessions(t *testing.T) {
	t.Run("Succeeds", func(t *testing.T) {
		fake := &testutil.FakeGateway{}
		outcome, err := runStep(t, testDeps(fake), remediation.StepRevokeSessions, nil)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.Equal(t, 1, fake.CallCount("RevokeSessions"))
	})

	t.Run("IdentityNotFound", func(t *testing.T) {
		fake := &testutil.FakeGateway{Errs: map[string]error{"RevokeSessions": errors.New("identity not found")}}
		_, err := runStep(t, testDeps(fake), remediation.StepRevokeSessions, nil)
		assert.Error(t, err)
	})
}

func TestRemoveDelegates(t *testing.T) {
	t.Run("SkipsTargetOwnGrant", func(t *testing.T) {
		// Scenario: 3 grants, one held by the target itself.
		fake := &testutil.FakeGateway{
			Grants: []gateway.DelegateGrant{
				{GrantID: "g1", Grantee: "attacker@evil.example"},
				{GrantID: "g2", Grantee: "JDoe@example.com"}, // the target, case-insensitive
				{GrantID: "g3", Grantee: "colleague@example.com"},
			},
		}
		outcome, err := runStep(t, testDeps(fake), remediation.StepRemoveDelegates, nil)
		require.NoError(t, err)

		assert.True(t, outcome.Succeeded)
		assert.Equal(t, 2, fake.CallCount("RemoveDelegateGrant"))
		assert.Contains(t, outcome.Detail, "removed 2")
	})

	t.Run("SecondRunIsIdempotent", func(t *testing.T) {
		fake := &testutil.FakeGateway{
			Grants: []gateway.DelegateGrant{
				{GrantID: "g1", Grantee: "attacker@evil.example"},
			},
		}
		deps := testDeps(fake)

		outcome, err := runStep(t, deps, remediation.StepRemoveDelegates, nil)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)

		// The invariant already holds; the second pass removes nothing and
		// still succeeds.
		outcome, err = runStep(t, deps, remediation.StepRemoveDelegates, nil)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.Contains(t, outcome.Detail, "removed 0")
	})

	t.Run("ListingFails", func(t *testing.T) {
		fake := &testutil.FakeGateway{Errs: map[string]error{"ListDelegateGrants": errors.New("timeout")}}
		_, err := runStep(t, testDeps(fake), remediation.StepRemoveDelegates, nil)
		assert.Error(t, err)
	})

	t.Run("PartialRemovalIsReportedFailed", func(t *testing.T) {
		fake := &testutil.FakeGateway{
			Grants: []gateway.DelegateGrant{
				{GrantID: "g1", Grantee: "a@example.com"},
				{GrantID: "g2", Grantee: "b@example.com"},
			},
			PerItemErrs: map[string]error{"g2": errors.New("grant is locked")},
		}
		outcome, err := runStep(t, testDeps(fake), remediation.StepRemoveDelegates, nil)
		require.NoError(t, err)

		assert.False(t, outcome.Succeeded)
		assert.Contains(t, outcome.Detail, "removed 1 of 2")
		// The failing grant did not stop the other removal.
		assert.Equal(t, 2, fake.CallCount("RemoveDelegateGrant"))
	})
}

func TestRemoveRecentRules(t *testing.T) {
	mkRules := func() []gateway.InboxRule {
		return []gateway.InboxRule{
			{RuleID: "new", CreatedAt: testNow.AddDate(0, 0, -2)},
			{RuleID: "old", CreatedAt: testNow.AddDate(0, 0, -30)},
		}
	}

	t.Run("DeletesOnlyRecent", func(t *testing.T) {
		fake := &testutil.FakeGateway{Rules: mkRules()}
		outcome, err := runStep(t, testDeps(fake), remediation.StepRemoveRecentRules, nil)
		require.NoError(t, err)

		assert.True(t, outcome.Succeeded)
		assert.Equal(t, 1, fake.CallCount("DeleteInboxRule"))
		require.Len(t, fake.Rules, 1)
		assert.Equal(t, "old", fake.Rules[0].RuleID)
	})

	t.Run("MaxAgeOverride", func(t *testing.T) {
		fake := &testutil.FakeGateway{Rules: mkRules()}
		outcome, err := runStep(t, testDeps(fake), remediation.StepRemoveRecentRules, map[string]interface{}{"max_age_days": 45})
		require.NoError(t, err)

		assert.True(t, outcome.Succeeded)
		assert.Empty(t, fake.Rules)
	})

	t.Run("NoRulesIsSuccess", func(t *testing.T) {
		fake := &testutil.FakeGateway{}
		outcome, err := runStep(t, testDeps(fake), remediation.StepRemoveRecentRules, nil)
		require.NoError(t, err)

		assert.True(t, outcome.Succeeded)
		assert.Contains(t, outcome.Detail, "deleted 0")
	})

	t.Run("ListingFails", func(t *testing.T) {
		fake := &testutil.FakeGateway{Errs: map[string]error{"ListInboxRules": errors.New("timeout")}}
		_, err := runStep(t, testDeps(fake), remediation.StepRemoveRecentRules, nil)
		assert.Error(t, err)
	})

	t.Run("PartialDeletionIsReportedFailed", func(t *testing.T) {
		fake := &testutil.FakeGateway{
			Rules: []gateway.InboxRule{
				{RuleID: "r1", CreatedAt: testNow.AddDate(0, 0, -1)},
				{RuleID: "r2", CreatedAt: testNow.AddDate(0, 0, -1)},
			},
			PerItemErrs: map[string]error{"r1": errors.New("rule in use")},
		}
		outcome, err := runStep(t, testDeps(fake), remediation.StepRemoveRecentRules, nil)
		require.NoError(t, err)

		assert.False(t, outcome.Succeeded)
		assert.Contains(t, outcome.Detail, "deleted 1 of 2")
	})
}

func TestDisableForwarding(t *testing.T) {
	t.Run("ClearsMailboxAndDisablesForwardingRules", func(t *testing.T) {
		fake := &testutil.FakeGateway{
			Rules: []gateway.InboxRule{
				{RuleID: "fwd", ForwardTargets: []string{"drop@evil.example"}, Enabled: true},
				{RuleID: "redir", RedirectTargets: []string{"drop@evil.example"}, Enabled: true},
				{RuleID: "fwd-off", ForwardTargets: []string{"x@example.com"}, Enabled: false},
				{RuleID: "benign", Enabled: true},
			},
		}
		outcome, err := runStep(t, testDeps(fake), remediation.StepDisableForwarding, nil)
		require.NoError(t, err)

		assert.True(t, outcome.Succeeded)
		assert.Equal(t, 1, fake.CallCount("ClearMailboxForwarding"))
		assert.Equal(t, 2, fake.CallCount("SetInboxRuleEnabled"))
		for _, r := range fake.Rules {
			if r.Forwards() {
				assert.False(t, r.Enabled, "rule %s should be disabled", r.RuleID)
			}
		}
	})

	t.Run("NoForwardingIsSuccess", func(t *testing.T) {
		fake := &testutil.FakeGateway{}
		outcome, err := runStep(t, testDeps(fake), remediation.StepDisableForwarding, nil)
		require.NoError(t, err)

		assert.True(t, outcome.Succeeded)
		assert.Contains(t, outcome.Detail, "disabled 0")
	})

	t.Run("ClearFails", func(t *testing.T) {
		fake := &testutil.FakeGateway{Errs: map[string]error{"ClearMailboxForwarding": errors.New("denied")}}
		_, err := runStep(t, testDeps(fake), remediation.StepDisableForwarding, nil)
		assert.Error(t, err)
	})
}

func TestEnableMFA(t *testing.T) {
	t.Run("OperatorDeclines", func(t *testing.T) {
		fake := &testutil.FakeGateway{}
		deps := testDeps(fake)
		deps.Confirm = func(string) bool { return false }

		outcome, err := runStep(t, deps, remediation.StepEnableMFA, nil)
		require.NoError(t, err)

		assert.True(t, outcome.Succeeded, "declining is a deliberate no-op, not a failure")
		assert.Equal(t, "declined by operator", outcome.Detail)
		assert.Equal(t, 0, fake.CallCount("SetAuthPolicy"))
	})

	t.Run("NoConfirmFuncDeclines", func(t *testing.T) {
		fake := &testutil.FakeGateway{}
		deps := testDeps(fake)
		deps.Confirm = nil

		outcome, err := runStep(t, deps, remediation.StepEnableMFA, nil)
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.Equal(t, 0, fake.CallCount("SetAuthPolicy"))
	})

	t.Run("OperatorApproves", func(t *testing.T) {
		fake := &testutil.FakeGateway{}
		outcome, err := runStep(t, testDeps(fake), remediation.StepEnableMFA, nil)
		require.NoError(t, err)

		assert.True(t, outcome.Succeeded)
		require.Len(t, fake.PolicyUpdates, 1)
		assert.Equal(t, testTarget, fake.PolicyUpdates[0].Identity)
		assert.True(t, fake.PolicyUpdates[0].RequireSecondFactor)
		assert.Equal(t, "authenticator", fake.PolicyUpdates[0].Method)
	})

	t.Run("PolicyUpdateRejected", func(t *testing.T) {
		fake := &testutil.FakeGateway{Errs: map[string]error{"SetAuthPolicy": errors.New("policy locked")}}
		_, err := runStep(t, testDeps(fake), remediation.StepEnableMFA, nil)
		assert.Error(t, err)
	})
}

func TestExportAuditLog(t *testing.T) {
	t.Run("ExportsEvents", func(t *testing.T) {
		events := []gateway.AuditEvent{
			{EventID: "e1", Activity: "Sign-in", InitiatedBy: string(testTarget), Timestamp: testNow.Add(-time.Hour)},
			{EventID: "e2", Activity: "Add inbox rule", InitiatedBy: string(testTarget), Timestamp: testNow.Add(-2 * time.Hour)},
		}
		fake := &testutil.FakeGateway{Events: events}
		sink := &testutil.MemoryAuditSink{}
		deps := testDeps(fake)
		deps.Audit = sink

		outcome, err := runStep(t, deps, remediation.StepExportAuditLog, nil)
		require.NoError(t, err)

		assert.True(t, outcome.Succeeded)
		assert.Contains(t, outcome.Detail, "exported 2")
		assert.Equal(t, events, sink.Written[testTarget])

		// Fixed seven-day lookback ending now.
		require.Len(t, fake.Windows, 1)
		assert.Equal(t, testNow, fake.Windows[0].End)
		assert.Equal(t, testNow.Add(-7*24*time.Hour), fake.Windows[0].Start)
	})

	t.Run("ZeroEventsIsSuccess", func(t *testing.T) {
		fake := &testutil.FakeGateway{}
		outcome, err := runStep(t, testDeps(fake), remediation.StepExportAuditLog, nil)
		require.NoError(t, err)

		assert.True(t, outcome.Succeeded)
		assert.Contains(t, outcome.Detail, "exported 0")
	})

	t.Run("QueryFails", func(t *testing.T) {
		fake := &testutil.FakeGateway{Errs: map[string]error{"QueryAuditEvents": errors.New("audit service down")}}
		_, err := runStep(t, testDeps(fake), remediation.StepExportAuditLog, nil)
		assert.Error(t, err)
	})

	t.Run("SinkFails", func(t *testing.T) {
		deps := testDeps(&testutil.FakeGateway{Events: []gateway.AuditEvent{{EventID: "e1"}}})
		deps.Audit = &testutil.MemoryAuditSink{Err: errors.New("disk full")}

		_, err := runStep(t, deps, remediation.StepExportAuditLog, nil)
		assert.Error(t, err)
	})

	t.Run("LookbackOverride", func(t *testing.T) {
		fake := &testutil.FakeGateway{}
		_, err := runStep(t, testDeps(fake), remediation.StepExportAuditLog, map[string]interface{}{"lookback_days": 30})
		require.NoError(t, err)

		require.Len(t, fake.Windows, 1)
		assert.Equal(t, testNow.Add(-30*24*time.Hour), fake.Windows[0].Start)
	})
}
