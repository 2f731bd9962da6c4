// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jdyer-nuvodia/lockdown/internal/core/models"
	"github.com/jdyer-nuvodia/lockdown/internal/gateway"
)

// MockGateway is a testify mock over the Gateway interface, for tests that
// need per-call expectations.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ResetCredential(ctx context.Context, identity models.TargetIdentity, reset gateway.CredentialReset) error {
	args := m.Called(ctx, identity, reset)
	return args.Error(0)
}

func (m *MockGateway) RevokeSessions(ctx context.Context, identity models.TargetIdentity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockGateway) ListDelegateGrants(ctx context.Context, identity models.TargetIdentity) ([]gateway.DelegateGrant, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.DelegateGrant), args.Error(1)
}

func (m *MockGateway) RemoveDelegateGrant(ctx context.Context, identity models.TargetIdentity, grantID string) error {
	args := m.Called(ctx, identity, grantID)
	return args.Error(0)
}

func (m *MockGateway) ListInboxRules(ctx context.Context, identity models.TargetIdentity) ([]gateway.InboxRule, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.InboxRule), args.Error(1)
}

func (m *MockGateway) DeleteInboxRule(ctx context.Context, identity models.TargetIdentity, ruleID string) error {
	args := m.Called(ctx, identity, ruleID)
	return args.Error(0)
}

func (m *MockGateway) SetInboxRuleEnabled(ctx context.Context, identity models.TargetIdentity, ruleID string, enabled bool) error {
	args := m.Called(ctx, identity, ruleID, enabled)
	return args.Error(0)
}

func (m *MockGateway) ClearMailboxForwarding(ctx context.Context, identity models.TargetIdentity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockGateway) SetAuthPolicy(ctx context.Context, update gateway.AuthPolicyUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *MockGateway) QueryAuditEvents(ctx context.Context, identity models.TargetIdentity, window models.AuditWindow) ([]gateway.AuditEvent, error) {
	args := m.Called(ctx, identity, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.AuditEvent), args.Error(1)
}

// FakeGateway is a stateful in-memory backend. It records call order, lets
// tests inject per-method errors, and mutates its own state on removals so
// re-running a step observes the already-satisfied invariant.
type FakeGateway struct {
	Calls []string

	Grants []gateway.DelegateGrant
	Rules  []gateway.InboxRule
	Events []gateway.AuditEvent

	// Errs maps a method name ("ListInboxRules", ...) to the error it
	// should return.
	Errs map[string]error

	// PerItemErrs maps a grant or rule ID to the error its removal,
	// deletion, or disable call should return.
	PerItemErrs map[string]error

	Resets        []gateway.CredentialReset
	PolicyUpdates []gateway.AuthPolicyUpdate
	Windows       []models.AuditWindow
}

func (f *FakeGateway) record(method string) error {
	f.Calls = append(f.Calls, method)
	if f.Errs != nil {
		return f.Errs[method]
	}
	return nil
}

func (f *FakeGateway) itemErr(id string) error {
	if f.PerItemErrs != nil {
		return f.PerItemErrs[id]
	}
	return nil
}

// CallCount returns how many times the named method was invoked.
func (f *FakeGateway) CallCount(method string) int {
	n := 0
	for _, c := range f.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *FakeGateway) ResetCredential(_ context.Context, _ models.TargetIdentity, reset gateway.CredentialReset) error {
	if err := f.record("ResetCredential"); err != nil {
		return err
	}
	f.Resets = append(f.Resets, reset)
	return nil
}

func (f *FakeGateway) RevokeSessions(_ context.Context, _ models.TargetIdentity) error {
	return f.record("RevokeSessions")
}

func (f *FakeGateway) ListDelegateGrants(_ context.Context, _ models.TargetIdentity) ([]gateway.DelegateGrant, error) {
	if err := f.record("ListDelegateGrants"); err != nil {
		return nil, err
	}
	out := make([]gateway.DelegateGrant, len(f.Grants))
	copy(out, f.Grants)
	return out, nil
}

func (f *FakeGateway) RemoveDelegateGrant(_ context.Context, _ models.TargetIdentity, grantID string) error {
	if err := f.record("RemoveDelegateGrant"); err != nil {
		return err
	}
	if err := f.itemErr(grantID); err != nil {
		return err
	}
	kept := f.Grants[:0]
	for _, g := range f.Grants {
		if g.GrantID != grantID {
			kept = append(kept, g)
		}
	}
	f.Grants = kept
	return nil
}

func (f *FakeGateway) ListInboxRules(_ context.Context, _ models.TargetIdentity) ([]gateway.InboxRule, error) {
	if err := f.record("ListInboxRules"); err != nil {
		return nil, err
	}
	out := make([]gateway.InboxRule, len(f.Rules))
	copy(out, f.Rules)
	return out, nil
}

func (f *FakeGateway) DeleteInboxRule(_ context.Context, _ models.TargetIdentity, ruleID string) error {
	if err := f.record("DeleteInboxRule"); err != nil {
		return err
	}
	if err := f.itemErr(ruleID); err != nil {
		return err
	}
	kept := f.Rules[:0]
	for _, r := range f.Rules {
		if r.RuleID != ruleID {
			kept = append(kept, r)
		}
	}
	f.Rules = kept
	return nil
}

func (f *FakeGateway) SetInboxRuleEnabled(_ context.Context, _ models.TargetIdentity, ruleID string, enabled bool) error {
	if err := f.record("SetInboxRuleEnabled"); err != nil {
		return err
	}
	if err := f.itemErr(ruleID); err != nil {
		return err
	}
	for i := range f.Rules {
		if f.Rules[i].RuleID == ruleID {
			f.Rules[i].Enabled = enabled
		}
	}
	return nil
}

func (f *FakeGateway) ClearMailboxForwarding(_ context.Context, _ models.TargetIdentity) error {
	return f.record("ClearMailboxForwarding")
}

func (f *FakeGateway) SetAuthPolicy(_ context.Context, update gateway.AuthPolicyUpdate) error {
	if err := f.record("SetAuthPolicy"); err != nil {
		return err
	}
	f.PolicyUpdates = append(f.PolicyUpdates, update)
	return nil
}

func (f *FakeGateway) QueryAuditEvents(_ context.Context, _ models.TargetIdentity, window models.AuditWindow) ([]gateway.AuditEvent, error) {
	if err := f.record("QueryAuditEvents"); err != nil {
		return nil, err
	}
	f.Windows = append(f.Windows, window)
	out := make([]gateway.AuditEvent, len(f.Events))
	copy(out, f.Events)
	return out, nil
}

// MemorySecretSink captures stored secrets.
type MemorySecretSink struct {
	Secrets map[models.TargetIdentity]string
	Err     error
}

func (s *MemorySecretSink) StoreSecret(identity models.TargetIdentity, secret string) error {
	if s.Err != nil {
		return s.Err
	}
	if s.Secrets == nil {
		s.Secrets = make(map[models.TargetIdentity]string)
	}
	s.Secrets[identity] = secret
	return nil
}

// MemoryAuditSink captures exported audit events.
type MemoryAuditSink struct {
	Written map[models.TargetIdentity][]gateway.AuditEvent
	Err     error
}

func (s *MemoryAuditSink) WriteEvents(identity models.TargetIdentity, events []gateway.AuditEvent) error {
	if s.Err != nil {
		return s.Err
	}
	if s.Written == nil {
		s.Written = make(map[models.TargetIdentity][]gateway.AuditEvent)
	}
	s.Written[identity] = append(s.Written[identity], events...)
	return nil
}
