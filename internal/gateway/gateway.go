// SPDX-License-Identifier: Apache-2.0

// Package gateway defines the contract to the identity/mail backend.
// The pipeline consumes this interface; establishing the authenticated
// session behind it is the integration's responsibility.
package gateway

import (
	"context"
	"time"

	"github.com/jdyer-nuvodia/lockdown/internal/core/models"
)

// CredentialReset carries a replacement credential for an account.
type CredentialReset struct {
	NewSecret           string
	ForceChangeAtSignIn bool
}

// DelegateGrant is a mailbox access grant held by another principal.
type DelegateGrant struct {
	GrantID string `json:"grant_id" yaml:"grant_id"`
	Grantee string `json:"grantee" yaml:"grantee"`
}

// InboxRule is a server-side mail rule on the target mailbox.
type InboxRule struct {
	RuleID              string    `json:"rule_id" yaml:"rule_id"`
	Name                string    `json:"name" yaml:"name"`
	CreatedAt           time.Time `json:"created_at" yaml:"created_at"`
	ForwardTargets      []string  `json:"forward_targets,omitempty" yaml:"forward_targets,omitempty"`
	RedirectTargets     []string  `json:"redirect_targets,omitempty" yaml:"redirect_targets,omitempty"`
	ForwardAsAttachment []string  `json:"forward_as_attachment,omitempty" yaml:"forward_as_attachment,omitempty"`
	Enabled             bool      `json:"enabled" yaml:"enabled"`
}

// Forwards reports whether the rule's action sends mail elsewhere.
func (r InboxRule) Forwards() bool {
	return len(r.ForwardTargets) > 0 || len(r.RedirectTargets) > 0 || len(r.ForwardAsAttachment) > 0
}

// AuthPolicyUpdate requests a change to an account's authentication-method
// policy.
type AuthPolicyUpdate struct {
	Identity            models.TargetIdentity
	RequireSecondFactor bool
	Method              string
}

// AuditEvent is one directory-audit record.
type AuditEvent struct {
	EventID     string    `json:"event_id" yaml:"event_id"`
	Activity    string    `json:"activity" yaml:"activity"`
	InitiatedBy string    `json:"initiated_by" yaml:"initiated_by"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	Result      string    `json:"result" yaml:"result"`
}

// Gateway is the authenticated handle to the identity/mail backend.
type Gateway interface {
	// ResetCredential replaces the account credential.
	ResetCredential(ctx context.Context, identity models.TargetIdentity, reset CredentialReset) error
	// RevokeSessions invalidates all active sessions for the account.
	RevokeSessions(ctx context.Context, identity models.TargetIdentity) error
	// ListDelegateGrants enumerates mailbox delegate grants.
	ListDelegateGrants(ctx context.Context, identity models.TargetIdentity) ([]DelegateGrant, error)
	// RemoveDelegateGrant removes a single delegate grant.
	RemoveDelegateGrant(ctx context.Context, identity models.TargetIdentity, grantID string) error
	// ListInboxRules enumerates server-side inbox rules.
	ListInboxRules(ctx context.Context, identity models.TargetIdentity) ([]InboxRule, error)
	// DeleteInboxRule deletes a single inbox rule.
	DeleteInboxRule(ctx context.Context, identity models.TargetIdentity, ruleID string) error
	// SetInboxRuleEnabled enables or disables a single inbox rule.
	SetInboxRuleEnabled(ctx context.Context, identity models.TargetIdentity, ruleID string, enabled bool) error
	// ClearMailboxForwarding clears the mailbox-level forwarding setting.
	ClearMailboxForwarding(ctx context.Context, identity models.TargetIdentity) error
	// SetAuthPolicy updates the authentication-method policy.
	SetAuthPolicy(ctx context.Context, update AuthPolicyUpdate) error
	// QueryAuditEvents returns audit events initiated by the identity
	// within the window. Zero results is not an error.
	QueryAuditEvents(ctx context.Context, identity models.TargetIdentity, window models.AuditWindow) ([]AuditEvent, error)
}

// Nop returns a Gateway that accepts every call and returns empty results.
// Used for dry runs, where the pipeline needs a gateway handle but never
// issues a backend call.
func Nop() Gateway {
	return nopGateway{}
}

type nopGateway struct{}

func (nopGateway) ResetCredential(context.Context, models.TargetIdentity, CredentialReset) error {
	return nil
}
func (nopGateway) RevokeSessions(context.Context, models.TargetIdentity) error { return nil }
func (nopGateway) ListDelegateGrants(context.Context, models.TargetIdentity) ([]DelegateGrant, error) {
	return nil, nil
}
func (nopGateway) RemoveDelegateGrant(context.Context, models.TargetIdentity, string) error {
	return nil
}
func (nopGateway) ListInboxRules(context.Context, models.TargetIdentity) ([]InboxRule, error) {
	return nil, nil
}
func (nopGateway) DeleteInboxRule(context.Context, models.TargetIdentity, string) error { return nil }
func (nopGateway) SetInboxRuleEnabled(context.Context, models.TargetIdentity, string, bool) error {
	return nil
}
func (nopGateway) ClearMailboxForwarding(context.Context, models.TargetIdentity) error { return nil }
func (nopGateway) SetAuthPolicy(context.Context, AuthPolicyUpdate) error               { return nil }
func (nopGateway) QueryAuditEvents(context.Context, models.TargetIdentity, models.AuditWindow) ([]AuditEvent, error) {
	return nil, nil
}
