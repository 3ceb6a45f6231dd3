package coop

import (
	"fmt"

	"saccochain/core/events"
	"saccochain/crypto"
)

// UpdatePolicy replaces the cooperative policy wholesale. Open proposals keep
// the deadlines stamped at creation; only future quotes and windows pick up
// the new values.
func (e *Engine) UpdatePolicy(caller crypto.Address, policy Policy) error {
	if err := e.ready(); err != nil {
		return err
	}
	admin, err := e.isAdmin(caller)
	if err != nil {
		return err
	}
	if !admin {
		return ErrNotAdmin
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	if err := e.state.CoopSetPolicy(policy.Clone()); err != nil {
		return err
	}
	if err := e.appendAudit(AuditEventPolicyUpdated, 0, caller, fmt.Sprintf("minRate=%d maxRate=%d loanQuorum=%d treasuryQuorum=%d", policy.MinInterestRateBps, policy.MaxInterestRateBps, policy.LoanQuorumBps, policy.TreasuryQuorumBps)); err != nil {
		return err
	}
	e.emit(events.CoopPolicyUpdated{Actor: caller.Raw()})
	return nil
}

// AddAdmin grants admin rights to an address. Granting rights an address
// already holds is a no-op.
func (e *Engine) AddAdmin(caller, admin crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if admin.IsZero() {
		return ErrZeroAddress
	}
	callerIsAdmin, err := e.isAdmin(caller)
	if err != nil {
		return err
	}
	if !callerIsAdmin {
		return ErrNotAdmin
	}
	admins, err := e.state.CoopAdmins()
	if err != nil {
		return err
	}
	for _, existing := range admins {
		if existing.Equal(admin) {
			return nil
		}
	}
	if err := e.state.CoopSetAdmins(append(admins, admin)); err != nil {
		return err
	}
	if err := e.appendAudit(AuditEventAdminUpdated, 0, caller, fmt.Sprintf("added=%s", admin.String())); err != nil {
		return err
	}
	e.emit(events.CoopAdminUpdated{Actor: caller.Raw(), Admin: admin.Raw(), Action: "added"})
	return nil
}

// RemoveAdmin revokes admin rights. Revoking rights an address does not hold
// is a no-op. The last admin may remove themselves; policy and admin changes
// are then frozen until governance re-seeds the set.
func (e *Engine) RemoveAdmin(caller, admin crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if admin.IsZero() {
		return ErrZeroAddress
	}
	callerIsAdmin, err := e.isAdmin(caller)
	if err != nil {
		return err
	}
	if !callerIsAdmin {
		return ErrNotAdmin
	}
	admins, err := e.state.CoopAdmins()
	if err != nil {
		return err
	}
	found := false
	filtered := admins[:0]
	for _, existing := range admins {
		if existing.Equal(admin) {
			found = true
			continue
		}
		filtered = append(filtered, existing)
	}
	if !found {
		return nil
	}
	if err := e.state.CoopSetAdmins(filtered); err != nil {
		return err
	}
	if err := e.appendAudit(AuditEventAdminUpdated, 0, caller, fmt.Sprintf("removed=%s", admin.String())); err != nil {
		return err
	}
	e.emit(events.CoopAdminUpdated{Actor: caller.Raw(), Admin: admin.Raw(), Action: "removed"})
	return nil
}
