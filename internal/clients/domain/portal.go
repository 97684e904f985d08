// Package domain holds the client portal access rules.
package domain

import "time"

// AccessState is the derived portal access state. It is never stored;
// every read computes it from the invite, login and revoke fields so the
// three can be mutated independently without drift.
type AccessState string

const (
	AccessNotInvited         AccessState = "not_invited"
	AccessAwaitingFirstLogin AccessState = "awaiting_first_login"
	AccessActive             AccessState = "active"
	AccessRevoked            AccessState = "revoked"
)

// Invite rate limit: at most MaxInvitesPerWindow invites per rolling
// InviteWindow, counted from an append-only invite log.
const (
	MaxInvitesPerWindow = 3
	InviteWindow        = 24 * time.Hour
)

// AccessStateOf derives the portal state. Revoked overlays everything;
// clearing it restores whatever the other fields imply, so no "previous
// state" needs to be persisted.
func AccessStateOf(invitedAt, firstLoginAt *time.Time, revoked bool) AccessState {
	if revoked {
		return AccessRevoked
	}
	if firstLoginAt != nil {
		return AccessActive
	}
	if invitedAt != nil {
		return AccessAwaitingFirstLogin
	}
	return AccessNotInvited
}
