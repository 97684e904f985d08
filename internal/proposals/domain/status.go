// Package domain holds the proposal status rules.
package domain

// ProposalStatus follows the same forward-only pipeline as invoices, with
// accept/decline as the terminal branch pair. Lifecycle timestamps are
// once-only: none of sentAt, viewedAt, acceptedAt or declinedAt is ever
// cleared.
type ProposalStatus string

const (
	ProposalDraft    ProposalStatus = "draft"
	ProposalSent     ProposalStatus = "sent"
	ProposalViewed   ProposalStatus = "viewed"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalDeclined ProposalStatus = "declined"
)

func ValidProposalStatus(s ProposalStatus) bool {
	switch s {
	case ProposalDraft, ProposalSent, ProposalViewed, ProposalAccepted, ProposalDeclined:
		return true
	}
	return false
}

// CanSend mirrors the invoice rule: only drafts go out.
func CanSend(s ProposalStatus) bool {
	return s == ProposalDraft
}

// CanMarkViewed gates the viewed stamp; later states quietly ignore it.
func CanMarkViewed(s ProposalStatus) bool {
	return s == ProposalSent
}

// CanDecide reports whether accept or decline is still open.
func CanDecide(s ProposalStatus) bool {
	return s == ProposalSent || s == ProposalViewed
}

// Terminal reports whether the proposal reached a final state.
func Terminal(s ProposalStatus) bool {
	return s == ProposalAccepted || s == ProposalDeclined
}
