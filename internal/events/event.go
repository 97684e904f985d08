// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"agencycrm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Pipeline Events
// =============================================================================

// LeadStageChanged is published whenever a lead moves to a different pipeline
// stage, whether by a manual drag or an automatic cascade.
type LeadStageChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	LeadName  string    `json:"leadName"`
	OldStage  string    `json:"oldStage"`
	NewStage  string    `json:"newStage"`
	Automatic bool      `json:"automatic"`
	Reason    string    `json:"reason,omitempty"`
	ActorID   uuid.UUID `json:"actorId"`
}

func (e LeadStageChanged) EventName() string { return "leads.stage.changed" }

// LeadConverted is published when a lead is converted into a client.
// ClientCreated reports whether the conversion created a new client row or
// linked to an existing one found by email.
type LeadConverted struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	ClientID      uuid.UUID `json:"clientId"`
	ClientEmail   string    `json:"clientEmail"`
	ClientName    string    `json:"clientName"`
	ClientCreated bool      `json:"clientCreated"`
	ActorID       uuid.UUID `json:"actorId"`
}

func (e LeadConverted) EventName() string { return "leads.converted" }

// =============================================================================
// Client Portal Events
// =============================================================================

// PortalInviteSent is published after a portal invite email is dispatched.
type PortalInviteSent struct {
	BaseEvent
	ClientID    uuid.UUID `json:"clientId"`
	ClientEmail string    `json:"clientEmail"`
	InviteCount int       `json:"inviteCount"`
}

func (e PortalInviteSent) EventName() string { return "clients.portal.invite_sent" }

// PortalAccessRevoked is published when a client's portal access is revoked.
type PortalAccessRevoked struct {
	BaseEvent
	ClientID uuid.UUID `json:"clientId"`
	ActorID  uuid.UUID `json:"actorId"`
}

func (e PortalAccessRevoked) EventName() string { return "clients.portal.revoked" }

// PortalAccessRestored is published when a client's portal access is restored.
type PortalAccessRestored struct {
	BaseEvent
	ClientID uuid.UUID `json:"clientId"`
	ActorID  uuid.UUID `json:"actorId"`
}

func (e PortalAccessRestored) EventName() string { return "clients.portal.restored" }

// =============================================================================
// Project / Milestone Events
// =============================================================================

// MilestoneStarted is published when a milestone first moves to in_progress.
type MilestoneStarted struct {
	BaseEvent
	MilestoneID   uuid.UUID  `json:"milestoneId"`
	ProjectID     uuid.UUID  `json:"projectId"`
	ProjectLeadID *uuid.UUID `json:"projectLeadId,omitempty"`
	Name          string     `json:"name"`
}

func (e MilestoneStarted) EventName() string { return "projects.milestone.started" }

// MilestoneCompleted is published when a milestone transitions into completed.
type MilestoneCompleted struct {
	BaseEvent
	MilestoneID uuid.UUID `json:"milestoneId"`
	ProjectID   uuid.UUID `json:"projectId"`
	ProjectName string    `json:"projectName"`
	Name        string    `json:"name"`
	ActorID     uuid.UUID `json:"actorId"`
}

func (e MilestoneCompleted) EventName() string { return "projects.milestone.completed" }

// ProjectCompleted is published after a project completion cascade commits.
type ProjectCompleted struct {
	BaseEvent
	ProjectID   uuid.UUID `json:"projectId"`
	ProjectName string    `json:"projectName"`
	ClientID    uuid.UUID `json:"clientId"`
	ClientEmail string    `json:"clientEmail"`
	ClientName  string    `json:"clientName"`
	ActorID     uuid.UUID `json:"actorId"`
}

func (e ProjectCompleted) EventName() string { return "projects.completed" }

// =============================================================================
// Billing Events
// =============================================================================

// InvoiceCreated is published when a new invoice row exists, whether drafted
// manually or generated by a milestone completion cascade.
type InvoiceCreated struct {
	BaseEvent
	InvoiceID   uuid.UUID  `json:"invoiceId"`
	ClientID    uuid.UUID  `json:"clientId"`
	MilestoneID *uuid.UUID `json:"milestoneId,omitempty"`
	Title       string     `json:"title"`
	TotalCents  int64      `json:"totalCents"`
	AutoCreated bool       `json:"autoCreated"`
}

func (e InvoiceCreated) EventName() string { return "billing.invoice.created" }

// InvoiceSent is published after an invoice is sent through the provider.
type InvoiceSent struct {
	BaseEvent
	InvoiceID   uuid.UUID `json:"invoiceId"`
	ClientID    uuid.UUID `json:"clientId"`
	ClientEmail string    `json:"clientEmail"`
	ClientName  string    `json:"clientName"`
	Title       string    `json:"title"`
	TotalCents  int64     `json:"totalCents"`
	PaymentURL  string    `json:"paymentUrl,omitempty"`
}

func (e InvoiceSent) EventName() string { return "billing.invoice.sent" }

// InvoicePaid is published when an invoice is marked paid.
type InvoicePaid struct {
	BaseEvent
	InvoiceID  uuid.UUID `json:"invoiceId"`
	ClientID   uuid.UUID `json:"clientId"`
	Title      string    `json:"title"`
	TotalCents int64     `json:"totalCents"`
}

func (e InvoicePaid) EventName() string { return "billing.invoice.paid" }

// =============================================================================
// Proposal Events
// =============================================================================

// ProposalSent is published when a proposal is sent to its recipient.
type ProposalSent struct {
	BaseEvent
	ProposalID     uuid.UUID `json:"proposalId"`
	RecipientEmail string    `json:"recipientEmail"`
	RecipientName  string    `json:"recipientName"`
	Title          string    `json:"title"`
}

func (e ProposalSent) EventName() string { return "proposals.sent" }

// ProposalAccepted is published when a recipient accepts a proposal.
type ProposalAccepted struct {
	BaseEvent
	ProposalID uuid.UUID  `json:"proposalId"`
	LeadID     *uuid.UUID `json:"leadId,omitempty"`
	Title      string     `json:"title"`
}

func (e ProposalAccepted) EventName() string { return "proposals.accepted" }

// ProposalDeclined is published when a recipient declines a proposal.
type ProposalDeclined struct {
	BaseEvent
	ProposalID uuid.UUID `json:"proposalId"`
	Title      string    `json:"title"`
}

func (e ProposalDeclined) EventName() string { return "proposals.declined" }

// =============================================================================
// Follow-Up Events
// =============================================================================

// FollowUpCreated is published when the scheduler enqueues a new follow-up.
// The drafting pipeline subscribes to attach an AI-drafted subject/body.
type FollowUpCreated struct {
	BaseEvent
	FollowUpID    uuid.UUID `json:"followUpId"`
	LeadID        uuid.UUID `json:"leadId"`
	TriggerReason string    `json:"triggerReason"`
	RemindAt      time.Time `json:"remindAt"`
}

func (e FollowUpCreated) EventName() string { return "followups.created" }

// FollowUpDue is published when a pending follow-up's reminder time passes.
// The notification module turns it into a review prompt for the team.
type FollowUpDue struct {
	BaseEvent
	FollowUpID uuid.UUID `json:"followUpId"`
	LeadID     uuid.UUID `json:"leadId"`
}

func (e FollowUpDue) EventName() string { return "followups.due" }

// FollowUpSent is published after an approved follow-up email goes out.
type FollowUpSent struct {
	BaseEvent
	FollowUpID uuid.UUID `json:"followUpId"`
	LeadID     uuid.UUID `json:"leadId"`
	Subject    string    `json:"subject"`
}

func (e FollowUpSent) EventName() string { return "followups.sent" }
