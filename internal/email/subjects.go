package email

const (
	subjectWelcome          = "Welcome! Let's build something great together"
	subjectPortalInvite     = "Your client portal access"
	subjectProjectCompleted = "Project delivered: %s"
	subjectInvoice          = "New invoice: %s"
	subjectProposal         = "Proposal ready for review: %s"
)
