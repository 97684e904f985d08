// Package email delivers transactional email for the CRM. Delivery is
// best-effort everywhere except follow-up approval, where the send is the
// whole point of the operation.
package email

import (
	"context"

	"agencycrm_backend/platform/config"
)

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	FileName string
	Content  []byte
}

// Sender is the outbound email contract used across modules.
type Sender interface {
	SendWelcomeEmail(ctx context.Context, to, name string) error
	SendPortalInviteEmail(ctx context.Context, to, name, portalURL string) error
	SendProjectCompletedEmail(ctx context.Context, to, name, projectName string) error
	SendInvoiceEmail(ctx context.Context, to, name, title string, totalCents int64, paymentURL string, attachments ...Attachment) error
	SendProposalEmail(ctx context.Context, to, name, title, viewURL string) error
	SendFollowUpEmail(ctx context.Context, to, subject, body string) error
	SendCustomEmail(ctx context.Context, to, subject, html string) error
}

// NewSender returns the configured sender implementation; a no-op sender
// when email is disabled so development environments never try to dial SMTP.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() || cfg.GetSMTPHost() == "" {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}

// NoopSender drops every message. Used when email is disabled and in tests.
type NoopSender struct{}

func (NoopSender) SendWelcomeEmail(context.Context, string, string) error                { return nil }
func (NoopSender) SendPortalInviteEmail(context.Context, string, string, string) error   { return nil }
func (NoopSender) SendProjectCompletedEmail(context.Context, string, string, string) error {
	return nil
}
func (NoopSender) SendInvoiceEmail(context.Context, string, string, string, int64, string, ...Attachment) error {
	return nil
}
func (NoopSender) SendProposalEmail(context.Context, string, string, string, string) error {
	return nil
}
func (NoopSender) SendFollowUpEmail(context.Context, string, string, string) error { return nil }
func (NoopSender) SendCustomEmail(context.Context, string, string, string) error   { return nil }
