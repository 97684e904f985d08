package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		msg.AttachReader(att.FileName, bytes.NewReader(att.Content))
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendWelcomeEmail(ctx context.Context, to, name string) error {
	return s.send(ctx, to, subjectWelcome, welcomeHTML(name))
}

func (s *SMTPSender) SendPortalInviteEmail(ctx context.Context, to, name, portalURL string) error {
	return s.send(ctx, to, subjectPortalInvite, portalInviteHTML(name, portalURL))
}

func (s *SMTPSender) SendProjectCompletedEmail(ctx context.Context, to, name, projectName string) error {
	return s.send(ctx, to, fmt.Sprintf(subjectProjectCompleted, projectName), projectCompletedHTML(name, projectName))
}

func (s *SMTPSender) SendInvoiceEmail(ctx context.Context, to, name, title string, totalCents int64, paymentURL string, attachments ...Attachment) error {
	return s.send(ctx, to, fmt.Sprintf(subjectInvoice, title), invoiceHTML(name, title, totalCents, paymentURL), attachments...)
}

func (s *SMTPSender) SendProposalEmail(ctx context.Context, to, name, title, viewURL string) error {
	return s.send(ctx, to, fmt.Sprintf(subjectProposal, title), proposalHTML(name, title, viewURL))
}

func (s *SMTPSender) SendFollowUpEmail(ctx context.Context, to, subject, body string) error {
	return s.send(ctx, to, subject, followUpHTML(body))
}

func (s *SMTPSender) SendCustomEmail(ctx context.Context, to, subject, html string) error {
	return s.send(ctx, to, subject, html)
}

var _ Sender = (*SMTPSender)(nil)
