// Package notification subscribes to domain events and fans them out to
// email and in-app notifications. Domain modules publish facts; this module
// decides who hears about them. Everything here is best-effort: failures are
// logged and never propagate back to the state transition that raised the
// event.
package notification

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"agencycrm_backend/internal/email"
	"agencycrm_backend/internal/events"
	apphttp "agencycrm_backend/internal/http"
	"agencycrm_backend/internal/identity"
	notifhandler "agencycrm_backend/internal/notification/handler"
	"agencycrm_backend/internal/notification/inapp"
	"agencycrm_backend/platform/config"
	"agencycrm_backend/platform/logger"
)

// TeamRoster lists the team members that in-app notifications fan out to.
type TeamRoster interface {
	List(ctx context.Context) ([]identity.TeamMember, error)
}

type Module struct {
	sender  email.Sender
	team    TeamRoster
	inApp   *inapp.Service
	handler *notifhandler.Handler
	cfg     config.NotificationConfig
	log     *logger.Logger
}

func NewModule(pool *pgxpool.Pool, sender email.Sender, team TeamRoster, cfg config.NotificationConfig, log *logger.Logger) *Module {
	inAppSvc := inapp.NewService(inapp.NewRepository(pool), log)
	return &Module{
		sender:  sender,
		team:    team,
		inApp:   inAppSvc,
		handler: notifhandler.New(inAppSvc),
		cfg:     cfg,
		log:     log,
	}
}

func (m *Module) Name() string {
	return "notification"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

var _ apphttp.Module = (*Module)(nil)

// RegisterHandlers subscribes to every event this module reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadConverted{}.EventName(), m)
	bus.Subscribe(events.MilestoneCompleted{}.EventName(), m)
	bus.Subscribe(events.ProjectCompleted{}.EventName(), m)
	bus.Subscribe(events.InvoiceSent{}.EventName(), m)
	bus.Subscribe(events.InvoicePaid{}.EventName(), m)
	bus.Subscribe(events.ProposalAccepted{}.EventName(), m)
	bus.Subscribe(events.ProposalDeclined{}.EventName(), m)
	bus.Subscribe(events.FollowUpDue{}.EventName(), m)
	bus.Subscribe(events.FollowUpSent{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadConverted:
		return m.handleLeadConverted(ctx, e)
	case events.MilestoneCompleted:
		return m.handleMilestoneCompleted(ctx, e)
	case events.ProjectCompleted:
		return m.handleProjectCompleted(ctx, e)
	case events.InvoiceSent:
		return m.handleInvoiceSent(ctx, e)
	case events.InvoicePaid:
		return m.handleInvoicePaid(ctx, e)
	case events.ProposalAccepted:
		return m.handleProposalAccepted(ctx, e)
	case events.ProposalDeclined:
		return m.handleProposalDeclined(ctx, e)
	case events.FollowUpDue:
		return m.handleFollowUpDue(ctx, e)
	case events.FollowUpSent:
		return m.handleFollowUpSent(ctx, e)
	}
	return nil
}

func (m *Module) handleLeadConverted(ctx context.Context, e events.LeadConverted) error {
	g, gctx := errgroup.WithContext(ctx)

	if e.ClientCreated {
		g.Go(func() error {
			if err := m.sender.SendWelcomeEmail(gctx, e.ClientEmail, e.ClientName); err != nil {
				m.log.IntegrationFailure("email", "send_welcome", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		m.notifyTeam(gctx, inapp.SendParams{
			Title:        "Lead converted",
			Content:      fmt.Sprintf("%s is now a client.", e.ClientName),
			ResourceID:   &e.ClientID,
			ResourceType: "client",
			Category:     "success",
		})
		return nil
	})

	return g.Wait()
}

func (m *Module) handleMilestoneCompleted(ctx context.Context, e events.MilestoneCompleted) error {
	m.notifyTeam(ctx, inapp.SendParams{
		Title:        "Milestone completed",
		Content:      fmt.Sprintf("%q finished in project %s.", e.Name, e.ProjectName),
		ResourceID:   &e.ProjectID,
		ResourceType: "project",
		Category:     "success",
	})
	return nil
}

func (m *Module) handleProjectCompleted(ctx context.Context, e events.ProjectCompleted) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if e.ClientEmail == "" {
			return nil
		}
		if err := m.sender.SendProjectCompletedEmail(gctx, e.ClientEmail, e.ClientName, e.ProjectName); err != nil {
			m.log.IntegrationFailure("email", "send_project_completed", err)
		}
		return nil
	})
	g.Go(func() error {
		m.notifyTeam(gctx, inapp.SendParams{
			Title:        "Project delivered",
			Content:      fmt.Sprintf("Project %s for %s is complete.", e.ProjectName, e.ClientName),
			ResourceID:   &e.ProjectID,
			ResourceType: "project",
			Category:     "success",
		})
		return nil
	})

	return g.Wait()
}

func (m *Module) handleInvoiceSent(ctx context.Context, e events.InvoiceSent) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var attachments []email.Attachment
		if e.PaymentURL != "" {
			// A scannable payment link makes paper-friendly invoices; skip
			// the attachment if encoding fails rather than blocking the send.
			if png, err := qrcode.Encode(e.PaymentURL, qrcode.Medium, 256); err == nil {
				attachments = append(attachments, email.Attachment{FileName: "pay-invoice.png", Content: png})
			}
		}
		if err := m.sender.SendInvoiceEmail(gctx, e.ClientEmail, e.ClientName, e.Title, e.TotalCents, e.PaymentURL, attachments...); err != nil {
			m.log.IntegrationFailure("email", "send_invoice", err)
		}
		return nil
	})
	g.Go(func() error {
		m.notifyTeam(gctx, inapp.SendParams{
			Title:        "Invoice sent",
			Content:      fmt.Sprintf("%s went out to %s.", e.Title, e.ClientName),
			ResourceID:   &e.InvoiceID,
			ResourceType: "invoice",
		})
		return nil
	})

	return g.Wait()
}

func (m *Module) handleInvoicePaid(ctx context.Context, e events.InvoicePaid) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		to := m.cfg.GetTeamNotifyEmail()
		if to == "" {
			return nil
		}
		link := m.cfg.GetAppBaseURL() + "/invoices/" + e.InvoiceID.String()
		body := fmt.Sprintf("<p>%s was paid (%s).</p><p><a href=%q>Open in the CRM</a></p>",
			e.Title, formatCents(e.TotalCents), link)
		if err := m.sender.SendCustomEmail(gctx, to, "Invoice paid: "+e.Title, body); err != nil {
			m.log.IntegrationFailure("email", "send_invoice_paid", err)
		}
		return nil
	})
	g.Go(func() error {
		m.notifyTeam(gctx, inapp.SendParams{
			Title:        "Invoice paid",
			Content:      fmt.Sprintf("%s was paid (%s).", e.Title, formatCents(e.TotalCents)),
			ResourceID:   &e.InvoiceID,
			ResourceType: "invoice",
			Category:     "success",
		})
		return nil
	})

	return g.Wait()
}

func (m *Module) handleProposalAccepted(ctx context.Context, e events.ProposalAccepted) error {
	m.notifyTeam(ctx, inapp.SendParams{
		Title:        "Proposal accepted",
		Content:      fmt.Sprintf("%q was accepted.", e.Title),
		ResourceID:   &e.ProposalID,
		ResourceType: "proposal",
		Category:     "success",
	})
	return nil
}

func (m *Module) handleProposalDeclined(ctx context.Context, e events.ProposalDeclined) error {
	m.notifyTeam(ctx, inapp.SendParams{
		Title:        "Proposal declined",
		Content:      fmt.Sprintf("%q was declined.", e.Title),
		ResourceID:   &e.ProposalID,
		ResourceType: "proposal",
		Category:     "warning",
	})
	return nil
}

func (m *Module) handleFollowUpDue(ctx context.Context, e events.FollowUpDue) error {
	m.notifyTeam(ctx, inapp.SendParams{
		Title:        "Follow-up due",
		Content:      "A follow-up reminder is waiting for review.",
		ResourceID:   &e.FollowUpID,
		ResourceType: "follow_up",
		Category:     "warning",
	})
	return nil
}

func (m *Module) handleFollowUpSent(ctx context.Context, e events.FollowUpSent) error {
	m.notifyTeam(ctx, inapp.SendParams{
		Title:        "Follow-up sent",
		Content:      fmt.Sprintf("Follow-up %q went out.", e.Subject),
		ResourceID:   &e.LeadID,
		ResourceType: "lead",
	})
	return nil
}

// notifyTeam stores one in-app notification per team member, concurrently.
func (m *Module) notifyTeam(ctx context.Context, p inapp.SendParams) {
	members, err := m.team.List(ctx)
	if err != nil {
		m.log.DatabaseError("list_team_members", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, member := range members {
		params := p
		params.UserID = member.ID
		g.Go(func() error {
			if err := m.inApp.Send(gctx, params); err != nil {
				m.log.Error("in-app notification failed", "userId", params.UserID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
