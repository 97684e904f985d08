// Package service implements the invoice workflow: manual drafting, the
// milestone-triggered auto-creation path, sending through the provider, and
// the paid/viewed/cancelled/overdue transitions.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/billing/domain"
	"agencycrm_backend/internal/billing/repository"
	"agencycrm_backend/internal/billing/square"
	"agencycrm_backend/internal/billing/transport"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/platform/apperr"
	"agencycrm_backend/platform/logger"

	"github.com/google/uuid"
)

const msgInvoiceNotFound = "invoice not found"

// Repository is the data access surface the billing workflow needs.
type Repository interface {
	Create(ctx context.Context, params repository.CreateInvoiceParams) (repository.Invoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Invoice, error)
	FindByMilestone(ctx context.Context, milestoneID uuid.UUID) (repository.Invoice, error)
	List(ctx context.Context, clientID *uuid.UUID) ([]repository.Invoice, error)
	ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]repository.LineItem, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]repository.Payment, error)
	MarkSent(ctx context.Context, id uuid.UUID, externalID, paymentURL *string) (repository.Invoice, error)
	MarkViewed(ctx context.Context, id uuid.UUID) (repository.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID, amountCents int64, method string) (repository.Invoice, error)
	Cancel(ctx context.Context, id uuid.UUID) (repository.Invoice, error)
	SweepOverdue(ctx context.Context, now time.Time) (int, error)
}

// Provider is the invoicing provider port. May be nil when not configured.
type Provider interface {
	CreateInvoice(ctx context.Context, req square.InvoiceRequest) (square.InvoiceResult, error)
}

// ClientReader resolves recipient contact details for sends.
type ClientReader interface {
	GetContact(ctx context.Context, clientID uuid.UUID) (email, name string, err error)
}

type Service struct {
	repo     Repository
	provider Provider
	clients  ClientReader
	activity activity.Writer
	bus      events.Bus
	log      *logger.Logger
}

func New(repo Repository, provider Provider, clients ClientReader, act activity.Writer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		clients:  clients,
		activity: act,
		bus:      bus,
		log:      log,
	}
}

// Create drafts a manual invoice. The stated total must equal the line item
// sum; mismatches are rejected rather than silently recalculated.
func (s *Service) Create(ctx context.Context, req transport.CreateInvoiceRequest, actorID uuid.UUID) (transport.InvoiceResponse, error) {
	items := make([]repository.LineItemParams, 0, len(req.LineItems))
	var sum int64
	for _, in := range req.LineItems {
		amount := in.UnitCents * int64(in.Quantity)
		sum += amount
		items = append(items, repository.LineItemParams{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitCents:   in.UnitCents,
			AmountCents: amount,
		})
	}
	if sum != req.TotalCents {
		return transport.InvoiceResponse{}, apperr.Validation(
			fmt.Sprintf("total %d does not match line item sum %d", req.TotalCents, sum))
	}

	invoice, err := s.repo.Create(ctx, repository.CreateInvoiceParams{
		ClientID:   req.ClientID,
		ProjectID:  req.ProjectID,
		Title:      req.Title,
		TotalCents: req.TotalCents,
		DueDate:    req.DueDate,
		LineItems:  items,
	})
	if err != nil {
		return transport.InvoiceResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "invoice",
		EntityID:   invoice.ID,
		Action:     "invoice.created",
		ActorType:  "user",
		ActorID:    &actorID,
	})
	s.bus.Publish(ctx, events.InvoiceCreated{
		BaseEvent:  events.NewBaseEvent(),
		InvoiceID:  invoice.ID,
		ClientID:   invoice.ClientID,
		Title:      invoice.Title,
		TotalCents: invoice.TotalCents,
	})

	return transport.ToInvoiceResponse(invoice), nil
}

// MilestoneInvoiceParams is the auto-creation input from a completed
// milestone.
type MilestoneInvoiceParams struct {
	ClientID      uuid.UUID
	ProjectID     uuid.UUID
	MilestoneID   uuid.UUID
	ProjectName   string
	MilestoneName string
	AmountCents   int64
}

// CreateForMilestone creates the one invoice a milestone may ever have.
// A milestone that already has its invoice is a no-op, which makes the
// completion cascade safe to re-run. After creation the invoice is sent
// through the provider when one is configured; a send failure leaves it in
// draft and is not an error here.
func (s *Service) CreateForMilestone(ctx context.Context, p MilestoneInvoiceParams) error {
	if _, err := s.repo.FindByMilestone(ctx, p.MilestoneID); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	title := fmt.Sprintf("%s — %s", p.ProjectName, p.MilestoneName)
	invoice, err := s.repo.Create(ctx, repository.CreateInvoiceParams{
		ClientID:    p.ClientID,
		ProjectID:   &p.ProjectID,
		MilestoneID: &p.MilestoneID,
		Title:       title,
		TotalCents:  p.AmountCents,
		LineItems: []repository.LineItemParams{{
			Description: p.MilestoneName,
			Quantity:    1,
			UnitCents:   p.AmountCents,
			AmountCents: p.AmountCents,
		}},
	})
	if err != nil {
		return err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "invoice",
		EntityID:   invoice.ID,
		Action:     "invoice.auto_created",
		ActorType:  "system",
		Metadata:   map[string]any{"milestoneId": p.MilestoneID.String()},
	})
	s.bus.Publish(ctx, events.InvoiceCreated{
		BaseEvent:   events.NewBaseEvent(),
		InvoiceID:   invoice.ID,
		ClientID:    invoice.ClientID,
		MilestoneID: invoice.MilestoneID,
		Title:       invoice.Title,
		TotalCents:  invoice.TotalCents,
		AutoCreated: true,
	})

	if s.provider != nil {
		if _, err := s.send(ctx, invoice); err != nil {
			s.log.IntegrationFailure("square", "auto_send_invoice", err)
		}
	}
	return nil
}

// Send pushes a draft invoice through the provider. Unlike the auto-send
// after milestone completion, a failure here surfaces: the send is what the
// caller asked for.
func (s *Service) Send(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (transport.InvoiceResponse, error) {
	invoice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.InvoiceResponse{}, apperr.NotFound(msgInvoiceNotFound)
		}
		return transport.InvoiceResponse{}, err
	}

	if !domain.CanSend(invoice.Status) {
		return transport.InvoiceResponse{}, apperr.Validation(
			fmt.Sprintf("invoice in status %s cannot be sent; only drafts can", invoice.Status))
	}

	sent, err := s.send(ctx, invoice)
	if err != nil {
		return transport.InvoiceResponse{}, apperr.Wrap(apperr.KindIntegration, "invoicing provider rejected the send", err)
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "invoice",
		EntityID:   id,
		Action:     "invoice.sent",
		ActorType:  "user",
		ActorID:    &actorID,
	})

	return transport.ToInvoiceResponse(sent), nil
}

// send does the provider call and stamps the linkage. When no provider is
// configured the invoice still moves to sent; the email the notification
// module sends on InvoiceSent is the delivery channel then.
func (s *Service) send(ctx context.Context, invoice repository.Invoice) (repository.Invoice, error) {
	email, name, err := s.clients.GetContact(ctx, invoice.ClientID)
	if err != nil {
		return repository.Invoice{}, err
	}

	var externalID, paymentURL *string
	if s.provider != nil {
		result, err := s.provider.CreateInvoice(ctx, square.InvoiceRequest{
			Title:          invoice.Title,
			AmountCents:    invoice.TotalCents,
			RecipientEmail: email,
			RecipientName:  name,
			DueDate:        invoice.DueDate,
		})
		if err != nil {
			return repository.Invoice{}, err
		}
		if result.ExternalID != "" {
			externalID = &result.ExternalID
		}
		if result.PaymentURL != "" {
			paymentURL = &result.PaymentURL
		}
	}

	sent, err := s.repo.MarkSent(ctx, invoice.ID, externalID, paymentURL)
	if err != nil {
		return repository.Invoice{}, err
	}

	var url string
	if sent.PaymentURL != nil {
		url = *sent.PaymentURL
	}
	s.bus.Publish(ctx, events.InvoiceSent{
		BaseEvent:   events.NewBaseEvent(),
		InvoiceID:   sent.ID,
		ClientID:    sent.ClientID,
		ClientEmail: email,
		ClientName:  name,
		Title:       sent.Title,
		TotalCents:  sent.TotalCents,
		PaymentURL:  url,
	})

	return sent, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.InvoiceDetailResponse, error) {
	invoice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.InvoiceDetailResponse{}, apperr.NotFound(msgInvoiceNotFound)
		}
		return transport.InvoiceDetailResponse{}, err
	}
	items, err := s.repo.ListLineItems(ctx, id)
	if err != nil {
		return transport.InvoiceDetailResponse{}, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return transport.InvoiceDetailResponse{}, err
	}
	return transport.ToDetailResponse(invoice, items, payments), nil
}

func (s *Service) List(ctx context.Context, clientID *uuid.UUID) ([]transport.InvoiceResponse, error) {
	invoices, err := s.repo.List(ctx, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, transport.ToInvoiceResponse(inv))
	}
	return out, nil
}

// MarkViewed records the first portal view. Already viewed or beyond is a
// quiet no-op; the portal pings this on every render.
func (s *Service) MarkViewed(ctx context.Context, id uuid.UUID) (transport.InvoiceResponse, error) {
	invoice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.InvoiceResponse{}, apperr.NotFound(msgInvoiceNotFound)
		}
		return transport.InvoiceResponse{}, err
	}

	if !domain.CanMarkViewed(invoice.Status) {
		return transport.ToInvoiceResponse(invoice), nil
	}

	viewed, err := s.repo.MarkViewed(ctx, id)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	return transport.ToInvoiceResponse(viewed), nil
}

// MarkPaid records payment. Paying a paid invoice is a conflict, not a
// no-op.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, req transport.MarkPaidRequest, actorID uuid.UUID) (transport.InvoiceResponse, error) {
	invoice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.InvoiceResponse{}, apperr.NotFound(msgInvoiceNotFound)
		}
		return transport.InvoiceResponse{}, err
	}

	if invoice.Status == domain.InvoicePaid {
		return transport.InvoiceResponse{}, apperr.Conflict("invoice is already paid")
	}
	if !domain.CanMarkPaid(invoice.Status) {
		return transport.InvoiceResponse{}, apperr.Validation(
			fmt.Sprintf("invoice in status %s cannot be marked paid", invoice.Status))
	}

	amount := invoice.TotalCents
	if req.AmountCents != nil {
		amount = *req.AmountCents
	}
	method := "manual"
	if req.Method != nil {
		method = *req.Method
	}

	paid, err := s.repo.MarkPaid(ctx, id, amount, method)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "invoice",
		EntityID:   id,
		Action:     "invoice.paid",
		ActorType:  "user",
		ActorID:    &actorID,
		Metadata:   map[string]any{"amountCents": amount, "method": method},
	})
	s.bus.Publish(ctx, events.InvoicePaid{
		BaseEvent:  events.NewBaseEvent(),
		InvoiceID:  paid.ID,
		ClientID:   paid.ClientID,
		Title:      paid.Title,
		TotalCents: paid.TotalCents,
	})

	return transport.ToInvoiceResponse(paid), nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (transport.InvoiceResponse, error) {
	invoice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.InvoiceResponse{}, apperr.NotFound(msgInvoiceNotFound)
		}
		return transport.InvoiceResponse{}, err
	}

	if !domain.CanCancel(invoice.Status) {
		return transport.InvoiceResponse{}, apperr.Validation(
			fmt.Sprintf("invoice in status %s cannot be cancelled", invoice.Status))
	}

	cancelled, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "invoice",
		EntityID:   id,
		Action:     "invoice.cancelled",
		ActorType:  "user",
		ActorID:    &actorID,
	})

	return transport.ToInvoiceResponse(cancelled), nil
}

// SweepOverdue is the scheduler entry point.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	moved, err := s.repo.SweepOverdue(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		s.log.Cascade("scheduler.overdue_sweep", "invoices.marked_overdue", "invoice", fmt.Sprintf("%d rows", moved))
	}
	return moved, nil
}
