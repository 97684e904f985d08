package service

import (
	"context"
	"errors"
	"testing"
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
	"github.com/jackc/pgx/v5"
)

type fakeRepo struct {
	invoices map[uuid.UUID]*repository.Invoice
	payments []repository.Payment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{invoices: make(map[uuid.UUID]*repository.Invoice)}
}

func (f *fakeRepo) add(inv repository.Invoice) *repository.Invoice {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.ClientID == uuid.Nil {
		inv.ClientID = uuid.New()
	}
	if inv.Status == "" {
		inv.Status = domain.InvoiceDraft
	}
	stored := inv
	f.invoices[stored.ID] = &stored
	return &stored
}

func (f *fakeRepo) Create(_ context.Context, p repository.CreateInvoiceParams) (repository.Invoice, error) {
	for _, inv := range f.invoices {
		if p.MilestoneID != nil && inv.MilestoneID != nil && *inv.MilestoneID == *p.MilestoneID {
			return repository.Invoice{}, errors.New("duplicate milestone invoice")
		}
	}
	created := f.add(repository.Invoice{
		ClientID:    p.ClientID,
		ProjectID:   p.ProjectID,
		MilestoneID: p.MilestoneID,
		Title:       p.Title,
		TotalCents:  p.TotalCents,
		DueDate:     p.DueDate,
	})
	return *created, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return repository.Invoice{}, repository.ErrNotFound
	}
	return *inv, nil
}

func (f *fakeRepo) FindByMilestone(_ context.Context, milestoneID uuid.UUID) (repository.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.MilestoneID != nil && *inv.MilestoneID == milestoneID {
			return *inv, nil
		}
	}
	return repository.Invoice{}, repository.ErrNotFound
}

func (f *fakeRepo) List(context.Context, *uuid.UUID) ([]repository.Invoice, error) {
	return nil, nil
}

func (f *fakeRepo) ListLineItems(context.Context, uuid.UUID) ([]repository.LineItem, error) {
	return nil, nil
}

func (f *fakeRepo) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]repository.Payment, error) {
	out := make([]repository.Payment, 0)
	for _, p := range f.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkSent(_ context.Context, id uuid.UUID, externalID, paymentURL *string) (repository.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return repository.Invoice{}, repository.ErrNotFound
	}
	now := time.Now()
	inv.Status = domain.InvoiceSent
	inv.SentAt = &now
	inv.ExternalID = externalID
	inv.PaymentURL = paymentURL
	return *inv, nil
}

func (f *fakeRepo) MarkViewed(_ context.Context, id uuid.UUID) (repository.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return repository.Invoice{}, repository.ErrNotFound
	}
	now := time.Now()
	inv.Status = domain.InvoiceViewed
	inv.ViewedAt = &now
	return *inv, nil
}

func (f *fakeRepo) MarkPaid(_ context.Context, id uuid.UUID, amountCents int64, method string) (repository.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return repository.Invoice{}, repository.ErrNotFound
	}
	now := time.Now()
	inv.Status = domain.InvoicePaid
	inv.PaidAt = &now
	f.payments = append(f.payments, repository.Payment{
		ID: uuid.New(), InvoiceID: id, ClientID: inv.ClientID,
		AmountCents: amountCents, Method: method, ReceivedAt: now,
	})
	return *inv, nil
}

func (f *fakeRepo) Cancel(_ context.Context, id uuid.UUID) (repository.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return repository.Invoice{}, repository.ErrNotFound
	}
	now := time.Now()
	inv.Status = domain.InvoiceCancelled
	inv.CancelledAt = &now
	return *inv, nil
}

func (f *fakeRepo) SweepOverdue(_ context.Context, now time.Time) (int, error) {
	moved := 0
	for _, inv := range f.invoices {
		if domain.SweepableToOverdue(inv.Status) && inv.DueDate != nil && inv.DueDate.Before(now) {
			inv.Status = domain.InvoiceOverdue
			moved++
		}
	}
	return moved, nil
}

type fakeProvider struct {
	calls int
	err   error
}

func (f *fakeProvider) CreateInvoice(context.Context, square.InvoiceRequest) (square.InvoiceResult, error) {
	f.calls++
	if f.err != nil {
		return square.InvoiceResult{}, f.err
	}
	return square.InvoiceResult{ExternalID: "sq-123", PaymentURL: "https://pay.example.com/sq-123"}, nil
}

type fakeClients struct{}

func (fakeClients) GetContact(context.Context, uuid.UUID) (string, string, error) {
	return "client@example.com", "Client", nil
}

type noopActivity struct{}

func (noopActivity) Record(context.Context, activity.AppendParams) {}
func (noopActivity) RecordTx(context.Context, pgx.Tx, activity.AppendParams) error {
	return nil
}

func newTestService(repo *fakeRepo, provider Provider) *Service {
	log := logger.New("development")
	return New(repo, provider, fakeClients{}, noopActivity{}, events.NewInMemoryBus(log), log)
}

func TestCreateRejectsTotalMismatch(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)

	_, err := svc.Create(context.Background(), transport.CreateInvoiceRequest{
		ClientID:   uuid.New(),
		Title:      "Design work",
		TotalCents: 100_000,
		LineItems: []transport.LineItemInput{
			{Description: "Design", Quantity: 2, UnitCents: 40_000},
		},
	}, uuid.New())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestCreateForMilestoneIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	params := MilestoneInvoiceParams{
		ClientID:      uuid.New(),
		ProjectID:     uuid.New(),
		MilestoneID:   uuid.New(),
		ProjectName:   "Website",
		MilestoneName: "Launch",
		AmountCents:   250_000,
	}

	if err := svc.CreateForMilestone(context.Background(), params); err != nil {
		t.Fatalf("first creation: %v", err)
	}
	if err := svc.CreateForMilestone(context.Background(), params); err != nil {
		t.Fatalf("repeat creation must be a no-op: %v", err)
	}
	if len(repo.invoices) != 1 {
		t.Errorf("invoices = %d, want 1", len(repo.invoices))
	}
}

func TestCreateForMilestoneSendFailureLeavesDraft(t *testing.T) {
	repo := newFakeRepo()
	provider := &fakeProvider{err: errors.New("square down")}
	svc := newTestService(repo, provider)

	err := svc.CreateForMilestone(context.Background(), MilestoneInvoiceParams{
		ClientID: uuid.New(), ProjectID: uuid.New(), MilestoneID: uuid.New(),
		ProjectName: "Website", MilestoneName: "Launch", AmountCents: 250_000,
	})
	if err != nil {
		t.Fatalf("a provider outage must not fail auto-creation: %v", err)
	}
	if len(repo.invoices) != 1 {
		t.Fatalf("invoices = %d, want 1", len(repo.invoices))
	}
	for _, inv := range repo.invoices {
		if inv.Status != domain.InvoiceDraft {
			t.Errorf("status = %q, want draft after failed send", inv.Status)
		}
	}
}

func TestSendOnlyFromDraft(t *testing.T) {
	repo := newFakeRepo()
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	sent := repo.add(repository.Invoice{Title: "Retainer", Status: domain.InvoiceSent, TotalCents: 50_000})

	_, err := svc.Send(context.Background(), sent.ID, uuid.New())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("resend error = %v, want validation", err)
	}
	if provider.calls != 0 {
		t.Error("provider must not be called for a non-draft invoice")
	}
}

func TestSendProviderFailureSurfaces(t *testing.T) {
	repo := newFakeRepo()
	provider := &fakeProvider{err: errors.New("square down")}
	svc := newTestService(repo, provider)

	draft := repo.add(repository.Invoice{Title: "Retainer", TotalCents: 50_000})

	_, err := svc.Send(context.Background(), draft.ID, uuid.New())
	if !apperr.Is(err, apperr.KindIntegration) {
		t.Fatalf("error = %v, want integration", err)
	}
	if repo.invoices[draft.ID].Status != domain.InvoiceDraft {
		t.Error("a failed send must leave the invoice in draft")
	}
}

func TestSendStampsProviderLinkage(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeProvider{})

	draft := repo.add(repository.Invoice{Title: "Retainer", TotalCents: 50_000})

	resp, err := svc.Send(context.Background(), draft.ID, uuid.New())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Status != string(domain.InvoiceSent) || resp.SentAt == nil {
		t.Errorf("sent invoice = %+v", resp)
	}
	if resp.ExternalID == nil || *resp.ExternalID != "sq-123" {
		t.Errorf("externalId = %v, want sq-123", resp.ExternalID)
	}
	if resp.PaymentURL == nil || *resp.PaymentURL == "" {
		t.Error("payment url missing after send")
	}
}

func TestMarkPaidTwiceIsConflict(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	inv := repo.add(repository.Invoice{Title: "Retainer", Status: domain.InvoiceSent, TotalCents: 50_000})

	if _, err := svc.MarkPaid(context.Background(), inv.ID, transport.MarkPaidRequest{}, uuid.New()); err != nil {
		t.Fatalf("first markPaid: %v", err)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(repo.payments))
	}
	if repo.payments[0].AmountCents != 50_000 {
		t.Errorf("payment amount = %d, want invoice total", repo.payments[0].AmountCents)
	}

	_, err := svc.MarkPaid(context.Background(), inv.ID, transport.MarkPaidRequest{}, uuid.New())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second markPaid error = %v, want conflict", err)
	}
	if len(repo.payments) != 1 {
		t.Errorf("payments = %d after double markPaid, want 1", len(repo.payments))
	}
}

func TestMarkViewedIsQuietNoOpBeyondSent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	paid := repo.add(repository.Invoice{Title: "Retainer", Status: domain.InvoicePaid, TotalCents: 50_000})

	resp, err := svc.MarkViewed(context.Background(), paid.ID)
	if err != nil {
		t.Fatalf("markViewed on paid: %v", err)
	}
	if resp.Status != string(domain.InvoicePaid) {
		t.Errorf("status = %q, want unchanged paid", resp.Status)
	}
}

func TestSweepOverdue(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	past := time.Now().Add(-72 * time.Hour)
	future := time.Now().Add(72 * time.Hour)
	repo.add(repository.Invoice{Status: domain.InvoiceSent, DueDate: &past, TotalCents: 1})
	repo.add(repository.Invoice{Status: domain.InvoiceViewed, DueDate: &past, TotalCents: 1})
	repo.add(repository.Invoice{Status: domain.InvoiceSent, DueDate: &future, TotalCents: 1})
	repo.add(repository.Invoice{Status: domain.InvoiceDraft, DueDate: &past, TotalCents: 1})

	moved, err := svc.SweepOverdue(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if moved != 2 {
		t.Errorf("moved = %d, want 2", moved)
	}
}
