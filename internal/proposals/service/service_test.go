package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/proposals/domain"
	"agencycrm_backend/internal/proposals/repository"
	"agencycrm_backend/internal/proposals/transport"
	"agencycrm_backend/platform/apperr"
	"agencycrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type fakeRepo struct {
	proposals map[uuid.UUID]*repository.Proposal
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{proposals: make(map[uuid.UUID]*repository.Proposal)}
}

func (f *fakeRepo) add(p repository.Proposal) *repository.Proposal {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = domain.ProposalDraft
	}
	stored := p
	f.proposals[stored.ID] = &stored
	return &stored
}

func (f *fakeRepo) Create(_ context.Context, p repository.CreateProposalParams) (repository.Proposal, error) {
	created := f.add(repository.Proposal{
		LeadID: p.LeadID, ClientID: p.ClientID,
		Title: p.Title, Content: p.Content, AmountCents: p.AmountCents,
	})
	return *created, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok {
		return repository.Proposal{}, repository.ErrNotFound
	}
	return *p, nil
}

func (f *fakeRepo) List(context.Context, *uuid.UUID, *uuid.UUID) ([]repository.Proposal, error) {
	return nil, nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, params repository.UpdateProposalParams) (repository.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok {
		return repository.Proposal{}, repository.ErrNotFound
	}
	if params.Title != nil {
		p.Title = *params.Title
	}
	return *p, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.proposals[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.proposals, id)
	return nil
}

func (f *fakeRepo) Transition(_ context.Context, id uuid.UUID, status domain.ProposalStatus, stampColumn string) (repository.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok {
		return repository.Proposal{}, repository.ErrNotFound
	}
	p.Status = status
	now := time.Now()
	stamp := func(field **time.Time) {
		if *field == nil {
			*field = &now
		}
	}
	switch stampColumn {
	case "sent_at":
		stamp(&p.SentAt)
	case "viewed_at":
		stamp(&p.ViewedAt)
	case "accepted_at":
		stamp(&p.AcceptedAt)
	case "declined_at":
		stamp(&p.DeclinedAt)
	}
	return *p, nil
}

type fakeContacts struct{}

func (fakeContacts) LeadContact(context.Context, uuid.UUID) (string, string, error) {
	return "lead@example.com", "Lead", nil
}

func (fakeContacts) ClientContact(context.Context, uuid.UUID) (string, string, error) {
	return "client@example.com", "Client", nil
}

type fakeMailer struct {
	sent int
	err  error
}

func (f *fakeMailer) SendProposalEmail(context.Context, string, string, string, string) error {
	if f.err != nil {
		return f.err
	}
	f.sent++
	return nil
}

type fakeLeads struct {
	advanced []uuid.UUID
}

func (f *fakeLeads) AdvanceToProposalSent(_ context.Context, leadID uuid.UUID, _ string) error {
	f.advanced = append(f.advanced, leadID)
	return nil
}

type noopActivity struct{}

func (noopActivity) Record(context.Context, activity.AppendParams) {}
func (noopActivity) RecordTx(context.Context, pgx.Tx, activity.AppendParams) error {
	return nil
}

func newTestService(repo *fakeRepo, mailer *fakeMailer) (*Service, *fakeLeads) {
	log := logger.New("development")
	leads := &fakeLeads{}
	svc := New(repo, fakeContacts{}, mailer, leads, noopActivity{}, events.NewInMemoryBus(log), "https://app.example.com", log)
	return svc, leads
}

func TestSendAdvancesLinkedLead(t *testing.T) {
	repo := newFakeRepo()
	mailer := &fakeMailer{}
	svc, leads := newTestService(repo, mailer)

	leadID := uuid.New()
	proposal := repo.add(repository.Proposal{LeadID: &leadID, Title: "Website build"})

	resp, err := svc.Send(context.Background(), proposal.ID, uuid.New())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Status != string(domain.ProposalSent) || resp.SentAt == nil {
		t.Errorf("sent proposal = %+v", resp)
	}
	if mailer.sent != 1 {
		t.Errorf("emails sent = %d, want 1", mailer.sent)
	}
	if len(leads.advanced) != 1 || leads.advanced[0] != leadID {
		t.Errorf("lead advances = %v, want one for %s", leads.advanced, leadID)
	}
}

func TestSendOnlyFromDraft(t *testing.T) {
	repo := newFakeRepo()
	mailer := &fakeMailer{}
	svc, _ := newTestService(repo, mailer)

	proposal := repo.add(repository.Proposal{Title: "Retainer", Status: domain.ProposalSent})

	_, err := svc.Send(context.Background(), proposal.ID, uuid.New())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("resend error = %v, want validation", err)
	}
	if mailer.sent != 0 {
		t.Error("no email must go out for a non-draft proposal")
	}
}

func TestSendEmailFailureKeepsDraft(t *testing.T) {
	repo := newFakeRepo()
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc, _ := newTestService(repo, mailer)

	clientID := uuid.New()
	proposal := repo.add(repository.Proposal{ClientID: &clientID, Title: "Retainer"})

	_, err := svc.Send(context.Background(), proposal.ID, uuid.New())
	if !apperr.Is(err, apperr.KindIntegration) {
		t.Fatalf("error = %v, want integration", err)
	}
	if repo.proposals[proposal.ID].Status != domain.ProposalDraft {
		t.Error("a failed send must leave the proposal in draft")
	}
}

func TestTimestampsAreMonotonic(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeMailer{})

	clientID := uuid.New()
	proposal := repo.add(repository.Proposal{ClientID: &clientID, Title: "Retainer"})

	if _, err := svc.Send(context.Background(), proposal.ID, uuid.New()); err != nil {
		t.Fatalf("send: %v", err)
	}
	firstSent := repo.proposals[proposal.ID].SentAt

	if _, err := svc.MarkViewed(context.Background(), proposal.ID); err != nil {
		t.Fatalf("view: %v", err)
	}
	firstViewed := repo.proposals[proposal.ID].ViewedAt

	// Re-viewing must not move the stamp.
	if _, err := svc.MarkViewed(context.Background(), proposal.ID); err != nil {
		t.Fatalf("second view: %v", err)
	}
	if !repo.proposals[proposal.ID].ViewedAt.Equal(*firstViewed) {
		t.Error("viewedAt moved on a repeat view")
	}
	if !repo.proposals[proposal.ID].SentAt.Equal(*firstSent) {
		t.Error("sentAt moved after later transitions")
	}
}

func TestAcceptIsTerminal(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeMailer{})

	proposal := repo.add(repository.Proposal{Title: "Retainer", Status: domain.ProposalViewed})

	accepted, err := svc.Accept(context.Background(), proposal.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != string(domain.ProposalAccepted) || accepted.AcceptedAt == nil {
		t.Errorf("accepted proposal = %+v", accepted)
	}

	// Re-accepting is a quiet no-op.
	if _, err := svc.Accept(context.Background(), proposal.ID); err != nil {
		t.Fatalf("repeat accept must be a no-op: %v", err)
	}

	// Declining an accepted proposal is an error.
	_, err = svc.Decline(context.Background(), proposal.ID)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("decline after accept error = %v, want validation", err)
	}
}

func transportUpdate(title string) transport.UpdateProposalRequest {
	return transport.UpdateProposalRequest{Title: &title}
}

func transportCreate(title string) transport.CreateProposalRequest {
	return transport.CreateProposalRequest{Title: title, AmountCents: 10_000}
}

func TestEditRejectedAfterSend(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeMailer{})

	proposal := repo.add(repository.Proposal{Title: "Retainer", Status: domain.ProposalSent})

	title := "Changed"
	_, err := svc.Update(context.Background(), proposal.ID, transportUpdate(title))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestCreateRequiresRecipient(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeMailer{})

	_, err := svc.Create(context.Background(), transportCreate("Orphan"), uuid.New())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}
