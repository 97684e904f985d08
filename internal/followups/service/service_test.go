package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/followups/repository"
	"agencycrm_backend/internal/followups/transport"
	"agencycrm_backend/platform/apperr"
	"agencycrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type fakeRepo struct {
	followUps map[uuid.UUID]*repository.FollowUp
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{followUps: make(map[uuid.UUID]*repository.FollowUp)}
}

func (f *fakeRepo) add(fu repository.FollowUp) *repository.FollowUp {
	if fu.ID == uuid.Nil {
		fu.ID = uuid.New()
	}
	if fu.Status == "" {
		fu.Status = repository.StatusPending
	}
	stored := fu
	f.followUps[stored.ID] = &stored
	return &stored
}

func (f *fakeRepo) Create(_ context.Context, leadID uuid.UUID, remindAt time.Time, reason string) (repository.FollowUp, error) {
	created := f.add(repository.FollowUp{LeadID: leadID, RemindAt: remindAt, TriggerReason: reason})
	return *created, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.FollowUp, error) {
	fu, ok := f.followUps[id]
	if !ok {
		return repository.FollowUp{}, repository.ErrNotFound
	}
	return *fu, nil
}

func (f *fakeRepo) ListPending(context.Context) ([]repository.FollowUp, error) {
	var out []repository.FollowUp
	for _, fu := range f.followUps {
		if fu.Status == repository.StatusPending {
			out = append(out, *fu)
		}
	}
	return out, nil
}

func (f *fakeRepo) HasPendingForLead(_ context.Context, leadID uuid.UUID) (bool, error) {
	for _, fu := range f.followUps {
		if fu.LeadID == leadID && fu.Status == repository.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) AttachDraft(_ context.Context, id uuid.UUID, subject, body string) error {
	fu, ok := f.followUps[id]
	if !ok || fu.Status != repository.StatusPending {
		return nil
	}
	fu.DraftSubject = &subject
	fu.DraftBody = &body
	return nil
}

func (f *fakeRepo) ClaimTransition(_ context.Context, id uuid.UUID, target string) (repository.FollowUp, bool, error) {
	fu, ok := f.followUps[id]
	if !ok {
		return repository.FollowUp{}, false, repository.ErrNotFound
	}
	if fu.Status != repository.StatusPending {
		return *fu, false, nil
	}
	now := time.Now()
	fu.Status = target
	if target == repository.StatusSent {
		fu.SentAt = &now
	} else {
		fu.DismissedAt = &now
	}
	return *fu, true, nil
}

type fakeContacts struct{}

func (fakeContacts) LeadContact(context.Context, uuid.UUID) (string, string, error) {
	return "lead@example.com", "Dana Lead", nil
}

type fakeMailer struct {
	sent     []string
	subjects []string
	fail     bool
}

func (f *fakeMailer) SendFollowUpEmail(_ context.Context, to, subject, _ string) error {
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, to)
	f.subjects = append(f.subjects, subject)
	return nil
}

type noopActivity struct{}

func (noopActivity) Record(context.Context, activity.AppendParams) {}
func (noopActivity) RecordTx(context.Context, pgx.Tx, activity.AppendParams) error {
	return nil
}

func newTestService(repo *fakeRepo, mailer *fakeMailer) *Service {
	log := logger.New("development")
	return New(repo, fakeContacts{}, mailer, noopActivity{}, events.NewInMemoryBus(log), log)
}

func pendingWithDraft(repo *fakeRepo) *repository.FollowUp {
	subject := "Checking in"
	body := "Hi Dana, just following up on our last conversation."
	return repo.add(repository.FollowUp{
		LeadID:        uuid.New(),
		RemindAt:      time.Now(),
		TriggerReason: "no activity for 7 days",
		DraftSubject:  &subject,
		DraftBody:     &body,
	})
}

func TestApproveSendsDraftAndMarksSent(t *testing.T) {
	repo := newFakeRepo()
	fu := pendingWithDraft(repo)
	mailer := &fakeMailer{}
	svc := newTestService(repo, mailer)

	resp, err := svc.ApproveAndSend(context.Background(), fu.ID, transport.ApproveRequest{}, uuid.New())
	if err != nil {
		t.Fatalf("ApproveAndSend: %v", err)
	}
	if resp.Status != repository.StatusSent {
		t.Fatalf("status = %q, want sent", resp.Status)
	}
	if resp.SentAt == nil {
		t.Fatal("expected sent_at to be stamped")
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "lead@example.com" {
		t.Fatalf("sent = %v, want one email to the lead", mailer.sent)
	}
	if mailer.subjects[0] != "Checking in" {
		t.Fatalf("subject = %q, want the draft subject", mailer.subjects[0])
	}
}

func TestApproveWithoutDraftIsRejected(t *testing.T) {
	repo := newFakeRepo()
	fu := repo.add(repository.FollowUp{LeadID: uuid.New(), RemindAt: time.Now(), TriggerReason: "stale"})
	mailer := &fakeMailer{}
	svc := newTestService(repo, mailer)

	_, err := svc.ApproveAndSend(context.Background(), fu.ID, transport.ApproveRequest{}, uuid.New())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatal("nothing should be sent without a draft")
	}
	if repo.followUps[fu.ID].Status != repository.StatusPending {
		t.Fatal("follow-up should stay pending")
	}
}

func TestApproveOverrideReplacesDraft(t *testing.T) {
	repo := newFakeRepo()
	fu := pendingWithDraft(repo)
	mailer := &fakeMailer{}
	svc := newTestService(repo, mailer)

	subject := "Quick question"
	body := "Rewrote this by hand."
	_, err := svc.ApproveAndSend(context.Background(), fu.ID, transport.ApproveRequest{Subject: &subject, Body: &body}, uuid.New())
	if err != nil {
		t.Fatalf("ApproveAndSend: %v", err)
	}
	if mailer.subjects[0] != "Quick question" {
		t.Fatalf("subject = %q, want the override", mailer.subjects[0])
	}
}

func TestDoubleApproveResolvesToNoOp(t *testing.T) {
	repo := newFakeRepo()
	fu := pendingWithDraft(repo)
	mailer := &fakeMailer{}
	svc := newTestService(repo, mailer)

	if _, err := svc.ApproveAndSend(context.Background(), fu.ID, transport.ApproveRequest{}, uuid.New()); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	resp, err := svc.ApproveAndSend(context.Background(), fu.ID, transport.ApproveRequest{}, uuid.New())
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if resp.Status != repository.StatusSent {
		t.Fatalf("status = %q, want sent", resp.Status)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("emails sent = %d, want exactly one", len(mailer.sent))
	}
}

func TestSendFailureLeavesFollowUpPending(t *testing.T) {
	repo := newFakeRepo()
	fu := pendingWithDraft(repo)
	mailer := &fakeMailer{fail: true}
	svc := newTestService(repo, mailer)

	_, err := svc.ApproveAndSend(context.Background(), fu.ID, transport.ApproveRequest{}, uuid.New())
	if !apperr.Is(err, apperr.KindIntegration) {
		t.Fatalf("err = %v, want integration failure", err)
	}
	if repo.followUps[fu.ID].Status != repository.StatusPending {
		t.Fatal("a failed send must leave the follow-up pending for retry")
	}
}

func TestDismissNeedsNoDraft(t *testing.T) {
	repo := newFakeRepo()
	fu := repo.add(repository.FollowUp{LeadID: uuid.New(), RemindAt: time.Now(), TriggerReason: "stale"})
	svc := newTestService(repo, &fakeMailer{})

	resp, err := svc.Dismiss(context.Background(), fu.ID, uuid.New())
	if err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if resp.Status != repository.StatusDismissed {
		t.Fatalf("status = %q, want dismissed", resp.Status)
	}
	if resp.DismissedAt == nil {
		t.Fatal("expected dismissed_at to be stamped")
	}
}

func TestDismissAfterSentIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	fu := pendingWithDraft(repo)
	mailer := &fakeMailer{}
	svc := newTestService(repo, mailer)

	if _, err := svc.ApproveAndSend(context.Background(), fu.ID, transport.ApproveRequest{}, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	resp, err := svc.Dismiss(context.Background(), fu.ID, uuid.New())
	if err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if resp.Status != repository.StatusSent {
		t.Fatalf("status = %q, dismiss must not override sent", resp.Status)
	}
}

func TestCreateRejectsDuplicatePendingForLead(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeMailer{})
	leadID := uuid.New()

	req := transport.CreateFollowUpRequest{
		LeadID:        leadID,
		RemindAt:      time.Now().Add(24 * time.Hour),
		TriggerReason: "no activity for 7 days",
	}
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(context.Background(), req)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict for a second pending follow-up", err)
	}
}
