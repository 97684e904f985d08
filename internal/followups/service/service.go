// Package service implements the follow-up queue: scheduled reminders that a
// team member reviews, approves, and sends to a lead.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/followups/repository"
	"agencycrm_backend/internal/followups/transport"
	"agencycrm_backend/platform/apperr"
	"agencycrm_backend/platform/logger"
)

type Repository interface {
	Create(ctx context.Context, leadID uuid.UUID, remindAt time.Time, triggerReason string) (repository.FollowUp, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.FollowUp, error)
	ListPending(ctx context.Context) ([]repository.FollowUp, error)
	HasPendingForLead(ctx context.Context, leadID uuid.UUID) (bool, error)
	AttachDraft(ctx context.Context, id uuid.UUID, subject, body string) error
	ClaimTransition(ctx context.Context, id uuid.UUID, target string) (repository.FollowUp, bool, error)
}

// LeadContacts resolves the recipient for an approved follow-up.
type LeadContacts interface {
	LeadContact(ctx context.Context, leadID uuid.UUID) (email, name string, err error)
}

// FollowUpMailer delivers the approved follow-up email.
type FollowUpMailer interface {
	SendFollowUpEmail(ctx context.Context, to, subject, body string) error
}

type Service struct {
	repo     Repository
	contacts LeadContacts
	mail     FollowUpMailer
	activity activity.Writer
	bus      events.Bus
	log      *logger.Logger
}

func New(repo Repository, contacts LeadContacts, mail FollowUpMailer, act activity.Writer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		contacts: contacts,
		mail:     mail,
		activity: act,
		bus:      bus,
		log:      log,
	}
}

// Create enqueues a follow-up reminder. The sweep and API both land here;
// a lead with a pending follow-up never gets a second one.
func (s *Service) Create(ctx context.Context, req transport.CreateFollowUpRequest) (transport.FollowUpResponse, error) {
	pending, err := s.repo.HasPendingForLead(ctx, req.LeadID)
	if err != nil {
		s.log.DatabaseError("check_pending_followup", err)
		return transport.FollowUpResponse{}, apperr.Internal("failed to create follow-up")
	}
	if pending {
		return transport.FollowUpResponse{}, apperr.Conflict("lead already has a pending follow-up")
	}

	followUp, err := s.repo.Create(ctx, req.LeadID, req.RemindAt, req.TriggerReason)
	if err != nil {
		s.log.DatabaseError("create_followup", err)
		return transport.FollowUpResponse{}, apperr.Internal("failed to create follow-up")
	}

	s.bus.Publish(ctx, events.FollowUpCreated{
		BaseEvent:     events.NewBaseEvent(),
		FollowUpID:    followUp.ID,
		LeadID:        followUp.LeadID,
		TriggerReason: followUp.TriggerReason,
		RemindAt:      followUp.RemindAt,
	})

	return transport.ToResponse(followUp), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.FollowUpResponse, error) {
	followUp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.FollowUpResponse{}, apperr.NotFound("follow-up not found")
		}
		s.log.DatabaseError("get_followup", err)
		return transport.FollowUpResponse{}, apperr.Internal("failed to load follow-up")
	}
	return transport.ToResponse(followUp), nil
}

// ListPending returns the review queue ordered by reminder time.
func (s *Service) ListPending(ctx context.Context) ([]transport.FollowUpResponse, error) {
	followUps, err := s.repo.ListPending(ctx)
	if err != nil {
		s.log.DatabaseError("list_followups", err)
		return nil, apperr.Internal("failed to list follow-ups")
	}
	return transport.ToResponseList(followUps), nil
}

// AttachDraft stores a generated subject and body on a pending follow-up.
// The drafting pipeline calls this after Create; a row that already went
// terminal keeps its state untouched.
func (s *Service) AttachDraft(ctx context.Context, id uuid.UUID, subject, body string) error {
	if err := s.repo.AttachDraft(ctx, id, subject, body); err != nil {
		s.log.DatabaseError("attach_followup_draft", err)
		return apperr.Internal("failed to attach draft")
	}
	return nil
}

// ApproveAndSend delivers the follow-up email and marks the row sent. The
// send is the whole point, so a delivery failure surfaces and the row stays
// pending for a retry. Approving an already-resolved follow-up is a no-op.
func (s *Service) ApproveAndSend(ctx context.Context, id uuid.UUID, req transport.ApproveRequest, actorID uuid.UUID) (transport.FollowUpResponse, error) {
	followUp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.FollowUpResponse{}, apperr.NotFound("follow-up not found")
		}
		s.log.DatabaseError("get_followup", err)
		return transport.FollowUpResponse{}, apperr.Internal("failed to load follow-up")
	}
	if followUp.Status != repository.StatusPending {
		return transport.ToResponse(followUp), nil
	}

	subject := deref(followUp.DraftSubject)
	body := deref(followUp.DraftBody)
	if req.Subject != nil {
		subject = *req.Subject
	}
	if req.Body != nil {
		body = *req.Body
	}
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		return transport.FollowUpResponse{}, apperr.Validation("follow-up needs a subject and body before it can be sent")
	}

	email, _, err := s.contacts.LeadContact(ctx, followUp.LeadID)
	if err != nil {
		return transport.FollowUpResponse{}, err
	}

	if err := s.mail.SendFollowUpEmail(ctx, email, subject, body); err != nil {
		s.log.IntegrationFailure("email", "send_followup", err)
		return transport.FollowUpResponse{}, apperr.Wrap(apperr.KindIntegration, "follow-up email could not be delivered", err)
	}

	claimed, won, err := s.repo.ClaimTransition(ctx, id, repository.StatusSent)
	if err != nil {
		s.log.DatabaseError("claim_followup_sent", err)
		return transport.FollowUpResponse{}, apperr.Internal("failed to mark follow-up sent")
	}
	if !won {
		// Lost the race to another approval. The email went out twice, but
		// the queue state is consistent.
		return transport.ToResponse(claimed), nil
	}

	s.activity.Record(ctx, activity.AppendParams{
		ActorID:    &actorID,
		ActorType:  "user",
		Action:     "followup.sent",
		EntityType: "follow_up",
		EntityID:   claimed.ID,
		Metadata:   map[string]any{"leadId": claimed.LeadID, "subject": subject},
	})
	s.bus.Publish(ctx, events.FollowUpSent{
		BaseEvent:  events.NewBaseEvent(),
		FollowUpID: claimed.ID,
		LeadID:     claimed.LeadID,
		Subject:    subject,
	})

	return transport.ToResponse(claimed), nil
}

// Dismiss resolves a follow-up without sending anything. No draft is needed
// and dismissing a terminal row is a no-op.
func (s *Service) Dismiss(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (transport.FollowUpResponse, error) {
	claimed, won, err := s.repo.ClaimTransition(ctx, id, repository.StatusDismissed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.FollowUpResponse{}, apperr.NotFound("follow-up not found")
		}
		s.log.DatabaseError("claim_followup_dismissed", err)
		return transport.FollowUpResponse{}, apperr.Internal("failed to dismiss follow-up")
	}
	if won {
		s.activity.Record(ctx, activity.AppendParams{
			ActorID:    &actorID,
			ActorType:  "user",
			Action:     "followup.dismissed",
			EntityType: "follow_up",
			EntityID:   claimed.ID,
			Metadata:   map[string]any{"leadId": claimed.LeadID},
		})
	}
	return transport.ToResponse(claimed), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
