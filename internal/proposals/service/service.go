// Package service implements the proposal workflow: drafting, sending,
// and the accept/decline decision with once-only lifecycle timestamps.
package service

import (
	"context"
	"errors"
	"fmt"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/proposals/domain"
	"agencycrm_backend/internal/proposals/repository"
	"agencycrm_backend/internal/proposals/transport"
	"agencycrm_backend/platform/apperr"
	"agencycrm_backend/platform/logger"

	"github.com/google/uuid"
)

const msgProposalNotFound = "proposal not found"

// Repository is the data access surface the proposal workflow needs.
type Repository interface {
	Create(ctx context.Context, params repository.CreateProposalParams) (repository.Proposal, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Proposal, error)
	List(ctx context.Context, leadID, clientID *uuid.UUID) ([]repository.Proposal, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateProposalParams) (repository.Proposal, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Transition(ctx context.Context, id uuid.UUID, status domain.ProposalStatus, stampColumn string) (repository.Proposal, error)
}

// ContactResolver finds the recipient for a proposal send.
type ContactResolver interface {
	LeadContact(ctx context.Context, leadID uuid.UUID) (email, name string, err error)
	ClientContact(ctx context.Context, clientID uuid.UUID) (email, name string, err error)
}

// ProposalMailer sends the proposal email itself.
type ProposalMailer interface {
	SendProposalEmail(ctx context.Context, to, name, title, viewURL string) error
}

// LeadAdvancer nudges a linked lead forward when the proposal goes out.
type LeadAdvancer interface {
	AdvanceToProposalSent(ctx context.Context, leadID uuid.UUID, reason string) error
}

type Service struct {
	repo       Repository
	contacts   ContactResolver
	mail       ProposalMailer
	leads      LeadAdvancer
	activity   activity.Writer
	bus        events.Bus
	appBaseURL string
	log        *logger.Logger
}

func New(repo Repository, contacts ContactResolver, mail ProposalMailer, leads LeadAdvancer, act activity.Writer, bus events.Bus, appBaseURL string, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		contacts:   contacts,
		mail:       mail,
		leads:      leads,
		activity:   act,
		bus:        bus,
		appBaseURL: appBaseURL,
		log:        log,
	}
}

func (s *Service) Create(ctx context.Context, req transport.CreateProposalRequest, actorID uuid.UUID) (transport.ProposalResponse, error) {
	if req.LeadID == nil && req.ClientID == nil {
		return transport.ProposalResponse{}, apperr.Validation("a proposal belongs to a lead or a client")
	}

	proposal, err := s.repo.Create(ctx, repository.CreateProposalParams{
		LeadID:      req.LeadID,
		ClientID:    req.ClientID,
		Title:       req.Title,
		Content:     req.Content,
		AmountCents: req.AmountCents,
	})
	if err != nil {
		return transport.ProposalResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "proposal",
		EntityID:   proposal.ID,
		Action:     "proposal.created",
		ActorType:  "user",
		ActorID:    &actorID,
	})

	return transport.ToProposalResponse(proposal), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.ProposalResponse, error) {
	proposal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ProposalResponse{}, apperr.NotFound(msgProposalNotFound)
		}
		return transport.ProposalResponse{}, err
	}
	return transport.ToProposalResponse(proposal), nil
}

func (s *Service) List(ctx context.Context, leadID, clientID *uuid.UUID) ([]transport.ProposalResponse, error) {
	proposals, err := s.repo.List(ctx, leadID, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.ProposalResponse, 0, len(proposals))
	for _, p := range proposals {
		out = append(out, transport.ToProposalResponse(p))
	}
	return out, nil
}

// Update edits content. Only drafts are editable; a sent proposal is what
// the recipient saw.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateProposalRequest) (transport.ProposalResponse, error) {
	proposal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ProposalResponse{}, apperr.NotFound(msgProposalNotFound)
		}
		return transport.ProposalResponse{}, err
	}
	if proposal.Status != domain.ProposalDraft {
		return transport.ProposalResponse{}, apperr.Validation("only draft proposals can be edited")
	}

	updated, err := s.repo.Update(ctx, id, repository.UpdateProposalParams{
		Title:       req.Title,
		Content:     req.Content,
		AmountCents: req.AmountCents,
	})
	if err != nil {
		return transport.ProposalResponse{}, err
	}
	return transport.ToProposalResponse(updated), nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(msgProposalNotFound)
		}
		return err
	}
	return nil
}

// Send emails the proposal to its recipient and moves it to sent. The email
// is the operation, so a send failure surfaces and the status stays draft.
func (s *Service) Send(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (transport.ProposalResponse, error) {
	proposal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ProposalResponse{}, apperr.NotFound(msgProposalNotFound)
		}
		return transport.ProposalResponse{}, err
	}

	if !domain.CanSend(proposal.Status) {
		return transport.ProposalResponse{}, apperr.Validation(
			fmt.Sprintf("proposal in status %s cannot be sent; only drafts can", proposal.Status))
	}

	email, name, err := s.recipient(ctx, proposal)
	if err != nil {
		return transport.ProposalResponse{}, err
	}

	viewURL := fmt.Sprintf("%s/proposals/%s", s.appBaseURL, proposal.ID)
	if err := s.mail.SendProposalEmail(ctx, email, name, proposal.Title, viewURL); err != nil {
		return transport.ProposalResponse{}, apperr.Wrap(apperr.KindIntegration, "proposal email could not be delivered", err)
	}

	sent, err := s.repo.Transition(ctx, id, domain.ProposalSent, "sent_at")
	if err != nil {
		return transport.ProposalResponse{}, err
	}

	if sent.LeadID != nil {
		if err := s.leads.AdvanceToProposalSent(ctx, *sent.LeadID, "proposal sent"); err != nil {
			s.log.IntegrationFailure("leads", "advance_proposal_sent", err)
		}
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "proposal",
		EntityID:   id,
		Action:     "proposal.sent",
		ActorType:  "user",
		ActorID:    &actorID,
	})
	s.bus.Publish(ctx, events.ProposalSent{
		BaseEvent:      events.NewBaseEvent(),
		ProposalID:     sent.ID,
		RecipientEmail: email,
		RecipientName:  name,
		Title:          sent.Title,
	})

	return transport.ToProposalResponse(sent), nil
}

func (s *Service) recipient(ctx context.Context, p repository.Proposal) (string, string, error) {
	switch {
	case p.ClientID != nil:
		return s.contacts.ClientContact(ctx, *p.ClientID)
	case p.LeadID != nil:
		return s.contacts.LeadContact(ctx, *p.LeadID)
	}
	return "", "", apperr.Validation("proposal has no recipient")
}

// MarkViewed stamps the first view; later pings are quiet no-ops.
func (s *Service) MarkViewed(ctx context.Context, id uuid.UUID) (transport.ProposalResponse, error) {
	proposal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ProposalResponse{}, apperr.NotFound(msgProposalNotFound)
		}
		return transport.ProposalResponse{}, err
	}

	if !domain.CanMarkViewed(proposal.Status) {
		return transport.ToProposalResponse(proposal), nil
	}

	viewed, err := s.repo.Transition(ctx, id, domain.ProposalViewed, "viewed_at")
	if err != nil {
		return transport.ProposalResponse{}, err
	}
	return transport.ToProposalResponse(viewed), nil
}

// Accept records the recipient's yes. Accepting an accepted proposal is a
// no-op; accepting a declined one is an error.
func (s *Service) Accept(ctx context.Context, id uuid.UUID) (transport.ProposalResponse, error) {
	return s.decide(ctx, id, domain.ProposalAccepted, "accepted_at")
}

// Decline mirrors Accept.
func (s *Service) Decline(ctx context.Context, id uuid.UUID) (transport.ProposalResponse, error) {
	return s.decide(ctx, id, domain.ProposalDeclined, "declined_at")
}

func (s *Service) decide(ctx context.Context, id uuid.UUID, target domain.ProposalStatus, stampColumn string) (transport.ProposalResponse, error) {
	proposal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ProposalResponse{}, apperr.NotFound(msgProposalNotFound)
		}
		return transport.ProposalResponse{}, err
	}

	if proposal.Status == target {
		return transport.ToProposalResponse(proposal), nil
	}
	if !domain.CanDecide(proposal.Status) {
		return transport.ProposalResponse{}, apperr.Validation(
			fmt.Sprintf("proposal in status %s cannot move to %s", proposal.Status, target))
	}

	decided, err := s.repo.Transition(ctx, id, target, stampColumn)
	if err != nil {
		return transport.ProposalResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "proposal",
		EntityID:   id,
		Action:     "proposal." + string(target),
		ActorType:  "system",
	})

	switch target {
	case domain.ProposalAccepted:
		s.bus.Publish(ctx, events.ProposalAccepted{
			BaseEvent:  events.NewBaseEvent(),
			ProposalID: decided.ID,
			LeadID:     decided.LeadID,
			Title:      decided.Title,
		})
	case domain.ProposalDeclined:
		s.bus.Publish(ctx, events.ProposalDeclined{
			BaseEvent:  events.NewBaseEvent(),
			ProposalID: decided.ID,
			Title:      decided.Title,
		})
	}

	return transport.ToProposalResponse(decided), nil
}
