// Package service implements the lead pipeline workflow: manual stage moves,
// guarded automatic advances, and lead-to-client conversion.
package service

import (
	"context"
	"errors"
	"time"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/leads/domain"
	"agencycrm_backend/internal/leads/repository"
	"agencycrm_backend/internal/leads/transport"
	"agencycrm_backend/platform/apperr"
	"agencycrm_backend/platform/logger"
	"agencycrm_backend/platform/phone"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the lead service.
// This is a consumer-driven interface - only what the workflow needs.
type Repository interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	FindByEmail(ctx context.Context, email string) (repository.Lead, error)
	List(ctx context.Context, stage *domain.Stage) ([]repository.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error)
	SetStage(ctx context.Context, id uuid.UUID, stage domain.Stage) (repository.Lead, error)
	AdvanceStage(ctx context.Context, id uuid.UUID, target domain.Stage) (repository.Lead, bool, error)
	ClaimConversion(ctx context.Context, id uuid.UUID, clientID uuid.UUID) (repository.Lead, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListStale(ctx context.Context, threshold time.Duration, limit int) ([]repository.Lead, error)
}

// ClientGateway resolves or creates the client a lead converts into. The
// implementation (clients module, via an adapter) owns email dedup and the
// non-fatal portal identity provisioning.
type ClientGateway interface {
	ResolveForConversion(ctx context.Context, p ConversionClientParams) (ConvertedClient, bool, error)
}

// ConversionClientParams carries lead contact data into client resolution.
type ConversionClientParams struct {
	LeadID uuid.UUID
	Name   string
	Email  string
	Phone  *string
}

// ConvertedClient is the minimal view of the resolved client.
type ConvertedClient struct {
	ID    uuid.UUID
	Email string
	Name  string
}

type Service struct {
	repo     Repository
	clients  ClientGateway
	activity activity.Writer
	bus      events.Bus
	log      *logger.Logger
}

func New(repo Repository, clients ClientGateway, act activity.Writer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, clients: clients, activity: act, bus: bus, log: log}
}

const msgLeadNotFound = "lead not found"

// Create registers a new lead at the top of the funnel.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	params := repository.CreateLeadParams{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Company:    req.Company,
		Source:     req.Source,
		Notes:      req.Notes,
		AssignedTo: req.AssignedTo,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		Action: "lead.created", EntityType: "lead", EntityID: lead.ID,
	})

	return transport.ToLeadResponse(lead), nil
}

// GetByID retrieves a lead by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound(msgLeadNotFound)
		}
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// List returns leads, optionally filtered by pipeline stage.
func (s *Service) List(ctx context.Context, stageFilter string) ([]transport.LeadResponse, error) {
	var stage *domain.Stage
	if stageFilter != "" {
		candidate := domain.Stage(stageFilter)
		if !domain.ValidStage(candidate) {
			return nil, apperr.Validation("unknown pipeline stage: " + stageFilter)
		}
		stage = &candidate
	}

	leads, err := s.repo.List(ctx, stage)
	if err != nil {
		return nil, err
	}

	responses := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		responses = append(responses, transport.ToLeadResponse(lead))
	}
	return responses, nil
}

// Update applies field changes to a lead.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	if req.Score != nil && !domain.ValidScore(domain.Score(*req.Score)) {
		return transport.LeadResponse{}, apperr.Validation("score must be high, medium, or low")
	}

	params := repository.UpdateLeadParams{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Company:       req.Company,
		Source:        req.Source,
		Score:         req.Score,
		Notes:         req.Notes,
		AssignedTo:    req.AssignedTo,
		AssignedToSet: req.AssignedToSet,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	lead, err := s.repo.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound(msgLeadNotFound)
		}
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// Delete removes a lead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(msgLeadNotFound)
		}
		return err
	}
	return nil
}

// SetStage is the manual transition: any stage to any stage (kanban drag or
// dropdown). Same-stage moves are a no-op. The caller reverts its optimistic
// UI change on any error.
func (s *Service) SetStage(ctx context.Context, id uuid.UUID, newStage string, actorID uuid.UUID) (transport.LeadResponse, error) {
	target := domain.Stage(newStage)
	if !domain.ValidStage(target) {
		return transport.LeadResponse{}, apperr.Validation("unknown pipeline stage: " + newStage)
	}

	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound(msgLeadNotFound)
		}
		return transport.LeadResponse{}, err
	}

	if lead.PipelineStage == target {
		return transport.ToLeadResponse(lead), nil
	}

	oldStage := lead.PipelineStage
	lead, err = s.repo.SetStage(ctx, id, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound(msgLeadNotFound)
		}
		return transport.LeadResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		ActorID: actorPtr(actorID), Action: "lead.stage_changed", EntityType: "lead", EntityID: lead.ID,
		Metadata: map[string]any{"from": string(oldStage), "to": string(target), "automatic": false},
	})
	s.bus.Publish(ctx, events.LeadStageChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID, LeadName: lead.FullName(),
		OldStage: string(oldStage), NewStage: string(target),
		Automatic: false, ActorID: actorID,
	})

	return transport.ToLeadResponse(lead), nil
}

// AdvanceStage is the automatic forward transition, invoked only by
// cascades. Idempotent: a lead already at or past the target is left alone.
func (s *Service) AdvanceStage(ctx context.Context, id uuid.UUID, target domain.Stage, reason string) error {
	lead, advanced, err := s.repo.AdvanceStage(ctx, id, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(msgLeadNotFound)
		}
		return err
	}
	if !advanced {
		return nil
	}

	s.log.Cascade(reason, "lead.advance", "lead", lead.ID.String())
	s.activity.Record(ctx, activity.AppendParams{
		ActorType: "system", Action: "lead.stage_changed", EntityType: "lead", EntityID: lead.ID,
		Metadata: map[string]any{"to": string(target), "automatic": true, "reason": reason},
	})
	s.bus.Publish(ctx, events.LeadStageChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID, LeadName: lead.FullName(),
		NewStage: string(target), Automatic: true, Reason: reason,
	})

	return nil
}

// ListStale exposes the stale-lead query to the scheduler sweep.
func (s *Service) ListStale(ctx context.Context, threshold time.Duration, limit int) ([]repository.Lead, error) {
	return s.repo.ListStale(ctx, threshold, limit)
}

func actorPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
