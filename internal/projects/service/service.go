// Package service implements the project and milestone lifecycle, including
// the cascades a milestone or project transition fires into the lead
// pipeline and billing.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/projects/domain"
	"agencycrm_backend/internal/projects/repository"
	"agencycrm_backend/internal/projects/transport"
	"agencycrm_backend/platform/apperr"
	"agencycrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	msgProjectNotFound   = "project not found"
	msgMilestoneNotFound = "milestone not found"
	msgPhaseNotFound     = "phase not found"
)

// Repository is the data access surface the project workflow needs.
type Repository interface {
	CreateProject(ctx context.Context, params repository.CreateProjectParams) (repository.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (repository.Project, error)
	ListProjects(ctx context.Context, clientID *uuid.UUID) ([]repository.Project, error)
	UpdateProject(ctx context.Context, id uuid.UUID, params repository.UpdateProjectParams) (repository.Project, error)
	SetProjectStatus(ctx context.Context, id uuid.UUID, status domain.ProjectStatus) (repository.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error
	CompleteProjectTx(ctx context.Context, id uuid.UUID, audit func(ctx context.Context, tx pgx.Tx, forced int) error) (repository.Project, int, error)
	Progress(ctx context.Context, projectID uuid.UUID) (completed, total int, err error)

	CreatePhase(ctx context.Context, projectID uuid.UUID, name string, position int) (repository.Phase, error)
	ListPhases(ctx context.Context, projectID uuid.UUID) ([]repository.Phase, error)
	RenamePhase(ctx context.Context, id uuid.UUID, name string) (repository.Phase, error)
	DeletePhase(ctx context.Context, id uuid.UUID) error

	CreateMilestone(ctx context.Context, params repository.CreateMilestoneParams) (repository.Milestone, error)
	GetMilestone(ctx context.Context, id uuid.UUID) (repository.Milestone, error)
	ListMilestones(ctx context.Context, projectID uuid.UUID) ([]repository.Milestone, error)
	UpdateMilestone(ctx context.Context, id uuid.UUID, params repository.UpdateMilestoneParams) (previous, updated repository.Milestone, err error)
	DeleteMilestone(ctx context.Context, id uuid.UUID) error
	CountStartedMilestonesForLead(ctx context.Context, leadID uuid.UUID, exclude uuid.UUID) (int, error)
}

// LeadAdvancer moves a linked lead forward in the pipeline. Implemented by
// the leads module via an adapter; both calls are forward-only no-ops when
// the lead is already at or past the target.
type LeadAdvancer interface {
	AdvanceToActiveClient(ctx context.Context, leadID uuid.UUID, reason string) error
	AdvanceToProjectDelivered(ctx context.Context, leadID uuid.UUID, reason string) error
}

// InvoiceParams is what a completed milestone hands to billing.
type InvoiceParams struct {
	ClientID      uuid.UUID
	ProjectID     uuid.UUID
	MilestoneID   uuid.UUID
	ProjectName   string
	MilestoneName string
	AmountCents   int64
}

// InvoiceCreator creates (at most once per milestone) and best-effort sends
// the invoice a milestone completion triggers. Implemented by the billing
// module via an adapter.
type InvoiceCreator interface {
	CreateForMilestone(ctx context.Context, p InvoiceParams) error
}

// ClientReader resolves contact details for completion notifications.
type ClientReader interface {
	GetContact(ctx context.Context, clientID uuid.UUID) (email, name string, err error)
}

type Service struct {
	repo     Repository
	leads    LeadAdvancer
	invoices InvoiceCreator
	clients  ClientReader
	activity activity.Writer
	bus      events.Bus
	log      *logger.Logger
}

func New(repo Repository, leads LeadAdvancer, invoices InvoiceCreator, clients ClientReader, act activity.Writer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		leads:    leads,
		invoices: invoices,
		clients:  clients,
		activity: act,
		bus:      bus,
		log:      log,
	}
}

// ---------------------------------------------------------------------------
// Projects

func (s *Service) CreateProject(ctx context.Context, req transport.CreateProjectRequest, actorID uuid.UUID) (transport.ProjectResponse, error) {
	project, err := s.repo.CreateProject(ctx, repository.CreateProjectParams{
		ClientID:      req.ClientID,
		LeadID:        req.LeadID,
		ProposalID:    req.ProposalID,
		Name:          req.Name,
		Description:   req.Description,
		StartDate:     req.StartDate,
		TargetEndDate: req.TargetEndDate,
	})
	if err != nil {
		return transport.ProjectResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "project",
		EntityID:   project.ID,
		Action:     "project.created",
		ActorType:  "user",
		ActorID:    &actorID,
	})

	return transport.ToProjectResponse(project), nil
}

func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (transport.ProjectResponse, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return transport.ProjectResponse{}, apperr.NotFound(msgProjectNotFound)
		}
		return transport.ProjectResponse{}, err
	}
	return transport.ToProjectResponse(project), nil
}

func (s *Service) ListProjects(ctx context.Context, clientID *uuid.UUID) ([]transport.ProjectResponse, error) {
	projects, err := s.repo.ListProjects(ctx, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, transport.ToProjectResponse(p))
	}
	return out, nil
}

func (s *Service) UpdateProject(ctx context.Context, id uuid.UUID, req transport.UpdateProjectRequest) (transport.ProjectResponse, error) {
	project, err := s.repo.UpdateProject(ctx, id, repository.UpdateProjectParams{
		Name:          req.Name,
		Description:   req.Description,
		StartDate:     req.StartDate,
		TargetEndDate: req.TargetEndDate,
	})
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return transport.ProjectResponse{}, apperr.NotFound(msgProjectNotFound)
		}
		return transport.ProjectResponse{}, err
	}
	return transport.ToProjectResponse(project), nil
}

func (s *Service) DeleteProject(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return apperr.NotFound(msgProjectNotFound)
		}
		return err
	}
	return nil
}

func (s *Service) Progress(ctx context.Context, id uuid.UUID) (transport.ProgressResponse, error) {
	completed, total, err := s.repo.Progress(ctx, id)
	if err != nil {
		return transport.ProgressResponse{}, err
	}
	return transport.ProgressResponse{Completed: completed, Total: total}, nil
}

// UpdateProjectStatus applies a status change. Moving into completed runs
// the one-way completion cascade; a completed or cancelled project rejects
// every other move.
func (s *Service) UpdateProjectStatus(ctx context.Context, id uuid.UUID, newStatus string, actorID uuid.UUID) (transport.ProjectResponse, error) {
	target := domain.ProjectStatus(newStatus)
	if !domain.ValidProjectStatus(target) {
		return transport.ProjectResponse{}, apperr.Validation("unknown project status: " + newStatus)
	}

	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return transport.ProjectResponse{}, apperr.NotFound(msgProjectNotFound)
		}
		return transport.ProjectResponse{}, err
	}

	if project.Status == target {
		return transport.ToProjectResponse(project), nil
	}
	if !domain.ProjectTransitionAllowed(project.Status, target) {
		return transport.ProjectResponse{}, apperr.Validation(
			fmt.Sprintf("project cannot move from %s to %s", project.Status, target))
	}

	if target == domain.ProjectCompleted {
		return s.completeProject(ctx, project, actorID)
	}

	updated, err := s.repo.SetProjectStatus(ctx, id, target)
	if err != nil {
		return transport.ProjectResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "project",
		EntityID:   id,
		Action:     "project.status_changed",
		ActorType:  "user",
		ActorID:    &actorID,
		Metadata:   map[string]any{"from": string(project.Status), "to": string(target)},
	})

	return transport.ToProjectResponse(updated), nil
}

// completeProject runs the one-way completion cascade: bulk milestone
// completion, the project flip and the audit entry commit atomically, then
// the linked lead advances and the client is notified.
func (s *Service) completeProject(ctx context.Context, project repository.Project, actorID uuid.UUID) (transport.ProjectResponse, error) {
	completed, forcedMilestones, err := s.repo.CompleteProjectTx(ctx, project.ID, func(ctx context.Context, tx pgx.Tx, forced int) error {
		return s.activity.RecordTx(ctx, tx, activity.AppendParams{
			EntityType: "project",
			EntityID:   project.ID,
			Action:     "project.completed",
			ActorType:  "user",
			ActorID:    &actorID,
			Metadata:   map[string]any{"forcedMilestones": forced},
		})
	})
	if err != nil {
		return transport.ProjectResponse{}, err
	}

	if forcedMilestones > 0 {
		s.log.Cascade("project.completed", "milestones.bulk_completed", "project", project.ID.String())
	}

	if project.LeadID != nil {
		if err := s.leads.AdvanceToProjectDelivered(ctx, *project.LeadID, "project completed"); err != nil {
			s.log.IntegrationFailure("leads", "advance_project_delivered", err)
		}
	}

	email, name, err := s.clients.GetContact(ctx, project.ClientID)
	if err != nil {
		s.log.IntegrationFailure("clients", "get_contact", err)
	} else {
		s.bus.Publish(ctx, events.ProjectCompleted{
			BaseEvent:   events.NewBaseEvent(),
			ProjectID:   completed.ID,
			ProjectName: completed.Name,
			ClientID:    completed.ClientID,
			ClientEmail: email,
			ClientName:  name,
			ActorID:     actorID,
		})
	}

	return transport.ToProjectResponse(completed), nil
}

// ---------------------------------------------------------------------------
// Phases

func (s *Service) CreatePhase(ctx context.Context, projectID uuid.UUID, req transport.CreatePhaseRequest) (transport.PhaseResponse, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return transport.PhaseResponse{}, apperr.NotFound(msgProjectNotFound)
		}
		return transport.PhaseResponse{}, err
	}

	phase, err := s.repo.CreatePhase(ctx, projectID, req.Name, req.Position)
	if err != nil {
		return transport.PhaseResponse{}, err
	}
	return transport.ToPhaseResponse(phase), nil
}

func (s *Service) ListPhases(ctx context.Context, projectID uuid.UUID) ([]transport.PhaseResponse, error) {
	phases, err := s.repo.ListPhases(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.PhaseResponse, 0, len(phases))
	for _, p := range phases {
		out = append(out, transport.ToPhaseResponse(p))
	}
	return out, nil
}

func (s *Service) RenamePhase(ctx context.Context, id uuid.UUID, req transport.RenamePhaseRequest) (transport.PhaseResponse, error) {
	phase, err := s.repo.RenamePhase(ctx, id, req.Name)
	if err != nil {
		if errors.Is(err, repository.ErrPhaseNotFound) {
			return transport.PhaseResponse{}, apperr.NotFound(msgPhaseNotFound)
		}
		return transport.PhaseResponse{}, err
	}
	return transport.ToPhaseResponse(phase), nil
}

// DeletePhase cascade-deletes the phase's milestones unconditionally.
func (s *Service) DeletePhase(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeletePhase(ctx, id); err != nil {
		if errors.Is(err, repository.ErrPhaseNotFound) {
			return apperr.NotFound(msgPhaseNotFound)
		}
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Milestones

func (s *Service) CreateMilestone(ctx context.Context, projectID uuid.UUID, req transport.CreateMilestoneRequest) (transport.MilestoneResponse, error) {
	if req.TriggersInvoice && (req.InvoiceAmountCents == nil || *req.InvoiceAmountCents <= 0) {
		return transport.MilestoneResponse{}, apperr.Validation("an invoicing milestone needs a positive invoice amount")
	}
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return transport.MilestoneResponse{}, apperr.NotFound(msgProjectNotFound)
		}
		return transport.MilestoneResponse{}, err
	}

	milestone, err := s.repo.CreateMilestone(ctx, repository.CreateMilestoneParams{
		ProjectID:          projectID,
		PhaseID:            req.PhaseID,
		Name:               req.Name,
		Description:        req.Description,
		DueDate:            req.DueDate,
		TriggersInvoice:    req.TriggersInvoice,
		InvoiceAmountCents: req.InvoiceAmountCents,
		Position:           req.Position,
	})
	if err != nil {
		return transport.MilestoneResponse{}, err
	}
	return transport.ToMilestoneResponse(milestone, time.Now()), nil
}

func (s *Service) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]transport.MilestoneResponse, error) {
	milestones, err := s.repo.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]transport.MilestoneResponse, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, transport.ToMilestoneResponse(m, now))
	}
	return out, nil
}

// UpdateMilestone applies a patch and fires the transition cascades:
//
//   - into in_progress: if this is the linked lead's first milestone ever
//     started, the lead advances to active_client;
//   - into completed: completed_at is stamped, the team is notified, and an
//     invoicing milestone creates its invoice synchronously;
//   - out of completed: completed_at is cleared (un-completion is allowed).
func (s *Service) UpdateMilestone(ctx context.Context, id uuid.UUID, req transport.UpdateMilestoneRequest, actorID uuid.UUID) (transport.MilestoneResponse, error) {
	params := repository.UpdateMilestoneParams{
		Name:               req.Name,
		Description:        req.Description,
		DueDate:            req.DueDate,
		TriggersInvoice:    req.TriggersInvoice,
		InvoiceAmountCents: req.InvoiceAmountCents,
		Position:           req.Position,
	}

	var target *domain.MilestoneStatus
	if req.Status != nil {
		st := domain.MilestoneStatus(*req.Status)
		if !domain.ValidMilestoneStatus(st) {
			return transport.MilestoneResponse{}, apperr.Validation("unknown milestone status: " + *req.Status)
		}
		target = &st
		params.Status = target
	}

	// The completed_at stamp travels with the status change so both land in
	// the same row version.
	if target != nil {
		current, err := s.repo.GetMilestone(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrMilestoneNotFound) {
				return transport.MilestoneResponse{}, apperr.NotFound(msgMilestoneNotFound)
			}
			return transport.MilestoneResponse{}, err
		}
		switch {
		case *target == domain.MilestoneCompleted && current.Status != domain.MilestoneCompleted:
			now := time.Now()
			stamp := &now
			params.SetCompletedAt = &stamp
		case *target != domain.MilestoneCompleted && current.Status == domain.MilestoneCompleted:
			var cleared *time.Time
			params.SetCompletedAt = &cleared
		}
	}

	previous, updated, err := s.repo.UpdateMilestone(ctx, id, params)
	if err != nil {
		if errors.Is(err, repository.ErrMilestoneNotFound) {
			return transport.MilestoneResponse{}, apperr.NotFound(msgMilestoneNotFound)
		}
		return transport.MilestoneResponse{}, err
	}

	if err := s.runMilestoneCascades(ctx, previous, updated, actorID); err != nil {
		return transport.MilestoneResponse{}, err
	}

	return transport.ToMilestoneResponse(updated, time.Now()), nil
}

func (s *Service) runMilestoneCascades(ctx context.Context, previous, updated repository.Milestone, actorID uuid.UUID) error {
	startedNow := updated.Status == domain.MilestoneInProgress && previous.Status != domain.MilestoneInProgress
	completedNow := updated.Status == domain.MilestoneCompleted && previous.Status != domain.MilestoneCompleted

	if !startedNow && !completedNow {
		return nil
	}

	project, err := s.repo.GetProject(ctx, updated.ProjectID)
	if err != nil {
		return err
	}

	if startedNow {
		if project.LeadID != nil {
			started, err := s.repo.CountStartedMilestonesForLead(ctx, *project.LeadID, updated.ID)
			if err != nil {
				return err
			}
			if started == 0 {
				s.log.Cascade("milestone.started", "lead.advance_active_client", "milestone", updated.ID.String())
				if err := s.leads.AdvanceToActiveClient(ctx, *project.LeadID, "first milestone started"); err != nil {
					s.log.IntegrationFailure("leads", "advance_active_client", err)
				}
			}
		}
		s.bus.Publish(ctx, events.MilestoneStarted{
			BaseEvent:     events.NewBaseEvent(),
			MilestoneID:   updated.ID,
			ProjectID:     project.ID,
			ProjectLeadID: project.LeadID,
			Name:          updated.Name,
		})
	}

	if completedNow {
		s.activity.Record(ctx, activity.AppendParams{
			EntityType: "milestone",
			EntityID:   updated.ID,
			Action:     "milestone.completed",
			ActorType:  "user",
			ActorID:    &actorID,
		})
		s.bus.Publish(ctx, events.MilestoneCompleted{
			BaseEvent:   events.NewBaseEvent(),
			MilestoneID: updated.ID,
			ProjectID:   project.ID,
			ProjectName: project.Name,
			Name:        updated.Name,
			ActorID:     actorID,
		})

		if updated.TriggersInvoice && updated.InvoiceAmountCents != nil {
			s.log.Cascade("milestone.completed", "invoice.create", "milestone", updated.ID.String())
			err := s.invoices.CreateForMilestone(ctx, InvoiceParams{
				ClientID:      project.ClientID,
				ProjectID:     project.ID,
				MilestoneID:   updated.ID,
				ProjectName:   project.Name,
				MilestoneName: updated.Name,
				AmountCents:   *updated.InvoiceAmountCents,
			})
			if err != nil {
				// The milestone stays completed; un-completing and
				// re-completing retriggers the (idempotent) creation.
				return fmt.Errorf("milestone completed but invoice creation failed: %w", err)
			}
		}
	}

	return nil
}

// DeleteMilestone is unconditional; invoices already attributed to the
// milestone survive it.
func (s *Service) DeleteMilestone(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteMilestone(ctx, id); err != nil {
		if errors.Is(err, repository.ErrMilestoneNotFound) {
			return apperr.NotFound(msgMilestoneNotFound)
		}
		return err
	}
	return nil
}
