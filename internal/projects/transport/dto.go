package transport

import (
	"time"

	"agencycrm_backend/internal/projects/domain"
	"agencycrm_backend/internal/projects/repository"

	"github.com/google/uuid"
)

type CreateProjectRequest struct {
	ClientID      uuid.UUID  `json:"clientId" validate:"required"`
	LeadID        *uuid.UUID `json:"leadId"`
	ProposalID    *uuid.UUID `json:"proposalId"`
	Name          string     `json:"name" validate:"required,min=1,max=200"`
	Description   *string    `json:"description"`
	StartDate     *time.Time `json:"startDate"`
	TargetEndDate *time.Time `json:"targetEndDate"`
}

type UpdateProjectRequest struct {
	Name          *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string    `json:"description"`
	StartDate     *time.Time `json:"startDate"`
	TargetEndDate *time.Time `json:"targetEndDate"`
}

type SetProjectStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type ProjectResponse struct {
	ID            uuid.UUID  `json:"id"`
	ClientID      uuid.UUID  `json:"clientId"`
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	ProposalID    *uuid.UUID `json:"proposalId,omitempty"`
	Name          string     `json:"name"`
	Description   *string    `json:"description,omitempty"`
	Status        string     `json:"status"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	TargetEndDate *time.Time `json:"targetEndDate,omitempty"`
	ActualEndDate *time.Time `json:"actualEndDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func ToProjectResponse(p repository.Project) ProjectResponse {
	return ProjectResponse{
		ID:            p.ID,
		ClientID:      p.ClientID,
		LeadID:        p.LeadID,
		ProposalID:    p.ProposalID,
		Name:          p.Name,
		Description:   p.Description,
		Status:        string(p.Status),
		StartDate:     p.StartDate,
		TargetEndDate: p.TargetEndDate,
		ActualEndDate: p.ActualEndDate,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type ProgressResponse struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

type CreatePhaseRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Position int    `json:"position" validate:"gte=0"`
}

type RenamePhaseRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type PhaseResponse struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"projectId"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func ToPhaseResponse(p repository.Phase) PhaseResponse {
	return PhaseResponse{
		ID:        p.ID,
		ProjectID: p.ProjectID,
		Name:      p.Name,
		Position:  p.Position,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type CreateMilestoneRequest struct {
	PhaseID            uuid.UUID  `json:"phaseId" validate:"required"`
	Name               string     `json:"name" validate:"required,min=1,max=200"`
	Description        *string    `json:"description"`
	DueDate            *time.Time `json:"dueDate"`
	TriggersInvoice    bool       `json:"triggersInvoice"`
	InvoiceAmountCents *int64     `json:"invoiceAmountCents" validate:"omitempty,gt=0"`
	Position           int        `json:"position" validate:"gte=0"`
}

type UpdateMilestoneRequest struct {
	Name               *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Description        *string    `json:"description"`
	Status             *string    `json:"status"`
	DueDate            *time.Time `json:"dueDate"`
	TriggersInvoice    *bool      `json:"triggersInvoice"`
	InvoiceAmountCents *int64     `json:"invoiceAmountCents" validate:"omitempty,gt=0"`
	Position           *int       `json:"position" validate:"omitempty,gte=0"`
}

type MilestoneResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ProjectID          uuid.UUID  `json:"projectId"`
	PhaseID            uuid.UUID  `json:"phaseId"`
	Name               string     `json:"name"`
	Description        *string    `json:"description,omitempty"`
	Status             string     `json:"status"`
	Overdue            bool       `json:"overdue"`
	DueDate            *time.Time `json:"dueDate,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	TriggersInvoice    bool       `json:"triggersInvoice"`
	InvoiceAmountCents *int64     `json:"invoiceAmountCents,omitempty"`
	Position           int        `json:"position"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func ToMilestoneResponse(m repository.Milestone, now time.Time) MilestoneResponse {
	return MilestoneResponse{
		ID:                 m.ID,
		ProjectID:          m.ProjectID,
		PhaseID:            m.PhaseID,
		Name:               m.Name,
		Description:        m.Description,
		Status:             string(m.Status),
		Overdue:            domain.Overdue(m.Status, m.DueDate, now),
		DueDate:            m.DueDate,
		CompletedAt:        m.CompletedAt,
		TriggersInvoice:    m.TriggersInvoice,
		InvoiceAmountCents: m.InvoiceAmountCents,
		Position:           m.Position,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}
