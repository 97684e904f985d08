package transport

import (
	"time"

	"agencycrm_backend/internal/proposals/repository"

	"github.com/google/uuid"
)

type CreateProposalRequest struct {
	LeadID      *uuid.UUID `json:"leadId"`
	ClientID    *uuid.UUID `json:"clientId"`
	Title       string     `json:"title" validate:"required,min=1,max=300"`
	Content     *string    `json:"content"`
	AmountCents int64      `json:"amountCents" validate:"required,gt=0"`
}

type UpdateProposalRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=300"`
	Content     *string `json:"content"`
	AmountCents *int64  `json:"amountCents" validate:"omitempty,gt=0"`
}

type ProposalResponse struct {
	ID          uuid.UUID  `json:"id"`
	LeadID      *uuid.UUID `json:"leadId,omitempty"`
	ClientID    *uuid.UUID `json:"clientId,omitempty"`
	Title       string     `json:"title"`
	Content     *string    `json:"content,omitempty"`
	AmountCents int64      `json:"amountCents"`
	Status      string     `json:"status"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	ViewedAt    *time.Time `json:"viewedAt,omitempty"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	DeclinedAt  *time.Time `json:"declinedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func ToProposalResponse(p repository.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:          p.ID,
		LeadID:      p.LeadID,
		ClientID:    p.ClientID,
		Title:       p.Title,
		Content:     p.Content,
		AmountCents: p.AmountCents,
		Status:      string(p.Status),
		SentAt:      p.SentAt,
		ViewedAt:    p.ViewedAt,
		AcceptedAt:  p.AcceptedAt,
		DeclinedAt:  p.DeclinedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
