package transport

import (
	"time"

	"agencycrm_backend/internal/clients/domain"
	"agencycrm_backend/internal/clients/repository"

	"github.com/google/uuid"
)

type CreateClientRequest struct {
	Name    string  `json:"name" validate:"required,min=1,max=200"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   *string `json:"phone" validate:"omitempty,max=30"`
	Company *string `json:"company" validate:"omitempty,max=200"`
}

type UpdateClientRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=200"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone" validate:"omitempty,max=30"`
	Company *string `json:"company" validate:"omitempty,max=200"`
}

type ClientResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Phone               *string    `json:"phone,omitempty"`
	Company             *string    `json:"company,omitempty"`
	LeadID              *uuid.UUID `json:"leadId,omitempty"`
	PortalState         string     `json:"portalState"`
	PortalInvitedAt     *time.Time `json:"portalInvitedAt,omitempty"`
	PortalInviteCount   int        `json:"portalInviteCount"`
	PortalFirstLoginAt  *time.Time `json:"portalFirstLoginAt,omitempty"`
	PortalAccessRevoked bool       `json:"portalAccessRevoked"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func ToClientResponse(c repository.Client) ClientResponse {
	return ClientResponse{
		ID:                  c.ID,
		Name:                c.Name,
		Email:               c.Email,
		Phone:               c.Phone,
		Company:             c.Company,
		LeadID:              c.LeadID,
		PortalState:         string(domain.AccessStateOf(c.PortalInvitedAt, c.PortalFirstLoginAt, c.PortalAccessRevoked)),
		PortalInvitedAt:     c.PortalInvitedAt,
		PortalInviteCount:   c.PortalInviteCount,
		PortalFirstLoginAt:  c.PortalFirstLoginAt,
		PortalAccessRevoked: c.PortalAccessRevoked,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}
