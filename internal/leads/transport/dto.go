// Package transport defines the request/response DTOs for the leads API.
package transport

import (
	"encoding/json"
	"time"

	"agencycrm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

type CreateLeadRequest struct {
	FirstName  string     `json:"firstName" validate:"required,max=100"`
	LastName   string     `json:"lastName" validate:"required,max=100"`
	Email      string     `json:"email" validate:"required,email"`
	Phone      *string    `json:"phone,omitempty"`
	Company    *string    `json:"company,omitempty"`
	Source     *string    `json:"source,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	AssignedTo *uuid.UUID `json:"assignedTo,omitempty"`
}

type UpdateLeadRequest struct {
	FirstName     *string    `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName      *string    `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Email         *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone         *string    `json:"phone,omitempty"`
	Company       *string    `json:"company,omitempty"`
	Source        *string    `json:"source,omitempty"`
	Score         *string    `json:"score,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	AssignedTo    *uuid.UUID `json:"assignedTo,omitempty"`
	AssignedToSet bool       `json:"-"`
}

// UnmarshalJSON distinguishes "assignedTo": null (unassign) from the field
// being absent (leave unchanged).
func (r *UpdateLeadRequest) UnmarshalJSON(data []byte) error {
	type alias UpdateLeadRequest
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	*r = UpdateLeadRequest(decoded)
	_, r.AssignedToSet = keys["assignedTo"]
	return nil
}

type SetStageRequest struct {
	Stage string `json:"stage" validate:"required"`
}

type LeadResponse struct {
	ID                     uuid.UUID  `json:"id"`
	FirstName              string     `json:"firstName"`
	LastName               string     `json:"lastName"`
	Email                  string     `json:"email"`
	Phone                  *string    `json:"phone,omitempty"`
	Company                *string    `json:"company,omitempty"`
	Source                 *string    `json:"source,omitempty"`
	Score                  *string    `json:"score,omitempty"`
	PipelineStage          string     `json:"pipelineStage"`
	PipelineStageChangedAt time.Time  `json:"pipelineStageChangedAt"`
	AssignedTo             *uuid.UUID `json:"assignedTo,omitempty"`
	ConvertedToClientID    *uuid.UUID `json:"convertedToClientId,omitempty"`
	Notes                  *string    `json:"notes,omitempty"`
	AIAnalysis             any        `json:"aiAnalysis,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

type ConversionResponse struct {
	Success       bool      `json:"success"`
	ClientID      uuid.UUID `json:"clientId"`
	ClientCreated bool      `json:"clientCreated"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	resp := LeadResponse{
		ID:                     lead.ID,
		FirstName:              lead.FirstName,
		LastName:               lead.LastName,
		Email:                  lead.Email,
		Phone:                  lead.Phone,
		Company:                lead.Company,
		Source:                 lead.Source,
		Score:                  lead.Score,
		PipelineStage:          string(lead.PipelineStage),
		PipelineStageChangedAt: lead.PipelineStageChangedAt,
		AssignedTo:             lead.AssignedTo,
		ConvertedToClientID:    lead.ConvertedToClientID,
		Notes:                  lead.Notes,
		CreatedAt:              lead.CreatedAt,
		UpdatedAt:              lead.UpdatedAt,
	}

	if len(lead.AIAnalysis) > 0 {
		var analysis any
		if err := json.Unmarshal(lead.AIAnalysis, &analysis); err == nil {
			resp.AIAnalysis = analysis
		}
	}

	return resp
}
