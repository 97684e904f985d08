// Package transport defines request and response shapes for the follow-up API.
package transport

import (
	"time"

	"github.com/google/uuid"

	"agencycrm_backend/internal/followups/repository"
)

type CreateFollowUpRequest struct {
	LeadID        uuid.UUID `json:"leadId" binding:"required"`
	RemindAt      time.Time `json:"remindAt" binding:"required"`
	TriggerReason string    `json:"triggerReason" validate:"required,max=200"`
}

// ApproveRequest optionally overrides the AI draft at approval time.
type ApproveRequest struct {
	Subject *string `json:"subject" validate:"omitempty,max=200"`
	Body    *string `json:"body" validate:"omitempty,max=10000"`
}

type FollowUpResponse struct {
	ID            uuid.UUID  `json:"id"`
	LeadID        uuid.UUID  `json:"leadId"`
	RemindAt      time.Time  `json:"remindAt"`
	TriggerReason string     `json:"triggerReason"`
	DraftSubject  *string    `json:"draftSubject"`
	DraftBody     *string    `json:"draftBody"`
	Status        string     `json:"status"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
	DismissedAt   *time.Time `json:"dismissedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func ToResponse(f repository.FollowUp) FollowUpResponse {
	return FollowUpResponse{
		ID:            f.ID,
		LeadID:        f.LeadID,
		RemindAt:      f.RemindAt,
		TriggerReason: f.TriggerReason,
		DraftSubject:  f.DraftSubject,
		DraftBody:     f.DraftBody,
		Status:        f.Status,
		SentAt:        f.SentAt,
		DismissedAt:   f.DismissedAt,
		CreatedAt:     f.CreatedAt,
	}
}

func ToResponseList(followUps []repository.FollowUp) []FollowUpResponse {
	out := make([]FollowUpResponse, 0, len(followUps))
	for _, f := range followUps {
		out = append(out, ToResponse(f))
	}
	return out
}
