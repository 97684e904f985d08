package service

import (
	"context"
	"errors"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/leads/repository"
	"agencycrm_backend/internal/leads/transport"
	"agencycrm_backend/platform/apperr"

	"github.com/google/uuid"
)

// ConvertToClient converts a lead into a client. Terminal for the conversion
// dimension: a lead converts at most once, and retries return the existing
// client rather than erroring or duplicating.
//
// Failure semantics follow the workflow's two-phase shape: everything up to
// and including client resolution aborts cleanly with no partial writes;
// once the lead is claimed, downstream steps (audit, welcome notification)
// are best-effort and never roll the conversion back.
func (s *Service) ConvertToClient(ctx context.Context, leadID uuid.UUID, actorID uuid.UUID) (transport.ConversionResponse, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ConversionResponse{}, apperr.NotFound(msgLeadNotFound)
		}
		return transport.ConversionResponse{}, err
	}

	// Idempotent retry: already converted is success, not an error.
	if lead.ConvertedToClientID != nil {
		return transport.ConversionResponse{Success: true, ClientID: *lead.ConvertedToClientID}, nil
	}

	client, created, err := s.clients.ResolveForConversion(ctx, ConversionClientParams{
		LeadID: lead.ID,
		Name:   lead.FullName(),
		Email:  lead.Email,
		Phone:  lead.Phone,
	})
	if err != nil {
		return transport.ConversionResponse{}, err
	}

	lead, claimed, err := s.repo.ClaimConversion(ctx, lead.ID, client.ID)
	if err != nil {
		return transport.ConversionResponse{}, err
	}
	if !claimed {
		// A concurrent conversion won the claim; its client link is the truth.
		if lead.ConvertedToClientID != nil {
			return transport.ConversionResponse{Success: true, ClientID: *lead.ConvertedToClientID}, nil
		}
		return transport.ConversionResponse{}, apperr.Internal("conversion claim failed")
	}

	if created {
		s.activity.Record(ctx, activity.AppendParams{
			ActorID: actorPtr(actorID), Action: "client.created", EntityType: "client", EntityID: client.ID,
			Metadata: map[string]any{"fromLeadId": lead.ID.String()},
		})
	}
	s.activity.Record(ctx, activity.AppendParams{
		ActorID: actorPtr(actorID), Action: "lead.converted", EntityType: "lead", EntityID: lead.ID,
		Metadata: map[string]any{"clientId": client.ID.String(), "clientCreated": created},
	})

	// Welcome notification fans out via the notification module; best-effort.
	s.bus.Publish(ctx, events.LeadConverted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID, ClientID: client.ID,
		ClientEmail: client.Email, ClientName: client.Name,
		ClientCreated: created, ActorID: actorID,
	})

	return transport.ConversionResponse{Success: true, ClientID: client.ID, ClientCreated: created}, nil
}
