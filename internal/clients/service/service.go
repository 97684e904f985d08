// Package service implements client management and the portal access
// workflow: invites with a rolling rate limit, revoke/restore against the
// external identity provider, and the client side of lead conversion.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/clients/domain"
	"agencycrm_backend/internal/clients/repository"
	"agencycrm_backend/internal/clients/transport"
	"agencycrm_backend/internal/email"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/identity"
	"agencycrm_backend/platform/apperr"
	"agencycrm_backend/platform/logger"
	"agencycrm_backend/platform/phone"

	"github.com/google/uuid"
)

const msgClientNotFound = "client not found"

// Repository is the data access surface the client workflow needs.
type Repository interface {
	Create(ctx context.Context, params repository.CreateClientParams) (repository.Client, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Client, error)
	FindByEmail(ctx context.Context, email string) (repository.Client, error)
	List(ctx context.Context) ([]repository.Client, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateClientParams) (repository.Client, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetPortalUserID(ctx context.Context, id uuid.UUID, userID string) error
	CountInvitesSince(ctx context.Context, clientID uuid.UUID, since time.Time) (int, error)
	RecordInvite(ctx context.Context, clientID uuid.UUID) (repository.Client, error)
	SetRevoked(ctx context.Context, id uuid.UUID, revoked bool) (repository.Client, error)
	MarkFirstLogin(ctx context.Context, id uuid.UUID) (repository.Client, error)
}

// TeamDirectory answers the one question the portal guard asks.
type TeamDirectory interface {
	IsTeamEmail(ctx context.Context, email string) (bool, error)
}

type Service struct {
	repo      Repository
	provider  identity.Provider // nil when the portal runs without one
	team      TeamDirectory
	mail      email.Sender
	activity  activity.Writer
	bus       events.Bus
	portalURL string
	log       *logger.Logger
}

func New(repo Repository, provider identity.Provider, team TeamDirectory, mail email.Sender, act activity.Writer, bus events.Bus, portalURL string, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		provider:  provider,
		team:      team,
		mail:      mail,
		activity:  act,
		bus:       bus,
		portalURL: portalURL,
		log:       log,
	}
}

func (s *Service) Create(ctx context.Context, req transport.CreateClientRequest, actorID uuid.UUID) (transport.ClientResponse, error) {
	params := repository.CreateClientParams{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	client, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.ClientResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "client",
		EntityID:   client.ID,
		Action:     "client.created",
		ActorType:  "user",
		ActorID:    &actorID,
	})

	return transport.ToClientResponse(client), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.ClientResponse, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ClientResponse{}, apperr.NotFound(msgClientNotFound)
		}
		return transport.ClientResponse{}, err
	}
	return transport.ToClientResponse(client), nil
}

func (s *Service) List(ctx context.Context) ([]transport.ClientResponse, error) {
	clients, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]transport.ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, transport.ToClientResponse(c))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateClientRequest) (transport.ClientResponse, error) {
	params := repository.UpdateClientParams{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	client, err := s.repo.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ClientResponse{}, apperr.NotFound(msgClientNotFound)
		}
		return transport.ClientResponse{}, err
	}
	return transport.ToClientResponse(client), nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(msgClientNotFound)
		}
		return err
	}
	return nil
}

// ResolveParams carries lead contact data into conversion-side resolution.
type ResolveParams struct {
	LeadID uuid.UUID
	Name   string
	Email  string
	Phone  *string
}

// ResolveForConversion finds the client a converting lead belongs to, by
// email, or creates one. Identity provisioning is attempted but never fails
// the conversion: a portal login can be provisioned later via invite.
// The bool reports whether a new client row was created.
func (s *Service) ResolveForConversion(ctx context.Context, p ResolveParams) (repository.Client, bool, error) {
	existing, err := s.repo.FindByEmail(ctx, p.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return repository.Client{}, false, err
	}

	client, err := s.repo.Create(ctx, repository.CreateClientParams{
		Name:   p.Name,
		Email:  p.Email,
		Phone:  p.Phone,
		LeadID: &p.LeadID,
	})
	if err != nil {
		return repository.Client{}, false, err
	}

	s.provisionIdentity(ctx, &client)

	return client, true, nil
}

// provisionIdentity creates the portal login best-effort. ErrAlreadyExists
// means the account is usable as-is.
func (s *Service) provisionIdentity(ctx context.Context, client *repository.Client) {
	if s.provider == nil {
		return
	}
	userID, err := s.provider.CreateUser(ctx, client.Email, map[string]string{
		"name":      client.Name,
		"client_id": client.ID.String(),
	})
	if err != nil {
		if !errors.Is(err, identity.ErrAlreadyExists) {
			s.log.IntegrationFailure("identity", "create_user", err)
		}
		return
	}
	if err := s.repo.SetPortalUserID(ctx, client.ID, userID); err != nil {
		s.log.DatabaseError("set_portal_user_id", err)
		return
	}
	client.PortalUserID = &userID
}

// SendPortalInvite runs the invite workflow: team-email guard, rolling rate
// limit, identity ensure + unban, invite record (which clears any revoke),
// then the email itself best-effort.
func (s *Service) SendPortalInvite(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (transport.ClientResponse, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ClientResponse{}, apperr.NotFound(msgClientNotFound)
		}
		return transport.ClientResponse{}, err
	}

	// The guard runs before anything else. Team members must never hold
	// portal accounts, regardless of invite history or revoke state.
	isTeam, err := s.team.IsTeamEmail(ctx, client.Email)
	if err != nil {
		return transport.ClientResponse{}, err
	}
	if isTeam {
		return transport.ClientResponse{}, apperr.Forbidden("portal access cannot be granted to a team member email")
	}

	since := time.Now().Add(-domain.InviteWindow)
	recent, err := s.repo.CountInvitesSince(ctx, client.ID, since)
	if err != nil {
		return transport.ClientResponse{}, err
	}
	if recent >= domain.MaxInvitesPerWindow {
		return transport.ClientResponse{}, apperr.RateLimited(
			fmt.Sprintf("invite limit reached: at most %d invites per 24 hours", domain.MaxInvitesPerWindow))
	}

	if err := s.ensurePortalIdentity(ctx, &client); err != nil {
		return transport.ClientResponse{}, err
	}

	updated, err := s.repo.RecordInvite(ctx, client.ID)
	if err != nil {
		return transport.ClientResponse{}, err
	}

	if err := s.mail.SendPortalInviteEmail(ctx, updated.Email, updated.Name, s.portalURL); err != nil {
		s.log.IntegrationFailure("email", "portal_invite", err)
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "client",
		EntityID:   updated.ID,
		Action:     "client.portal_invite_sent",
		ActorType:  "user",
		ActorID:    &actorID,
	})
	s.bus.Publish(ctx, events.PortalInviteSent{
		BaseEvent:   events.NewBaseEvent(),
		ClientID:    updated.ID,
		ClientEmail: updated.Email,
		InviteCount: updated.PortalInviteCount,
	})

	return transport.ToClientResponse(updated), nil
}

// ensurePortalIdentity makes sure a usable (non-banned) login exists before
// the invite goes out. Unlike conversion, failure here is fatal: an invite
// that points at no account is worse than no invite.
func (s *Service) ensurePortalIdentity(ctx context.Context, client *repository.Client) error {
	if s.provider == nil {
		return nil
	}

	if client.PortalUserID == nil {
		userID, err := s.provider.CreateUser(ctx, client.Email, map[string]string{
			"name":      client.Name,
			"client_id": client.ID.String(),
		})
		switch {
		case err == nil:
			if err := s.repo.SetPortalUserID(ctx, client.ID, userID); err != nil {
				return err
			}
			client.PortalUserID = &userID
		case errors.Is(err, identity.ErrAlreadyExists):
			// Account exists from a previous conversion or invite.
		default:
			return apperr.Wrap(apperr.KindIntegration, "identity provider rejected user creation", err)
		}
	}

	if client.PortalUserID != nil {
		if err := s.provider.UnbanUser(ctx, *client.PortalUserID); err != nil {
			return apperr.Wrap(apperr.KindIntegration, "identity provider could not re-enable login", err)
		}
	}
	return nil
}

// RevokePortalAccess bans the external login and flags the client. The
// provider call comes first: the flag must never claim a ban that did not
// happen.
func (s *Service) RevokePortalAccess(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (transport.ClientResponse, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ClientResponse{}, apperr.NotFound(msgClientNotFound)
		}
		return transport.ClientResponse{}, err
	}

	if s.provider != nil && client.PortalUserID != nil {
		if err := s.provider.BanUser(ctx, *client.PortalUserID); err != nil {
			return transport.ClientResponse{}, apperr.Wrap(apperr.KindIntegration, "identity provider could not disable login", err)
		}
	}

	updated, err := s.repo.SetRevoked(ctx, id, true)
	if err != nil {
		return transport.ClientResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "client",
		EntityID:   id,
		Action:     "client.portal_revoked",
		ActorType:  "user",
		ActorID:    &actorID,
	})
	s.bus.Publish(ctx, events.PortalAccessRevoked{
		BaseEvent: events.NewBaseEvent(),
		ClientID:  id,
		ActorID:   actorID,
	})

	return transport.ToClientResponse(updated), nil
}

// RestorePortalAccess clears the flag and re-enables the login. The derived
// state falls back to whatever the invite/login fields imply.
func (s *Service) RestorePortalAccess(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (transport.ClientResponse, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ClientResponse{}, apperr.NotFound(msgClientNotFound)
		}
		return transport.ClientResponse{}, err
	}

	if s.provider != nil && client.PortalUserID != nil {
		if err := s.provider.UnbanUser(ctx, *client.PortalUserID); err != nil {
			return transport.ClientResponse{}, apperr.Wrap(apperr.KindIntegration, "identity provider could not re-enable login", err)
		}
	}

	updated, err := s.repo.SetRevoked(ctx, id, false)
	if err != nil {
		return transport.ClientResponse{}, err
	}

	s.activity.Record(ctx, activity.AppendParams{
		EntityType: "client",
		EntityID:   id,
		Action:     "client.portal_restored",
		ActorType:  "user",
		ActorID:    &actorID,
	})
	s.bus.Publish(ctx, events.PortalAccessRestored{
		BaseEvent: events.NewBaseEvent(),
		ClientID:  id,
		ActorID:   actorID,
	})

	return transport.ToClientResponse(updated), nil
}

// RecordFirstLogin is called when the portal reports a login. Only the first
// one is recorded.
func (s *Service) RecordFirstLogin(ctx context.Context, id uuid.UUID) (transport.ClientResponse, error) {
	client, err := s.repo.MarkFirstLogin(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ClientResponse{}, apperr.NotFound(msgClientNotFound)
		}
		return transport.ClientResponse{}, err
	}
	return transport.ToClientResponse(client), nil
}
