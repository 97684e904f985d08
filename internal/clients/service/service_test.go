package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/clients/repository"
	"agencycrm_backend/internal/email"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/identity"
	"agencycrm_backend/platform/apperr"
	"agencycrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type fakeRepo struct {
	clients map[uuid.UUID]*repository.Client
	invites map[uuid.UUID][]time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clients: make(map[uuid.UUID]*repository.Client),
		invites: make(map[uuid.UUID][]time.Time),
	}
}

func (f *fakeRepo) add(c repository.Client) *repository.Client {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	stored := c
	f.clients[stored.ID] = &stored
	return &stored
}

func (f *fakeRepo) Create(_ context.Context, p repository.CreateClientParams) (repository.Client, error) {
	c := f.add(repository.Client{
		Name:    p.Name,
		Email:   p.Email,
		Phone:   p.Phone,
		Company: p.Company,
		LeadID:  p.LeadID,
	})
	return *c, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return repository.Client{}, repository.ErrNotFound
	}
	return *c, nil
}

func (f *fakeRepo) FindByEmail(_ context.Context, email string) (repository.Client, error) {
	for _, c := range f.clients {
		if c.Email == email {
			return *c, nil
		}
	}
	return repository.Client{}, repository.ErrNotFound
}

func (f *fakeRepo) List(context.Context) ([]repository.Client, error) { return nil, nil }

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, _ repository.UpdateClientParams) (repository.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return repository.Client{}, repository.ErrNotFound
	}
	return *c, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.clients[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.clients, id)
	return nil
}

func (f *fakeRepo) SetPortalUserID(_ context.Context, id uuid.UUID, userID string) error {
	c, ok := f.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.PortalUserID = &userID
	return nil
}

func (f *fakeRepo) CountInvitesSince(_ context.Context, clientID uuid.UUID, since time.Time) (int, error) {
	count := 0
	for _, at := range f.invites[clientID] {
		if !at.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) RecordInvite(_ context.Context, clientID uuid.UUID) (repository.Client, error) {
	c, ok := f.clients[clientID]
	if !ok {
		return repository.Client{}, repository.ErrNotFound
	}
	now := time.Now()
	f.invites[clientID] = append(f.invites[clientID], now)
	c.PortalInvitedAt = &now
	c.PortalInviteCount++
	c.PortalAccessRevoked = false
	return *c, nil
}

func (f *fakeRepo) SetRevoked(_ context.Context, id uuid.UUID, revoked bool) (repository.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return repository.Client{}, repository.ErrNotFound
	}
	c.PortalAccessRevoked = revoked
	return *c, nil
}

func (f *fakeRepo) MarkFirstLogin(_ context.Context, id uuid.UUID) (repository.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return repository.Client{}, repository.ErrNotFound
	}
	if c.PortalFirstLoginAt == nil {
		now := time.Now()
		c.PortalFirstLoginAt = &now
	}
	return *c, nil
}

// fakeProvider records identity calls and can simulate duplicate accounts.
type fakeProvider struct {
	existing  map[string]bool
	created   int
	banned    map[string]bool
	createErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{existing: make(map[string]bool), banned: make(map[string]bool)}
}

func (f *fakeProvider) CreateUser(_ context.Context, email string, _ map[string]string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	if f.existing[email] {
		return "", identity.ErrAlreadyExists
	}
	f.existing[email] = true
	f.created++
	return "idp-" + email, nil
}

func (f *fakeProvider) BanUser(_ context.Context, userID string) error {
	f.banned[userID] = true
	return nil
}

func (f *fakeProvider) UnbanUser(_ context.Context, userID string) error {
	delete(f.banned, userID)
	return nil
}

func (f *fakeProvider) ListUsers(context.Context) ([]identity.User, error) { return nil, nil }

type fakeDirectory struct {
	teamEmails map[string]bool
}

func (f *fakeDirectory) IsTeamEmail(_ context.Context, email string) (bool, error) {
	return f.teamEmails[email], nil
}

type noopActivity struct{}

func (noopActivity) Record(context.Context, activity.AppendParams) {}
func (noopActivity) RecordTx(context.Context, pgx.Tx, activity.AppendParams) error {
	return nil
}

func newTestService(repo *fakeRepo, provider identity.Provider, team TeamDirectory) *Service {
	log := logger.New("development")
	if team == nil {
		team = &fakeDirectory{teamEmails: map[string]bool{}}
	}
	return New(repo, provider, team, email.NoopSender{}, noopActivity{}, events.NewInMemoryBus(log), "https://portal.example.com", log)
}

func TestSendPortalInviteRateLimit(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeProvider(), nil)

	client := repo.add(repository.Client{Name: "Acme", Email: "ops@acme.com"})

	for i := 0; i < 3; i++ {
		if _, err := svc.SendPortalInvite(context.Background(), client.ID, uuid.New()); err != nil {
			t.Fatalf("invite %d failed: %v", i+1, err)
		}
	}

	_, err := svc.SendPortalInvite(context.Background(), client.ID, uuid.New())
	if !apperr.Is(err, apperr.KindRateLimited) {
		t.Fatalf("fourth invite error = %v, want rate limited", err)
	}
	if got := repo.clients[client.ID].PortalInviteCount; got != 3 {
		t.Errorf("invite count = %d, want 3", got)
	}

	// Slide the oldest invite outside the window; the next invite goes
	// through again.
	repo.invites[client.ID][0] = time.Now().Add(-25 * time.Hour)
	if _, err := svc.SendPortalInvite(context.Background(), client.ID, uuid.New()); err != nil {
		t.Fatalf("invite after window slid failed: %v", err)
	}
}

func TestSendPortalInviteTeamEmailGuard(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	team := &fakeDirectory{teamEmails: map[string]bool{"dev@agency.com": true}}
	svc := newTestService(repo, provider, team)

	client := repo.add(repository.Client{Name: "Imposter", Email: "dev@agency.com"})

	_, err := svc.SendPortalInvite(context.Background(), client.ID, uuid.New())
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("error = %v, want forbidden", err)
	}
	if provider.created != 0 {
		t.Error("guard must run before identity provisioning")
	}
	if len(repo.invites[client.ID]) != 0 {
		t.Error("guard must prevent the invite from being recorded")
	}
}

func TestSendPortalInviteClearsRevokedAndUnbans(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	svc := newTestService(repo, provider, nil)

	userID := "idp-x"
	provider.banned[userID] = true
	client := repo.add(repository.Client{
		Name:                "Acme",
		Email:               "ops@acme.com",
		PortalUserID:        &userID,
		PortalAccessRevoked: true,
	})

	resp, err := svc.SendPortalInvite(context.Background(), client.ID, uuid.New())
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if resp.PortalAccessRevoked {
		t.Error("invite must clear the revoked flag")
	}
	if provider.banned[userID] {
		t.Error("invite must unban the identity user")
	}
}

func TestSendPortalInviteToleratesExistingIdentity(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.existing["ops@acme.com"] = true
	svc := newTestService(repo, provider, nil)

	client := repo.add(repository.Client{Name: "Acme", Email: "ops@acme.com"})

	if _, err := svc.SendPortalInvite(context.Background(), client.ID, uuid.New()); err != nil {
		t.Fatalf("invite with pre-existing identity failed: %v", err)
	}
}

func TestSendPortalInviteIdentityFailureIsFatal(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.createErr = errors.New("provider down")
	svc := newTestService(repo, provider, nil)

	client := repo.add(repository.Client{Name: "Acme", Email: "ops@acme.com"})

	_, err := svc.SendPortalInvite(context.Background(), client.ID, uuid.New())
	if !apperr.Is(err, apperr.KindIntegration) {
		t.Fatalf("error = %v, want integration", err)
	}
	if len(repo.invites[client.ID]) != 0 {
		t.Error("failed provisioning must not record an invite")
	}
}

func TestRevokeAndRestoreRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	svc := newTestService(repo, provider, nil)

	userID := "idp-y"
	now := time.Now()
	client := repo.add(repository.Client{
		Name:               "Acme",
		Email:              "ops@acme.com",
		PortalUserID:       &userID,
		PortalInvitedAt:    &now,
		PortalFirstLoginAt: &now,
	})

	revoked, err := svc.RevokePortalAccess(context.Background(), client.ID, uuid.New())
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if revoked.PortalState != "revoked" {
		t.Errorf("state after revoke = %q, want revoked", revoked.PortalState)
	}
	if !provider.banned[userID] {
		t.Error("revoke must ban the identity user")
	}

	restored, err := svc.RestorePortalAccess(context.Background(), client.ID, uuid.New())
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.PortalState != "active" {
		t.Errorf("state after restore = %q, want active (the pre-revoke state)", restored.PortalState)
	}
	if provider.banned[userID] {
		t.Error("restore must unban the identity user")
	}
}

func TestResolveForConversionDedupsByEmail(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	svc := newTestService(repo, provider, nil)

	first, created, err := svc.ResolveForConversion(context.Background(), ResolveParams{
		LeadID: uuid.New(), Name: "Ada", Email: "ada@x.com",
	})
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !created {
		t.Fatal("first resolve should create the client")
	}

	second, created, err := svc.ResolveForConversion(context.Background(), ResolveParams{
		LeadID: uuid.New(), Name: "Ada Again", Email: "ada@x.com",
	})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if created {
		t.Error("second resolve must reuse the existing client")
	}
	if second.ID != first.ID {
		t.Errorf("resolved to %s, want %s", second.ID, first.ID)
	}
	if provider.created != 1 {
		t.Errorf("identity users created = %d, want 1", provider.created)
	}
}

func TestResolveForConversionSurvivesIdentityOutage(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.createErr = errors.New("provider down")
	svc := newTestService(repo, provider, nil)

	client, created, err := svc.ResolveForConversion(context.Background(), ResolveParams{
		LeadID: uuid.New(), Name: "Ada", Email: "ada@x.com",
	})
	if err != nil {
		t.Fatalf("resolve must not fail on identity outage: %v", err)
	}
	if !created {
		t.Error("client should still be created")
	}
	if client.PortalUserID != nil {
		t.Error("no portal user id should be stored after a failed provisioning")
	}
}

func TestRecordFirstLoginIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeProvider(), nil)

	now := time.Now()
	client := repo.add(repository.Client{Name: "Acme", Email: "ops@acme.com", PortalInvitedAt: &now})

	first, err := svc.RecordFirstLogin(context.Background(), client.ID)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	stamped := first.PortalFirstLoginAt
	if stamped == nil {
		t.Fatal("first login must be stamped")
	}

	second, err := svc.RecordFirstLogin(context.Background(), client.ID)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if !second.PortalFirstLoginAt.Equal(*stamped) {
		t.Error("second login must not move the first-login timestamp")
	}
}
