package service

import (
	"context"
	"testing"
	"time"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/leads/domain"
	"agencycrm_backend/internal/leads/repository"
	"agencycrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// fakeRepo is an in-memory Repository implementation for workflow tests.
type fakeRepo struct {
	leads map[uuid.UUID]*repository.Lead

	setStageCalls  int
	claimCalls     int
	advanceApplied int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{leads: make(map[uuid.UUID]*repository.Lead)}
}

func (f *fakeRepo) add(lead repository.Lead) *repository.Lead {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.PipelineStage == "" {
		lead.PipelineStage = domain.StageNewLead
	}
	stored := lead
	f.leads[stored.ID] = &stored
	return &stored
}

func (f *fakeRepo) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	lead := f.add(repository.Lead{
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Email:     params.Email,
		Phone:     params.Phone,
	})
	return *lead, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return *lead, nil
}

func (f *fakeRepo) FindByEmail(_ context.Context, email string) (repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.Email == email {
			return *lead, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (f *fakeRepo) List(_ context.Context, stage *domain.Stage) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0)
	for _, lead := range f.leads {
		if stage == nil || lead.PipelineStage == *stage {
			out = append(out, *lead)
		}
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, _ repository.UpdateLeadParams) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return *lead, nil
}

func (f *fakeRepo) SetStage(_ context.Context, id uuid.UUID, stage domain.Stage) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	f.setStageCalls++
	lead.PipelineStage = stage
	lead.PipelineStageChangedAt = time.Now()
	return *lead, nil
}

func (f *fakeRepo) AdvanceStage(_ context.Context, id uuid.UUID, target domain.Stage) (repository.Lead, bool, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, false, repository.ErrNotFound
	}
	if !domain.CanAutoAdvance(lead.PipelineStage, target) {
		return *lead, false, nil
	}
	f.advanceApplied++
	lead.PipelineStage = target
	lead.PipelineStageChangedAt = time.Now()
	return *lead, true, nil
}

func (f *fakeRepo) ClaimConversion(_ context.Context, id uuid.UUID, clientID uuid.UUID) (repository.Lead, bool, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, false, repository.ErrNotFound
	}
	f.claimCalls++
	if lead.ConvertedToClientID != nil {
		return *lead, false, nil
	}
	lead.ConvertedToClientID = &clientID
	lead.PipelineStage = domain.StageContractSigned
	return *lead, true, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.leads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.leads, id)
	return nil
}

func (f *fakeRepo) ListStale(context.Context, time.Duration, int) ([]repository.Lead, error) {
	return nil, nil
}

// fakeGateway resolves clients by email, mirroring the dedup invariant.
type fakeGateway struct {
	byEmail map[string]uuid.UUID
	created int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{byEmail: make(map[string]uuid.UUID)}
}

func (f *fakeGateway) ResolveForConversion(_ context.Context, p ConversionClientParams) (ConvertedClient, bool, error) {
	if id, ok := f.byEmail[p.Email]; ok {
		return ConvertedClient{ID: id, Email: p.Email, Name: p.Name}, false, nil
	}
	id := uuid.New()
	f.byEmail[p.Email] = id
	f.created++
	return ConvertedClient{ID: id, Email: p.Email, Name: p.Name}, true, nil
}

// recordingActivity counts audit appends per action tag.
type recordingActivity struct {
	actions map[string]int
}

func newRecordingActivity() *recordingActivity {
	return &recordingActivity{actions: make(map[string]int)}
}

func (r *recordingActivity) Record(_ context.Context, p activity.AppendParams) {
	r.actions[p.Action]++
}

func (r *recordingActivity) RecordTx(_ context.Context, _ pgx.Tx, p activity.AppendParams) error {
	r.actions[p.Action]++
	return nil
}

func newTestService(repo *fakeRepo, gateway *fakeGateway) (*Service, *recordingActivity) {
	log := logger.New("development")
	act := newRecordingActivity()
	bus := events.NewInMemoryBus(log)
	return New(repo, gateway, act, bus, log), act
}

func TestConvertToClientIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	gateway := newFakeGateway()
	svc, act := newTestService(repo, gateway)

	lead := repo.add(repository.Lead{FirstName: "Ada", LastName: "Lovelace", Email: "a@x.com"})

	first, err := svc.ConvertToClient(context.Background(), lead.ID, uuid.Nil)
	if err != nil {
		t.Fatalf("first conversion failed: %v", err)
	}
	if !first.Success || first.ClientID == uuid.Nil {
		t.Fatalf("first conversion = %+v, want success with client id", first)
	}
	if !first.ClientCreated {
		t.Error("first conversion should create the client")
	}
	if got := repo.leads[lead.ID].PipelineStage; got != domain.StageContractSigned {
		t.Errorf("stage after conversion = %q, want %q", got, domain.StageContractSigned)
	}

	second, err := svc.ConvertToClient(context.Background(), lead.ID, uuid.Nil)
	if err != nil {
		t.Fatalf("retry conversion failed: %v", err)
	}
	if second.ClientID != first.ClientID {
		t.Errorf("retry returned client %s, want %s", second.ClientID, first.ClientID)
	}
	if gateway.created != 1 {
		t.Errorf("clients created = %d, want 1", gateway.created)
	}
	if act.actions["lead.converted"] != 1 {
		t.Errorf("lead.converted log entries = %d, want 1", act.actions["lead.converted"])
	}
}

func TestConvertTwoLeadsSameEmailShareOneClient(t *testing.T) {
	repo := newFakeRepo()
	gateway := newFakeGateway()
	svc, _ := newTestService(repo, gateway)

	first := repo.add(repository.Lead{FirstName: "Ada", LastName: "L", Email: "shared@x.com"})
	second := repo.add(repository.Lead{FirstName: "Grace", LastName: "H", Email: "shared@x.com"})

	r1, err := svc.ConvertToClient(context.Background(), first.ID, uuid.Nil)
	if err != nil {
		t.Fatalf("convert first: %v", err)
	}
	r2, err := svc.ConvertToClient(context.Background(), second.ID, uuid.Nil)
	if err != nil {
		t.Fatalf("convert second: %v", err)
	}

	if r1.ClientID != r2.ClientID {
		t.Errorf("leads resolved to different clients: %s vs %s", r1.ClientID, r2.ClientID)
	}
	if gateway.created != 1 {
		t.Errorf("clients created = %d, want 1", gateway.created)
	}
	if r2.ClientCreated {
		t.Error("second conversion should link, not create")
	}
}

func TestConvertMissingLeadReturnsNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, newFakeGateway())

	_, err := svc.ConvertToClient(context.Background(), uuid.New(), uuid.Nil)
	if err == nil {
		t.Fatal("expected not found error")
	}
}

func TestAdvanceStageNeverMovesBackward(t *testing.T) {
	repo := newFakeRepo()
	svc, act := newTestService(repo, newFakeGateway())

	lead := repo.add(repository.Lead{Email: "b@x.com", PipelineStage: domain.StageProjectDelivered})

	if err := svc.AdvanceStage(context.Background(), lead.ID, domain.StageActiveClient, "milestone started"); err != nil {
		t.Fatalf("advance returned error: %v", err)
	}
	if got := repo.leads[lead.ID].PipelineStage; got != domain.StageProjectDelivered {
		t.Errorf("stage = %q, want unchanged %q", got, domain.StageProjectDelivered)
	}
	if repo.advanceApplied != 0 {
		t.Errorf("advance applied %d times, want 0", repo.advanceApplied)
	}
	if act.actions["lead.stage_changed"] != 0 {
		t.Error("no-op advance must not write an audit entry")
	}
}

func TestAdvanceStageIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc, act := newTestService(repo, newFakeGateway())

	lead := repo.add(repository.Lead{Email: "c@x.com", PipelineStage: domain.StageContractSigned})

	for i := 0; i < 3; i++ {
		if err := svc.AdvanceStage(context.Background(), lead.ID, domain.StageActiveClient, "milestone started"); err != nil {
			t.Fatalf("advance %d returned error: %v", i, err)
		}
	}

	if got := repo.leads[lead.ID].PipelineStage; got != domain.StageActiveClient {
		t.Errorf("stage = %q, want %q", got, domain.StageActiveClient)
	}
	if repo.advanceApplied != 1 {
		t.Errorf("advance applied %d times, want 1", repo.advanceApplied)
	}
	if act.actions["lead.stage_changed"] != 1 {
		t.Errorf("audit entries = %d, want 1", act.actions["lead.stage_changed"])
	}
}

func TestSetStageSameStageIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	svc, act := newTestService(repo, newFakeGateway())

	lead := repo.add(repository.Lead{Email: "d@x.com", PipelineStage: domain.StageNegotiation})

	resp, err := svc.SetStage(context.Background(), lead.ID, string(domain.StageNegotiation), uuid.New())
	if err != nil {
		t.Fatalf("set stage: %v", err)
	}
	if resp.PipelineStage != string(domain.StageNegotiation) {
		t.Errorf("stage = %q, want %q", resp.PipelineStage, domain.StageNegotiation)
	}
	if repo.setStageCalls != 0 {
		t.Errorf("repo writes = %d, want 0", repo.setStageCalls)
	}
	if act.actions["lead.stage_changed"] != 0 {
		t.Error("no-op move must not write an audit entry")
	}
}

func TestSetStageRejectsUnknownStage(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, newFakeGateway())

	lead := repo.add(repository.Lead{Email: "e@x.com"})

	if _, err := svc.SetStage(context.Background(), lead.ID, "warp_speed", uuid.New()); err == nil {
		t.Fatal("expected validation error for unknown stage")
	}
}

func TestSetStageAllowsBackwardManualMove(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, newFakeGateway())

	lead := repo.add(repository.Lead{Email: "f@x.com", PipelineStage: domain.StageNegotiation})

	resp, err := svc.SetStage(context.Background(), lead.ID, string(domain.StageContacted), uuid.New())
	if err != nil {
		t.Fatalf("manual backward move failed: %v", err)
	}
	if resp.PipelineStage != string(domain.StageContacted) {
		t.Errorf("stage = %q, want %q", resp.PipelineStage, domain.StageContacted)
	}
}
