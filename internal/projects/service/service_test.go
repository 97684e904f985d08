package service

import (
	"context"
	"errors"
	"testing"
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

type fakeRepo struct {
	projects   map[uuid.UUID]*repository.Project
	phases     map[uuid.UUID]*repository.Phase
	milestones map[uuid.UUID]*repository.Milestone
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		projects:   make(map[uuid.UUID]*repository.Project),
		phases:     make(map[uuid.UUID]*repository.Phase),
		milestones: make(map[uuid.UUID]*repository.Milestone),
	}
}

func (f *fakeRepo) addProject(p repository.Project) *repository.Project {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ClientID == uuid.Nil {
		p.ClientID = uuid.New()
	}
	if p.Status == "" {
		p.Status = domain.ProjectDraft
	}
	stored := p
	f.projects[stored.ID] = &stored
	return &stored
}

func (f *fakeRepo) addMilestone(m repository.Milestone) *repository.Milestone {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = domain.MilestonePending
	}
	stored := m
	f.milestones[stored.ID] = &stored
	return &stored
}

func (f *fakeRepo) CreateProject(_ context.Context, p repository.CreateProjectParams) (repository.Project, error) {
	created := f.addProject(repository.Project{
		ClientID: p.ClientID, LeadID: p.LeadID, ProposalID: p.ProposalID,
		Name: p.Name, Description: p.Description,
	})
	return *created, nil
}

func (f *fakeRepo) GetProject(_ context.Context, id uuid.UUID) (repository.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return repository.Project{}, repository.ErrProjectNotFound
	}
	return *p, nil
}

func (f *fakeRepo) ListProjects(context.Context, *uuid.UUID) ([]repository.Project, error) {
	return nil, nil
}

func (f *fakeRepo) UpdateProject(_ context.Context, id uuid.UUID, _ repository.UpdateProjectParams) (repository.Project, error) {
	return f.GetProject(context.Background(), id)
}

func (f *fakeRepo) SetProjectStatus(_ context.Context, id uuid.UUID, status domain.ProjectStatus) (repository.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return repository.Project{}, repository.ErrProjectNotFound
	}
	p.Status = status
	return *p, nil
}

func (f *fakeRepo) DeleteProject(_ context.Context, id uuid.UUID) error {
	if _, ok := f.projects[id]; !ok {
		return repository.ErrProjectNotFound
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeRepo) CompleteProjectTx(ctx context.Context, id uuid.UUID, audit func(ctx context.Context, tx pgx.Tx, forced int) error) (repository.Project, int, error) {
	p, ok := f.projects[id]
	if !ok {
		return repository.Project{}, 0, repository.ErrProjectNotFound
	}
	forced := 0
	for _, m := range f.milestones {
		if m.ProjectID == id && m.Status != domain.MilestoneCompleted {
			forced++
		}
	}
	// Mirror the rollback: the audit write failing means nothing changes.
	if audit != nil {
		if err := audit(ctx, nil, forced); err != nil {
			return repository.Project{}, 0, err
		}
	}
	now := time.Now()
	for _, m := range f.milestones {
		if m.ProjectID == id && m.Status != domain.MilestoneCompleted {
			m.Status = domain.MilestoneCompleted
			m.CompletedAt = &now
		}
	}
	p.Status = domain.ProjectCompleted
	p.ActualEndDate = &now
	return *p, forced, nil
}

func (f *fakeRepo) Progress(_ context.Context, projectID uuid.UUID) (int, int, error) {
	completed, total := 0, 0
	for _, m := range f.milestones {
		if m.ProjectID != projectID {
			continue
		}
		total++
		if m.Status == domain.MilestoneCompleted {
			completed++
		}
	}
	return completed, total, nil
}

func (f *fakeRepo) CreatePhase(_ context.Context, projectID uuid.UUID, name string, position int) (repository.Phase, error) {
	p := repository.Phase{ID: uuid.New(), ProjectID: projectID, Name: name, Position: position}
	f.phases[p.ID] = &p
	return p, nil
}

func (f *fakeRepo) ListPhases(context.Context, uuid.UUID) ([]repository.Phase, error) {
	return nil, nil
}

func (f *fakeRepo) RenamePhase(_ context.Context, id uuid.UUID, name string) (repository.Phase, error) {
	p, ok := f.phases[id]
	if !ok {
		return repository.Phase{}, repository.ErrPhaseNotFound
	}
	p.Name = name
	return *p, nil
}

func (f *fakeRepo) DeletePhase(_ context.Context, id uuid.UUID) error {
	if _, ok := f.phases[id]; !ok {
		return repository.ErrPhaseNotFound
	}
	delete(f.phases, id)
	for mid, m := range f.milestones {
		if m.PhaseID == id {
			delete(f.milestones, mid)
		}
	}
	return nil
}

func (f *fakeRepo) CreateMilestone(_ context.Context, p repository.CreateMilestoneParams) (repository.Milestone, error) {
	m := f.addMilestone(repository.Milestone{
		ProjectID: p.ProjectID, PhaseID: p.PhaseID, Name: p.Name,
		TriggersInvoice: p.TriggersInvoice, InvoiceAmountCents: p.InvoiceAmountCents,
	})
	return *m, nil
}

func (f *fakeRepo) GetMilestone(_ context.Context, id uuid.UUID) (repository.Milestone, error) {
	m, ok := f.milestones[id]
	if !ok {
		return repository.Milestone{}, repository.ErrMilestoneNotFound
	}
	return *m, nil
}

func (f *fakeRepo) ListMilestones(context.Context, uuid.UUID) ([]repository.Milestone, error) {
	return nil, nil
}

func (f *fakeRepo) UpdateMilestone(_ context.Context, id uuid.UUID, p repository.UpdateMilestoneParams) (repository.Milestone, repository.Milestone, error) {
	m, ok := f.milestones[id]
	if !ok {
		return repository.Milestone{}, repository.Milestone{}, repository.ErrMilestoneNotFound
	}
	previous := *m
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.TriggersInvoice != nil {
		m.TriggersInvoice = *p.TriggersInvoice
	}
	if p.InvoiceAmountCents != nil {
		m.InvoiceAmountCents = p.InvoiceAmountCents
	}
	if p.SetCompletedAt != nil {
		m.CompletedAt = *p.SetCompletedAt
	}
	return previous, *m, nil
}

func (f *fakeRepo) DeleteMilestone(_ context.Context, id uuid.UUID) error {
	if _, ok := f.milestones[id]; !ok {
		return repository.ErrMilestoneNotFound
	}
	delete(f.milestones, id)
	return nil
}

func (f *fakeRepo) CountStartedMilestonesForLead(_ context.Context, leadID uuid.UUID, exclude uuid.UUID) (int, error) {
	count := 0
	for _, m := range f.milestones {
		if m.ID == exclude {
			continue
		}
		p, ok := f.projects[m.ProjectID]
		if !ok || p.LeadID == nil || *p.LeadID != leadID {
			continue
		}
		if m.Status == domain.MilestoneInProgress || m.Status == domain.MilestoneCompleted {
			count++
		}
	}
	return count, nil
}

type fakeLeads struct {
	activeClient     []uuid.UUID
	projectDelivered []uuid.UUID
}

func (f *fakeLeads) AdvanceToActiveClient(_ context.Context, leadID uuid.UUID, _ string) error {
	f.activeClient = append(f.activeClient, leadID)
	return nil
}

func (f *fakeLeads) AdvanceToProjectDelivered(_ context.Context, leadID uuid.UUID, _ string) error {
	f.projectDelivered = append(f.projectDelivered, leadID)
	return nil
}

type fakeInvoices struct {
	calls []InvoiceParams
	err   error
}

func (f *fakeInvoices) CreateForMilestone(_ context.Context, p InvoiceParams) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, p)
	return nil
}

type fakeClients struct{}

func (fakeClients) GetContact(context.Context, uuid.UUID) (string, string, error) {
	return "client@example.com", "Client", nil
}

type noopActivity struct{}

func (noopActivity) Record(context.Context, activity.AppendParams) {}
func (noopActivity) RecordTx(context.Context, pgx.Tx, activity.AppendParams) error {
	return nil
}

type recordingActivity struct {
	actions   []string
	txActions []string
	txErr     error
}

func (r *recordingActivity) Record(_ context.Context, p activity.AppendParams) {
	r.actions = append(r.actions, p.Action)
}

func (r *recordingActivity) RecordTx(_ context.Context, _ pgx.Tx, p activity.AppendParams) error {
	if r.txErr != nil {
		return r.txErr
	}
	r.txActions = append(r.txActions, p.Action)
	return nil
}

func newTestService(repo *fakeRepo) (*Service, *fakeLeads, *fakeInvoices) {
	log := logger.New("development")
	leads := &fakeLeads{}
	invoices := &fakeInvoices{}
	svc := New(repo, leads, invoices, fakeClients{}, noopActivity{}, events.NewInMemoryBus(log), log)
	return svc, leads, invoices
}

func updateStatus(status string) transport.UpdateMilestoneRequest {
	return transport.UpdateMilestoneRequest{Status: &status}
}

func TestFirstMilestoneStartAdvancesLead(t *testing.T) {
	repo := newFakeRepo()
	svc, leads, _ := newTestService(repo)

	leadID := uuid.New()
	project := repo.addProject(repository.Project{LeadID: &leadID})
	first := repo.addMilestone(repository.Milestone{ProjectID: project.ID})
	second := repo.addMilestone(repository.Milestone{ProjectID: project.ID})

	inProgress := string(domain.MilestoneInProgress)
	if _, err := svc.UpdateMilestone(context.Background(), first.ID, updateStatus(inProgress), uuid.New()); err != nil {
		t.Fatalf("start first milestone: %v", err)
	}
	if len(leads.activeClient) != 1 || leads.activeClient[0] != leadID {
		t.Fatalf("lead advances = %v, want exactly one for %s", leads.activeClient, leadID)
	}

	// A later milestone start must not re-fire the advance.
	if _, err := svc.UpdateMilestone(context.Background(), second.ID, updateStatus(inProgress), uuid.New()); err != nil {
		t.Fatalf("start second milestone: %v", err)
	}
	if len(leads.activeClient) != 1 {
		t.Errorf("lead advances = %d, want 1 (only the first start cascades)", len(leads.activeClient))
	}
}

func TestMilestoneCompletionTriggersInvoice(t *testing.T) {
	repo := newFakeRepo()
	svc, _, invoices := newTestService(repo)

	amount := int64(250_000)
	project := repo.addProject(repository.Project{Name: "Website"})
	milestone := repo.addMilestone(repository.Milestone{
		ProjectID:          project.ID,
		Name:               "Launch",
		Status:             domain.MilestoneInProgress,
		TriggersInvoice:    true,
		InvoiceAmountCents: &amount,
	})

	resp, err := svc.UpdateMilestone(context.Background(), milestone.ID, updateStatus("completed"), uuid.New())
	if err != nil {
		t.Fatalf("complete milestone: %v", err)
	}
	if resp.CompletedAt == nil {
		t.Error("completion must stamp completedAt")
	}
	if len(invoices.calls) != 1 {
		t.Fatalf("invoice creations = %d, want 1", len(invoices.calls))
	}
	call := invoices.calls[0]
	if call.MilestoneID != milestone.ID || call.AmountCents != amount || call.ClientID != project.ClientID {
		t.Errorf("invoice params = %+v", call)
	}
}

func TestMilestoneCompletionWithoutInvoiceFlag(t *testing.T) {
	repo := newFakeRepo()
	svc, _, invoices := newTestService(repo)

	project := repo.addProject(repository.Project{})
	milestone := repo.addMilestone(repository.Milestone{ProjectID: project.ID, Status: domain.MilestoneInProgress})

	if _, err := svc.UpdateMilestone(context.Background(), milestone.ID, updateStatus("completed"), uuid.New()); err != nil {
		t.Fatalf("complete milestone: %v", err)
	}
	if len(invoices.calls) != 0 {
		t.Errorf("invoice creations = %d, want 0", len(invoices.calls))
	}
}

func TestUncompletionClearsCompletedAt(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)

	now := time.Now()
	project := repo.addProject(repository.Project{})
	milestone := repo.addMilestone(repository.Milestone{
		ProjectID:   project.ID,
		Status:      domain.MilestoneCompleted,
		CompletedAt: &now,
	})

	resp, err := svc.UpdateMilestone(context.Background(), milestone.ID, updateStatus("in_progress"), uuid.New())
	if err != nil {
		t.Fatalf("uncomplete milestone: %v", err)
	}
	if resp.CompletedAt != nil {
		t.Error("moving out of completed must clear completedAt")
	}
}

func TestRecompletionRetriggersInvoiceCreation(t *testing.T) {
	repo := newFakeRepo()
	svc, _, invoices := newTestService(repo)

	amount := int64(100_000)
	project := repo.addProject(repository.Project{})
	milestone := repo.addMilestone(repository.Milestone{
		ProjectID:          project.ID,
		Status:             domain.MilestoneInProgress,
		TriggersInvoice:    true,
		InvoiceAmountCents: &amount,
	})

	if _, err := svc.UpdateMilestone(context.Background(), milestone.ID, updateStatus("completed"), uuid.New()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.UpdateMilestone(context.Background(), milestone.ID, updateStatus("in_progress"), uuid.New()); err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	if _, err := svc.UpdateMilestone(context.Background(), milestone.ID, updateStatus("completed"), uuid.New()); err != nil {
		t.Fatalf("recomplete: %v", err)
	}

	// Creation is invoked again; billing's per-milestone guard makes the
	// second call a no-op, so double invoicing stays impossible.
	if len(invoices.calls) != 2 {
		t.Errorf("invoice create calls = %d, want 2", len(invoices.calls))
	}
}

func TestInvoiceFailureSurfacesButMilestoneStaysCompleted(t *testing.T) {
	repo := newFakeRepo()
	svc, _, invoices := newTestService(repo)
	invoices.err = errors.New("billing down")

	amount := int64(50_000)
	project := repo.addProject(repository.Project{})
	milestone := repo.addMilestone(repository.Milestone{
		ProjectID:          project.ID,
		Status:             domain.MilestoneInProgress,
		TriggersInvoice:    true,
		InvoiceAmountCents: &amount,
	})

	_, err := svc.UpdateMilestone(context.Background(), milestone.ID, updateStatus("completed"), uuid.New())
	if err == nil {
		t.Fatal("expected the invoice failure to surface")
	}
	if repo.milestones[milestone.ID].Status != domain.MilestoneCompleted {
		t.Error("the milestone transition itself must not roll back")
	}
}

func TestCompleteProjectCascades(t *testing.T) {
	repo := newFakeRepo()
	svc, leads, _ := newTestService(repo)

	leadID := uuid.New()
	project := repo.addProject(repository.Project{LeadID: &leadID, Status: domain.ProjectInProgress})
	open1 := repo.addMilestone(repository.Milestone{ProjectID: project.ID})
	open2 := repo.addMilestone(repository.Milestone{ProjectID: project.ID, Status: domain.MilestoneInProgress})

	resp, err := svc.UpdateProjectStatus(context.Background(), project.ID, "completed", uuid.New())
	if err != nil {
		t.Fatalf("complete project: %v", err)
	}
	if resp.Status != string(domain.ProjectCompleted) {
		t.Errorf("status = %q, want completed", resp.Status)
	}
	if resp.ActualEndDate == nil {
		t.Error("completion must set actualEndDate")
	}
	for _, id := range []uuid.UUID{open1.ID, open2.ID} {
		m := repo.milestones[id]
		if m.Status != domain.MilestoneCompleted || m.CompletedAt == nil {
			t.Errorf("milestone %s = %q completedAt=%v, want forced completed", id, m.Status, m.CompletedAt)
		}
	}
	if len(leads.projectDelivered) != 1 || leads.projectDelivered[0] != leadID {
		t.Errorf("lead advances = %v, want one project_delivered for %s", leads.projectDelivered, leadID)
	}
}

func TestCompleteProjectAuditsInsideTransaction(t *testing.T) {
	log := logger.New("development")

	repo := newFakeRepo()
	act := &recordingActivity{}
	svc := New(repo, &fakeLeads{}, &fakeInvoices{}, fakeClients{}, act, events.NewInMemoryBus(log), log)

	project := repo.addProject(repository.Project{Status: domain.ProjectInProgress})
	if _, err := svc.UpdateProjectStatus(context.Background(), project.ID, "completed", uuid.New()); err != nil {
		t.Fatalf("complete project: %v", err)
	}
	if len(act.txActions) != 1 || act.txActions[0] != "project.completed" {
		t.Fatalf("transactional audit actions = %v, want [project.completed]", act.txActions)
	}

	// A failed audit write rolls the whole completion back.
	repo = newFakeRepo()
	act = &recordingActivity{txErr: errors.New("audit insert failed")}
	svc = New(repo, &fakeLeads{}, &fakeInvoices{}, fakeClients{}, act, events.NewInMemoryBus(log), log)

	project = repo.addProject(repository.Project{Status: domain.ProjectInProgress})
	open := repo.addMilestone(repository.Milestone{ProjectID: project.ID})

	if _, err := svc.UpdateProjectStatus(context.Background(), project.ID, "completed", uuid.New()); err == nil {
		t.Fatal("completion must fail when the audit write fails")
	}
	if repo.projects[project.ID].Status != domain.ProjectInProgress {
		t.Errorf("project status = %q, want in_progress after rollback", repo.projects[project.ID].Status)
	}
	if repo.milestones[open.ID].Status == domain.MilestoneCompleted {
		t.Error("milestones must not stay force-completed after rollback")
	}
}

func TestReopeningCompletedProjectRejected(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)

	project := repo.addProject(repository.Project{Status: domain.ProjectCompleted})

	_, err := svc.UpdateProjectStatus(context.Background(), project.ID, "in_progress", uuid.New())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestCompleteProjectIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc, leads, _ := newTestService(repo)

	leadID := uuid.New()
	project := repo.addProject(repository.Project{LeadID: &leadID, Status: domain.ProjectInProgress})

	if _, err := svc.UpdateProjectStatus(context.Background(), project.ID, "completed", uuid.New()); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if _, err := svc.UpdateProjectStatus(context.Background(), project.ID, "completed", uuid.New()); err != nil {
		t.Fatalf("repeat completion must be a no-op: %v", err)
	}
	if len(leads.projectDelivered) != 1 {
		t.Errorf("lead advances = %d, want 1", len(leads.projectDelivered))
	}
}
