package service

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"leadengine_backend/internal/assignment/domain"
	"leadengine_backend/internal/assignment/executor"
	"leadengine_backend/internal/assignment/strategy"
	"leadengine_backend/internal/events"
	platformevents "leadengine_backend/platform/events"
	"leadengine_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu sync.Mutex

	roster    []domain.Salesperson
	workloads map[uuid.UUID]int
	profiles  map[uuid.UUID]map[string]float64
	leads     []domain.UnassignedLead
	rules     []domain.TerritoryRule

	owners  map[uuid.UUID]uuid.UUID
	records []domain.AssignmentRecord
}

func (f *fakeRepo) GetActiveSalespeople(_ context.Context, _ uuid.UUID) ([]domain.Salesperson, error) {
	return append([]domain.Salesperson(nil), f.roster...), nil
}

func (f *fakeRepo) GetOpenLeadCounts(_ context.Context, _ uuid.UUID) (map[uuid.UUID]int, error) {
	return f.workloads, nil
}

func (f *fakeRepo) GetCloseRatesByProfile(_ context.Context, _ uuid.UUID) (map[uuid.UUID]map[string]float64, error) {
	return f.profiles, nil
}

func (f *fakeRepo) GetUnassignedLeads(_ context.Context, _ uuid.UUID) ([]domain.UnassignedLead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	remaining := make([]domain.UnassignedLead, 0, len(f.leads))
	for _, lead := range f.leads {
		if _, claimed := f.owners[lead.ID]; !claimed {
			remaining = append(remaining, lead)
		}
	}
	return remaining, nil
}

func (f *fakeRepo) GetTerritoryRules(_ context.Context, _ uuid.UUID) ([]domain.TerritoryRule, error) {
	return f.rules, nil
}

func (f *fakeRepo) GetAssignmentStats(_ context.Context, _ uuid.UUID) (domain.Stats, error) {
	return domain.Stats{}, nil
}

func (f *fakeRepo) AssignOwner(_ context.Context, _, leadID, salespersonID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, claimed := f.owners[leadID]; claimed {
		return false, nil
	}
	f.owners[leadID] = salespersonID
	return true, nil
}

func (f *fakeRepo) InsertAssignmentRecord(_ context.Context, record domain.AssignmentRecord) (domain.AssignmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return record, nil
}

func newFakeRepo(repCount, leadCount int) *fakeRepo {
	repo := &fakeRepo{
		workloads: map[uuid.UUID]int{},
		owners:    map[uuid.UUID]uuid.UUID{},
	}
	for i := 1; i <= repCount; i++ {
		repo.roster = append(repo.roster, domain.Salesperson{
			ID:    uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0001-%012d", i)),
			Name:  fmt.Sprintf("Rep %d", i),
			Email: fmt.Sprintf("rep%d@example.com", i),
		})
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= leadCount; i++ {
		repo.leads = append(repo.leads, domain.UnassignedLead{
			ID:        uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0002-%012d", i)),
			Email:     fmt.Sprintf("lead%d@example.com", i),
			CreatedAt: base.AddDate(0, 0, i),
		})
	}
	return repo
}

func newTestService(repo *fakeRepo) (*Service, *platformevents.InMemoryBus) {
	log := logger.New("test")
	bus := platformevents.NewInMemoryBus(log)
	exec := executor.New(repo, log, 200)
	return New(repo, exec, bus, log), bus
}

func TestPreviewRejectsUnknownStrategy(t *testing.T) {
	svc, _ := newTestService(newFakeRepo(2, 4))
	if _, err := svc.Preview(context.Background(), uuid.New(), "chaos"); err == nil {
		t.Error("unknown strategy must be rejected before any computation")
	}
}

func TestPreviewDoesNotMutateState(t *testing.T) {
	repo := newFakeRepo(2, 4)
	svc, _ := newTestService(repo)

	first, err := svc.Preview(context.Background(), uuid.New(), strategy.RoundRobin)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Preview(context.Background(), uuid.New(), strategy.RoundRobin)
	if err != nil {
		t.Fatal(err)
	}

	if len(repo.owners) != 0 {
		t.Error("preview must never assign leads")
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("back-to-back previews must return identical plans")
	}
}

func TestBulkAssignRejectsNegativeLimit(t *testing.T) {
	svc, _ := newTestService(newFakeRepo(2, 4))
	if _, err := svc.BulkAssign(context.Background(), uuid.New(), strategy.RoundRobin, -1); err == nil {
		t.Error("negative limit must be rejected")
	}
}

func TestBulkAssignCommitsAndPublishes(t *testing.T) {
	repo := newFakeRepo(2, 6)
	svc, bus := newTestService(repo)

	received := make(chan events.LeadsAssigned, 1)
	bus.Subscribe(events.LeadsAssigned{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.LeadsAssigned); ok {
			received <- e
		}
		return nil
	}))

	result, err := svc.BulkAssign(context.Background(), uuid.New(), strategy.RoundRobin, 6)
	if err != nil {
		t.Fatalf("bulk assign failed: %v", err)
	}
	if result.AssignmentsMade != 6 {
		t.Fatalf("assignments made = %d, want 6", result.AssignmentsMade)
	}
	if len(repo.records) != 6 {
		t.Errorf("persisted %d audit records, want 6", len(repo.records))
	}

	select {
	case event := <-received:
		if len(event.Assignments) != 6 {
			t.Errorf("event carries %d assignments, want 6", len(event.Assignments))
		}
		if event.Assignments[0].AssigneeEmail == "" {
			t.Error("event must carry the assignee email for notifications")
		}
	case <-time.After(time.Second):
		t.Error("no LeadsAssigned event published")
	}
}

func TestBulkAssignPaginatesViaRepeatedCalls(t *testing.T) {
	repo := newFakeRepo(2, 5)
	svc, _ := newTestService(repo)
	orgID := uuid.New()

	first, err := svc.BulkAssign(context.Background(), orgID, strategy.Workload, 3)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.BulkAssign(context.Background(), orgID, strategy.Workload, 3)
	if err != nil {
		t.Fatal(err)
	}

	if first.AssignmentsMade != 3 || second.AssignmentsMade != 2 {
		t.Errorf("made %d then %d, want 3 then 2", first.AssignmentsMade, second.AssignmentsMade)
	}
	seen := make(map[uuid.UUID]bool)
	for _, record := range append(first.Assignments, second.Assignments...) {
		if seen[record.LeadID] {
			t.Errorf("lead %s assigned twice", record.LeadID)
		}
		seen[record.LeadID] = true
	}
}
