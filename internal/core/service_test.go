package core_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fieldmonitor/internal/blob"
	"fieldmonitor/internal/core"
	"fieldmonitor/internal/events"
	"fieldmonitor/pkg/domain"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error { return errors.New("broker down") }
func (failingPublisher) Close() error                                { return nil }

func newTestService(t *testing.T, opts ...core.ServiceOption) (*core.Service, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	store := newTestStore(t, blob.NewMemory(), core.Snapshot{})
	seq := 0
	base := []core.ServiceOption{
		core.WithPublisher(rec),
		core.WithIDGenerator(func() string {
			seq++
			return "id-" + string(rune('0'+seq))
		}),
		core.WithClock(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }),
	}
	return core.NewService(store, append(base, opts...)...), rec
}

func TestCreateActivityAppliesDefaultsAndPublishes(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()
	a, res, err := svc.CreateActivity(ctx, domain.Activity{Name: "Dialogue", PlannedDate: "2025-04-01", Province: domain.ProvinceNampula})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("unexpected violations: %+v", res.Violations)
	}
	if a.ID != "id-1" || a.Status != domain.ActivityPlanned {
		t.Fatalf("defaults not applied: %+v", a)
	}
	evs := rec.Events()
	if len(evs) != 1 || evs[0].Collection != domain.KeyActivities || evs[0].Action != domain.ActionCreate || evs[0].ID != "id-1" {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestCreateBlockedByRequiredFields(t *testing.T) {
	svc, rec := newTestService(t)
	_, res, err := svc.CreateBudgetLine(context.Background(), domain.BudgetLine{Category: " "})
	var violationErr domain.RuleViolationError
	if !errors.As(err, &violationErr) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !res.HasBlocking() || len(res.Violations) != 2 {
		t.Fatalf("expected category and amount violations, got %+v", res.Violations)
	}
	if len(svc.Snapshot().Budget) != 0 || len(rec.Events()) != 0 {
		t.Fatalf("blocked change must not reach the store")
	}
}

func TestCreateBudgetLineDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	line, _, err := svc.CreateBudgetLine(context.Background(), domain.BudgetLine{Category: "Travel", PlannedAmount: 1000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if line.CurrencyRate != core.DefaultCurrencyRate || line.ActualAmount != 0 || line.CADEquivalent != 0 {
		t.Fatalf("unexpected line %+v", line)
	}
	found, err := svc.UpdateBudgetActual(context.Background(), line.ID, 500)
	if err != nil || !found {
		t.Fatalf("update: %v %v", found, err)
	}
	if got := svc.Snapshot().Budget[0].CADEquivalent; got != 11 {
		t.Fatalf("expected cad 11, got %v", got)
	}
}

func TestCreateBudgetLineConfiguredRate(t *testing.T) {
	svc, _ := newTestService(t, core.WithDefaultRate(0.5))
	ctx := context.Background()
	line, _, err := svc.CreateBudgetLine(ctx, domain.BudgetLine{Category: "Fuel", PlannedAmount: 10, ActualAmount: 5, CADEquivalent: 7})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if line.CurrencyRate != 0.5 || line.CADEquivalent != 7 {
		t.Fatalf("cadEquivalent must be kept at creation: %+v", line)
	}
	if got := svc.Snapshot().Budget[0].CADEquivalent; got != 7 {
		t.Fatalf("stored cadEquivalent %v", got)
	}
	if _, err := svc.UpdateBudgetActual(ctx, line.ID, 5); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := svc.Snapshot().Budget[0].CADEquivalent; got != 3 {
		t.Fatalf("expected recomputed cad 3, got %v", got)
	}
}

func TestCreateOtherEntitiesDefaults(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()
	b, _, err := svc.CreateBeneficiary(ctx, domain.Beneficiary{Name: "Rosa", Gender: domain.GenderFemale, Age: 30})
	if err != nil || b.ActivityAttended != domain.DefaultAttendance {
		t.Fatalf("beneficiary: %+v %v", b, err)
	}
	c, _, err := svc.CreateComplianceItem(ctx, domain.ComplianceItem{Item: "Annual audit", DueDate: "2025-12-01"})
	if err != nil || c.Status != domain.CompliancePending {
		t.Fatalf("compliance: %+v %v", c, err)
	}
	l, _, err := svc.CreateGISLayer(ctx, domain.GISLayer{Name: "Health posts"})
	if err != nil || l.Type != domain.LayerPointData || l.Source != domain.DefaultLayerSource {
		t.Fatalf("layer: %+v %v", l, err)
	}
	p, _, err := svc.CreateGISProvinceStat(ctx, domain.GISProvinceStat{Sessions: 4})
	if err != nil || p.Province != domain.DefaultProvince {
		t.Fatalf("province stat: %+v %v", p, err)
	}
	m, _, err := svc.CreateGISMetric(ctx, domain.GISMetric{ID: "custom", Date: "2025-03-01"})
	if err != nil || m.ID != "custom" {
		t.Fatalf("metric: %+v %v", m, err)
	}
	if _, _, err := svc.CreateGISMetric(ctx, domain.GISMetric{}); err == nil {
		t.Fatalf("expected metric without date to be blocked")
	}
	if got := len(rec.Events()); got != 5 {
		t.Fatalf("expected 5 events, got %d", got)
	}
}

func TestUpdateActivityWarnsButApplies(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()
	a, _, err := svc.CreateActivity(ctx, domain.Activity{Name: "Training", PlannedDate: "2025-02-01", CompletionPercentage: 20})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	status := domain.ActivityCompleted
	found, res, err := svc.UpdateActivity(ctx, a.ID, domain.ActivityUpdate{Status: &status})
	if err != nil || !found {
		t.Fatalf("update: %v %v", found, err)
	}
	warnings := res.Warnings()
	if len(warnings) != 1 || warnings[0].Rule != core.RuleCompletedProgress {
		t.Fatalf("expected completed progress warning, got %+v", res.Violations)
	}
	if got := svc.Snapshot().Activities[0]; got.Status != domain.ActivityCompleted || got.CompletionPercentage != 20 {
		t.Fatalf("update not applied: %+v", got)
	}
	if len(rec.Events()) != 2 {
		t.Fatalf("expected create and update events")
	}

	found, _, err = svc.UpdateActivity(ctx, "missing", domain.ActivityUpdate{Status: &status})
	if found || err != nil {
		t.Fatalf("missing activity: found=%v err=%v", found, err)
	}
	if len(rec.Events()) != 2 {
		t.Fatalf("no-op must not publish")
	}
}

func TestCycleComplianceStatusLoops(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	item, _, err := svc.CreateComplianceItem(ctx, domain.ComplianceItem{Item: "Donor report", DueDate: "2025-12-01", Status: domain.CompliancePending})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, want := range []domain.ComplianceStatus{domain.ComplianceComplete, domain.ComplianceDelayed, domain.CompliancePending} {
		got, found, err := svc.CycleComplianceStatus(ctx, item.ID)
		if err != nil || !found {
			t.Fatalf("cycle: %v %v", found, err)
		}
		if got != want || svc.Snapshot().Compliance[0].Status != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
	if _, found, err := svc.CycleComplianceStatus(ctx, "missing"); found || err != nil {
		t.Fatalf("missing item: found=%v err=%v", found, err)
	}
}

func TestConcurrentCyclesNeverSkipAStep(t *testing.T) {
	ctx := context.Background()
	rec := &events.Recorder{}
	store := newTestStore(t, slowStore{Store: blob.NewMemory(), delay: 2 * time.Millisecond}, core.Snapshot{
		Compliance: []domain.ComplianceItem{{ID: "c1", Item: "Donor report", Status: domain.CompliancePending}},
	})
	svc := core.NewService(store, core.WithPublisher(rec))

	const cycles = 12
	var mu sync.Mutex
	seen := map[domain.ComplianceStatus]int{}
	var wg sync.WaitGroup
	for range cycles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, found, err := svc.CycleComplianceStatus(ctx, "c1")
			if err != nil || !found {
				t.Errorf("cycle: %v %v", found, err)
				return
			}
			mu.Lock()
			seen[got]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if got := svc.Snapshot().Compliance[0].Status; got != domain.CompliancePending {
		t.Fatalf("after %d cycles: %s, want %s", cycles, got, domain.CompliancePending)
	}
	for _, status := range []domain.ComplianceStatus{domain.ComplianceComplete, domain.ComplianceDelayed, domain.CompliancePending} {
		if seen[status] != cycles/3 {
			t.Fatalf("each status should be returned %d times, got %v", cycles/3, seen)
		}
	}
	if len(rec.Events()) != cycles {
		t.Fatalf("expected %d events, got %d", cycles, len(rec.Events()))
	}
}

func TestConcurrentActivityUpdatesSeeEachOther(t *testing.T) {
	ctx := context.Background()
	completed := domain.ActivityCompleted
	partial := 40
	for round := range 10 {
		store := newTestStore(t, slowStore{Store: blob.NewMemory(), delay: time.Millisecond}, core.Snapshot{
			Activities: []domain.Activity{{ID: "a1", Name: "Training", PlannedDate: "2025-02-01", Status: domain.ActivityPlanned, CompletionPercentage: 100}},
		})
		svc := core.NewService(store)

		// Whichever update lands second proposes Completed at 40% and warns.
		var warnings atomic.Int64
		var wg sync.WaitGroup
		for _, update := range []domain.ActivityUpdate{{Status: &completed}, {CompletionPercentage: &partial}} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, res, err := svc.UpdateActivity(ctx, "a1", update)
				if err != nil {
					t.Errorf("update: %v", err)
					return
				}
				warnings.Add(int64(len(res.Warnings())))
			}()
		}
		wg.Wait()

		if got := warnings.Load(); got != 1 {
			t.Fatalf("round %d: expected exactly one warning, got %d", round, got)
		}
		if a := svc.Snapshot().Activities[0]; a.Status != domain.ActivityCompleted || a.CompletionPercentage != 40 {
			t.Fatalf("round %d: lost update %+v", round, a)
		}
	}
}

func TestUpdateActivityBlockedLeavesRecord(t *testing.T) {
	ctx := context.Background()
	engine := core.NewRulesEngine()
	engine.Register(blockEverything{})
	store := newTestStore(t, blob.NewMemory(), core.Snapshot{
		Activities: []domain.Activity{{ID: "a1", Name: "Training", Status: domain.ActivityPlanned}},
	})
	svc := core.NewService(store, core.WithRulesEngine(engine))
	status := domain.ActivityOngoing
	found, res, err := svc.UpdateActivity(ctx, "a1", domain.ActivityUpdate{Status: &status})
	var violation domain.RuleViolationError
	if !found || !errors.As(err, &violation) || !res.HasBlocking() {
		t.Fatalf("expected blocked update, got found=%v err=%v res=%+v", found, err, res)
	}
	if got := svc.Snapshot().Activities[0].Status; got != domain.ActivityPlanned {
		t.Fatalf("blocked update applied: %s", got)
	}
}

// blockEverything rejects every change and checks the view it is handed is usable.
type blockEverything struct{}

func (blockEverything) Name() string { return "block_everything" }

func (blockEverything) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, c := range changes {
		msg := "blocked"
		if len(view.Snapshot().Activities) == 0 {
			msg = "blocked with empty view"
		}
		res.Violations = append(res.Violations, domain.Violation{Rule: "block_everything", Severity: domain.SeverityBlock, Message: msg, Entity: c.Entity, EntityID: c.ID})
	}
	return res, nil
}

func TestDeleteDispatchesByEntity(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()
	layer, _, _ := svc.CreateGISLayer(ctx, domain.GISLayer{Name: "Roads"})
	found, err := svc.Delete(ctx, domain.EntityGISLayer, layer.ID)
	if err != nil || !found {
		t.Fatalf("delete: %v %v", found, err)
	}
	if len(svc.Snapshot().GISLayers) != 0 {
		t.Fatalf("layer not removed")
	}
	evs := rec.Events()
	if evs[len(evs)-1].Action != domain.ActionDelete {
		t.Fatalf("expected delete event, got %+v", evs)
	}
	if found, err := svc.Delete(ctx, domain.EntityGISLayer, layer.ID); found || err != nil {
		t.Fatalf("second delete: %v %v", found, err)
	}
	var unknown core.ErrUnknownEntity
	if _, err := svc.Delete(ctx, "nope", "x"); !errors.As(err, &unknown) {
		t.Fatalf("expected unknown entity error, got %v", err)
	}
}

func TestPublishFailureIsNotReturned(t *testing.T) {
	svc, _ := newTestService(t, core.WithPublisher(failingPublisher{}))
	if _, _, err := svc.CreateGISMetric(context.Background(), domain.GISMetric{Date: "2025-01-01"}); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
}

func TestRuleViolationErrorMessage(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.CreateActivity(context.Background(), domain.Activity{})
	if err == nil || !strings.Contains(err.Error(), "activity name is required") {
		t.Fatalf("unexpected error %v", err)
	}
}
