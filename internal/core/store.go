package core

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fieldmonitor/internal/log"
	"fieldmonitor/internal/persistence"
	"fieldmonitor/pkg/domain"
)

type storeState struct {
	activities       []Activity
	beneficiaries    []Beneficiary
	budget           []BudgetLine
	compliance       []ComplianceItem
	gisMetrics       []GISMetric
	gisLayers        []GISLayer
	gisProvinceStats []GISProvinceStat
}

func (s storeState) snapshot() Snapshot {
	return Snapshot{
		Activities:       slices.Clone(s.activities),
		Beneficiaries:    slices.Clone(s.beneficiaries),
		Budget:           slices.Clone(s.budget),
		Compliance:       slices.Clone(s.compliance),
		GISMetrics:       slices.Clone(s.gisMetrics),
		GISLayers:        slices.Clone(s.gisLayers),
		GISProvinceStats: slices.Clone(s.gisProvinceStats),
	}
}

// value returns the collection persisted under key.
func (s *storeState) value(key string) any {
	switch key {
	case domain.KeyActivities:
		return s.activities
	case domain.KeyBeneficiaries:
		return s.beneficiaries
	case domain.KeyBudget:
		return s.budget
	case domain.KeyCompliance:
		return s.compliance
	case domain.KeyGISMetrics:
		return s.gisMetrics
	case domain.KeyGISLayers:
		return s.gisLayers
	case domain.KeyGISProvinceStats:
		return s.gisProvinceStats
	default:
		return nil
	}
}

func emptyIfNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// Store owns the seven entity collections. Every mutation updates memory and
// then saves the affected collection before returning. The store performs no
// field validation; see Service for the intent validation layer.
type Store struct {
	mu      sync.RWMutex
	state   storeState
	persist *persistence.Adapter
	metrics MetricsRecorder
	logger  *log.Logger
}

var _ domain.Repository = (*Store)(nil)

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithStoreMetrics installs a metrics recorder for store operations.
func WithStoreMetrics(recorder MetricsRecorder) StoreOption {
	return func(s *Store) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithStoreLogger installs the logger used for save failures.
func WithStoreLogger(logger *log.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger.WithComponent(log.ComponentStore)
		}
	}
}

// NewStore loads every collection through persist, using the matching
// collection of defaults for any key that is missing or unreadable.
func NewStore(ctx context.Context, persist *persistence.Adapter, defaults Snapshot, opts ...StoreOption) *Store {
	s := &Store{
		persist: persist,
		metrics: noopMetricsRecorder{},
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	start := time.Now()
	var st storeState
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st.activities = persistence.Load(gctx, persist, domain.KeyActivities, defaults.Activities)
		return nil
	})
	g.Go(func() error {
		st.beneficiaries = persistence.Load(gctx, persist, domain.KeyBeneficiaries, defaults.Beneficiaries)
		return nil
	})
	g.Go(func() error {
		st.budget = persistence.Load(gctx, persist, domain.KeyBudget, defaults.Budget)
		return nil
	})
	g.Go(func() error {
		st.compliance = persistence.Load(gctx, persist, domain.KeyCompliance, defaults.Compliance)
		return nil
	})
	g.Go(func() error {
		st.gisMetrics = persistence.Load(gctx, persist, domain.KeyGISMetrics, defaults.GISMetrics)
		return nil
	})
	g.Go(func() error {
		st.gisLayers = persistence.Load(gctx, persist, domain.KeyGISLayers, defaults.GISLayers)
		return nil
	})
	g.Go(func() error {
		st.gisProvinceStats = persistence.Load(gctx, persist, domain.KeyGISProvinceStats, defaults.GISProvinceStats)
		return nil
	})
	_ = g.Wait() // loads never fail

	// Collections never alias the caller's defaults.
	s.state = storeState{
		activities:       emptyIfNil(slices.Clone(st.activities)),
		beneficiaries:    emptyIfNil(slices.Clone(st.beneficiaries)),
		budget:           emptyIfNil(slices.Clone(st.budget)),
		compliance:       emptyIfNil(slices.Clone(st.compliance)),
		gisMetrics:       emptyIfNil(slices.Clone(st.gisMetrics)),
		gisLayers:        emptyIfNil(slices.Clone(st.gisLayers)),
		gisProvinceStats: emptyIfNil(slices.Clone(st.gisProvinceStats)),
	}
	s.metrics.Observe(ctx, "store.load", true, time.Since(start))
	return s
}

// Snapshot returns a deep copy of every collection.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot()
}

// Import replaces every collection with snap and saves all of them.
func (s *Store) Import(ctx context.Context, snap Snapshot) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = storeState{
		activities:       emptyIfNil(slices.Clone(snap.Activities)),
		beneficiaries:    emptyIfNil(slices.Clone(snap.Beneficiaries)),
		budget:           emptyIfNil(slices.Clone(snap.Budget)),
		compliance:       emptyIfNil(slices.Clone(snap.Compliance)),
		gisMetrics:       emptyIfNil(slices.Clone(snap.GISMetrics)),
		gisLayers:        emptyIfNil(slices.Clone(snap.GISLayers)),
		gisProvinceStats: emptyIfNil(slices.Clone(snap.GISProvinceStats)),
	}
	slices.SortStableFunc(s.state.gisMetrics, compareMetricDates)
	var firstErr error
	for _, key := range domain.CollectionKeys {
		if err := s.save(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.metrics.Observe(ctx, "store.import", firstErr == nil, time.Since(start))
	return firstErr
}

// apply runs fn under the write lock and saves key when fn reports a change.
func (s *Store) apply(ctx context.Context, op, key string, fn func(st *storeState) bool) (bool, error) {
	return s.applyChecked(ctx, op, key, func(st *storeState) (bool, error) { return fn(st), nil })
}

// applyChecked is apply for mutations that can refuse. A refusal is returned
// as is and nothing is saved.
func (s *Store) applyChecked(ctx context.Context, op, key string, fn func(st *storeState) (bool, error)) (bool, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := fn(&s.state)
	if err == nil && changed {
		err = s.save(ctx, key)
	}
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	return changed, err
}

// lockedView exposes state to callbacks running under the write lock.
type lockedView struct{ st *storeState }

func (v lockedView) Snapshot() Snapshot { return v.st.snapshot() }

// save must be called with the write lock held.
func (s *Store) save(ctx context.Context, key string) error {
	if err := s.persist.Save(ctx, key, s.state.value(key)); err != nil {
		s.logger.ErrorContext(ctx, "save failed", log.FieldKey, key, log.FieldError, err)
		return err
	}
	return nil
}

func removeByID[T any](items []T, id string, idOf func(T) string) ([]T, bool) {
	idx := slices.IndexFunc(items, func(v T) bool { return idOf(v) == id })
	if idx < 0 {
		return items, false
	}
	return slices.Delete(items, idx, idx+1), true
}

func compareMetricDates(a, b GISMetric) int { return domain.CompareDates(a.Date, b.Date) }

// AddActivity appends the activity.
func (s *Store) AddActivity(ctx context.Context, a Activity) error {
	_, err := s.apply(ctx, "activity.add", domain.KeyActivities, func(st *storeState) bool {
		st.activities = append(st.activities, a)
		return true
	})
	return err
}

// UpdateActivity applies the non-nil fields of update to the matching activity.
func (s *Store) UpdateActivity(ctx context.Context, id string, update domain.ActivityUpdate) (bool, error) {
	return s.apply(ctx, "activity.update", domain.KeyActivities, func(st *storeState) bool {
		idx := slices.IndexFunc(st.activities, func(a Activity) bool { return a.ID == id })
		if idx < 0 {
			return false
		}
		st.activities[idx] = update.Apply(st.activities[idx])
		return true
	})
}

// UpdateActivityFunc replaces the matching activity with fn's result. fn sees
// the current record and a view of the locked state; the ID is kept.
func (s *Store) UpdateActivityFunc(ctx context.Context, id string, fn domain.ActivityTransform) (bool, error) {
	return s.applyChecked(ctx, "activity.update", domain.KeyActivities, func(st *storeState) (bool, error) {
		idx := slices.IndexFunc(st.activities, func(a Activity) bool { return a.ID == id })
		if idx < 0 {
			return false, nil
		}
		updated, err := fn(lockedView{st: st}, st.activities[idx])
		if err != nil {
			return true, err
		}
		updated.ID = id
		st.activities[idx] = updated
		return true, nil
	})
}

// DeleteActivity removes the activity with id.
func (s *Store) DeleteActivity(ctx context.Context, id string) (bool, error) {
	return s.apply(ctx, "activity.delete", domain.KeyActivities, func(st *storeState) bool {
		var ok bool
		st.activities, ok = removeByID(st.activities, id, func(a Activity) string { return a.ID })
		return ok
	})
}

// AddBeneficiary prepends the beneficiary; the collection is newest-first.
func (s *Store) AddBeneficiary(ctx context.Context, b Beneficiary) error {
	_, err := s.apply(ctx, "beneficiary.add", domain.KeyBeneficiaries, func(st *storeState) bool {
		st.beneficiaries = slices.Insert(st.beneficiaries, 0, b)
		return true
	})
	return err
}

// DeleteBeneficiary removes the beneficiary with id.
func (s *Store) DeleteBeneficiary(ctx context.Context, id string) (bool, error) {
	return s.apply(ctx, "beneficiary.delete", domain.KeyBeneficiaries, func(st *storeState) bool {
		var ok bool
		st.beneficiaries, ok = removeByID(st.beneficiaries, id, func(b Beneficiary) string { return b.ID })
		return ok
	})
}

// AddBudgetLine appends the line as supplied. CADEquivalent is not recomputed.
func (s *Store) AddBudgetLine(ctx context.Context, line BudgetLine) error {
	_, err := s.apply(ctx, "budget.add", domain.KeyBudget, func(st *storeState) bool {
		st.budget = append(st.budget, line)
		return true
	})
	return err
}

// UpdateBudgetActual sets the actual amount and recomputes CADEquivalent with
// the line's stored rate.
func (s *Store) UpdateBudgetActual(ctx context.Context, id string, actualAmount float64) (bool, error) {
	return s.apply(ctx, "budget.update_actual", domain.KeyBudget, func(st *storeState) bool {
		idx := slices.IndexFunc(st.budget, func(b BudgetLine) bool { return b.ID == id })
		if idx < 0 {
			return false
		}
		st.budget[idx] = st.budget[idx].WithActual(actualAmount)
		return true
	})
}

// DeleteBudgetLine removes the line with id.
func (s *Store) DeleteBudgetLine(ctx context.Context, id string) (bool, error) {
	return s.apply(ctx, "budget.delete", domain.KeyBudget, func(st *storeState) bool {
		var ok bool
		st.budget, ok = removeByID(st.budget, id, func(b BudgetLine) string { return b.ID })
		return ok
	})
}

// AddComplianceItem appends the item.
func (s *Store) AddComplianceItem(ctx context.Context, item ComplianceItem) error {
	_, err := s.apply(ctx, "compliance.add", domain.KeyCompliance, func(st *storeState) bool {
		st.compliance = append(st.compliance, item)
		return true
	})
	return err
}

// UpdateComplianceStatus sets status verbatim on the matching item.
func (s *Store) UpdateComplianceStatus(ctx context.Context, id string, status domain.ComplianceStatus) (bool, error) {
	return s.apply(ctx, "compliance.update_status", domain.KeyCompliance, func(st *storeState) bool {
		idx := slices.IndexFunc(st.compliance, func(c ComplianceItem) bool { return c.ID == id })
		if idx < 0 {
			return false
		}
		st.compliance[idx].Status = status
		return true
	})
}

// UpdateComplianceStatusFunc sets the matching item's status to next(current)
// within a single lock hold, so concurrent callers never read the same status.
func (s *Store) UpdateComplianceStatusFunc(ctx context.Context, id string, next func(domain.ComplianceStatus) domain.ComplianceStatus) (domain.ComplianceStatus, bool, error) {
	var status domain.ComplianceStatus
	found, err := s.apply(ctx, "compliance.update_status", domain.KeyCompliance, func(st *storeState) bool {
		idx := slices.IndexFunc(st.compliance, func(c ComplianceItem) bool { return c.ID == id })
		if idx < 0 {
			return false
		}
		status = next(st.compliance[idx].Status)
		st.compliance[idx].Status = status
		return true
	})
	return status, found, err
}

// DeleteComplianceItem removes the item with id.
func (s *Store) DeleteComplianceItem(ctx context.Context, id string) (bool, error) {
	return s.apply(ctx, "compliance.delete", domain.KeyCompliance, func(st *storeState) bool {
		var ok bool
		st.compliance, ok = removeByID(st.compliance, id, func(c ComplianceItem) string { return c.ID })
		return ok
	})
}

// AddGISMetric inserts the metric and stable-sorts the collection by date.
func (s *Store) AddGISMetric(ctx context.Context, m GISMetric) error {
	_, err := s.apply(ctx, "gis_metric.add", domain.KeyGISMetrics, func(st *storeState) bool {
		st.gisMetrics = append(st.gisMetrics, m)
		slices.SortStableFunc(st.gisMetrics, compareMetricDates)
		return true
	})
	return err
}

// DeleteGISMetric removes the metric with id.
func (s *Store) DeleteGISMetric(ctx context.Context, id string) (bool, error) {
	return s.apply(ctx, "gis_metric.delete", domain.KeyGISMetrics, func(st *storeState) bool {
		var ok bool
		st.gisMetrics, ok = removeByID(st.gisMetrics, id, func(m GISMetric) string { return m.ID })
		return ok
	})
}

// AddGISLayer appends the layer.
func (s *Store) AddGISLayer(ctx context.Context, l GISLayer) error {
	_, err := s.apply(ctx, "gis_layer.add", domain.KeyGISLayers, func(st *storeState) bool {
		st.gisLayers = append(st.gisLayers, l)
		return true
	})
	return err
}

// DeleteGISLayer removes the layer with id.
func (s *Store) DeleteGISLayer(ctx context.Context, id string) (bool, error) {
	return s.apply(ctx, "gis_layer.delete", domain.KeyGISLayers, func(st *storeState) bool {
		var ok bool
		st.gisLayers, ok = removeByID(st.gisLayers, id, func(l GISLayer) string { return l.ID })
		return ok
	})
}

// AddGISProvinceStat appends the stat. Several stats per province are allowed.
func (s *Store) AddGISProvinceStat(ctx context.Context, stat GISProvinceStat) error {
	_, err := s.apply(ctx, "gis_province_stat.add", domain.KeyGISProvinceStats, func(st *storeState) bool {
		st.gisProvinceStats = append(st.gisProvinceStats, stat)
		return true
	})
	return err
}

// DeleteGISProvinceStat removes the stat with id.
func (s *Store) DeleteGISProvinceStat(ctx context.Context, id string) (bool, error) {
	return s.apply(ctx, "gis_province_stat.delete", domain.KeyGISProvinceStats, func(st *storeState) bool {
		var ok bool
		st.gisProvinceStats, ok = removeByID(st.gisProvinceStats, id, func(p GISProvinceStat) string { return p.ID })
		return ok
	})
}
