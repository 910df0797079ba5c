package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fieldmonitor/internal/events"
	"fieldmonitor/internal/log"
	"fieldmonitor/pkg/domain"
)

// DefaultCurrencyRate converts local currency into CAD for budget lines
// created without an explicit rate.
const DefaultCurrencyRate = 0.022

// ErrUnknownEntity is returned by Delete for an unrecognised entity type.
type ErrUnknownEntity struct {
	Entity EntityType
}

func (e ErrUnknownEntity) Error() string {
	return fmt.Sprintf("unknown entity type %q", string(e.Entity))
}

// Service is the intent layer in front of the store. It fills form defaults,
// evaluates rules, applies the mutation, and publishes a change event.
type Service struct {
	repo        domain.Repository
	engine      *RulesEngine
	publisher   events.Publisher
	logger      *log.Logger
	metrics     MetricsRecorder
	defaultRate float64
	newID       func() string
	now         func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithRulesEngine replaces the default rules engine.
func WithRulesEngine(engine *RulesEngine) ServiceOption {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithPublisher installs the change event publisher.
func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger installs the service logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger.WithComponent(log.ComponentStore)
		}
	}
}

// WithMetrics installs a recorder for rule evaluation.
func WithMetrics(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithDefaultRate sets the currency rate applied to new budget lines lacking one.
func WithDefaultRate(rate float64) ServiceOption {
	return func(s *Service) {
		if rate > 0 {
			s.defaultRate = rate
		}
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a service over repo.
func NewService(repo domain.Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:        repo,
		engine:      NewDefaultRulesEngine(),
		publisher:   events.NoopPublisher{},
		logger:      log.Discard(),
		metrics:     noopMetricsRecorder{},
		defaultRate: DefaultCurrencyRate,
		newID:       newID,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newID returns a time-ordered identifier.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Snapshot returns a copy of every collection.
func (s *Service) Snapshot() Snapshot { return s.repo.Snapshot() }

func (s *Service) evaluate(ctx context.Context, change Change) (Result, error) {
	return s.evaluateOn(ctx, s.repo, change)
}

func (s *Service) evaluateOn(ctx context.Context, view RuleView, change Change) (Result, error) {
	start := time.Now()
	res, err := s.engine.Evaluate(ctx, view, []Change{change})
	s.metrics.Observe(ctx, "rules.evaluate", err == nil && !res.HasBlocking(), time.Since(start))
	if err != nil {
		return Result{}, fmt.Errorf("evaluate rules: %w", err)
	}
	if res.HasBlocking() {
		s.logger.WarnContext(ctx, "change blocked",
			log.FieldEntity, change.Entity, log.FieldID, change.ID, log.FieldCount, len(res.Violations))
		return res, RuleViolationError{Result: res}
	}
	for _, w := range res.Warnings() {
		s.logger.WarnContext(ctx, w.Message, log.FieldEntity, w.Entity, log.FieldID, w.EntityID, "rule", w.Rule)
	}
	return res, nil
}

func (s *Service) publish(ctx context.Context, entity EntityType, action Action, id string) {
	ev := events.New(entity, action, id, s.now())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "publish change failed",
			log.FieldOperation, log.OpPublish, log.FieldEntity, entity, log.FieldID, id, log.FieldError, err)
	}
}

// create evaluates the proposed record, hands it to add and publishes on success.
func create[T any](ctx context.Context, s *Service, entity EntityType, id string, record T, add func(context.Context, T) error) (T, Result, error) {
	var zero T
	res, err := s.evaluate(ctx, Change{Entity: entity, Action: ActionCreate, ID: id, After: record})
	if err != nil {
		return zero, res, err
	}
	if err := add(ctx, record); err != nil {
		return record, res, err
	}
	s.publish(ctx, entity, ActionCreate, id)
	return record, res, nil
}

func (s *Service) ensureID(id string) string {
	if id == "" {
		return s.newID()
	}
	return id
}

// CreateActivity records a new activity. Status defaults to Planned.
func (s *Service) CreateActivity(ctx context.Context, a Activity) (Activity, Result, error) {
	a.ID = s.ensureID(a.ID)
	if a.Status == "" {
		a.Status = domain.ActivityPlanned
	}
	return create(ctx, s, EntityActivity, a.ID, a, s.repo.AddActivity)
}

// CreateBeneficiary registers a participant. An empty attendance becomes "N/A".
func (s *Service) CreateBeneficiary(ctx context.Context, b Beneficiary) (Beneficiary, Result, error) {
	b.ID = s.ensureID(b.ID)
	if b.ActivityAttended == "" {
		b.ActivityAttended = domain.DefaultAttendance
	}
	return create(ctx, s, EntityBeneficiary, b.ID, b, s.repo.AddBeneficiary)
}

// CreateBudgetLine records a new budget category. The rate defaults to the
// configured rate. CADEquivalent is stored as supplied; it is only derived
// when the actual amount is later updated.
func (s *Service) CreateBudgetLine(ctx context.Context, line BudgetLine) (BudgetLine, Result, error) {
	line.ID = s.ensureID(line.ID)
	if line.CurrencyRate <= 0 {
		line.CurrencyRate = s.defaultRate
	}
	return create(ctx, s, EntityBudgetLine, line.ID, line, s.repo.AddBudgetLine)
}

// CreateComplianceItem records a donor requirement. Status defaults to Pending.
func (s *Service) CreateComplianceItem(ctx context.Context, item ComplianceItem) (ComplianceItem, Result, error) {
	item.ID = s.ensureID(item.ID)
	if item.Status == "" {
		item.Status = domain.CompliancePending
	}
	return create(ctx, s, EntityComplianceItem, item.ID, item, s.repo.AddComplianceItem)
}

// CreateGISMetric records a usage sample.
func (s *Service) CreateGISMetric(ctx context.Context, m GISMetric) (GISMetric, Result, error) {
	m.ID = s.ensureID(m.ID)
	return create(ctx, s, EntityGISMetric, m.ID, m, s.repo.AddGISMetric)
}

// CreateGISLayer registers a layer, defaulting type to Point Data and source to Internal.
func (s *Service) CreateGISLayer(ctx context.Context, l GISLayer) (GISLayer, Result, error) {
	l.ID = s.ensureID(l.ID)
	if l.Type == "" {
		l.Type = domain.LayerPointData
	}
	if l.Source == "" {
		l.Source = domain.DefaultLayerSource
	}
	return create(ctx, s, EntityGISLayer, l.ID, l, s.repo.AddGISLayer)
}

// CreateGISProvinceStat records province sessions, defaulting the province to Maputo.
func (s *Service) CreateGISProvinceStat(ctx context.Context, stat GISProvinceStat) (GISProvinceStat, Result, error) {
	stat.ID = s.ensureID(stat.ID)
	if stat.Province == "" {
		stat.Province = domain.DefaultProvince
	}
	return create(ctx, s, EntityGISProvinceStat, stat.ID, stat, s.repo.AddGISProvinceStat)
}

// UpdateActivity applies update to the activity with id. found is false when
// no activity matches; rules are then skipped. Rules run against the stored
// record inside the same lock hold as the write.
func (s *Service) UpdateActivity(ctx context.Context, id string, update domain.ActivityUpdate) (bool, Result, error) {
	var res Result
	found, err := s.repo.UpdateActivityFunc(ctx, id, func(view RuleView, current Activity) (Activity, error) {
		proposed := update.Apply(current)
		var err error
		res, err = s.evaluateOn(ctx, view, Change{Entity: EntityActivity, Action: ActionUpdate, ID: id, After: proposed})
		return proposed, err
	})
	if err != nil || !found {
		return found, res, err
	}
	s.publish(ctx, EntityActivity, ActionUpdate, id)
	return true, res, nil
}

// UpdateBudgetActual sets the actual amount of a budget line.
func (s *Service) UpdateBudgetActual(ctx context.Context, id string, actualAmount float64) (bool, error) {
	found, err := s.repo.UpdateBudgetActual(ctx, id, actualAmount)
	if err != nil || !found {
		return found, err
	}
	s.publish(ctx, EntityBudgetLine, ActionUpdate, id)
	return true, nil
}

// UpdateComplianceStatus sets the status of a compliance item verbatim.
func (s *Service) UpdateComplianceStatus(ctx context.Context, id string, status domain.ComplianceStatus) (bool, error) {
	found, err := s.repo.UpdateComplianceStatus(ctx, id, status)
	if err != nil || !found {
		return found, err
	}
	s.publish(ctx, EntityComplianceItem, ActionUpdate, id)
	return true, nil
}

// CycleComplianceStatus advances the item one step around
// Pending, Complete, Delayed and returns the new status.
func (s *Service) CycleComplianceStatus(ctx context.Context, id string) (domain.ComplianceStatus, bool, error) {
	next, found, err := s.repo.UpdateComplianceStatusFunc(ctx, id, domain.NextComplianceStatus)
	if err != nil || !found {
		return next, found, err
	}
	s.publish(ctx, EntityComplianceItem, ActionUpdate, id)
	return next, true, nil
}

// Delete removes the record with id from the collection of entity.
func (s *Service) Delete(ctx context.Context, entity EntityType, id string) (bool, error) {
	var del func(context.Context, string) (bool, error)
	switch entity {
	case EntityActivity:
		del = s.repo.DeleteActivity
	case EntityBeneficiary:
		del = s.repo.DeleteBeneficiary
	case EntityBudgetLine:
		del = s.repo.DeleteBudgetLine
	case EntityComplianceItem:
		del = s.repo.DeleteComplianceItem
	case EntityGISMetric:
		del = s.repo.DeleteGISMetric
	case EntityGISLayer:
		del = s.repo.DeleteGISLayer
	case EntityGISProvinceStat:
		del = s.repo.DeleteGISProvinceStat
	default:
		return false, ErrUnknownEntity{Entity: entity}
	}
	found, err := del(ctx, id)
	if err != nil || !found {
		return found, err
	}
	s.publish(ctx, entity, ActionDelete, id)
	return true, nil
}
