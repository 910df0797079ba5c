package domain

import "context"

// ActivityUpdate carries the mutable activity fields. Nil fields are left as stored.
type ActivityUpdate struct {
	Status               *ActivityStatus
	CompletionPercentage *int
}

// Apply returns a with the non-nil fields of u applied.
func (u ActivityUpdate) Apply(a Activity) Activity {
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.CompletionPercentage != nil {
		a.CompletionPercentage = *u.CompletionPercentage
	}
	return a
}

// ActivityTransform computes the replacement for current. It runs while the
// store holds its write lock, so view reflects exactly the state being
// changed and must not be retained. A non-nil error leaves the record as is.
type ActivityTransform func(view RuleView, current Activity) (Activity, error)

// Repository is the contract of the entity store consumed by services and
// adapters. Update and delete operations report whether the target existed;
// a missing identifier is never an error. Returned errors are persistence
// failures raised after the in-memory state has already changed.
type Repository interface {
	Snapshot() Snapshot

	AddActivity(ctx context.Context, a Activity) error
	UpdateActivity(ctx context.Context, id string, update ActivityUpdate) (bool, error)
	UpdateActivityFunc(ctx context.Context, id string, fn ActivityTransform) (bool, error)
	DeleteActivity(ctx context.Context, id string) (bool, error)

	AddBeneficiary(ctx context.Context, b Beneficiary) error
	DeleteBeneficiary(ctx context.Context, id string) (bool, error)

	AddBudgetLine(ctx context.Context, line BudgetLine) error
	UpdateBudgetActual(ctx context.Context, id string, actualAmount float64) (bool, error)
	DeleteBudgetLine(ctx context.Context, id string) (bool, error)

	AddComplianceItem(ctx context.Context, item ComplianceItem) error
	UpdateComplianceStatus(ctx context.Context, id string, status ComplianceStatus) (bool, error)
	// UpdateComplianceStatusFunc replaces the status with next(current) as one
	// atomic step and returns the stored status.
	UpdateComplianceStatusFunc(ctx context.Context, id string, next func(ComplianceStatus) ComplianceStatus) (ComplianceStatus, bool, error)
	DeleteComplianceItem(ctx context.Context, id string) (bool, error)

	AddGISMetric(ctx context.Context, m GISMetric) error
	DeleteGISMetric(ctx context.Context, id string) (bool, error)

	AddGISLayer(ctx context.Context, l GISLayer) error
	DeleteGISLayer(ctx context.Context, id string) (bool, error)

	AddGISProvinceStat(ctx context.Context, s GISProvinceStat) error
	DeleteGISProvinceStat(ctx context.Context, id string) (bool, error)
}
