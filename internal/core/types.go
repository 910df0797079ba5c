package core

import "fieldmonitor/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Activity           = domain.Activity
	Beneficiary        = domain.Beneficiary
	BudgetLine         = domain.BudgetLine
	ComplianceItem     = domain.ComplianceItem
	GISMetric          = domain.GISMetric
	GISLayer           = domain.GISLayer
	GISProvinceStat    = domain.GISProvinceStat
	Snapshot           = domain.Snapshot
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
	Rule               = domain.Rule
	RuleView           = domain.RuleView
)

const (
	EntityActivity        = domain.EntityActivity
	EntityBeneficiary     = domain.EntityBeneficiary
	EntityBudgetLine      = domain.EntityBudgetLine
	EntityComplianceItem  = domain.EntityComplianceItem
	EntityGISMetric       = domain.EntityGISMetric
	EntityGISLayer        = domain.EntityGISLayer
	EntityGISProvinceStat = domain.EntityGISProvinceStat
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
