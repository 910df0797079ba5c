package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"fieldmonitor/pkg/domain"
)

// Built-in rule names.
const (
	RuleRequiredFields    = "required_fields"
	RuleCompletionRange   = "completion_range"
	RuleCompletedProgress = "completed_progress"
	RuleKnownProvince     = "known_province"
)

// NewDefaultRulesEngine builds a rules engine with the built-in intent checks.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewRequiredFieldsRule())
	engine.Register(NewCompletionRangeRule())
	engine.Register(NewCompletedProgressRule())
	engine.Register(NewKnownProvinceRule())
	return engine
}

// NewRequiredFieldsRule blocks records missing the fields their entry form requires.
func NewRequiredFieldsRule() domain.Rule {
	return requiredFieldsRule{}
}

type requiredFieldsRule struct{}

func (requiredFieldsRule) Name() string { return RuleRequiredFields }

func (requiredFieldsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(c domain.Change, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     RuleRequiredFields,
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   c.Entity,
			EntityID: c.ID,
		})
	}
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	for _, c := range changes {
		if c.Action == domain.ActionDelete {
			continue
		}
		switch v := c.After.(type) {
		case domain.Activity:
			if blank(v.Name) {
				block(c, "activity name is required")
			}
			if blank(v.PlannedDate) {
				block(c, "activity planned date is required")
			}
		case domain.Beneficiary:
			if blank(v.Name) {
				block(c, "beneficiary name is required")
			}
			if v.Age < 0 {
				block(c, fmt.Sprintf("beneficiary age %d must not be negative", v.Age))
			}
		case domain.BudgetLine:
			if blank(v.Category) {
				block(c, "budget category is required")
			}
			if v.PlannedAmount <= 0 {
				block(c, "budget planned amount must be positive")
			}
		case domain.ComplianceItem:
			if blank(v.Item) {
				block(c, "compliance item is required")
			}
			if blank(v.DueDate) {
				block(c, "compliance due date is required")
			}
		case domain.GISMetric:
			if blank(v.Date) {
				block(c, "gis metric date is required")
			}
		case domain.GISLayer:
			if blank(v.Name) {
				block(c, "gis layer name is required")
			}
		}
	}
	return res, nil
}

// NewCompletionRangeRule warns when an activity's completion falls outside 0-100.
func NewCompletionRangeRule() domain.Rule {
	return completionRangeRule{}
}

type completionRangeRule struct{}

func (completionRangeRule) Name() string { return RuleCompletionRange }

func (completionRangeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, c := range changes {
		a, ok := c.After.(domain.Activity)
		if !ok {
			continue
		}
		if a.CompletionPercentage < 0 || a.CompletionPercentage > 100 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     RuleCompletionRange,
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("activity %q completion %d%% is outside 0-100", a.Name, a.CompletionPercentage),
				Entity:   domain.EntityActivity,
				EntityID: c.ID,
			})
		}
	}
	return res, nil
}

// NewCompletedProgressRule warns when a Completed activity reports less than 100%.
func NewCompletedProgressRule() domain.Rule {
	return completedProgressRule{}
}

type completedProgressRule struct{}

func (completedProgressRule) Name() string { return RuleCompletedProgress }

func (completedProgressRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, c := range changes {
		a, ok := c.After.(domain.Activity)
		if !ok || a.Status != domain.ActivityCompleted || a.CompletionPercentage >= 100 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     RuleCompletedProgress,
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("activity %q is Completed at %d%%", a.Name, a.CompletionPercentage),
			Entity:   domain.EntityActivity,
			EntityID: c.ID,
		})
	}
	return res, nil
}

// NewKnownProvinceRule warns when a record names a province outside the
// program's coverage. Empty provinces are left to form defaults.
func NewKnownProvinceRule() domain.Rule {
	return knownProvinceRule{}
}

type knownProvinceRule struct{}

func (knownProvinceRule) Name() string { return RuleKnownProvince }

func (knownProvinceRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, c := range changes {
		var province domain.Province
		switch v := c.After.(type) {
		case domain.Activity:
			province = v.Province
		case domain.Beneficiary:
			province = v.Province
		case domain.GISProvinceStat:
			province = v.Province
		default:
			continue
		}
		if province == "" || slices.Contains(domain.Provinces(), province) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     RuleKnownProvince,
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("province %q is not covered by the program", province),
			Entity:   c.Entity,
			EntityID: c.ID,
		})
	}
	return res, nil
}
