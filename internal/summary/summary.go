// Package summary computes dashboard aggregates from store snapshots. Every
// function is pure and returns neutral values for empty input.
package summary

import (
	"slices"

	"github.com/shopspring/decimal"

	"fieldmonitor/pkg/domain"
)

var hundred = decimal.NewFromInt(100)

// percent returns round(100 × num / den), or 0 when den is zero.
func percent(num, den decimal.Decimal) int {
	if den.IsZero() {
		return 0
	}
	return int(domain.RoundHalfUp(num.Mul(hundred).Div(den)).IntPart())
}

// CompletionRate is the rounded share of activities whose status is Completed.
func CompletionRate(activities []domain.Activity) int {
	completed := 0
	for _, a := range activities {
		if a.Status == domain.ActivityCompleted {
			completed++
		}
	}
	return percent(decimal.NewFromInt(int64(completed)), decimal.NewFromInt(int64(len(activities))))
}

// FilterActivities returns the activities whose status equals status.
// "All" and the empty string return every activity.
func FilterActivities(activities []domain.Activity, status string) []domain.Activity {
	if status == "" || status == "All" {
		return slices.Clone(activities)
	}
	out := []domain.Activity{}
	for _, a := range activities {
		if string(a.Status) == status {
			out = append(out, a)
		}
	}
	return out
}

// GenderCount is one bar of the gender split.
type GenderCount struct {
	Gender domain.Gender `json:"gender"`
	Count  int           `json:"count"`
}

// GenderSplit counts beneficiaries per declared gender by exact match.
// Values outside the declared set are not counted.
func GenderSplit(beneficiaries []domain.Beneficiary) []GenderCount {
	genders := domain.Genders()
	out := make([]GenderCount, len(genders))
	for i, g := range genders {
		out[i].Gender = g
	}
	for _, b := range beneficiaries {
		if i := slices.Index(genders, b.Gender); i >= 0 {
			out[i].Count++
		}
	}
	return out
}

// FemaleShare is the rounded percentage of beneficiaries recorded as Female.
func FemaleShare(beneficiaries []domain.Beneficiary) int {
	female := 0
	for _, b := range beneficiaries {
		if b.Gender == domain.GenderFemale {
			female++
		}
	}
	return percent(decimal.NewFromInt(int64(female)), decimal.NewFromInt(int64(len(beneficiaries))))
}

// Age bucket labels in display order.
const (
	AgeUnder18 = "<18"
	Age18To35  = "18-35"
	Age36To50  = "36-50"
	AgeOver50  = "50+"
)

// AgeBucket is one bar of the age breakdown.
type AgeBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// AgeBuckets groups beneficiaries into <18, 18-35, 36-50 and over 50.
func AgeBuckets(beneficiaries []domain.Beneficiary) []AgeBucket {
	out := []AgeBucket{{Range: AgeUnder18}, {Range: Age18To35}, {Range: Age36To50}, {Range: AgeOver50}}
	for _, b := range beneficiaries {
		switch {
		case b.Age < 18:
			out[0].Count++
		case b.Age <= 35:
			out[1].Count++
		case b.Age <= 50:
			out[2].Count++
		default:
			out[3].Count++
		}
	}
	return out
}

// ProvinceCount is the number of records seen for one province.
type ProvinceCount struct {
	Province domain.Province `json:"province"`
	Count    int             `json:"count"`
}

// ProvinceCounts groups beneficiaries by province in order of first appearance.
func ProvinceCounts(beneficiaries []domain.Beneficiary) []ProvinceCount {
	out := []ProvinceCount{}
	for _, b := range beneficiaries {
		idx := slices.IndexFunc(out, func(p ProvinceCount) bool { return p.Province == b.Province })
		if idx < 0 {
			out = append(out, ProvinceCount{Province: b.Province})
			idx = len(out) - 1
		}
		out[idx].Count++
	}
	return out
}
