package summary

import "fieldmonitor/pkg/domain"

// RecentActivityLimit caps the activity progress list on the dashboard.
const RecentActivityLimit = 6

// ActivityProgress is a compact progress line.
type ActivityProgress struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	Status               domain.ActivityStatus `json:"status"`
	CompletionPercentage int                   `json:"completionPercentage"`
}

// Dashboard is the overview shown on the landing page.
type Dashboard struct {
	TotalActivities    int                `json:"totalActivities"`
	CompletionRate     int                `json:"completionRate"`
	TotalBeneficiaries int                `json:"totalBeneficiaries"`
	FemaleShare        int                `json:"femaleShare"`
	Budget             BudgetTotals       `json:"budget"`
	Compliance         ComplianceCounts   `json:"compliance"`
	GIS                GISTotals          `json:"gis"`
	Progress           []ActivityProgress `json:"progress"`
}

// Overview builds the dashboard from a snapshot.
func Overview(snap domain.Snapshot) Dashboard {
	n := min(len(snap.Activities), RecentActivityLimit)
	progress := make([]ActivityProgress, 0, n)
	for _, a := range snap.Activities[:n] {
		progress = append(progress, ActivityProgress{
			ID:                   a.ID,
			Name:                 a.Name,
			Status:               a.Status,
			CompletionPercentage: a.CompletionPercentage,
		})
	}
	return Dashboard{
		TotalActivities:    len(snap.Activities),
		CompletionRate:     CompletionRate(snap.Activities),
		TotalBeneficiaries: len(snap.Beneficiaries),
		FemaleShare:        FemaleShare(snap.Beneficiaries),
		Budget:             Totals(snap.Budget),
		Compliance:         Compliance(snap.Compliance),
		GIS:                GIS(snap.GISMetrics),
		Progress:           progress,
	}
}

// Demographics bundles the beneficiary breakdowns.
type Demographics struct {
	Total     int             `json:"total"`
	Gender    []GenderCount   `json:"gender"`
	Ages      []AgeBucket     `json:"ages"`
	Provinces []ProvinceCount `json:"provinces"`
}

// BeneficiaryDemographics computes every beneficiary breakdown.
func BeneficiaryDemographics(beneficiaries []domain.Beneficiary) Demographics {
	return Demographics{
		Total:     len(beneficiaries),
		Gender:    GenderSplit(beneficiaries),
		Ages:      AgeBuckets(beneficiaries),
		Provinces: ProvinceCounts(beneficiaries),
	}
}
