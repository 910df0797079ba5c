package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestKeyForCoversEveryCollection(t *testing.T) {
	entities := []EntityType{
		EntityActivity, EntityBeneficiary, EntityBudgetLine, EntityComplianceItem,
		EntityGISMetric, EntityGISLayer, EntityGISProvinceStat,
	}
	if len(entities) != len(CollectionKeys) {
		t.Fatalf("expected %d keys, got %d", len(entities), len(CollectionKeys))
	}
	for i, e := range entities {
		if got := KeyFor(e); got != CollectionKeys[i] {
			t.Fatalf("KeyFor(%s) = %q, want %q", e, got, CollectionKeys[i])
		}
	}
	if KeyFor("unknown") != "" {
		t.Fatal("unknown entity must have no key")
	}
}

func TestNextComplianceStatusCycles(t *testing.T) {
	status := CompliancePending
	for _, want := range []ComplianceStatus{ComplianceComplete, ComplianceDelayed, CompliancePending} {
		status = NextComplianceStatus(status)
		if status != want {
			t.Fatalf("expected %s, got %s", want, status)
		}
	}
	if NextComplianceStatus("Archived") != CompliancePending {
		t.Fatal("unknown status must restart at Pending")
	}
}

func TestPersistedFieldNames(t *testing.T) {
	raw, err := json.Marshal(BudgetLine{ID: "b1", Category: "Travel", PlannedAmount: 10, CurrencyRate: 0.022})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "category", "plannedAmount", "actualAmount", "cadEquivalent", "currencyRate"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("budget line JSON missing %q: %s", key, raw)
		}
	}
	raw, _ = json.Marshal(Activity{ID: "a1"})
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["actualDate"]; ok {
		t.Fatalf("empty actualDate must be omitted: %s", raw)
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[string]string{"2.5": "3", "2.4": "2", "-2.5": "-2", "-2.6": "-3", "0": "0"}
	for in, want := range cases {
		got := RoundHalfUp(decimal.RequireFromString(in))
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("RoundHalfUp(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestWithActualUsesStoredRate(t *testing.T) {
	line := BudgetLine{PlannedAmount: 1000, CurrencyRate: 0.022}.WithActual(500)
	if line.ActualAmount != 500 || line.CADEquivalent != 11 {
		t.Fatalf("unexpected line %+v", line)
	}
	if got := ConvertToBase(250, 0.022); got != 6 {
		t.Fatalf("expected 5.5 to round up to 6, got %v", got)
	}
	if !line.PlannedBase().Equal(decimal.NewFromInt(22)) {
		t.Fatalf("unexpected planned base %s", line.PlannedBase())
	}
}

func TestCompareDates(t *testing.T) {
	if CompareDates("2025-01-01", "2025-02-01") >= 0 {
		t.Fatal("earlier date must sort first")
	}
	if CompareDates("garbage", "2025-02-01") <= 0 || CompareDates("2025-02-01", "") >= 0 {
		t.Fatal("unparseable dates must sort last")
	}
	if CompareDates("nope", "") != 0 {
		t.Fatal("unparseable dates must compare equal")
	}
	if CompareDates("2025-03-01T10:00:00Z", "2025-03-01") <= 0 {
		t.Fatal("timestamps must compare by instant")
	}
}

func TestActivityUpdateApply(t *testing.T) {
	base := Activity{ID: "a1", Status: ActivityPlanned, CompletionPercentage: 10}
	if got := (ActivityUpdate{}).Apply(base); got != base {
		t.Fatalf("empty update changed record: %+v", got)
	}
	pct := 70
	got := ActivityUpdate{CompletionPercentage: &pct}.Apply(base)
	if got.CompletionPercentage != 70 || got.Status != ActivityPlanned {
		t.Fatalf("unexpected record %+v", got)
	}
	status := ActivityCompleted
	got = ActivityUpdate{Status: &status}.Apply(base)
	if got.Status != ActivityCompleted || got.CompletionPercentage != 10 {
		t.Fatalf("unexpected record %+v", got)
	}
}
