package summary

import "fieldmonitor/pkg/domain"

// ComplianceCounts tallies items by status.
type ComplianceCounts struct {
	Complete int `json:"complete"`
	Pending  int `json:"pending"`
	Delayed  int `json:"delayed"`
}

// Compliance counts items per status. Statuses are taken as stored; nothing
// is derived from due dates.
func Compliance(items []domain.ComplianceItem) ComplianceCounts {
	var c ComplianceCounts
	for _, it := range items {
		switch it.Status {
		case domain.ComplianceComplete:
			c.Complete++
		case domain.CompliancePending:
			c.Pending++
		case domain.ComplianceDelayed:
			c.Delayed++
		}
	}
	return c
}

// DelayedItems returns the names of Delayed items in order.
func DelayedItems(items []domain.ComplianceItem) []string {
	out := []string{}
	for _, it := range items {
		if it.Status == domain.ComplianceDelayed {
			out = append(out, it.Item)
		}
	}
	return out
}
