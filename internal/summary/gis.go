package summary

import "fieldmonitor/pkg/domain"

// GISTotals summarises platform usage.
type GISTotals struct {
	ActiveUsers    int `json:"activeUsers"`
	Sessions       int `json:"sessions"`
	LayersAccessed int `json:"layersAccessed"`
	Downloads      int `json:"downloads"`
}

// GIS takes active users from the last metric and sums the other counters.
// metrics must already be in date order, as the store keeps them.
func GIS(metrics []domain.GISMetric) GISTotals {
	var t GISTotals
	for _, m := range metrics {
		t.Sessions += m.Sessions
		t.LayersAccessed += m.LayersAccessed
		t.Downloads += m.Downloads
	}
	if n := len(metrics); n > 0 {
		t.ActiveUsers = metrics[n-1].ActiveUsers
	}
	return t
}

// ProvinceSessions sums sessions per province in order of first appearance.
func ProvinceSessions(stats []domain.GISProvinceStat) []ProvinceCount {
	out := []ProvinceCount{}
	index := map[domain.Province]int{}
	for _, s := range stats {
		i, ok := index[s.Province]
		if !ok {
			i = len(out)
			index[s.Province] = i
			out = append(out, ProvinceCount{Province: s.Province})
		}
		out[i].Count += s.Sessions
	}
	return out
}
