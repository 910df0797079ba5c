// Package seed reads the YAML dataset used as store defaults and for bulk
// imports.
package seed

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fieldmonitor/pkg/domain"
)

// File is the on-disk seed layout. Collection names match the persistence keys.
type File struct {
	Activities       []domain.Activity        `yaml:"activities"`
	Beneficiaries    []domain.Beneficiary     `yaml:"beneficiaries"`
	Budget           []domain.BudgetLine      `yaml:"budget"`
	Compliance       []domain.ComplianceItem  `yaml:"compliance"`
	GISMetrics       []domain.GISMetric       `yaml:"gisMetrics"`
	GISLayers        []domain.GISLayer        `yaml:"gisLayers"`
	GISProvinceStats []domain.GISProvinceStat `yaml:"gisProvinceStats"`
}

// Snapshot converts the file into store defaults.
func (f File) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		Activities:       f.Activities,
		Beneficiaries:    f.Beneficiaries,
		Budget:           f.Budget,
		Compliance:       f.Compliance,
		GISMetrics:       f.GISMetrics,
		GISLayers:        f.GISLayers,
		GISProvinceStats: f.GISProvinceStats,
	}
}

// Parse decodes and validates a seed document.
func Parse(input []byte) (domain.Snapshot, error) {
	var f File
	if err := yaml.Unmarshal(input, &f); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode seed: %w", err)
	}
	if err := f.Validate(); err != nil {
		return domain.Snapshot{}, err
	}
	return f.Snapshot(), nil
}

// Load reads the seed at path. An empty path yields an empty snapshot.
func Load(path string) (domain.Snapshot, error) {
	if strings.TrimSpace(path) == "" {
		return domain.Snapshot{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks that every record has an identifier unique within its collection.
func (f File) Validate() error {
	var errs []error
	check := func(collection string, ids []string) {
		seen := make(map[string]struct{}, len(ids))
		for i, id := range ids {
			if strings.TrimSpace(id) == "" {
				errs = append(errs, fmt.Errorf("%s[%d].id is required", collection, i))
				continue
			}
			if _, ok := seen[id]; ok {
				errs = append(errs, fmt.Errorf("%s[%d].id must be unique (duplicate %q)", collection, i, id))
			}
			seen[id] = struct{}{}
		}
	}
	check(domain.KeyActivities, ids(f.Activities, func(v domain.Activity) string { return v.ID }))
	check(domain.KeyBeneficiaries, ids(f.Beneficiaries, func(v domain.Beneficiary) string { return v.ID }))
	check(domain.KeyBudget, ids(f.Budget, func(v domain.BudgetLine) string { return v.ID }))
	check(domain.KeyCompliance, ids(f.Compliance, func(v domain.ComplianceItem) string { return v.ID }))
	check(domain.KeyGISMetrics, ids(f.GISMetrics, func(v domain.GISMetric) string { return v.ID }))
	check(domain.KeyGISLayers, ids(f.GISLayers, func(v domain.GISLayer) string { return v.ID }))
	check(domain.KeyGISProvinceStats, ids(f.GISProvinceStats, func(v domain.GISProvinceStat) string { return v.ID }))
	return errors.Join(errs...)
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, v := range items {
		out[i] = id(v)
	}
	return out
}
