// Package httpapi exposes the store, aggregates, exports and report over a
// JSON HTTP API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fieldmonitor/docs/openapi"
	"fieldmonitor/internal/adapters/exports"
	"fieldmonitor/internal/blob"
	"fieldmonitor/internal/core"
	"fieldmonitor/internal/log"
	"fieldmonitor/internal/report"
	"fieldmonitor/pkg/domain"
)

// Deps are the collaborators served by the router. Reporter, Exports,
// Artifacts and Metrics are optional.
type Deps struct {
	Service   *core.Service
	Reporter  *report.Reporter
	Exports   exports.Scheduler
	Artifacts blob.Store
	Metrics   http.Handler
	Logger    *log.Logger
}

// Handler serves the API.
type Handler struct {
	svc       *core.Service
	reporter  *report.Reporter
	exports   exports.Scheduler
	artifacts blob.Store
}

// NewRouter builds the HTTP routes.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	h := &Handler{
		svc:       deps.Service,
		reporter:  deps.Reporter,
		exports:   deps.Exports,
		artifacts: deps.Artifacts,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(openapi.Spec())
		})
		api.Get("/snapshot", h.handleSnapshot)

		api.Route("/activities", func(ar chi.Router) {
			ar.Get("/", h.handleListActivities)
			ar.Post("/", create(h.svc.CreateActivity))
			ar.Patch("/{id}", h.handleUpdateActivity)
			ar.Delete("/{id}", h.handleDelete(domain.EntityActivity))
		})
		api.Route("/beneficiaries", func(br chi.Router) {
			br.Get("/", list(h.svc, func(s domain.Snapshot) any { return s.Beneficiaries }))
			br.Post("/", create(h.svc.CreateBeneficiary))
			br.Delete("/{id}", h.handleDelete(domain.EntityBeneficiary))
		})
		api.Route("/budget", func(br chi.Router) {
			br.Get("/", list(h.svc, func(s domain.Snapshot) any { return s.Budget }))
			br.Get("/export.csv", h.handleBudgetCSV)
			br.Post("/", create(h.svc.CreateBudgetLine))
			br.Patch("/{id}", h.handleUpdateBudgetActual)
			br.Delete("/{id}", h.handleDelete(domain.EntityBudgetLine))
		})
		api.Route("/compliance", func(cr chi.Router) {
			cr.Get("/", list(h.svc, func(s domain.Snapshot) any { return s.Compliance }))
			cr.Post("/", create(h.svc.CreateComplianceItem))
			cr.Patch("/{id}", h.handleUpdateComplianceStatus)
			cr.Post("/{id}/cycle", h.handleCycleCompliance)
			cr.Delete("/{id}", h.handleDelete(domain.EntityComplianceItem))
		})
		api.Route("/gis", func(gr chi.Router) {
			gr.Get("/metrics", list(h.svc, func(s domain.Snapshot) any { return s.GISMetrics }))
			gr.Post("/metrics", create(h.svc.CreateGISMetric))
			gr.Delete("/metrics/{id}", h.handleDelete(domain.EntityGISMetric))
			gr.Get("/layers", list(h.svc, func(s domain.Snapshot) any { return s.GISLayers }))
			gr.Post("/layers", create(h.svc.CreateGISLayer))
			gr.Delete("/layers/{id}", h.handleDelete(domain.EntityGISLayer))
			gr.Get("/provinces", list(h.svc, func(s domain.Snapshot) any { return s.GISProvinceStats }))
			gr.Post("/provinces", create(h.svc.CreateGISProvinceStat))
			gr.Delete("/provinces/{id}", h.handleDelete(domain.EntityGISProvinceStat))
		})

		api.Route("/summary", func(sr chi.Router) {
			sr.Get("/dashboard", h.handleDashboard)
			sr.Get("/beneficiaries", h.handleDemographics)
			sr.Get("/budget", h.handleBudgetSummary)
			sr.Get("/compliance", h.handleComplianceSummary)
			sr.Get("/gis", h.handleGISSummary)
		})

		api.Post("/report", h.handleReport)

		api.Route("/exports", func(er chi.Router) {
			er.Post("/", h.handleExportCreate)
			er.Get("/{id}", h.handleExportGet)
			er.Get("/{id}/{file}", h.handleExportDownload)
		})
	})
	return r
}
