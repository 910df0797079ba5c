package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldmonitor/internal/adapters/exports"
	"fieldmonitor/internal/blob"
	"fieldmonitor/internal/core"
	"fieldmonitor/internal/log"
	"fieldmonitor/internal/summary"
	"fieldmonitor/pkg/domain"
)

const maxBodyBytes = 1 << 20

type itemResponse struct {
	Data     any                `json:"data"`
	Warnings []domain.Violation `json:"warnings,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request payload: %v", err))
		return false
	}
	return true
}

// writeMutationError maps service errors onto HTTP statuses.
func writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	var violation domain.RuleViolationError
	if errors.As(err, &violation) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      violation.Error(),
			"violations": violation.Result.Violations,
		})
		return
	}
	var unknown core.ErrUnknownEntity
	if errors.As(err, &unknown) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "mutation failed", log.FieldError, err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func create[T any](fn func(context.Context, T) (T, domain.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in T
		if !decode(w, r, &in) {
			return
		}
		created, res, err := fn(r.Context(), in)
		if err != nil {
			writeMutationError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, itemResponse{Data: created, Warnings: res.Warnings()})
	}
}

func list(svc *core.Service, pick func(domain.Snapshot) any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": pick(svc.Snapshot())})
	}
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

func (h *Handler) handleListActivities(w http.ResponseWriter, r *http.Request) {
	activities := summary.FilterActivities(h.svc.Snapshot().Activities, r.URL.Query().Get("status"))
	writeJSON(w, http.StatusOK, map[string]any{"data": activities})
}

type activityPatch struct {
	Status               *domain.ActivityStatus `json:"status"`
	CompletionPercentage *int                   `json:"completionPercentage"`
}

func (h *Handler) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	var patch activityPatch
	if !decode(w, r, &patch) {
		return
	}
	if patch.Status == nil && patch.CompletionPercentage == nil {
		writeError(w, http.StatusBadRequest, "status or completionPercentage required")
		return
	}
	id := chi.URLParam(r, "id")
	found, res, err := h.svc.UpdateActivity(r.Context(), id, domain.ActivityUpdate{
		Status:               patch.Status,
		CompletionPercentage: patch.CompletionPercentage,
	})
	if err != nil {
		writeMutationError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "activity not found")
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Data: map[string]string{"id": id}, Warnings: res.Warnings()})
}

type budgetPatch struct {
	ActualAmount *float64 `json:"actualAmount"`
}

func (h *Handler) handleUpdateBudgetActual(w http.ResponseWriter, r *http.Request) {
	var patch budgetPatch
	if !decode(w, r, &patch) {
		return
	}
	if patch.ActualAmount == nil {
		writeError(w, http.StatusBadRequest, "actualAmount required")
		return
	}
	id := chi.URLParam(r, "id")
	found, err := h.svc.UpdateBudgetActual(r.Context(), id, *patch.ActualAmount)
	if err != nil {
		writeMutationError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "budget line not found")
		return
	}
	for _, line := range h.svc.Snapshot().Budget {
		if line.ID == id {
			writeJSON(w, http.StatusOK, itemResponse{Data: line})
			return
		}
	}
	writeJSON(w, http.StatusOK, itemResponse{Data: map[string]string{"id": id}})
}

type compliancePatch struct {
	Status domain.ComplianceStatus `json:"status"`
}

func (h *Handler) handleUpdateComplianceStatus(w http.ResponseWriter, r *http.Request) {
	var patch compliancePatch
	if !decode(w, r, &patch) {
		return
	}
	if patch.Status == "" {
		writeError(w, http.StatusBadRequest, "status required")
		return
	}
	found, err := h.svc.UpdateComplianceStatus(r.Context(), chi.URLParam(r, "id"), patch.Status)
	if err != nil {
		writeMutationError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "compliance item not found")
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Data: map[string]any{"id": chi.URLParam(r, "id"), "status": patch.Status}})
}

func (h *Handler) handleCycleCompliance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, found, err := h.svc.CycleComplianceStatus(r.Context(), id)
	if err != nil {
		writeMutationError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "compliance item not found")
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Data: map[string]any{"id": id, "status": status}})
}

func (h *Handler) handleDelete(entity domain.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := h.svc.Delete(r.Context(), entity, chi.URLParam(r, "id"))
		if err != nil {
			writeMutationError(w, r, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", entity))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) handleBudgetCSV(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("budget-%s.csv", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := exports.WriteBudgetCSV(w, h.svc.Snapshot().Budget); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "write budget csv", log.FieldError, err)
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, summary.Overview(h.svc.Snapshot()))
}

func (h *Handler) handleDemographics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, summary.BeneficiaryDemographics(h.svc.Snapshot().Beneficiaries))
}

func (h *Handler) handleBudgetSummary(w http.ResponseWriter, _ *http.Request) {
	lines := h.svc.Snapshot().Budget
	writeJSON(w, http.StatusOK, map[string]any{
		"totals":    summary.Totals(lines),
		"variances": summary.Variances(lines),
		"chart":     summary.ChartRows(lines),
	})
}

func (h *Handler) handleComplianceSummary(w http.ResponseWriter, _ *http.Request) {
	items := h.svc.Snapshot().Compliance
	writeJSON(w, http.StatusOK, map[string]any{
		"counts":  summary.Compliance(items),
		"delayed": summary.DelayedItems(items),
	})
}

func (h *Handler) handleGISSummary(w http.ResponseWriter, _ *http.Request) {
	snap := h.svc.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"totals":    summary.GIS(snap.GISMetrics),
		"provinces": summary.ProvinceSessions(snap.GISProvinceStats),
	})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		writeError(w, http.StatusNotFound, "report generation not configured")
		return
	}
	text := h.reporter.Generate(r.Context(), h.svc.Snapshot())
	writeJSON(w, http.StatusOK, map[string]string{"report": text})
}

type exportRequest struct {
	Dataset string   `json:"dataset"`
	Formats []string `json:"formats"`
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		http.NotFound(w, r)
		return
	}
	var req exportRequest
	if !decode(w, r, &req) {
		return
	}
	formats := make([]exports.Format, 0, len(req.Formats))
	for _, f := range req.Formats {
		formats = append(formats, exports.Format(strings.ToLower(strings.TrimSpace(f))))
	}
	record, err := h.exports.Enqueue(r.Context(), exports.Input{Dataset: exports.Dataset(req.Dataset), Formats: formats})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, exports.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleExportGet(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		http.NotFound(w, r)
		return
	}
	record, ok := h.exports.Get(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (h *Handler) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil || h.artifacts == nil {
		http.NotFound(w, r)
		return
	}
	id := chi.URLParam(r, "id")
	record, ok := h.exports.Get(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	key := exports.KeyPrefix + id + "/" + chi.URLParam(r, "file")
	known := false
	for _, a := range record.Artifacts {
		if a.Key == key {
			known = true
			break
		}
	}
	if !known {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	info, rc, err := h.artifacts.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() { _ = rc.Close() }()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	_, _ = io.Copy(w, rc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
