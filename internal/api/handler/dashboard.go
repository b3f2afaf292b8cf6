package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pollwise/acdash/internal/api/response"
	"github.com/pollwise/acdash/internal/registry"
	"github.com/pollwise/acdash/internal/shard"
	"github.com/pollwise/acdash/internal/stats"
)

// StatsService is the part of the query service the dashboard handlers use.
type StatsService interface {
	GetStats(ctx context.Context, acID int) (*stats.Result, error)
	AllStats(ctx context.Context) ([]stats.Result, error)
}

type Dashboard struct {
	svc StatsService
}

func NewDashboard(svc StatsService) *Dashboard {
	return &Dashboard{svc: svc}
}

// Stats serves the statistics for one constituency.
func (h *Dashboard) Stats(w http.ResponseWriter, r *http.Request) {
	acID, err := strconv.Atoi(chi.URLParam(r, "acID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "ac id must be an integer")
		return
	}

	result, err := h.svc.GetStats(r.Context(), acID)
	if err != nil {
		writeStatsError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

// AllStats serves the cross-constituency roll-up from stored snapshots.
func (h *Dashboard) AllStats(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.AllStats(r.Context())
	if err != nil {
		writeStatsError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"items": results})
}

func writeStatsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrUnknownConstituency):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shard.ErrUnavailable):
		response.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
