package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/budgetd/internal/currency"
	"github.com/allaspectsdev/budgetd/internal/store"
)

// BudgetHandler implements the project-budget resource endpoints. Each
// endpoint is a short linear pipeline over the store and, for the
// currency listing, the converter.
type BudgetHandler struct {
	store     *store.Store
	converter *currency.Converter
	logger    zerolog.Logger
}

// NewBudgetHandler creates a BudgetHandler wired to the given store and
// converter.
func NewBudgetHandler(st *store.Store, conv *currency.Converter, logger zerolog.Logger) *BudgetHandler {
	return &BudgetHandler{
		store:     st,
		converter: conv,
		logger:    logger,
	}
}

// HandleHealth returns a simple health check response.
func (h *BudgetHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleOK is the API-level liveness probe.
func (h *BudgetHandler) HandleOK(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// currencyRequest is the body of the currency-listing endpoint.
type currencyRequest struct {
	Year        int64  `json:"year"`
	ProjectName string `json:"projectName"`
	Currency    string `json:"currency"`
}

// convertedBudget is a budget record enriched with the TTD conversion
// of its final budget. The conversion is computed on read and never
// stored; a null value means no usable rate was available.
type convertedBudget struct {
	store.Project
	FinalBudgetTTD *float64 `json:"finalBudgetTtd"`
}

// HandleListWithCurrency queries budgets by name and year and, when the
// caller asks for TTD, enriches every row with a converted final
// budget. Conversions run concurrently but the response preserves row
// order. A row whose conversion fails gets a null conversion rather
// than failing the whole list.
func (h *BudgetHandler) HandleListWithCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	rows, err := h.store.FindProjectsByNameAndYear(req.ProjectName, req.Year)
	if err != nil {
		h.logger.Error().Err(err).Str("project_name", req.ProjectName).Int64("year", req.Year).
			Msg("failed to query budgets")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}
	if len(rows) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if req.Currency != currency.TTD {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": true,
			"data":   rows,
		})
		return
	}

	// Fan out one conversion per row; the indexed result slice keeps
	// the original row order regardless of completion order.
	converted := make([]convertedBudget, len(rows))
	var wg sync.WaitGroup
	for i, row := range rows {
		converted[i].Project = row
		wg.Add(1)
		go func(i int, row store.Project) {
			defer wg.Done()
			ttd, err := h.converter.ToTTD(r.Context(), row.FinalBudgetUSD, row.Currency, row.Year)
			if err != nil {
				h.logger.Warn().Err(err).Int64("project_id", row.ProjectID).
					Msg("conversion failed; returning null for row")
				return
			}
			converted[i].FinalBudgetTTD = ttd
		}(i, row)
	}
	wg.Wait()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": true,
		"data":   converted,
	})
}

// HandleGet returns a single budget record by project id.
func (h *BudgetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rows, err := h.store.FindProjectByID(id)
	if err != nil {
		h.logger.Error().Err(err).Int64("project_id", id).Msg("failed to get budget")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}
	if len(rows) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// Collapse to the last row. With the primary key intact there is
	// only one; duplicate rows from a damaged table keep the original
	// service's last-row behaviour.
	writeJSON(w, http.StatusOK, rows[len(rows)-1])
}

// HandleCreate validates and inserts a new budget record, then echoes
// the stored row back with a created status.
func (h *BudgetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var payload BudgetPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := ValidateBudget(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	record, err := payload.Record()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.store.InsertProject(record); err != nil {
		h.logger.Error().Err(err).Int64("project_id", record.ProjectID).Msg("failed to insert budget")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}

	rows, err := h.store.FindProjectByID(record.ProjectID)
	if err != nil || len(rows) == 0 {
		h.logger.Error().Err(err).Int64("project_id", record.ProjectID).Msg("failed to re-fetch created budget")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}

	writeJSON(w, http.StatusCreated, rows[len(rows)-1])
}

// HandleUpdate overwrites every field except the project id for an
// existing record. The path id wins over any projectId in the body.
func (h *BudgetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	existing, err := h.store.FindProjectByID(id)
	if err != nil {
		h.logger.Error().Err(err).Int64("project_id", id).Msg("failed to check budget existence")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}
	if len(existing) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload BudgetPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	payload.ProjectID = json.RawMessage(strconv.FormatInt(id, 10))

	if err := ValidateBudget(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	record, err := payload.Record()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.store.UpdateProject(id, record); err != nil {
		// A concurrent delete between the existence check and the
		// update surfaces here as no rows affected.
		if errors.Is(err, sql.ErrNoRows) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Int64("project_id", id).Msg("failed to update budget")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}

	rows, err := h.store.FindProjectByID(id)
	if err != nil || len(rows) == 0 {
		h.logger.Error().Err(err).Int64("project_id", id).Msg("failed to re-fetch updated budget")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}

	writeJSON(w, http.StatusOK, rows[len(rows)-1])
}

// HandleDelete removes a budget record and responds with an empty
// success status.
func (h *BudgetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	existing, err := h.store.FindProjectByID(id)
	if err != nil {
		h.logger.Error().Err(err).Int64("project_id", id).Msg("failed to check budget existence")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}
	if len(existing) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := h.store.DeleteProject(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Int64("project_id", id).Msg("failed to delete budget")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} path parameter. A non-numeric id behaves like
// an absent resource.
func (h *BudgetHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return 0, false
	}
	return id, true
}

// writeJSON writes v as an indented JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
