package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

func (h *handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListAlertRules(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *handler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rules, err := h.Store.ListAlertRules(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	for _, rule := range rules {
		if rule.ID == id {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}
	writeError(w, http.StatusNotFound, "alert rule not found")
}

func (h *handler) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var rule kartexmodel.AlertRule
	if err := decodeJSONBody(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert rule body")
		return
	}
	rule.ID = uuid.New().String()
	rule.CreatedAt = time.Now().UTC()

	id, err := h.Store.CreateAlertRule(r.Context(), rule)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	rule.ID = id
	writeJSON(w, http.StatusCreated, rule)
}

func (h *handler) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var rule kartexmodel.AlertRule
	if err := decodeJSONBody(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert rule body")
		return
	}
	rule.ID = id
	if err := h.Store.UpdateAlertRule(r.Context(), id, rule); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *handler) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Store.DeleteAlertRule(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
