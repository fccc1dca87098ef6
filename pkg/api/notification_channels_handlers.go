package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

func (h *handler) handleListNotificationChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.Store.ListNotificationChannels(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (h *handler) handleGetNotificationChannel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	channel, err := h.Store.GetNotificationChannel(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channel)
}

func (h *handler) handleCreateNotificationChannel(w http.ResponseWriter, r *http.Request) {
	var c kartexmodel.NotificationChannelConfig
	if err := decodeJSONBody(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification channel body")
		return
	}
	c.ID = uuid.New().String()
	id, err := h.Store.CreateNotificationChannel(r.Context(), c)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	c.ID = id
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) handleDeleteNotificationChannel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Store.DeleteNotificationChannel(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
