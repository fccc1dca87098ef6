package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

// parseLogQueryFilter reads LogQueryParams's field set off the query
// string: level, service, start_time/end_time, search (+regex/regex_field),
// limit/skip, matching the original's LogQueryParams shape.
func parseLogQueryFilter(r *http.Request) kartexmodel.LogQueryFilter {
	q := r.URL.Query()
	var filter kartexmodel.LogQueryFilter

	if lv := q.Get("level"); lv != "" {
		if parsed, err := kartexmodel.ParseLevel(lv); err == nil {
			filter.Level = &parsed
		}
	}
	filter.Service = q.Get("service")
	filter.Search = q.Get("search")
	filter.SearchField = q.Get("regex_field")
	filter.SearchRegex = q.Get("regex") == "true"

	if st := q.Get("start_time"); st != "" {
		if t, err := time.Parse(time.RFC3339, st); err == nil {
			filter.Start = &t
		}
	}
	if et := q.Get("end_time"); et != "" {
		if t, err := time.Parse(time.RFC3339, et); err == nil {
			filter.End = &t
		}
	}
	if lim := q.Get("limit"); lim != "" {
		if n, err := strconv.Atoi(lim); err == nil {
			filter.Limit = n
		}
	}
	if skip := q.Get("skip"); skip != "" {
		if n, err := strconv.Atoi(skip); err == nil {
			filter.Skip = n
		}
	}
	filter.ClampLimit()
	return filter
}

type logsResponse struct {
	Logs  []kartexmodel.LogRecord `json:"logs"`
	Count int                     `json:"count"`
}

func (h *handler) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	filter := parseLogQueryFilter(r)
	logs, err := h.Store.QueryLogs(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logsResponse{Logs: logs, Count: len(logs)})
}

func (h *handler) handleGetLogByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log, err := h.Store.GetLogByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if log == nil {
		writeError(w, http.StatusNotFound, "log not found")
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *handler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Stats(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) handleGetRealtimeMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Tracker.Snapshot())
}
