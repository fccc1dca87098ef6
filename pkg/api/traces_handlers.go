package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

// parseTraceSummaryFilter mirrors parseLogQueryFilter for the trace query
// shape: service, time range, duration bounds, status, search, paging.
func parseTraceSummaryFilter(r *http.Request) kartexmodel.TraceSummaryFilter {
	q := r.URL.Query()
	var filter kartexmodel.TraceSummaryFilter

	filter.Service = q.Get("service")
	filter.Search = q.Get("search")

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
	if v := q.Get("min_duration_ms"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinDurMs = &f
		}
	}
	if v := q.Get("max_duration_ms"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MaxDurMs = &f
		}
	}
	if v := q.Get("status"); v != "" {
		switch v {
		case "ok":
			s := kartexmodel.StatusOK
			filter.Status = &s
		case "error":
			s := kartexmodel.StatusError
			filter.Status = &s
		case "unset":
			s := kartexmodel.StatusUnset
			filter.Status = &s
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Skip = n
		}
	}
	return filter
}

func (h *handler) handleGetTraces(w http.ResponseWriter, r *http.Request) {
	filter := parseTraceSummaryFilter(r)
	summaries, err := h.Store.QueryTraces(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *handler) handleGetTraceByID(w http.ResponseWriter, r *http.Request) {
	traceID := mux.Vars(r)["traceID"]
	detail, err := h.Store.GetTraceDetail(r.Context(), traceID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handler) handleGetTraceForLog(w http.ResponseWriter, r *http.Request) {
	logID := mux.Vars(r)["id"]
	detail, err := h.Store.GetTraceForLog(r.Context(), logID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "no trace associated with that log")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
