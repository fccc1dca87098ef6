package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

func (h *handler) handleListDashboards(w http.ResponseWriter, r *http.Request) {
	dashboards, err := h.Store.ListDashboards(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboards)
}

// renderedWidget pairs a widget's configuration with the data its query
// currently resolves to, the only business logic the dashboard surface
// performs: everything else is plain CRUD against the store.
type renderedWidget struct {
	kartexmodel.DashboardWidget
	Data interface{} `json:"data"`
}

type renderedDashboard struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Widgets   []renderedWidget  `json:"widgets"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (h *handler) renderDashboard(ctx context.Context, d kartexmodel.Dashboard) renderedDashboard {
	out := renderedDashboard{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
	for _, widget := range d.Widgets {
		data, err := h.renderWidget(ctx, widget)
		if err != nil {
			data = map[string]string{"error": err.Error()}
		}
		out.Widgets = append(out.Widgets, renderedWidget{DashboardWidget: widget, Data: data})
	}
	return out
}

// renderWidget resolves a single widget's live data: a count/rate off the
// metrics snapshot for the aggregate widget types, or a store query for
// the listing widget types.
func (h *handler) renderWidget(ctx context.Context, widget kartexmodel.DashboardWidget) (interface{}, error) {
	switch widget.Type {
	case kartexmodel.WidgetLogCount:
		stats, err := h.Store.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return stats.TotalCount, nil
	case kartexmodel.WidgetErrorRate:
		return h.Tracker.Snapshot().ErrorRate, nil
	case kartexmodel.WidgetServiceBreakdown:
		stats, err := h.Store.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return stats.CountsByService, nil
	case kartexmodel.WidgetLevelBreakdown:
		stats, err := h.Store.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return stats.CountsByLevel, nil
	case kartexmodel.WidgetRecentLogs:
		filter := widget.Query
		filter.ClampLimit()
		return h.Store.QueryLogs(ctx, filter)
	case kartexmodel.WidgetRecentTraces:
		return h.Store.QueryTraces(ctx, kartexmodel.TraceSummaryFilter{Limit: widget.Query.Limit})
	default:
		return nil, nil
	}
}

func (h *handler) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	dashboard, err := h.Store.GetDashboard(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if dashboard == nil {
		writeError(w, http.StatusNotFound, "dashboard not found")
		return
	}
	writeJSON(w, http.StatusOK, h.renderDashboard(r.Context(), *dashboard))
}

func (h *handler) handleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	var d kartexmodel.Dashboard
	if err := decodeJSONBody(r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid dashboard body")
		return
	}
	d.ID = uuid.New().String()
	id, err := h.Store.CreateDashboard(r.Context(), d)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	d.ID = id
	writeJSON(w, http.StatusCreated, d)
}

func (h *handler) handleUpdateDashboard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var d kartexmodel.Dashboard
	if err := decodeJSONBody(r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid dashboard body")
		return
	}
	d.ID = id
	if err := h.Store.UpdateDashboard(r.Context(), id, d); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) handleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Store.DeleteDashboard(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
