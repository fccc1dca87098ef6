// Package store defines the storage contract every ingestion component,
// the REST API, and the alert engine depend on, independent of which
// document store backs it.
package store

import (
	"context"
	"time"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

// Gateway is the full set of persistence operations the server needs:
// log and span ingestion, querying, trace correlation, and the CRUD
// surfaces for dashboards, alert rules, and notification channels.
type Gateway interface {
	InsertLogs(ctx context.Context, logs []kartexmodel.LogRecord) ([]string, error)
	QueryLogs(ctx context.Context, filter kartexmodel.LogQueryFilter) ([]kartexmodel.LogRecord, error)
	GetLogByID(ctx context.Context, id string) (*kartexmodel.LogRecord, error)
	Stats(ctx context.Context) (kartexmodel.Stats, error)

	InsertSpans(ctx context.Context, spans []kartexmodel.Span) ([]string, error)
	GetSpanByID(ctx context.Context, id string) (*kartexmodel.Span, error)
	GetTraceSpans(ctx context.Context, traceID string) ([]kartexmodel.Span, error)
	GetTraceLogs(ctx context.Context, traceID string) ([]kartexmodel.LogRecord, error)
	GetTraceDetail(ctx context.Context, traceID string) (*kartexmodel.TraceDetail, error)
	GetTraceForLog(ctx context.Context, logID string) (*kartexmodel.TraceDetail, error)
	QueryTraces(ctx context.Context, filter kartexmodel.TraceSummaryFilter) ([]kartexmodel.TraceSummary, error)

	CreateDashboard(ctx context.Context, d kartexmodel.Dashboard) (string, error)
	GetDashboard(ctx context.Context, id string) (*kartexmodel.Dashboard, error)
	ListDashboards(ctx context.Context) ([]kartexmodel.Dashboard, error)
	UpdateDashboard(ctx context.Context, id string, d kartexmodel.Dashboard) error
	DeleteDashboard(ctx context.Context, id string) error

	CreateNotificationChannel(ctx context.Context, c kartexmodel.NotificationChannelConfig) (string, error)
	GetNotificationChannel(ctx context.Context, id string) (kartexmodel.NotificationChannelConfig, error)
	ListNotificationChannels(ctx context.Context) ([]kartexmodel.NotificationChannelConfig, error)
	DeleteNotificationChannel(ctx context.Context, id string) error

	CreateAlertRule(ctx context.Context, r kartexmodel.AlertRule) (string, error)
	ListAlertRules(ctx context.Context) ([]kartexmodel.AlertRule, error)
	UpdateAlertRule(ctx context.Context, id string, r kartexmodel.AlertRule) error
	DeleteAlertRule(ctx context.Context, id string) error
	// TouchAlertRule records a trigger: last_triggered is set to
	// triggeredAt and trigger_count is incremented by one.
	TouchAlertRule(ctx context.Context, id string, triggeredAt time.Time) error
}

// ErrNotFound is returned by single-item lookups that find nothing.
var ErrNotFound = gatewayNotFoundError{}

type gatewayNotFoundError struct{}

func (gatewayNotFoundError) Error() string { return "store: not found" }
