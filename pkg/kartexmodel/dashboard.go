package kartexmodel

import "time"

// WidgetType is the closed set of dashboard widget kinds.
type WidgetType string

const (
	WidgetLogCount         WidgetType = "log_count"
	WidgetErrorRate        WidgetType = "error_rate"
	WidgetServiceBreakdown WidgetType = "service_breakdown"
	WidgetLevelBreakdown   WidgetType = "level_breakdown"
	WidgetRecentLogs       WidgetType = "recent_logs"
	WidgetRecentTraces     WidgetType = "recent_traces"
)

// WidgetPosition places a widget on the dashboard grid.
type WidgetPosition struct {
	X int `bson:"x" json:"x"`
	Y int `bson:"y" json:"y"`
	W int `bson:"w" json:"w"`
	H int `bson:"h" json:"h"`
}

// DashboardWidget is one tile of a Dashboard, reusing the log query filter
// shape so its rendering goes through the same store query path as the
// REST log-search endpoint.
type DashboardWidget struct {
	ID       string         `bson:"id" json:"id"`
	Title    string         `bson:"title" json:"title"`
	Type     WidgetType     `bson:"widget_type" json:"widget_type"`
	Query    LogQueryFilter `bson:"query" json:"query"`
	Position WidgetPosition `bson:"position" json:"position"`
}

// Dashboard is a named, ordered collection of widgets.
type Dashboard struct {
	ID        string            `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string            `bson:"name" json:"name"`
	Widgets   []DashboardWidget `bson:"widgets" json:"widgets"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at" json:"updated_at"`
}

// NotificationChannelConfig is a named, reusable notification transport
// configuration that an AlertRule.Action can reference by id instead of
// embedding credentials inline.
type NotificationChannelConfig struct {
	ID      string     `bson:"_id,omitempty" json:"id,omitempty"`
	Name    string     `bson:"name" json:"name"`
	Type    ActionType `bson:"channel_type" json:"channel_type"`
	Config  Action     `bson:"config" json:"config"`
	Enabled bool       `bson:"enabled" json:"enabled"`
}
