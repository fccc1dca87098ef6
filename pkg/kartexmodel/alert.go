package kartexmodel

import "time"

// ConditionType discriminates the closed set of alert conditions.
type ConditionType string

const (
	ConditionErrorRate    ConditionType = "error_rate"
	ConditionErrorsPerSec ConditionType = "errors_per_second"
	ConditionLogsPerSec   ConditionType = "logs_per_second"
	ConditionLevelCount   ConditionType = "level_count"
)

// Condition is a tagged variant discriminated by Type; only the fields
// relevant to Type are meaningful.
type Condition struct {
	Type      ConditionType `bson:"type" json:"type"`
	Threshold float64       `bson:"threshold" json:"threshold"`
	Level     Level         `bson:"level,omitempty" json:"level,omitempty"`
}

// ActionType discriminates the closed set of notification actions.
type ActionType string

const (
	ActionWebhook   ActionType = "webhook"
	ActionSlack     ActionType = "slack"
	ActionDiscord   ActionType = "discord"
	ActionPagerDuty ActionType = "pagerduty"
	ActionEmail     ActionType = "email"
	ActionLog       ActionType = "log"
)

// Action is a tagged variant discriminated by Type; only the fields
// relevant to Type are meaningful. ChannelRef, when set, tells the alert
// engine to resolve a NotificationChannelConfig by id instead of using the
// inline fields below.
type Action struct {
	Type       ActionType `bson:"type" json:"type"`
	ChannelRef string     `bson:"channel_ref,omitempty" json:"channel_ref,omitempty"`

	// Webhook
	URL    string `bson:"url,omitempty" json:"url,omitempty"`
	Method string `bson:"method,omitempty" json:"method,omitempty"`

	// Slack / Discord
	WebhookURL string `bson:"webhook_url,omitempty" json:"webhook_url,omitempty"`
	Channel    string `bson:"channel,omitempty" json:"channel,omitempty"`
	Username   string `bson:"username,omitempty" json:"username,omitempty"`
	IconURL    string `bson:"icon_url,omitempty" json:"icon_url,omitempty"`
	AvatarURL  string `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`

	// PagerDuty
	RoutingKey string `bson:"routing_key,omitempty" json:"routing_key,omitempty"`
	Severity   string `bson:"severity,omitempty" json:"severity,omitempty"`

	// Email
	SMTPHost string   `bson:"smtp_host,omitempty" json:"smtp_host,omitempty"`
	SMTPPort int      `bson:"smtp_port,omitempty" json:"smtp_port,omitempty"`
	SMTPUser string   `bson:"smtp_user,omitempty" json:"smtp_user,omitempty"`
	SMTPPass string   `bson:"smtp_pass,omitempty" json:"smtp_pass,omitempty"`
	From     string   `bson:"from,omitempty" json:"from,omitempty"`
	To       []string `bson:"to,omitempty" json:"to,omitempty"`
	UseTLS   bool     `bson:"use_tls,omitempty" json:"use_tls,omitempty"`
}

// AlertRule is a user-configured evaluation of a metrics condition that
// dispatches a notification action on trigger.
type AlertRule struct {
	ID             string     `bson:"_id,omitempty" json:"id,omitempty"`
	Name           string     `bson:"name" json:"name"`
	Enabled        bool       `bson:"enabled" json:"enabled"`
	Condition      Condition  `bson:"condition" json:"condition"`
	Action         Action     `bson:"action" json:"action"`
	LastTriggered  *time.Time `bson:"last_triggered,omitempty" json:"last_triggered,omitempty"`
	TriggerCount   int64      `bson:"trigger_count" json:"trigger_count"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
}

// AlertNotification is the rendered payload handed to the dispatcher once
// a rule's condition holds and its cooldown has elapsed.
type AlertNotification struct {
	AlertName           string    `json:"alert_name"`
	ConditionDescription string   `json:"condition_description"`
	CurrentValue        float64   `json:"current_value"`
	Threshold           float64   `json:"threshold"`
	Timestamp           time.Time `json:"timestamp"`
	Message             string    `json:"message"`
}
