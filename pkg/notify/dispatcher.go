// Package notify sends a triggered AlertNotification out over whichever
// channel an Action names: a direct webhook, Slack, Discord, PagerDuty,
// email, or just a log line.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

const footer = "Kartex Logging Server"

// Dispatcher sends a rendered AlertNotification via one of the six Action
// variants.
type Dispatcher struct {
	client *http.Client
	logger log.Logger
}

// New constructs a Dispatcher with the given HTTP client timeout.
func New(logger log.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{client: &http.Client{Timeout: timeout}, logger: logger}
}

// Send dispatches notification via action, selecting the send method by
// action.Type.
func (d *Dispatcher) Send(ctx context.Context, action kartexmodel.Action, notification kartexmodel.AlertNotification) error {
	switch action.Type {
	case kartexmodel.ActionWebhook:
		return d.sendWebhook(ctx, action, notification)
	case kartexmodel.ActionSlack:
		return d.sendSlack(ctx, action, notification)
	case kartexmodel.ActionDiscord:
		return d.sendDiscord(ctx, action, notification)
	case kartexmodel.ActionPagerDuty:
		return d.sendPagerDuty(ctx, action, notification)
	case kartexmodel.ActionEmail:
		return d.sendEmail(action, notification)
	case kartexmodel.ActionLog:
		level.Warn(d.logger).Log("msg", "alert triggered", "alert", notification.AlertName, "value", notification.CurrentValue, "threshold", notification.Threshold)
		return nil
	default:
		return fmt.Errorf("notify: unknown action type %q", action.Type)
	}
}

func severityColor(currentValue, threshold float64) string {
	if threshold > 0 && currentValue > threshold*1.5 {
		return "#dc3545"
	}
	return "#ffc107"
}

func (d *Dispatcher) sendSlack(ctx context.Context, a kartexmodel.Action, n kartexmodel.AlertNotification) error {
	payload := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color": severityColor(n.CurrentValue, n.Threshold),
				"title": fmt.Sprintf("🚨 Alert: %s", n.AlertName),
				"text":  n.Message,
				"fields": []map[string]interface{}{
					{"title": "Condition", "value": n.ConditionDescription, "short": true},
					{"title": "Current Value", "value": fmt.Sprintf("%.2f", n.CurrentValue), "short": true},
					{"title": "Threshold", "value": fmt.Sprintf("%.2f", n.Threshold), "short": true},
					{"title": "Time", "value": n.Timestamp.Format(time.RFC3339), "short": true},
				},
				"footer": footer,
				"ts":     n.Timestamp.Unix(),
			},
		},
	}
	if a.Channel != "" {
		payload["channel"] = a.Channel
	}
	if a.Username != "" {
		payload["username"] = a.Username
	}
	if a.IconURL != "" {
		payload["icon_emoji"] = a.IconURL
	}
	return d.postJSON(ctx, a.WebhookURL, payload)
}

func (d *Dispatcher) sendDiscord(ctx context.Context, a kartexmodel.Action, n kartexmodel.AlertNotification) error {
	color := 0xdc3545
	if !(a.Severity != "" || (n.Threshold > 0 && n.CurrentValue > n.Threshold*1.5)) {
		color = 0xffc107
	}
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("🚨 Alert: %s", n.AlertName),
				"description": n.Message,
				"color":       color,
				"fields": []map[string]interface{}{
					{"name": "Condition", "value": n.ConditionDescription, "inline": true},
					{"name": "Current Value", "value": fmt.Sprintf("%.2f", n.CurrentValue), "inline": true},
					{"name": "Threshold", "value": fmt.Sprintf("%.2f", n.Threshold), "inline": true},
				},
				"timestamp": n.Timestamp.Format(time.RFC3339),
				"footer":    map[string]string{"text": footer},
			},
		},
	}
	if a.Username != "" {
		payload["username"] = a.Username
	}
	if a.AvatarURL != "" {
		payload["avatar_url"] = a.AvatarURL
	}
	return d.postJSON(ctx, a.WebhookURL, payload)
}

// pagerDutySeverity derives an event severity from how far the current
// value sits past the rule's threshold, matching the ratio used for Slack
// and Discord's color coding.
func pagerDutySeverity(explicit string, currentValue, threshold float64) string {
	if explicit != "" {
		return explicit
	}
	switch {
	case threshold > 0 && currentValue > threshold*2.0:
		return "critical"
	case threshold > 0 && currentValue > threshold*1.5:
		return "error"
	default:
		return "warning"
	}
}

func (d *Dispatcher) sendPagerDuty(ctx context.Context, a kartexmodel.Action, n kartexmodel.AlertNotification) error {
	severity := pagerDutySeverity(a.Severity, n.CurrentValue, n.Threshold)
	payload := map[string]interface{}{
		"routing_key":  a.RoutingKey,
		"event_action": "trigger",
		"dedup_key":    "kartex-" + slugify(n.AlertName),
		"payload": map[string]interface{}{
			"summary":   n.Message,
			"source":    footer,
			"severity":  severity,
			"timestamp": n.Timestamp.Format(time.RFC3339),
			"custom_details": map[string]interface{}{
				"alert_name":     n.AlertName,
				"condition":      n.ConditionDescription,
				"current_value": n.CurrentValue,
				"threshold":      n.Threshold,
			},
		},
	}
	return d.postJSON(ctx, "https://events.pagerduty.com/v2/enqueue", payload)
}

func (d *Dispatcher) sendWebhook(ctx context.Context, a kartexmodel.Action, n kartexmodel.AlertNotification) error {
	method := strings.ToUpper(a.Method)
	if method == "" {
		method = "POST"
	}
	switch method {
	case "GET":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
		if err != nil {
			return err
		}
		return d.do(req)
	case "PUT":
		return d.putJSON(ctx, a.URL, n)
	default:
		return d.postJSON(ctx, a.URL, n)
	}
}

func (d *Dispatcher) sendEmail(a kartexmodel.Action, n kartexmodel.AlertNotification) error {
	subject := fmt.Sprintf("Subject: 🚨 Kartex Alert: %s\r\n", n.AlertName)
	body := fmt.Sprintf(
		"Alert: %s\r\nCondition: %s\r\nCurrent Value: %.2f\r\nThreshold: %.2f\r\nTime: %s\r\n\r\n%s\r\n",
		n.AlertName, n.ConditionDescription, n.CurrentValue, n.Threshold,
		n.Timestamp.Format("2006-01-02 15:04:05 UTC"), n.Message,
	)

	var auth smtp.Auth
	if a.SMTPUser != "" {
		auth = smtp.PlainAuth("", a.SMTPUser, a.SMTPPass, a.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", a.SMTPHost, a.SMTPPort)

	var lastErr error
	for _, to := range a.To {
		msg := []byte(subject + "To: " + to + "\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n" + body)
		if err := smtp.SendMail(addr, auth, a.From, []string{to}, msg); err != nil {
			lastErr = err
			level.Error(d.logger).Log("msg", "email notification failed", "to", to, "err", err)
			continue
		}
		level.Info(d.logger).Log("msg", "email notification sent", "to", to)
	}
	return lastErr
}

func (d *Dispatcher) postJSON(ctx context.Context, url string, payload interface{}) error {
	return d.sendJSON(ctx, http.MethodPost, url, payload)
}

func (d *Dispatcher) putJSON(ctx context.Context, url string, payload interface{}) error {
	return d.sendJSON(ctx, http.MethodPut, url, payload)
}

func (d *Dispatcher) sendJSON(ctx context.Context, method, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return d.do(req)
}

func (d *Dispatcher) do(req *http.Request) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: request to %s failed: %s", req.URL.String(), resp.Status)
	}
	return nil
}

func slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return b.String()
}
