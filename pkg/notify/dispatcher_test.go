package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

func testNotification() kartexmodel.AlertNotification {
	return kartexmodel.AlertNotification{
		AlertName:            "high-error-rate",
		ConditionDescription: "error_rate > 0.10",
		CurrentValue:         0.42,
		Threshold:            0.10,
		Timestamp:            time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Message:              "Alert 'high-error-rate' triggered: error_rate (0.42) exceeded threshold (0.10)",
	}
}

func TestDispatcherSendSlack(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(log.NewNopLogger(), time.Second)
	action := kartexmodel.Action{Type: kartexmodel.ActionSlack, WebhookURL: srv.URL, Channel: "#alerts"}
	err := d.Send(context.Background(), action, testNotification())
	require.NoError(t, err)

	attachments := received["attachments"].([]interface{})
	require.Len(t, attachments, 1)
	a := attachments[0].(map[string]interface{})
	assert.Equal(t, "#dc3545", a["color"])
	assert.Equal(t, "#alerts", received["channel"])
}

func TestDispatcherSendDiscord(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(log.NewNopLogger(), time.Second)
	action := kartexmodel.Action{Type: kartexmodel.ActionDiscord, WebhookURL: srv.URL}
	err := d.Send(context.Background(), action, testNotification())
	require.NoError(t, err)

	embeds := received["embeds"].([]interface{})
	require.Len(t, embeds, 1)
	e := embeds[0].(map[string]interface{})
	assert.InDelta(t, float64(0xdc3545), e["color"], 0.001)
}

func TestPagerDutySeverityRatio(t *testing.T) {
	cases := []struct {
		current, threshold float64
		want                string
	}{
		{current: 0.25, threshold: 0.10, want: "critical"},
		{current: 0.17, threshold: 0.10, want: "error"},
		{current: 0.11, threshold: 0.10, want: "warning"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, pagerDutySeverity("", c.current, c.threshold))
	}
	assert.Equal(t, "critical", pagerDutySeverity("critical", 0.11, 0.10))
}

func TestDispatcherPostJSONPagerDutyPayloadShape(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := &Dispatcher{client: srv.Client(), logger: log.NewNopLogger()}
	action := kartexmodel.Action{Type: kartexmodel.ActionPagerDuty, RoutingKey: "rk"}

	err := d.postJSON(context.Background(), srv.URL, map[string]interface{}{
		"routing_key":  action.RoutingKey,
		"event_action": "trigger",
		"dedup_key":    "kartex-high-error-rate",
		"payload": map[string]interface{}{
			"summary":  testNotification().Message,
			"source":   footer,
			"severity": pagerDutySeverity(action.Severity, 0.42, 0.10),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "rk", received["routing_key"])
	assert.Equal(t, "trigger", received["event_action"])
	assert.Equal(t, "kartex-high-error-rate", received["dedup_key"])
	payload := received["payload"].(map[string]interface{})
	assert.Equal(t, "critical", payload["severity"])
	assert.Equal(t, footer, payload["source"])
}

func TestDispatcherSendWebhookHonorsMethod(t *testing.T) {
	cases := []struct {
		method      string
		wantMethod  string
		wantBodyLen bool
	}{
		{method: "", wantMethod: http.MethodPost, wantBodyLen: true},
		{method: "GET", wantMethod: http.MethodGet, wantBodyLen: false},
		{method: "PUT", wantMethod: http.MethodPut, wantBodyLen: true},
	}

	for _, c := range cases {
		var gotMethod string
		var gotBodyLen int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			body, _ := io.ReadAll(r.Body)
			gotBodyLen = len(body)
			w.WriteHeader(http.StatusOK)
		}))

		d := New(log.NewNopLogger(), time.Second)
		action := kartexmodel.Action{Type: kartexmodel.ActionWebhook, URL: srv.URL, Method: c.method}
		err := d.Send(context.Background(), action, testNotification())
		require.NoError(t, err)

		assert.Equal(t, c.wantMethod, gotMethod)
		assert.Equal(t, c.wantBodyLen, gotBodyLen > 0)
		srv.Close()
	}
}

func TestDispatcherSendWebhookFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(log.NewNopLogger(), time.Second)
	action := kartexmodel.Action{Type: kartexmodel.ActionWebhook, URL: srv.URL}
	err := d.Send(context.Background(), action, testNotification())
	assert.Error(t, err)
}

func TestDispatcherSendLogNeverErrors(t *testing.T) {
	d := New(log.NewNopLogger(), time.Second)
	action := kartexmodel.Action{Type: kartexmodel.ActionLog}
	err := d.Send(context.Background(), action, testNotification())
	assert.NoError(t, err)
}
