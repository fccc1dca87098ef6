package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
	"github.com/kartexhq/kartex/pkg/metrics"
	"github.com/kartexhq/kartex/pkg/notify"
)

type fakeRuleSource struct {
	mu      sync.Mutex
	rules   []kartexmodel.AlertRule
	touched []string
}

func (f *fakeRuleSource) ListAlertRules(ctx context.Context) ([]kartexmodel.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kartexmodel.AlertRule(nil), f.rules...), nil
}

func (f *fakeRuleSource) TouchAlertRule(ctx context.Context, id string, triggeredAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func newErrorRateRule(threshold float64) *fakeRuleSource {
	return &fakeRuleSource{rules: []kartexmodel.AlertRule{
		{
			ID:      "rule-1",
			Name:    "high-error-rate",
			Enabled: true,
			Condition: kartexmodel.Condition{
				Type:      kartexmodel.ConditionErrorRate,
				Threshold: threshold,
			},
			Action: kartexmodel.Action{Type: kartexmodel.ActionLog},
		},
	}}
}

func newEngine(t *testing.T, rules *fakeRuleSource, cooldownSecs int64) (*Engine, *metrics.Tracker) {
	t.Helper()
	tr := metrics.New(nil)

	dispatch := notify.New(log.NewNopLogger(), time.Second)
	cfg := Config{EvalInterval: time.Hour, CooldownSecs: cooldownSecs}
	return New(cfg, rules, nil, tr, dispatch, log.NewNopLogger()), tr
}

func TestCheckAlertsFiresOnceWithinCooldown(t *testing.T) {
	rules := newErrorRateRule(0.10)
	e, tr := newEngine(t, rules, 60)

	for i := 0; i < 8; i++ {
		tr.Record(kartexmodel.LevelInfo)
	}
	for i := 0; i < 2; i++ {
		tr.Record(kartexmodel.LevelError)
	}

	triggered, err := e.CheckAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"high-error-rate"}, triggered)

	triggered, err = e.CheckAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, triggered, "second check within cooldown must not refire")

	assert.Len(t, rules.touched, 1)
}

func TestCheckAlertsRefiresAfterCooldownElapses(t *testing.T) {
	rules := newErrorRateRule(0.10)
	e, tr := newEngine(t, rules, 1)

	for i := 0; i < 8; i++ {
		tr.Record(kartexmodel.LevelInfo)
	}
	for i := 0; i < 2; i++ {
		tr.Record(kartexmodel.LevelError)
	}

	triggered, err := e.CheckAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, triggered, 1)

	e.mu.Lock()
	e.lastTriggered["rule-1"] = time.Now().Add(-2 * time.Second)
	e.mu.Unlock()

	triggered, err = e.CheckAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"high-error-rate"}, triggered)
	assert.Len(t, rules.touched, 2)
}

func TestCheckAlertsSkipsDisabledRule(t *testing.T) {
	rules := newErrorRateRule(0.10)
	rules.rules[0].Enabled = false
	e, tr := newEngine(t, rules, 60)

	for i := 0; i < 2; i++ {
		tr.Record(kartexmodel.LevelError)
	}

	triggered, err := e.CheckAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, triggered)
}

func TestCheckAlertsLevelCountCondition(t *testing.T) {
	rules := &fakeRuleSource{rules: []kartexmodel.AlertRule{
		{
			ID:      "rule-2",
			Name:    "too-many-warnings",
			Enabled: true,
			Condition: kartexmodel.Condition{
				Type:      kartexmodel.ConditionLevelCount,
				Level:     kartexmodel.LevelWarn,
				Threshold: 2,
			},
			Action: kartexmodel.Action{Type: kartexmodel.ActionLog},
		},
	}}
	e, tr := newEngine(t, rules, 60)
	for i := 0; i < 3; i++ {
		tr.Record(kartexmodel.LevelWarn)
	}

	triggered, err := e.CheckAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"too-many-warnings"}, triggered)
}
