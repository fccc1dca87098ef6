// Package alert evaluates a set of rules against a metrics snapshot on an
// interval, dispatching a notification for each rule whose condition holds
// and whose cooldown has elapsed.
package alert

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
	"github.com/kartexhq/kartex/pkg/metrics"
	"github.com/kartexhq/kartex/pkg/notify"
)

// RuleSource supplies the current set of rules to evaluate; the store
// gateway implements this.
type RuleSource interface {
	ListAlertRules(ctx context.Context) ([]kartexmodel.AlertRule, error)
	TouchAlertRule(ctx context.Context, id string, triggeredAt time.Time) error
}

// ChannelResolver looks up a named NotificationChannelConfig for actions
// that reference one indirectly via Action.ChannelRef.
type ChannelResolver interface {
	GetNotificationChannel(ctx context.Context, id string) (kartexmodel.NotificationChannelConfig, error)
}

// Config controls the evaluator loop's cadence.
type Config struct {
	EvalInterval time.Duration `yaml:"eval_interval"`
	CooldownSecs int64         `yaml:"cooldown_secs"`
}

// RegisterFlagsAndApplyDefaults wires flags under prefix and fills in
// defaults matching the original evaluator's 10s tick / 60s cooldown.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&c.EvalInterval, prefix+"eval-interval", 10*time.Second, "How often alert rules are evaluated against the metrics window.")
	f.Int64Var(&c.CooldownSecs, prefix+"cooldown-secs", 60, "Minimum seconds between two triggers of the same rule.")
}

// Engine evaluates rules on an interval and dispatches notifications.
type Engine struct {
	cfg      Config
	rules    RuleSource
	channels ChannelResolver
	tracker  *metrics.Tracker
	dispatch *notify.Dispatcher
	logger   log.Logger

	mu            sync.Mutex
	lastTriggered map[string]time.Time
}

// New constructs an Engine. channels may be nil if no rule uses ChannelRef.
func New(cfg Config, rules RuleSource, channels ChannelResolver, tracker *metrics.Tracker, dispatch *notify.Dispatcher, logger log.Logger) *Engine {
	return &Engine{
		cfg:           cfg,
		rules:         rules,
		channels:      channels,
		tracker:       tracker,
		dispatch:      dispatch,
		logger:        logger,
		lastTriggered: make(map[string]time.Time),
	}
}

// Run ticks every cfg.EvalInterval until ctx is cancelled, calling
// CheckAlerts on each tick and logging the outcome.
func (e *Engine) Run(ctx context.Context) {
	interval := e.cfg.EvalInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			triggered, err := e.CheckAlerts(ctx)
			if err != nil {
				level.Error(e.logger).Log("msg", "alert evaluation failed", "err", err)
				continue
			}
			if len(triggered) > 0 {
				level.Info(e.logger).Log("msg", "alerts triggered", "rules", strings.Join(triggered, ","))
			}
		}
	}
}

// CheckAlerts evaluates every enabled rule once against the current
// metrics snapshot, returning the names of rules that fired. A rule inside
// its cooldown window is skipped entirely: it neither triggers nor resets
// cooldown. Dispatch failures are logged and do not prevent the cooldown
// and trigger-count bookkeeping from being recorded, matching the
// original's best-effort notification semantics.
func (e *Engine) CheckAlerts(ctx context.Context) ([]string, error) {
	rules, err := e.rules.ListAlertRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert: list rules: %w", err)
	}

	snap := e.tracker.Snapshot()
	now := time.Now()
	var triggered []string

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		key := rule.ID
		if key == "" {
			key = rule.Name
		}

		if e.inCooldown(key, now) {
			continue
		}

		should, current, threshold, desc := evaluate(rule.Condition, snap)
		if !should {
			continue
		}

		notification := kartexmodel.AlertNotification{
			AlertName:            rule.Name,
			ConditionDescription: desc,
			CurrentValue:         current,
			Threshold:            threshold,
			Timestamp:            now,
			Message: fmt.Sprintf("Alert '%s' triggered: %s (%.2f) exceeded threshold (%.2f)",
				rule.Name, desc, current, threshold),
		}

		action := rule.Action
		if action.ChannelRef != "" && e.channels != nil {
			if ch, err := e.channels.GetNotificationChannel(ctx, action.ChannelRef); err == nil {
				action = ch.Config
				action.Type = ch.Type
			} else {
				level.Error(e.logger).Log("msg", "could not resolve notification channel", "channel_ref", action.ChannelRef, "err", err)
			}
		}

		if err := e.dispatch.Send(ctx, action, notification); err != nil {
			level.Error(e.logger).Log("msg", "failed to execute alert action", "rule", rule.Name, "err", err)
		}

		e.setLastTriggered(key, now)
		if err := e.rules.TouchAlertRule(ctx, rule.ID, now); err != nil {
			level.Error(e.logger).Log("msg", "failed to persist alert trigger", "rule", rule.Name, "err", err)
		}

		triggered = append(triggered, rule.Name)
	}

	return triggered, nil
}

func (e *Engine) inCooldown(key string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastTriggered[key]
	if !ok {
		return false
	}
	cooldown := e.cfg.CooldownSecs
	if cooldown <= 0 {
		cooldown = 60
	}
	return now.Sub(last) < time.Duration(cooldown)*time.Second
}

func (e *Engine) setLastTriggered(key string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastTriggered[key] = now
}

// evaluate matches a single Condition against a metrics snapshot,
// returning whether it fired, the observed and threshold values, and a
// human-readable description of what was compared.
func evaluate(c kartexmodel.Condition, snap metrics.Snapshot) (should bool, current, threshold float64, desc string) {
	switch c.Type {
	case kartexmodel.ConditionErrorRate:
		return snap.ErrorRate > c.Threshold, snap.ErrorRate, c.Threshold, "Error Rate"
	case kartexmodel.ConditionErrorsPerSec:
		return snap.ErrorsPerSecond > c.Threshold, snap.ErrorsPerSecond, c.Threshold, "Errors/sec"
	case kartexmodel.ConditionLogsPerSec:
		return snap.LogsPerSecond > c.Threshold, snap.LogsPerSecond, c.Threshold, "Logs/sec"
	case kartexmodel.ConditionLevelCount:
		count := float64(snap.CountForLevel(c.Level))
		return count > c.Threshold, count, c.Threshold, fmt.Sprintf("%s count", c.Level.String())
	default:
		return false, 0, 0, "unknown condition"
	}
}
