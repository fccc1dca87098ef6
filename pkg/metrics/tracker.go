// Package metrics maintains a 60-second sliding window of per-second log
// counts, exposed as an O(1) snapshot and mirrored onto Prometheus gauges.
//
// Deliberately, only LogRecords feed this window: an earlier revision of
// this system also counted a span's error status into errors_last_minute,
// which double-counted failures already visible as log records for the
// same request. Spans have no Record method here.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

const windowSeconds = 60

type bucket struct {
	second int64
	total  uint64
	trace  uint64
	debug  uint64
	info   uint64
	warn   uint64
	error  uint64
	fatal  uint64
}

// LevelCounts breaks a snapshot down by severity.
type LevelCounts struct {
	Trace uint64
	Debug uint64
	Info  uint64
	Warn  uint64
	Error uint64
	Fatal uint64
}

// Snapshot is a point-in-time read of the sliding window.
type Snapshot struct {
	LogsPerSecond   float64
	ErrorsPerSecond float64
	ErrorRate       float64
	LogsLastMinute  uint64
	ErrorsLastMinute uint64
	ByLevel         LevelCounts
	Timestamp       time.Time
}

// CountForLevel returns the one-minute count for a single level, used by
// the alert engine's LevelCount condition.
func (s Snapshot) CountForLevel(l kartexmodel.Level) uint64 {
	switch l {
	case kartexmodel.LevelTrace:
		return s.ByLevel.Trace
	case kartexmodel.LevelDebug:
		return s.ByLevel.Debug
	case kartexmodel.LevelInfo:
		return s.ByLevel.Info
	case kartexmodel.LevelWarn:
		return s.ByLevel.Warn
	case kartexmodel.LevelError:
		return s.ByLevel.Error
	case kartexmodel.LevelFatal:
		return s.ByLevel.Fatal
	default:
		return 0
	}
}

// Tracker is a thread-safe sliding-window counter, guarded by a single
// read/write lock: writes are brief appends, reads iterate at most
// windowSeconds buckets.
type Tracker struct {
	mu          sync.RWMutex
	buckets     []bucket // ordered oldest-first, front-evicted
	totalEver   uint64
	errorsEver  uint64
	now         func() time.Time

	gaugeLogsPerSec  prometheus.Gauge
	gaugeErrorRate   prometheus.Gauge
	gaugeErrsPerSec  prometheus.Gauge
}

// New constructs a Tracker and registers its Prometheus gauges against reg
// (pass nil to skip registration, e.g. in tests).
func New(reg prometheus.Registerer) *Tracker {
	t := &Tracker{
		buckets: make([]bucket, 0, windowSeconds+1),
		now:     time.Now,
		gaugeLogsPerSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kartex", Name: "logs_per_second", Help: "Logs ingested per second over the last minute.",
		}),
		gaugeErrorRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kartex", Name: "log_error_rate", Help: "Fraction of logs at ERROR or FATAL over the last minute.",
		}),
		gaugeErrsPerSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kartex", Name: "log_errors_per_second", Help: "ERROR/FATAL logs per second over the last minute.",
		}),
	}
	if reg != nil {
		reg.MustRegister(t.gaugeLogsPerSec, t.gaugeErrorRate, t.gaugeErrsPerSec)
	}
	return t
}

// Record increments the current second's bucket for level and evicts
// buckets older than the sliding window.
func (t *Tracker) Record(level kartexmodel.Level) {
	now := t.now()
	second := now.Unix()
	isError := level.IsErrorOrWorse()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalEver++
	if isError {
		t.errorsEver++
	}

	if len(t.buckets) == 0 || t.buckets[len(t.buckets)-1].second != second {
		t.buckets = append(t.buckets, bucket{second: second})
	}
	b := &t.buckets[len(t.buckets)-1]
	b.total++
	switch level {
	case kartexmodel.LevelTrace:
		b.trace++
	case kartexmodel.LevelDebug:
		b.debug++
	case kartexmodel.LevelInfo:
		b.info++
	case kartexmodel.LevelWarn:
		b.warn++
	case kartexmodel.LevelError:
		b.error++
	case kartexmodel.LevelFatal:
		b.fatal++
	}

	cutoff := second - windowSeconds
	i := 0
	for i < len(t.buckets) && t.buckets[i].second < cutoff {
		i++
	}
	if i > 0 {
		t.buckets = t.buckets[i:]
	}
}

// Snapshot sums the surviving buckets and derives the sliding-window rates.
// It also updates the Prometheus gauges so scrapes reflect the same data
// an in-process caller would see.
func (t *Tracker) Snapshot() Snapshot {
	now := t.now()
	cutoff := now.Unix() - windowSeconds

	t.mu.RLock()
	defer t.mu.RUnlock()

	var total, errs uint64
	var lv LevelCounts
	for _, b := range t.buckets {
		if b.second < cutoff {
			continue
		}
		total += b.total
		errs += b.error + b.fatal
		lv.Trace += b.trace
		lv.Debug += b.debug
		lv.Info += b.info
		lv.Warn += b.warn
		lv.Error += b.error
		lv.Fatal += b.fatal
	}

	logsPerSec := float64(total) / float64(windowSeconds)
	errsPerSec := float64(errs) / float64(windowSeconds)
	errRate := 0.0
	if total > 0 {
		errRate = float64(errs) / float64(total)
	}

	t.gaugeLogsPerSec.Set(logsPerSec)
	t.gaugeErrsPerSec.Set(errsPerSec)
	t.gaugeErrorRate.Set(errRate)

	return Snapshot{
		LogsPerSecond:    logsPerSec,
		ErrorsPerSecond:  errsPerSec,
		ErrorRate:        errRate,
		LogsLastMinute:   total,
		ErrorsLastMinute: errs,
		ByLevel:          lv,
		Timestamp:        now,
	}
}

// TotalLogsEver returns the monotonic lifetime log count.
func (t *Tracker) TotalLogsEver() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalEver
}

// TotalErrorsEver returns the monotonic lifetime error count.
func (t *Tracker) TotalErrorsEver() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errorsEver
}
