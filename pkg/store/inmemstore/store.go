// Package inmemstore is a slice- and map-backed, mutex-guarded implementation of
// store.Gateway used by tests and by single-process deployments that run
// without a Mongo backend.
package inmemstore

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
	"github.com/kartexhq/kartex/pkg/store"
)

// Store is an in-memory store.Gateway. All operations are O(n) in the
// relevant collection's size; it exists for tests and small deployments,
// not as a production substitute for the Mongo-backed store.
type Store struct {
	mu sync.RWMutex

	logs     []kartexmodel.LogRecord
	spans    []kartexmodel.Span
	dashbds  map[string]kartexmodel.Dashboard
	channels map[string]kartexmodel.NotificationChannelConfig
	rules    map[string]kartexmodel.AlertRule

	nextID int64
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		dashbds:  make(map[string]kartexmodel.Dashboard),
		channels: make(map[string]kartexmodel.NotificationChannelConfig),
		rules:    make(map[string]kartexmodel.AlertRule),
	}
}

func (s *Store) genID() string {
	s.nextID++
	return strconv.FormatInt(s.nextID, 10)
}

// InsertLogs appends logs, assigning an ID to any with an empty one.
func (s *Store) InsertLogs(ctx context.Context, logs []kartexmodel.LogRecord) ([]string, error) {
	if len(logs) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(logs))
	for i, l := range logs {
		if l.ID == "" {
			l.ID = s.genID()
		}
		ids[i] = l.ID
		s.logs = append(s.logs, l)
	}
	return ids, nil
}

// QueryLogs filters and sorts logs newest-first, matching the original
// repository's `timestamp: -1` sort order.
func (s *Store) QueryLogs(ctx context.Context, filter kartexmodel.LogQueryFilter) ([]kartexmodel.LogRecord, error) {
	filter.ClampLimit()

	var searchRe *regexp.Regexp
	if filter.SearchRegex && filter.SearchField != "" && filter.Search != "" {
		re, err := regexp.Compile(filter.Search)
		if err != nil {
			return nil, err
		}
		searchRe = re
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []kartexmodel.LogRecord
	for _, l := range s.logs {
		if !logMatchesFilter(l, filter, searchRe) {
			continue
		}
		matched = append(matched, l)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	return paginate(matched, filter.Skip, filter.Limit), nil
}

// logSearchField returns the named field's value for regex search; the
// named field is restricted to message/service/exception, matching the
// store gateway's search contract.
func logSearchField(l kartexmodel.LogRecord, field string) (string, bool) {
	switch field {
	case "message":
		return l.Message, true
	case "service":
		return l.Service, true
	case "exception":
		return l.Exception, true
	default:
		return "", false
	}
}

func logMatchesFilter(l kartexmodel.LogRecord, f kartexmodel.LogQueryFilter, searchRe *regexp.Regexp) bool {
	if f.Level != nil && l.Level != *f.Level {
		return false
	}
	if f.Service != "" && l.Service != f.Service {
		return false
	}
	if f.Start != nil && l.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && l.Timestamp.After(*f.End) {
		return false
	}

	switch {
	case searchRe != nil:
		value, ok := logSearchField(l, f.SearchField)
		if !ok || !searchRe.MatchString(value) {
			return false
		}
	case f.Search != "":
		needle := strings.ToLower(f.Search)
		haystack := strings.ToLower(l.Message + " " + l.Service + " " + l.Exception + " " + l.MessageTemplate)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// GetLogByID returns nil, nil if no log has the given id, matching
// store.ErrNotFound semantics at the API layer rather than here.
func (s *Store) GetLogByID(ctx context.Context, id string) (*kartexmodel.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.logs {
		if s.logs[i].ID == id {
			found := s.logs[i]
			return &found, nil
		}
	}
	return nil, nil
}

// Stats aggregates the full log set, matching the original's two
// `$group` pipelines.
func (s *Store) Stats(ctx context.Context) (kartexmodel.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := kartexmodel.Stats{
		CountsByLevel:   make(map[string]int64),
		CountsByService: make(map[string]int64),
	}
	for _, l := range s.logs {
		st.TotalCount++
		st.CountsByLevel[l.Level.String()]++
		st.CountsByService[l.Service]++
	}
	return st, nil
}

// InsertSpans appends spans, assigning an ID to any with an empty one.
func (s *Store) InsertSpans(ctx context.Context, spans []kartexmodel.Span) ([]string, error) {
	if len(spans) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(spans))
	for i, sp := range spans {
		if sp.ID == "" {
			sp.ID = s.genID()
		}
		ids[i] = sp.ID
		s.spans = append(s.spans, sp)
	}
	return ids, nil
}

func (s *Store) GetSpanByID(ctx context.Context, id string) (*kartexmodel.Span, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.spans {
		if s.spans[i].ID == id {
			found := s.spans[i]
			return &found, nil
		}
	}
	return nil, nil
}

// GetTraceSpans returns a trace's spans ordered by start time, matching
// the original's `start_time_unix_nano: 1` sort.
func (s *Store) GetTraceSpans(ctx context.Context, traceID string) ([]kartexmodel.Span, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var spans []kartexmodel.Span
	for _, sp := range s.spans {
		if sp.TraceID == traceID {
			spans = append(spans, sp)
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].StartTimeUnixNano < spans[j].StartTimeUnixNano })
	return spans, nil
}

func (s *Store) GetTraceLogs(ctx context.Context, traceID string) ([]kartexmodel.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var logs []kartexmodel.LogRecord
	for _, l := range s.logs {
		if l.TraceID == traceID {
			logs = append(logs, l)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Timestamp.Before(logs[j].Timestamp) })
	return logs, nil
}

// GetTraceDetail joins spans and logs on trace_id with no referential
// integrity check: a trace_id with no matching spans yields nil, nil even
// if correlated logs exist, matching `get_trace_detail`'s
// spans.is_empty() short-circuit.
func (s *Store) GetTraceDetail(ctx context.Context, traceID string) (*kartexmodel.TraceDetail, error) {
	spans, _ := s.GetTraceSpans(ctx, traceID)
	if len(spans) == 0 {
		return nil, nil
	}
	logs, _ := s.GetTraceLogs(ctx, traceID)
	return &kartexmodel.TraceDetail{TraceID: traceID, Spans: spans, Logs: logs}, nil
}

func (s *Store) GetTraceForLog(ctx context.Context, logID string) (*kartexmodel.TraceDetail, error) {
	log, _ := s.GetLogByID(ctx, logID)
	if log == nil || log.TraceID == "" {
		return nil, nil
	}
	return s.GetTraceDetail(ctx, log.TraceID)
}

// QueryTraces aggregates root spans (those without a parent) into trace
// summaries, computing span_count/error_count across every span sharing
// the trace_id, matching the original's `$lookup`+`$project` pipeline.
func (s *Store) QueryTraces(ctx context.Context, filter kartexmodel.TraceSummaryFilter) ([]kartexmodel.TraceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTrace := make(map[string][]kartexmodel.Span)
	for _, sp := range s.spans {
		byTrace[sp.TraceID] = append(byTrace[sp.TraceID], sp)
	}

	var summaries []kartexmodel.TraceSummary
	for _, sp := range s.spans {
		if sp.ParentSpanID != "" {
			continue
		}
		if filter.Service != "" && sp.Service != filter.Service {
			continue
		}
		if filter.Start != nil && sp.StartTime.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && sp.StartTime.After(*filter.End) {
			continue
		}
		if filter.MinDurMs != nil && sp.DurationMs < *filter.MinDurMs {
			continue
		}
		if filter.MaxDurMs != nil && sp.DurationMs > *filter.MaxDurMs {
			continue
		}
		if filter.Status != nil && sp.Status.Code != *filter.Status {
			continue
		}

		all := byTrace[sp.TraceID]
		var errCount int
		for _, s2 := range all {
			if s2.Status.Code == kartexmodel.StatusError {
				errCount++
			}
		}

		summaries = append(summaries, kartexmodel.TraceSummary{
			TraceID:      sp.TraceID,
			RootSpanName: sp.Name,
			Service:      sp.Service,
			StartTime:    sp.StartTime,
			EndTime:      sp.EndTime,
			DurationMs:   sp.DurationMs,
			SpanCount:    len(all),
			ErrorCount:   errCount,
			Status:       sp.Status,
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].StartTime.After(summaries[j].StartTime) })
	return paginate(summaries, filter.Skip, filter.Limit), nil
}

func (s *Store) CreateDashboard(ctx context.Context, d kartexmodel.Dashboard) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = s.genID()
	}
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	s.dashbds[d.ID] = d
	return d.ID, nil
}

func (s *Store) GetDashboard(ctx context.Context, id string) (*kartexmodel.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dashbds[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *Store) ListDashboards(ctx context.Context) ([]kartexmodel.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]kartexmodel.Dashboard, 0, len(s.dashbds))
	for _, d := range s.dashbds {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateDashboard(ctx context.Context, id string, d kartexmodel.Dashboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dashbds[id]; !ok {
		return store.ErrNotFound
	}
	d.ID = id
	d.UpdatedAt = time.Now()
	s.dashbds[id] = d
	return nil
}

func (s *Store) DeleteDashboard(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dashbds[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.dashbds, id)
	return nil
}

func (s *Store) CreateNotificationChannel(ctx context.Context, c kartexmodel.NotificationChannelConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.genID()
	}
	s.channels[c.ID] = c
	return c.ID, nil
}

func (s *Store) GetNotificationChannel(ctx context.Context, id string) (kartexmodel.NotificationChannelConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[id]
	if !ok {
		return kartexmodel.NotificationChannelConfig{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListNotificationChannels(ctx context.Context) ([]kartexmodel.NotificationChannelConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]kartexmodel.NotificationChannelConfig, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteNotificationChannel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.channels, id)
	return nil
}

func (s *Store) CreateAlertRule(ctx context.Context, r kartexmodel.AlertRule) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = s.genID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	s.rules[r.ID] = r
	return r.ID, nil
}

func (s *Store) ListAlertRules(ctx context.Context) ([]kartexmodel.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]kartexmodel.AlertRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateAlertRule(ctx context.Context, id string, r kartexmodel.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return store.ErrNotFound
	}
	r.ID = id
	s.rules[id] = r
	return nil
}

func (s *Store) DeleteAlertRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

// TouchAlertRule sets last_triggered and increments trigger_count,
// matching the original's `$set`/`$inc` update document.
func (s *Store) TouchAlertRule(ctx context.Context, id string, triggeredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return store.ErrNotFound
	}
	r.LastTriggered = &triggeredAt
	r.TriggerCount++
	s.rules[id] = r
	return nil
}

var _ store.Gateway = (*Store)(nil)
