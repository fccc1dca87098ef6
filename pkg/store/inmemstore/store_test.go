package inmemstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

func TestInsertAndQueryLogs(t *testing.T) {
	s := New()
	ctx := context.Background()

	now := time.Now()
	ids, err := s.InsertLogs(ctx, []kartexmodel.LogRecord{
		{Timestamp: now.Add(-time.Minute), Level: kartexmodel.LevelInfo, Service: "api", Message: "started"},
		{Timestamp: now, Level: kartexmodel.LevelError, Service: "api", Message: "boom"},
		{Timestamp: now, Level: kartexmodel.LevelInfo, Service: "worker", Message: "tick"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	logs, err := s.QueryLogs(ctx, kartexmodel.LogQueryFilter{Service: "api"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "boom", logs[0].Message, "newest first")
}

func TestQueryLogsBySearch(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.InsertLogs(ctx, []kartexmodel.LogRecord{
		{Timestamp: time.Now(), Service: "api", Message: "connection refused"},
		{Timestamp: time.Now(), Service: "api", Message: "all good"},
	})
	require.NoError(t, err)

	logs, err := s.QueryLogs(ctx, kartexmodel.LogQueryFilter{Search: "refused"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "connection refused", logs[0].Message)
}

func TestQueryLogsByFieldScopedRegex(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.InsertLogs(ctx, []kartexmodel.LogRecord{
		{Timestamp: time.Now(), Service: "api-gateway", Message: "connection refused", Exception: ""},
		{Timestamp: time.Now(), Service: "worker", Message: "connection refused too", Exception: ""},
		{Timestamp: time.Now(), Service: "api-internal", Message: "all good", Exception: ""},
	})
	require.NoError(t, err)

	logs, err := s.QueryLogs(ctx, kartexmodel.LogQueryFilter{
		Search:      "^api-",
		SearchField: "service",
		SearchRegex: true,
	})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Contains(t, l.Service, "api-")
	}
}

func TestQueryLogsByFieldScopedRegexInvalidPattern(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.QueryLogs(ctx, kartexmodel.LogQueryFilter{
		Search:      "(unterminated",
		SearchField: "message",
		SearchRegex: true,
	})
	assert.Error(t, err)
}

func TestGetLogByID(t *testing.T) {
	s := New()
	ctx := context.Background()
	ids, err := s.InsertLogs(ctx, []kartexmodel.LogRecord{{Message: "hi"}})
	require.NoError(t, err)

	found, err := s.GetLogByID(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "hi", found.Message)

	missing, err := s.GetLogByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStats(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.InsertLogs(ctx, []kartexmodel.LogRecord{
		{Level: kartexmodel.LevelInfo, Service: "api"},
		{Level: kartexmodel.LevelError, Service: "api"},
		{Level: kartexmodel.LevelInfo, Service: "worker"},
	})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalCount)
	assert.Equal(t, int64(2), stats.CountsByLevel["INFO"])
	assert.Equal(t, int64(2), stats.CountsByService["api"])
}

func TestTraceCorrelation(t *testing.T) {
	s := New()
	ctx := context.Background()

	root := kartexmodel.Span{TraceID: "t1", SpanID: "root", Name: "GET /orders", Service: "api"}
	root.StartTime = time.Now()
	root.EndTime = root.StartTime.Add(50 * time.Millisecond)
	root.Finalize()

	child := kartexmodel.Span{TraceID: "t1", SpanID: "child", ParentSpanID: "root", Name: "db query", Service: "api"}
	child.StartTime = root.StartTime
	child.EndTime = root.StartTime.Add(20 * time.Millisecond)
	child.Finalize()

	_, err := s.InsertSpans(ctx, []kartexmodel.Span{root, child})
	require.NoError(t, err)

	logIDs, err := s.InsertLogs(ctx, []kartexmodel.LogRecord{
		{TraceID: "t1", Message: "handling order"},
	})
	require.NoError(t, err)

	detail, err := s.GetTraceDetail(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Len(t, detail.Spans, 2)
	assert.Len(t, detail.Logs, 1)

	fromLog, err := s.GetTraceForLog(ctx, logIDs[0])
	require.NoError(t, err)
	require.NotNil(t, fromLog)
	assert.Equal(t, "t1", fromLog.TraceID)

	summaries, err := s.QueryTraces(ctx, kartexmodel.TraceSummaryFilter{})
	require.NoError(t, err)
	require.Len(t, summaries, 1, "only the root span produces a summary")
	assert.Equal(t, 2, summaries[0].SpanCount)
}

func TestTraceDetailMissingTraceIsNil(t *testing.T) {
	s := New()
	detail, err := s.GetTraceDetail(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestAlertRuleTouchIncrementsTriggerCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, err := s.CreateAlertRule(ctx, kartexmodel.AlertRule{Name: "r1"})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.TouchAlertRule(ctx, id, now))
	require.NoError(t, s.TouchAlertRule(ctx, id, now))

	rules, err := s.ListAlertRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(2), rules[0].TriggerCount)
	require.NotNil(t, rules[0].LastTriggered)
}

func TestDashboardCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, err := s.CreateDashboard(ctx, kartexmodel.Dashboard{Name: "overview"})
	require.NoError(t, err)

	got, err := s.GetDashboard(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "overview", got.Name)

	require.NoError(t, s.UpdateDashboard(ctx, id, kartexmodel.Dashboard{Name: "renamed"}))
	got, err = s.GetDashboard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	require.NoError(t, s.DeleteDashboard(ctx, id))
	got, err = s.GetDashboard(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}
