package kartexmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpanFinalize(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	end := start.Add(250 * time.Millisecond)

	s := NewSpan("trace1", "span1")
	s.StartTime = start
	s.EndTime = end
	s.Finalize()

	assert.Equal(t, uint64(start.UnixNano()), s.StartTimeUnixNano)
	assert.Equal(t, uint64(end.UnixNano()), s.EndTimeUnixNano)
	assert.InDelta(t, 250.0, s.DurationMs, 0.001)
}

func TestSpanFinalizeClampsNegativeDuration(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	s := NewSpan("trace1", "span1")
	s.StartTime = start
	s.EndTime = start.Add(-time.Second)
	s.Finalize()

	assert.Equal(t, 0.0, s.DurationMs)
	assert.False(t, s.EndTime.Before(s.StartTime))
}

func TestLogQueryFilterClampLimit(t *testing.T) {
	f := LogQueryFilter{}
	f.ClampLimit()
	assert.Equal(t, 100, f.Limit)

	f = LogQueryFilter{Limit: 5000}
	f.ClampLimit()
	assert.Equal(t, 1000, f.Limit)

	f = LogQueryFilter{Limit: 50}
	f.ClampLimit()
	assert.Equal(t, 50, f.Limit)
}
