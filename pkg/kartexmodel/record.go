package kartexmodel

import "time"

// LogRecord is one observation at a point in time, normalized from any
// ingestion protocol into a common shape.
type LogRecord struct {
	ID              string                 `bson:"_id,omitempty" json:"id,omitempty"`
	Timestamp       time.Time              `bson:"timestamp" json:"timestamp"`
	Level           Level                  `bson:"level" json:"level"`
	Service         string                 `bson:"service" json:"service"`
	Message         string                 `bson:"message" json:"message"`
	MessageTemplate string                 `bson:"message_template,omitempty" json:"message_template,omitempty"`
	Exception       string                 `bson:"exception,omitempty" json:"exception,omitempty"`
	EventID         string                 `bson:"event_id,omitempty" json:"event_id,omitempty"`
	TraceID         string                 `bson:"trace_id,omitempty" json:"trace_id,omitempty"`
	SpanID          string                 `bson:"span_id,omitempty" json:"span_id,omitempty"`
	Metadata        map[string]interface{} `bson:"metadata" json:"metadata"`
	SourceIP        string                 `bson:"source_ip" json:"source_ip"`
	CreatedAt       time.Time              `bson:"created_at" json:"created_at"`
}

// SpanKind mirrors the OTLP span kind enumeration.
type SpanKind int

const (
	SpanKindUnspecified SpanKind = iota
	SpanKindInternal
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// StatusCode mirrors OTLP span status codes.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// SpanStatus is the status of a Span.
type SpanStatus struct {
	Code    StatusCode `bson:"code" json:"code"`
	Message string     `bson:"message,omitempty" json:"message,omitempty"`
}

// SpanEvent is a timestamped event attached to a Span.
type SpanEvent struct {
	Name       string                 `bson:"name" json:"name"`
	Timestamp  time.Time              `bson:"timestamp" json:"timestamp"`
	Attributes map[string]interface{} `bson:"attributes,omitempty" json:"attributes,omitempty"`
}

// SpanLink is a reference from one span to another, possibly in a
// different trace.
type SpanLink struct {
	TraceID    string                 `bson:"trace_id" json:"trace_id"`
	SpanID     string                 `bson:"span_id" json:"span_id"`
	Attributes map[string]interface{} `bson:"attributes,omitempty" json:"attributes,omitempty"`
}

// Span is one unit of work in a distributed trace.
type Span struct {
	ID                 string                 `bson:"_id,omitempty" json:"id,omitempty"`
	TraceID            string                 `bson:"trace_id" json:"trace_id"`
	SpanID             string                 `bson:"span_id" json:"span_id"`
	ParentSpanID       string                 `bson:"parent_span_id,omitempty" json:"parent_span_id,omitempty"`
	TraceState         string                 `bson:"trace_state,omitempty" json:"trace_state,omitempty"`
	Name               string                 `bson:"name" json:"name"`
	Service            string                 `bson:"service" json:"service"`
	Kind               SpanKind               `bson:"kind" json:"kind"`
	StartTime          time.Time              `bson:"start_time" json:"start_time"`
	EndTime            time.Time              `bson:"end_time" json:"end_time"`
	StartTimeUnixNano  uint64                 `bson:"start_time_unix_nano" json:"start_time_unix_nano"`
	EndTimeUnixNano    uint64                 `bson:"end_time_unix_nano" json:"end_time_unix_nano"`
	DurationMs         float64                `bson:"duration_ms" json:"duration_ms"`
	Status             SpanStatus             `bson:"status" json:"status"`
	Attributes         map[string]interface{} `bson:"attributes,omitempty" json:"attributes,omitempty"`
	Events             []SpanEvent            `bson:"events,omitempty" json:"events,omitempty"`
	Links              []SpanLink             `bson:"links,omitempty" json:"links,omitempty"`
	ResourceAttributes map[string]interface{} `bson:"resource_attributes,omitempty" json:"resource_attributes,omitempty"`
	ScopeName          string                 `bson:"scope_name,omitempty" json:"scope_name,omitempty"`
	ScopeVersion       string                 `bson:"scope_version,omitempty" json:"scope_version,omitempty"`
	SourceIP           string                 `bson:"source_ip" json:"source_ip"`
	CreatedAt          time.Time              `bson:"created_at" json:"created_at"`
}

// NewSpan returns a Span carrying traceID, spanID and a CreatedAt stamp.
// DurationMs and the nanosecond fields stay zero until Finalize runs.
func NewSpan(traceID, spanID string) Span {
	return Span{TraceID: traceID, SpanID: spanID, CreatedAt: time.Now().UTC()}
}

// Finalize derives StartTimeUnixNano/EndTimeUnixNano/DurationMs from
// StartTime/EndTime, enforcing end >= start.
func (s *Span) Finalize() {
	if s.EndTime.Before(s.StartTime) {
		s.EndTime = s.StartTime
	}
	s.StartTimeUnixNano = uint64(s.StartTime.UnixNano())
	s.EndTimeUnixNano = uint64(s.EndTime.UnixNano())
	s.DurationMs = float64(s.EndTimeUnixNano-s.StartTimeUnixNano) / 1e6
}

// TraceSummary is derived from the root span of a trace.
type TraceSummary struct {
	TraceID      string     `bson:"trace_id" json:"trace_id"`
	RootSpanName string     `bson:"root_span_name" json:"root_span_name"`
	Service      string     `bson:"service" json:"service"`
	StartTime    time.Time  `bson:"start_time" json:"start_time"`
	EndTime      time.Time  `bson:"end_time" json:"end_time"`
	DurationMs   float64    `bson:"duration_ms" json:"duration_ms"`
	SpanCount    int        `bson:"span_count" json:"span_count"`
	ErrorCount   int        `bson:"error_count" json:"error_count"`
	Status       SpanStatus `bson:"status" json:"status"`
}

// TraceDetail joins every span and log sharing a trace_id.
type TraceDetail struct {
	TraceID string      `json:"trace_id"`
	Spans   []Span      `json:"spans"`
	Logs    []LogRecord `json:"logs"`
}

// ValidTraceID reports whether s is a lowercase 32-character hex string,
// the wire format a trace_id must satisfy before acceptance.
func ValidTraceID(s string) bool { return isLowerHex(s, 32) }

// ValidSpanID reports whether s is a lowercase 16-character hex string,
// the wire format a span_id must satisfy before acceptance.
func ValidSpanID(s string) bool { return isLowerHex(s, 16) }

func isLowerHex(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
