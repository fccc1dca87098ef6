// Package otlp accepts OpenTelemetry Protocol trace and log exports over
// gRPC and HTTP/JSON, converting OTLP's wire types into the canonical
// record model before handing them to the shared batchers.
package otlp

import (
	"encoding/hex"
	"fmt"
	"time"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

func bytesToHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return hex.EncodeToString(b)
}

func nanosToTime(nanos uint64) time.Time {
	if nanos == 0 {
		return time.Now().UTC()
	}
	return time.Unix(0, int64(nanos)).UTC()
}

// anyValueToJSON converts an OTLP AnyValue into a plain Go value suitable
// for storage as LogRecord/Span metadata.
func anyValueToJSON(v *commonpb.AnyValue) interface{} {
	if v == nil {
		return nil
	}
	switch val := v.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_BoolValue:
		return val.BoolValue
	case *commonpb.AnyValue_IntValue:
		return val.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return val.DoubleValue
	case *commonpb.AnyValue_ArrayValue:
		out := make([]interface{}, 0, len(val.ArrayValue.GetValues()))
		for _, elem := range val.ArrayValue.GetValues() {
			out = append(out, anyValueToJSON(elem))
		}
		return out
	case *commonpb.AnyValue_KvlistValue:
		return keyValuesToMap(val.KvlistValue.GetValues())
	case *commonpb.AnyValue_BytesValue:
		return bytesToHex(val.BytesValue)
	default:
		return nil
	}
}

func keyValuesToMap(kvs []*commonpb.KeyValue) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs))
	for _, kv := range kvs {
		if kv.GetValue() != nil {
			m[kv.GetKey()] = anyValueToJSON(kv.GetValue())
		}
	}
	return m
}

// extractServiceName reads "service.name" out of resource attributes,
// falling back to "unknown".
func extractServiceName(resourceAttrs map[string]interface{}) string {
	if v, ok := resourceAttrs["service.name"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}

func spanKindFromOTLP(kind tracepb.Span_SpanKind) kartexmodel.SpanKind {
	switch kind {
	case tracepb.Span_SPAN_KIND_INTERNAL:
		return kartexmodel.SpanKindInternal
	case tracepb.Span_SPAN_KIND_SERVER:
		return kartexmodel.SpanKindServer
	case tracepb.Span_SPAN_KIND_CLIENT:
		return kartexmodel.SpanKindClient
	case tracepb.Span_SPAN_KIND_PRODUCER:
		return kartexmodel.SpanKindProducer
	case tracepb.Span_SPAN_KIND_CONSUMER:
		return kartexmodel.SpanKindConsumer
	default:
		return kartexmodel.SpanKindUnspecified
	}
}

func statusFromOTLP(status *tracepb.Status) kartexmodel.SpanStatus {
	if status == nil {
		return kartexmodel.SpanStatus{}
	}
	code := kartexmodel.StatusUnset
	switch status.Code {
	case tracepb.Status_STATUS_CODE_OK:
		code = kartexmodel.StatusOK
	case tracepb.Status_STATUS_CODE_ERROR:
		code = kartexmodel.StatusError
	}
	return kartexmodel.SpanStatus{Code: code, Message: status.Message}
}

func convertEvent(e *tracepb.Span_Event) kartexmodel.SpanEvent {
	return kartexmodel.SpanEvent{
		Name:       e.Name,
		Timestamp:  nanosToTime(e.TimeUnixNano),
		Attributes: keyValuesToMap(e.Attributes),
	}
}

func convertLink(l *tracepb.Span_Link) kartexmodel.SpanLink {
	return kartexmodel.SpanLink{
		TraceID:    bytesToHex(l.TraceId),
		SpanID:     bytesToHex(l.SpanId),
		Attributes: keyValuesToMap(l.Attributes),
	}
}

// convertSpan converts a single OTLP span into a Span, deriving
// duration fields via Finalize the same way every other span source
// does.
func convertSpan(otlpSpan *tracepb.Span, service string, resourceAttrs map[string]interface{}, scopeName, scopeVersion, sourceIP string) kartexmodel.Span {
	span := kartexmodel.NewSpan(bytesToHex(otlpSpan.TraceId), bytesToHex(otlpSpan.SpanId))
	span.ParentSpanID = bytesToHex(otlpSpan.ParentSpanId)
	span.TraceState = otlpSpan.TraceState
	span.Name = otlpSpan.Name
	span.Service = service
	span.Kind = spanKindFromOTLP(otlpSpan.Kind)
	span.StartTime = nanosToTime(otlpSpan.StartTimeUnixNano)
	span.EndTime = nanosToTime(otlpSpan.EndTimeUnixNano)
	span.Status = statusFromOTLP(otlpSpan.Status)
	span.Attributes = keyValuesToMap(otlpSpan.Attributes)
	span.ResourceAttributes = resourceAttrs
	span.ScopeName = scopeName
	span.ScopeVersion = scopeVersion
	span.SourceIP = sourceIP

	for _, e := range otlpSpan.Events {
		span.Events = append(span.Events, convertEvent(e))
	}
	for _, l := range otlpSpan.Links {
		span.Links = append(span.Links, convertLink(l))
	}
	span.Finalize()
	return span
}

// convertResourceSpans flattens every ResourceSpans/ScopeSpans/Span
// triple into a slice of Span.
func convertResourceSpans(resourceSpans []*tracepb.ResourceSpans, sourceIP string) []kartexmodel.Span {
	var spans []kartexmodel.Span

	for _, rs := range resourceSpans {
		var resourceAttrs map[string]interface{}
		if rs.Resource != nil {
			resourceAttrs = keyValuesToMap(rs.Resource.Attributes)
		} else {
			resourceAttrs = map[string]interface{}{}
		}
		service := extractServiceName(resourceAttrs)

		for _, ss := range rs.ScopeSpans {
			var scopeName, scopeVersion string
			if ss.Scope != nil {
				scopeName = ss.Scope.Name
				scopeVersion = ss.Scope.Version
			}
			for _, otlpSpan := range ss.Spans {
				spans = append(spans, convertSpan(otlpSpan, service, resourceAttrs, scopeName, scopeVersion, sourceIP))
			}
		}
	}

	return spans
}

func severityToLogLevel(sev logspb.SeverityNumber) kartexmodel.Level {
	switch {
	case sev >= logspb.SeverityNumber_SEVERITY_NUMBER_TRACE && sev <= logspb.SeverityNumber_SEVERITY_NUMBER_TRACE4:
		return kartexmodel.LevelTrace
	case sev >= logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG && sev <= logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG4:
		return kartexmodel.LevelDebug
	case sev >= logspb.SeverityNumber_SEVERITY_NUMBER_INFO && sev <= logspb.SeverityNumber_SEVERITY_NUMBER_INFO4:
		return kartexmodel.LevelInfo
	case sev >= logspb.SeverityNumber_SEVERITY_NUMBER_WARN && sev <= logspb.SeverityNumber_SEVERITY_NUMBER_WARN4:
		return kartexmodel.LevelWarn
	case sev >= logspb.SeverityNumber_SEVERITY_NUMBER_ERROR && sev <= logspb.SeverityNumber_SEVERITY_NUMBER_ERROR4:
		return kartexmodel.LevelError
	case sev >= logspb.SeverityNumber_SEVERITY_NUMBER_FATAL && sev <= logspb.SeverityNumber_SEVERITY_NUMBER_FATAL4:
		return kartexmodel.LevelFatal
	default:
		return kartexmodel.LevelInfo
	}
}

func bodyToMessage(body *commonpb.AnyValue) string {
	if body == nil {
		return ""
	}
	if s, ok := body.Value.(*commonpb.AnyValue_StringValue); ok {
		return s.StringValue
	}
	return fmt.Sprintf("%v", anyValueToJSON(body))
}

// convertLogRecord converts a single OTLP log record into a LogRecord,
// prefixing resource attributes (other than service.name) with
// "resource." so they don't collide with record-level attributes.
func convertLogRecord(record *logspb.LogRecord, service string, resourceAttrs map[string]interface{}, sourceIP string) kartexmodel.LogRecord {
	ts := time.Now().UTC()
	switch {
	case record.TimeUnixNano > 0:
		ts = nanosToTime(record.TimeUnixNano)
	case record.ObservedTimeUnixNano > 0:
		ts = nanosToTime(record.ObservedTimeUnixNano)
	}

	metadata := keyValuesToMap(record.Attributes)
	for k, v := range resourceAttrs {
		if k != "service.name" {
			metadata["resource."+k] = v
		}
	}

	return kartexmodel.LogRecord{
		Timestamp: ts,
		Level:     severityToLogLevel(record.SeverityNumber),
		Service:   service,
		Message:   bodyToMessage(record.Body),
		TraceID:   bytesToHex(record.TraceId),
		SpanID:    bytesToHex(record.SpanId),
		Metadata:  metadata,
		SourceIP:  sourceIP,
		CreatedAt: time.Now().UTC(),
	}
}

// convertResourceLogs flattens every ResourceLogs/ScopeLogs/LogRecord
// triple into a slice of LogRecord.
func convertResourceLogs(resourceLogs []*logspb.ResourceLogs, sourceIP string) []kartexmodel.LogRecord {
	var logs []kartexmodel.LogRecord

	for _, rl := range resourceLogs {
		var resourceAttrs map[string]interface{}
		if rl.Resource != nil {
			resourceAttrs = keyValuesToMap(rl.Resource.Attributes)
		} else {
			resourceAttrs = map[string]interface{}{}
		}
		service := extractServiceName(resourceAttrs)

		for _, sl := range rl.ScopeLogs {
			for _, record := range sl.LogRecords {
				logs = append(logs, convertLogRecord(record, service, resourceAttrs, sourceIP))
			}
		}
	}

	return logs
}
