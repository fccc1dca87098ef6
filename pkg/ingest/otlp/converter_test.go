package otlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

func strAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}}}
}

func TestConvertResourceSpansBasic(t *testing.T) {
	resourceSpans := []*tracepb.ResourceSpans{
		{
			Resource: &resourcepb.Resource{Attributes: []*commonpb.KeyValue{strAttr("service.name", "checkout")}},
			ScopeSpans: []*tracepb.ScopeSpans{
				{
					Scope: &commonpb.InstrumentationScope{Name: "checkout-lib", Version: "1.2.0"},
					Spans: []*tracepb.Span{
						{
							TraceId:           []byte{0x01, 0x02, 0x03, 0x04},
							SpanId:            []byte{0x0a, 0x0b},
							Name:              "process-order",
							Kind:              tracepb.Span_SPAN_KIND_SERVER,
							StartTimeUnixNano: 1_700_000_000_000_000_000,
							EndTimeUnixNano:   1_700_000_000_500_000_000,
							Status:            &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK},
						},
					},
				},
			},
		},
	}

	spans := convertResourceSpans(resourceSpans, "127.0.0.1")
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "01020304", span.TraceID)
	assert.Equal(t, "0a0b", span.SpanID)
	assert.Equal(t, "checkout", span.Service)
	assert.Equal(t, "process-order", span.Name)
	assert.Equal(t, kartexmodel.SpanKindServer, span.Kind)
	assert.Equal(t, kartexmodel.StatusOK, span.Status.Code)
	assert.Equal(t, "checkout-lib", span.ScopeName)
	assert.Equal(t, "1.2.0", span.ScopeVersion)
	assert.InDelta(t, 500.0, span.DurationMs, 0.001)
}

func TestConvertSpanParentAndLinks(t *testing.T) {
	otlpSpan := &tracepb.Span{
		TraceId:      []byte{0xaa},
		SpanId:       []byte{0xbb},
		ParentSpanId: []byte{0xcc},
		Links: []*tracepb.Span_Link{
			{TraceId: []byte{0xdd}, SpanId: []byte{0xee}},
		},
		Events: []*tracepb.Span_Event{
			{Name: "retry", TimeUnixNano: 1_700_000_000_000_000_000},
		},
	}

	span := convertSpan(otlpSpan, "svc", map[string]interface{}{}, "", "", "127.0.0.1")
	assert.Equal(t, "cc", span.ParentSpanID)
	require.Len(t, span.Links, 1)
	assert.Equal(t, "dd", span.Links[0].TraceID)
	require.Len(t, span.Events, 1)
	assert.Equal(t, "retry", span.Events[0].Name)
}

func TestConvertResourceLogsBasic(t *testing.T) {
	resourceLogs := []*logspb.ResourceLogs{
		{
			Resource: &resourcepb.Resource{Attributes: []*commonpb.KeyValue{strAttr("service.name", "billing"), strAttr("region", "us-east")}},
			ScopeLogs: []*logspb.ScopeLogs{
				{
					LogRecords: []*logspb.LogRecord{
						{
							TimeUnixNano:   1_700_000_000_000_000_000,
							SeverityNumber: logspb.SeverityNumber_SEVERITY_NUMBER_ERROR,
							Body:           &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "payment declined"}},
							TraceId:        []byte{0x01},
							SpanId:         []byte{0x02},
						},
					},
				},
			},
		},
	}

	logs := convertResourceLogs(resourceLogs, "10.0.0.5")
	require.Len(t, logs, 1)

	record := logs[0]
	assert.Equal(t, "billing", record.Service)
	assert.Equal(t, kartexmodel.LevelError, record.Level)
	assert.Equal(t, "payment declined", record.Message)
	assert.Equal(t, "01", record.TraceID)
	assert.Equal(t, "02", record.SpanID)
	assert.Equal(t, "us-east", record.Metadata["resource.region"])
	assert.NotContains(t, record.Metadata, "resource.service.name")
}

func TestSeverityToLogLevelRanges(t *testing.T) {
	assert.Equal(t, kartexmodel.LevelTrace, severityToLogLevel(logspb.SeverityNumber_SEVERITY_NUMBER_TRACE2))
	assert.Equal(t, kartexmodel.LevelDebug, severityToLogLevel(logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG4))
	assert.Equal(t, kartexmodel.LevelWarn, severityToLogLevel(logspb.SeverityNumber_SEVERITY_NUMBER_WARN))
	assert.Equal(t, kartexmodel.LevelFatal, severityToLogLevel(logspb.SeverityNumber_SEVERITY_NUMBER_FATAL3))
	assert.Equal(t, kartexmodel.LevelInfo, severityToLogLevel(logspb.SeverityNumber_SEVERITY_NUMBER_UNSPECIFIED))
}

func TestExtractServiceNameDefaultsToUnknown(t *testing.T) {
	assert.Equal(t, "unknown", extractServiceName(map[string]interface{}{}))
	assert.Equal(t, "checkout", extractServiceName(map[string]interface{}{"service.name": "checkout"}))
}

func TestAnyValueToJSONArrayAndKvlist(t *testing.T) {
	arr := &commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{
		Values: []*commonpb.AnyValue{
			{Value: &commonpb.AnyValue_IntValue{IntValue: 1}},
			{Value: &commonpb.AnyValue_IntValue{IntValue: 2}},
		},
	}}}
	assert.Equal(t, []interface{}{int64(1), int64(2)}, anyValueToJSON(arr))

	kv := &commonpb.AnyValue{Value: &commonpb.AnyValue_KvlistValue{KvlistValue: &commonpb.KeyValueList{
		Values: []*commonpb.KeyValue{strAttr("k", "v")},
	}}}
	assert.Equal(t, map[string]interface{}{"k": "v"}, anyValueToJSON(kv))
}
