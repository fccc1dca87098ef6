package appudp

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

// ErrEmptyPayload is returned for a zero-length payload.
var ErrEmptyPayload = errors.New("appudp: empty payload")

// isSerilogFormat reports whether payload looks like Serilog CLEF, using
// the same cheap substring check as the original parser rather than a
// full parse.
func isSerilogFormat(payload []byte) bool {
	return bytes.Contains(payload, []byte(`"@t"`))
}

// ParseLogPayload decodes payload as CLEF when it contains a "@t" field,
// otherwise as the plain incoming-log JSON shape.
func ParseLogPayload(payload []byte, sourceIP string) (kartexmodel.LogRecord, error) {
	if len(payload) == 0 {
		return kartexmodel.LogRecord{}, ErrEmptyPayload
	}
	if isSerilogFormat(payload) {
		return parseSerilogPayload(payload, sourceIP)
	}
	return parseStandardPayload(payload, sourceIP)
}

type incomingLog struct {
	Timestamp       *time.Time             `json:"timestamp"`
	Level           string                 `json:"level"`
	Service         string                 `json:"service"`
	Message         string                 `json:"message"`
	MessageTemplate string                 `json:"message_template"`
	Exception       string                 `json:"exception"`
	Metadata        map[string]interface{} `json:"metadata"`
}

func parseStandardPayload(payload []byte, sourceIP string) (kartexmodel.LogRecord, error) {
	var in incomingLog
	if err := json.Unmarshal(payload, &in); err != nil {
		return kartexmodel.LogRecord{}, err
	}
	level, err := kartexmodel.ParseLevel(in.Level)
	if err != nil {
		return kartexmodel.LogRecord{}, err
	}

	ts := time.Now().UTC()
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}

	return kartexmodel.LogRecord{
		Timestamp:       ts,
		Level:           level,
		Service:         in.Service,
		Message:         in.Message,
		MessageTemplate: in.MessageTemplate,
		Exception:       in.Exception,
		Metadata:        in.Metadata,
		SourceIP:        sourceIP,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// serilogLog is the Serilog Compact Log Event Format (CLEF) shape:
// https://clef-json.org/
type serilogLog struct {
	Timestamp       time.Time `json:"@t"`
	Message         string    `json:"@m"`
	MessageTemplate string    `json:"@mt"`
	Level           string    `json:"@l"`
	Exception       string    `json:"@x"`
	EventID         string    `json:"@i"`
	TraceID         string    `json:"@tr"`
	SpanID          string    `json:"@sp"`
	SourceContext   string    `json:"SourceContext"`
	Application     string    `json:"Application"`
}

func parseSerilogPayload(payload []byte, sourceIP string) (kartexmodel.LogRecord, error) {
	var s serilogLog
	if err := json.Unmarshal(payload, &s); err != nil {
		return kartexmodel.LogRecord{}, err
	}

	level := kartexmodel.LevelInfo
	if s.Level != "" {
		if lvl, err := kartexmodel.ParseLevel(s.Level); err == nil {
			level = lvl
		}
	}

	service := s.SourceContext
	if service == "" {
		service = s.Application
	}
	if service == "" {
		service = "unknown"
	}

	message := s.Message
	if message == "" {
		message = s.MessageTemplate
	}

	// @tr/@sp come from the wire unvalidated; a malformed value is
	// dropped rather than stored, matching the hex-before-acceptance
	// contract every other ingestion path enforces.
	traceID := s.TraceID
	if !kartexmodel.ValidTraceID(traceID) {
		traceID = ""
	}
	spanID := s.SpanID
	if !kartexmodel.ValidSpanID(spanID) {
		spanID = ""
	}

	var all map[string]interface{}
	if err := json.Unmarshal(payload, &all); err != nil {
		return kartexmodel.LogRecord{}, err
	}
	metadata := make(map[string]interface{})
	for k, v := range all {
		if len(k) > 0 && k[0] == '@' {
			continue
		}
		if k == "SourceContext" || k == "Application" {
			continue
		}
		metadata[k] = v
	}

	return kartexmodel.LogRecord{
		Timestamp:       s.Timestamp,
		Level:           level,
		Service:         service,
		Message:         message,
		MessageTemplate: s.MessageTemplate,
		Exception:       s.Exception,
		EventID:         s.EventID,
		TraceID:         traceID,
		SpanID:          spanID,
		Metadata:        metadata,
		SourceIP:        sourceIP,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
