package otlp

import (
	"io"
	"net"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	collectorlogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"github.com/kartexhq/kartex/pkg/batch"
	"github.com/kartexhq/kartex/pkg/broadcast"
	"github.com/kartexhq/kartex/pkg/kartexmodel"
	"github.com/kartexhq/kartex/pkg/metrics"
)

// HTTPHandler serves the OTLP HTTP/JSON export endpoints, sharing the
// conversion logic and destinations with the gRPC service.
type HTTPHandler struct {
	spanBatcher *batch.Batcher[kartexmodel.Span]
	logBatcher  *batch.Batcher[kartexmodel.LogRecord]
	tracker     *metrics.Tracker
	broadcaster *broadcast.Broadcaster
	logger      log.Logger
}

// NewHTTPHandler builds an HTTPHandler wired to the shared ingestion
// pipeline.
func NewHTTPHandler(spanBatcher *batch.Batcher[kartexmodel.Span], logBatcher *batch.Batcher[kartexmodel.LogRecord], tracker *metrics.Tracker, broadcaster *broadcast.Broadcaster, logger log.Logger) *HTTPHandler {
	return &HTTPHandler{spanBatcher: spanBatcher, logBatcher: logBatcher, tracker: tracker, broadcaster: broadcaster, logger: logger}
}

// Register mounts /v1/traces and /v1/logs on r.
func (h *HTTPHandler) Register(r *mux.Router) {
	r.HandleFunc("/v1/traces", h.handleTraces).Methods(http.MethodPost)
	r.HandleFunc("/v1/logs", h.handleLogs).Methods(http.MethodPost)
}

func sourceIPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *HTTPHandler) handleTraces(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read request body"}`, http.StatusBadRequest)
		return
	}

	var req collectortracepb.ExportTraceServiceRequest
	if err := protojson.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid OTLP trace export request"}`, http.StatusBadRequest)
		return
	}

	sourceIP := sourceIPFromRequest(r)
	spans := convertResourceSpans(req.ResourceSpans, sourceIP)
	for _, span := range spans {
		h.broadcaster.Publish(broadcast.SpanMessage(span))
		if err := h.spanBatcher.TryAdd(span); err != nil {
			level.Error(h.logger).Log("msg", "dropping span, batch queue full", "source_ip", sourceIP, "err", err)
		}
	}

	writeProtoJSON(w, &collectortracepb.ExportTraceServiceResponse{})
}

func (h *HTTPHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read request body"}`, http.StatusBadRequest)
		return
	}

	var req collectorlogspb.ExportLogsServiceRequest
	if err := protojson.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid OTLP logs export request"}`, http.StatusBadRequest)
		return
	}

	sourceIP := sourceIPFromRequest(r)
	logs := convertResourceLogs(req.ResourceLogs, sourceIP)
	for _, record := range logs {
		h.tracker.Record(record.Level)
		h.broadcaster.Publish(broadcast.LogMessage(record))
		if err := h.logBatcher.TryAdd(record); err != nil {
			level.Error(h.logger).Log("msg", "dropping log, batch queue full", "source_ip", sourceIP, "err", err)
		}
	}

	writeProtoJSON(w, &collectorlogspb.ExportLogsServiceResponse{})
}

func writeProtoJSON(w http.ResponseWriter, msg proto.Message) {
	b, err := protojson.Marshal(msg)
	if err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
