package otlp

import (
	"context"
	"net"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"

	collectorlogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"github.com/kartexhq/kartex/pkg/batch"
	"github.com/kartexhq/kartex/pkg/broadcast"
	"github.com/kartexhq/kartex/pkg/kartexmodel"
	"github.com/kartexhq/kartex/pkg/metrics"
)

// GRPCService implements the OTLP TraceService and LogsService
// collector RPCs, converting each export into the canonical record
// model and handing the results to the shared batchers.
type GRPCService struct {
	collectortracepb.UnimplementedTraceServiceServer
	collectorlogspb.UnimplementedLogsServiceServer

	spanBatcher *batch.Batcher[kartexmodel.Span]
	logBatcher  *batch.Batcher[kartexmodel.LogRecord]
	tracker     *metrics.Tracker
	broadcaster *broadcast.Broadcaster
	logger      log.Logger
}

// NewGRPCService builds a GRPCService wired to the shared ingestion
// pipeline.
func NewGRPCService(spanBatcher *batch.Batcher[kartexmodel.Span], logBatcher *batch.Batcher[kartexmodel.LogRecord], tracker *metrics.Tracker, broadcaster *broadcast.Broadcaster, logger log.Logger) *GRPCService {
	return &GRPCService{spanBatcher: spanBatcher, logBatcher: logBatcher, tracker: tracker, broadcaster: broadcaster, logger: logger}
}

func peerIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if tcpAddr, ok := p.Addr.(*net.TCPAddr); ok {
			return tcpAddr.IP.String()
		}
		return p.Addr.String()
	}
	return "unknown"
}

// Export implements collectortracepb.TraceServiceServer. Spans never
// count toward the log-rate metrics; only the broadcaster and batcher
// see them.
func (s *GRPCService) Export(ctx context.Context, req *collectortracepb.ExportTraceServiceRequest) (*collectortracepb.ExportTraceServiceResponse, error) {
	sourceIP := peerIP(ctx)
	spans := convertResourceSpans(req.ResourceSpans, sourceIP)

	for _, span := range spans {
		s.broadcaster.Publish(broadcast.SpanMessage(span))
		if err := s.spanBatcher.TryAdd(span); err != nil {
			level.Error(s.logger).Log("msg", "dropping span, batch queue full", "source_ip", sourceIP, "err", err)
		}
	}

	return &collectortracepb.ExportTraceServiceResponse{}, nil
}

// ExportLogs handles collectorlogspb.LogsServiceServer's Export RPC. Both
// collector services name their method Export, so the logs service is
// registered through logsServiceAdapter, whose Export forwards here.
func (s *GRPCService) ExportLogs(ctx context.Context, req *collectorlogspb.ExportLogsServiceRequest) (*collectorlogspb.ExportLogsServiceResponse, error) {
	sourceIP := peerIP(ctx)
	logs := convertResourceLogs(req.ResourceLogs, sourceIP)

	for _, record := range logs {
		s.tracker.Record(record.Level)
		s.broadcaster.Publish(broadcast.LogMessage(record))
		if err := s.logBatcher.TryAdd(record); err != nil {
			level.Error(s.logger).Log("msg", "dropping log, batch queue full", "source_ip", sourceIP, "err", err)
		}
	}

	return &collectorlogspb.ExportLogsServiceResponse{}, nil
}

// RegisterGRPCServer registers both OTLP collector services against srv.
func RegisterGRPCServer(srv *grpc.Server, svc *GRPCService) {
	collectortracepb.RegisterTraceServiceServer(srv, svc)
	collectorlogspb.RegisterLogsServiceServer(srv, logsServiceAdapter{svc})
}

// logsServiceAdapter satisfies collectorlogspb.LogsServiceServer's
// Export method name by forwarding to GRPCService.ExportLogs, since Go
// can't have one struct define Export twice.
type logsServiceAdapter struct {
	*GRPCService
}

func (a logsServiceAdapter) Export(ctx context.Context, req *collectorlogspb.ExportLogsServiceRequest) (*collectorlogspb.ExportLogsServiceResponse, error) {
	return a.GRPCService.ExportLogs(ctx, req)
}
