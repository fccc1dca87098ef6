package gelf

import (
	"context"
	"net"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/kartexhq/kartex/pkg/batch"
	"github.com/kartexhq/kartex/pkg/broadcast"
	"github.com/kartexhq/kartex/pkg/kartexlog"
	"github.com/kartexhq/kartex/pkg/kartexmodel"
	"github.com/kartexhq/kartex/pkg/metrics"
)

// packetLogPerSecond/packetLogBurst bound how often a single misbehaving
// source can push per-packet warn/error lines into the process log.
const (
	packetLogPerSecond = 5
	packetLogBurst     = 10
)

// Server listens for GELF/UDP datagrams.
type Server struct {
	conn         *net.UDPConn
	batcher      *batch.Batcher[kartexmodel.LogRecord]
	tracker      *metrics.Tracker
	broadcaster  *broadcast.Broadcaster
	logger       log.Logger
	packetLogger log.Logger
}

// Listen binds addr (e.g. ":12201") and constructs a Server.
func Listen(addr string, batcher *batch.Batcher[kartexmodel.LogRecord], tracker *metrics.Tracker, broadcaster *broadcast.Broadcaster, logger log.Logger) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("msg", "GELF UDP server listening", "addr", addr)
	packetLogger := kartexlog.NewRateLimited(logger, packetLogPerSecond, packetLogBurst)
	return &Server{conn: conn, batcher: batcher, tracker: tracker, broadcaster: broadcaster, logger: logger, packetLogger: packetLogger}, nil
}

// Run reads datagrams until ctx is cancelled, handling each on its own
// goroutine.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, MaxMessageSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			level.Error(s.logger).Log("msg", "error receiving GELF UDP packet", "err", err)
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])
		sourceIP := addr.IP.String()
		go s.handlePacket(packet, sourceIP)
	}
}

func (s *Server) handlePacket(packet []byte, sourceIP string) {
	record, err := ParseMessage(packet, sourceIP)
	if err != nil {
		level.Warn(s.packetLogger).Log("msg", "failed to parse GELF message", "source_ip", sourceIP, "err", err)
		return
	}

	s.tracker.Record(record.Level)
	s.broadcaster.Publish(broadcast.LogMessage(record))
	if err := s.batcher.TryAdd(record); err != nil {
		level.Error(s.packetLogger).Log("msg", "dropping log, batch queue full", "source_ip", sourceIP, "err", err)
	}
}

// Close releases the underlying socket.
func (s *Server) Close() error {
	return s.conn.Close()
}
