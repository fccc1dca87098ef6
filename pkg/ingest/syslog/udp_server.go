package syslog

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
// source can push per-message warn/error lines into the process log,
// shared by both the UDP and TCP listeners.
const (
	packetLogPerSecond = 5
	packetLogBurst     = 10
)

// UDPServer listens for RFC 3164/5424 syslog datagrams.
type UDPServer struct {
	conn           *net.UDPConn
	batcher        *batch.Batcher[kartexmodel.LogRecord]
	tracker        *metrics.Tracker
	broadcaster    *broadcast.Broadcaster
	logger         log.Logger
	packetLogger   log.Logger
	maxMessageSize int
}

// ListenUDP binds addr and constructs a UDPServer.
func ListenUDP(addr string, maxMessageSize int, batcher *batch.Batcher[kartexmodel.LogRecord], tracker *metrics.Tracker, broadcaster *broadcast.Broadcaster, logger log.Logger) (*UDPServer, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("msg", "syslog UDP server listening", "addr", addr)
	packetLogger := kartexlog.NewRateLimited(logger, packetLogPerSecond, packetLogBurst)
	return &UDPServer{conn: conn, batcher: batcher, tracker: tracker, broadcaster: broadcaster, logger: logger, packetLogger: packetLogger, maxMessageSize: maxMessageSize}, nil
}

// Run reads datagrams until ctx is cancelled, handling each on its own
// goroutine.
func (s *UDPServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, s.maxMessageSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			level.Error(s.logger).Log("msg", "error receiving syslog UDP packet", "err", err)
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])
		sourceIP := addr.IP.String()
		go s.handlePacket(packet, sourceIP)
	}
}

func (s *UDPServer) handlePacket(packet []byte, sourceIP string) {
	record, err := ParseRecord(packet, sourceIP)
	if err != nil {
		level.Warn(s.packetLogger).Log("msg", "failed to parse syslog message", "source_ip", sourceIP, "err", err)
		return
	}

	s.tracker.Record(record.Level)
	s.broadcaster.Publish(broadcast.LogMessage(record))
	if err := s.batcher.TryAdd(record); err != nil {
		level.Error(s.packetLogger).Log("msg", "dropping log, batch queue full", "source_ip", sourceIP, "err", err)
	}
}

// Close releases the underlying socket.
func (s *UDPServer) Close() error {
	return s.conn.Close()
}
