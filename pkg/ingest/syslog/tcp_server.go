package syslog

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/kartexhq/kartex/pkg/batch"
	"github.com/kartexhq/kartex/pkg/broadcast"
	"github.com/kartexhq/kartex/pkg/kartexlog"
	"github.com/kartexhq/kartex/pkg/kartexmodel"
	"github.com/kartexhq/kartex/pkg/metrics"
)

// TCPServer accepts syslog connections framed either by RFC 5425
// octet-counting or by newlines, auto-detected per connection from the
// first byte received.
type TCPServer struct {
	listener       net.Listener
	batcher        *batch.Batcher[kartexmodel.LogRecord]
	tracker        *metrics.Tracker
	broadcaster    *broadcast.Broadcaster
	logger         log.Logger
	packetLogger   log.Logger
	maxMessageSize int
}

// ListenTCP binds addr and constructs a TCPServer.
func ListenTCP(addr string, maxMessageSize int, batcher *batch.Batcher[kartexmodel.LogRecord], tracker *metrics.Tracker, broadcaster *broadcast.Broadcaster, logger log.Logger) (*TCPServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("msg", "syslog TCP server listening", "addr", addr)
	packetLogger := kartexlog.NewRateLimited(logger, packetLogPerSecond, packetLogBurst)
	return &TCPServer{listener: ln, batcher: batcher, tracker: tracker, broadcaster: broadcaster, logger: logger, packetLogger: packetLogger, maxMessageSize: maxMessageSize}, nil
}

// Run accepts connections until ctx is cancelled, handling each on its
// own goroutine.
func (s *TCPServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			level.Error(s.logger).Log("msg", "error accepting syslog TCP connection", "err", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	sourceIP := ""
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		sourceIP = tcpAddr.IP.String()
	}

	reader := bufio.NewReaderSize(conn, s.maxMessageSize)
	first, err := reader.ReadByte()
	if err != nil {
		return
	}

	if first >= '0' && first <= '9' {
		s.handleOctetCounted(reader, first, sourceIP)
	} else {
		s.handleNewlineFramed(reader, first, sourceIP)
	}
}

func (s *TCPServer) handleOctetCounted(reader *bufio.Reader, first byte, sourceIP string) {
	buffer := []byte{first}
	chunk := make([]byte, 4096)

	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			buffer = append(buffer, chunk[:n]...)
		}
		for len(buffer) > 0 {
			end, msg, perr := ParseOctetCounted(buffer)
			if perr != nil {
				break
			}
			s.processMessage(msg, sourceIP)
			buffer = buffer[end:]
		}
		if err != nil {
			return
		}
	}
}

func (s *TCPServer) handleNewlineFramed(reader *bufio.Reader, first byte, sourceIP string) {
	firstLine, _ := reader.ReadString('\n')
	line := string(first) + firstLine
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		s.processMessage([]byte(trimmed), sourceIP)
	}

	for {
		line, err := reader.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			s.processMessage([]byte(trimmed), sourceIP)
		}
		if err != nil {
			if err != io.EOF {
				level.Error(s.logger).Log("msg", "error reading syslog TCP stream", "err", err)
			}
			return
		}
	}
}

func (s *TCPServer) processMessage(data []byte, sourceIP string) {
	record, err := ParseRecord(data, sourceIP)
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

// Close releases the underlying listener.
func (s *TCPServer) Close() error {
	return s.listener.Close()
}
