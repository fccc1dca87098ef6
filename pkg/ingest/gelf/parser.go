// Package gelf decodes the Graylog Extended Log Format over UDP: raw,
// gzip- or zlib-compressed JSON datagrams up to 8192 bytes. Chunked GELF
// (datagrams split across multiple packets with the 0x1e 0x0f magic
// prefix) is not supported.
package gelf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

// MaxMessageSize is the largest single (unchunked) GELF/UDP datagram.
const MaxMessageSize = 8192

// gelfMagic is the two-byte prefix marking a chunked GELF message.
var gelfMagic = [2]byte{0x1e, 0x0f}

var (
	// ErrChunkedUnsupported is returned for a datagram carrying the
	// chunked-GELF magic prefix.
	ErrChunkedUnsupported = errors.New("gelf: chunked messages are not supported")
	// ErrUnsupportedVersion is returned for any version other than 1.0/1.1.
	ErrUnsupportedVersion = errors.New("gelf: unsupported version")
)

// message is the wire shape of a GELF payload; everything not named here
// and starting with "_" becomes metadata.
type message struct {
	Version      string                 `json:"version"`
	Host         string                 `json:"host"`
	ShortMessage string                 `json:"short_message"`
	FullMessage  string                 `json:"full_message,omitempty"`
	Timestamp    *float64               `json:"timestamp,omitempty"`
	Level        *int                   `json:"level,omitempty"`
	Facility     string                 `json:"facility,omitempty"`
	Line         *int                   `json:"line,omitempty"`
	File         string                 `json:"file,omitempty"`
	Extra        map[string]interface{} `json:"-"`
}

func isChunked(data []byte) bool {
	return len(data) >= 2 && data[0] == gelfMagic[0] && data[1] == gelfMagic[1]
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func isZlib(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	return data[0] == 0x78 && (data[1] == 0x01 || data[1] == 0x5e || data[1] == 0x9c || data[1] == 0xda)
}

func decompressGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func decompressZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// syslogLevelToLog maps the syslog severity GELF embeds to our Level
// vocabulary: 0-2 fatal, 3 error, 4 warn, 5-6 info, 7 debug.
func syslogLevelToLog(level int) kartexmodel.Level {
	switch level {
	case 0, 1, 2:
		return kartexmodel.LevelFatal
	case 3:
		return kartexmodel.LevelError
	case 4:
		return kartexmodel.LevelWarn
	case 5, 6:
		return kartexmodel.LevelInfo
	case 7:
		return kartexmodel.LevelDebug
	default:
		return kartexmodel.LevelInfo
	}
}

// ParseMessage decodes a single GELF datagram into a LogRecord.
func ParseMessage(data []byte, sourceIP string) (kartexmodel.LogRecord, error) {
	if isChunked(data) {
		return kartexmodel.LogRecord{}, ErrChunkedUnsupported
	}

	payload := data
	var err error
	switch {
	case isGzip(data):
		payload, err = decompressGzip(data)
	case isZlib(data):
		payload, err = decompressZlib(data)
	}
	if err != nil {
		return kartexmodel.LogRecord{}, fmt.Errorf("gelf: decompress: %w", err)
	}

	var m message
	if err := json.Unmarshal(payload, &m); err != nil {
		return kartexmodel.LogRecord{}, fmt.Errorf("gelf: parse JSON: %w", err)
	}
	if m.Version != "1.1" && m.Version != "1.0" {
		return kartexmodel.LogRecord{}, fmt.Errorf("%w: %s", ErrUnsupportedVersion, m.Version)
	}

	var all map[string]interface{}
	if err := json.Unmarshal(payload, &all); err != nil {
		return kartexmodel.LogRecord{}, err
	}

	level := kartexmodel.LevelInfo
	if m.Level != nil {
		level = syslogLevelToLog(*m.Level)
	}

	service := m.Facility
	if service == "" {
		service = m.Host
	}

	ts := time.Now().UTC()
	if m.Timestamp != nil {
		secs := int64(*m.Timestamp)
		nanos := int64((*m.Timestamp - float64(secs)) * 1e9)
		ts = time.Unix(secs, nanos).UTC()
	}

	metadata := make(map[string]interface{})
	for k, v := range all {
		if len(k) > 0 && k[0] == '_' {
			metadata[k[1:]] = v
		}
	}
	if m.FullMessage != "" {
		metadata["full_message"] = m.FullMessage
	}
	if m.File != "" {
		metadata["file"] = m.File
	}
	if m.Line != nil {
		metadata["line"] = *m.Line
	}
	if m.Facility != "" {
		metadata["facility"] = m.Facility
	}
	metadata["gelf_host"] = m.Host
	metadata["gelf_version"] = m.Version

	return kartexmodel.LogRecord{
		Timestamp: ts,
		Level:     level,
		Service:   service,
		Message:   m.ShortMessage,
		Metadata:  metadata,
		SourceIP:  sourceIP,
		CreatedAt: time.Now().UTC(),
	}, nil
}
