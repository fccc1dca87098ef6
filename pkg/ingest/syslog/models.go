// Package syslog decodes RFC 3164 (BSD) and RFC 5424 (modern) syslog
// messages carried over UDP or TCP, with RFC 5425 octet-counting and
// newline-delimited TCP framing.
package syslog

import (
	"fmt"
	"time"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

// Facility is a syslog facility code as defined in RFC 5424.
type Facility uint8

const (
	FacilityKern Facility = iota
	FacilityUser
	FacilityMail
	FacilityDaemon
	FacilityAuth
	FacilitySyslog
	FacilityLpr
	FacilityNews
	FacilityUucp
	FacilityCron
	FacilityAuthpriv
	FacilityFtp
	FacilityNtp
	FacilityAudit
	FacilityAlert
	FacilityClock
	FacilityLocal0
	FacilityLocal1
	FacilityLocal2
	FacilityLocal3
	FacilityLocal4
	FacilityLocal5
	FacilityLocal6
	FacilityLocal7
)

var facilityNames = map[Facility]string{
	FacilityKern: "kern", FacilityUser: "user", FacilityMail: "mail",
	FacilityDaemon: "daemon", FacilityAuth: "auth", FacilitySyslog: "syslog",
	FacilityLpr: "lpr", FacilityNews: "news", FacilityUucp: "uucp",
	FacilityCron: "cron", FacilityAuthpriv: "authpriv", FacilityFtp: "ftp",
	FacilityNtp: "ntp", FacilityAudit: "audit", FacilityAlert: "alert",
	FacilityClock: "clock", FacilityLocal0: "local0", FacilityLocal1: "local1",
	FacilityLocal2: "local2", FacilityLocal3: "local3", FacilityLocal4: "local4",
	FacilityLocal5: "local5", FacilityLocal6: "local6", FacilityLocal7: "local7",
}

// FacilityFromCode maps the 5-bit PRI facility code to a Facility, or
// false if the code is out of range.
func FacilityFromCode(code uint8) (Facility, bool) {
	if code > uint8(FacilityLocal7) {
		return 0, false
	}
	return Facility(code), true
}

func (f Facility) String() string {
	if name, ok := facilityNames[f]; ok {
		return name
	}
	return fmt.Sprintf("facility(%d)", uint8(f))
}

// Severity is a syslog severity code as defined in RFC 5424.
type Severity uint8

const (
	SeverityEmergency Severity = iota
	SeverityAlert
	SeverityCritical
	SeverityError
	SeverityWarning
	SeverityNotice
	SeverityInfo
	SeverityDebug
)

var severityNames = map[Severity]string{
	SeverityEmergency: "emergency", SeverityAlert: "alert", SeverityCritical: "critical",
	SeverityError: "error", SeverityWarning: "warning", SeverityNotice: "notice",
	SeverityInfo: "info", SeverityDebug: "debug",
}

// SeverityFromCode maps the 3-bit PRI severity code to a Severity, or
// false if the code is out of range.
func SeverityFromCode(code uint8) (Severity, bool) {
	if code > uint8(SeverityDebug) {
		return 0, false
	}
	return Severity(code), true
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

// ToLogLevel maps syslog severity to our internal Level vocabulary.
func (s Severity) ToLogLevel() kartexmodel.Level {
	switch s {
	case SeverityEmergency, SeverityAlert:
		return kartexmodel.LevelFatal
	case SeverityCritical, SeverityError:
		return kartexmodel.LevelError
	case SeverityWarning:
		return kartexmodel.LevelWarn
	case SeverityNotice, SeverityInfo:
		return kartexmodel.LevelInfo
	case SeverityDebug:
		return kartexmodel.LevelDebug
	default:
		return kartexmodel.LevelInfo
	}
}

// RfcVersion records which syslog dialect a message was parsed as.
type RfcVersion int

const (
	RFC3164 RfcVersion = iota
	RFC5424
)

func (v RfcVersion) String() string {
	if v == RFC5424 {
		return "RFC5424"
	}
	return "RFC3164"
}

// StructuredDataElement is one RFC 5424 structured-data block:
// [SD-ID param="value" ...].
type StructuredDataElement struct {
	ID     string
	Params map[string]string
}

// Message is a fully parsed syslog message, independent of framing.
type Message struct {
	RfcVersion     RfcVersion
	Facility       Facility
	Severity       Severity
	Timestamp      *time.Time
	Hostname       string
	AppName        string
	ProcID         string
	MsgID          string
	StructuredData []StructuredDataElement
	Message        string
}

// ToLogRecord converts a parsed Message into the canonical LogRecord,
// carrying every syslog-specific field into metadata under an
// sd_<ID> key per structured-data element.
func (m Message) ToLogRecord(sourceIP string) kartexmodel.LogRecord {
	ts := time.Now().UTC()
	if m.Timestamp != nil {
		ts = *m.Timestamp
	}

	service := m.AppName
	if service == "" {
		service = m.Hostname
	}
	if service == "" {
		service = m.Facility.String()
	}

	metadata := map[string]interface{}{
		"syslog_facility":      m.Facility.String(),
		"syslog_facility_code": uint8(m.Facility),
		"syslog_severity":      m.Severity.String(),
		"syslog_severity_code": uint8(m.Severity),
		"syslog_rfc_version":   m.RfcVersion.String(),
	}
	if m.Hostname != "" {
		metadata["syslog_hostname"] = m.Hostname
	}
	if m.AppName != "" {
		metadata["syslog_app_name"] = m.AppName
	}
	if m.ProcID != "" {
		metadata["syslog_proc_id"] = m.ProcID
	}
	if m.MsgID != "" {
		metadata["syslog_msg_id"] = m.MsgID
	}
	for _, sd := range m.StructuredData {
		params := make(map[string]interface{}, len(sd.Params))
		for k, v := range sd.Params {
			params[k] = v
		}
		metadata["sd_"+sd.ID] = params
	}

	return kartexmodel.LogRecord{
		Timestamp: ts,
		Level:     m.Severity.ToLogLevel(),
		Service:   service,
		Message:   m.Message,
		Metadata:  metadata,
		SourceIP:  sourceIP,
		CreatedAt: time.Now().UTC(),
	}
}
