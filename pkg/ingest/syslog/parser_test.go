package syslog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

func TestParseRFC3164Basic(t *testing.T) {
	msg, err := Parse("<134>Jan 28 10:30:00 testhost myapp: Test message")
	require.NoError(t, err)

	assert.Equal(t, RFC3164, msg.RfcVersion)
	assert.Equal(t, FacilityLocal0, msg.Facility)
	assert.Equal(t, SeverityInfo, msg.Severity)
	assert.Equal(t, "testhost", msg.Hostname)
	assert.Equal(t, "myapp", msg.AppName)
	assert.Equal(t, "Test message", msg.Message)
}

func TestParseRFC3164WithPid(t *testing.T) {
	msg, err := Parse("<134>Jan 28 10:30:00 testhost myapp[1234]: Test message")
	require.NoError(t, err)

	assert.Equal(t, "myapp", msg.AppName)
	assert.Equal(t, "1234", msg.ProcID)
	assert.Equal(t, "Test message", msg.Message)
}

func TestParseRFC5424Basic(t *testing.T) {
	msg, err := Parse("<134>1 2024-01-28T10:30:00Z testhost myapp 1234 - - Test message")
	require.NoError(t, err)

	assert.Equal(t, RFC5424, msg.RfcVersion)
	assert.Equal(t, FacilityLocal0, msg.Facility)
	assert.Equal(t, SeverityInfo, msg.Severity)
	assert.Equal(t, "testhost", msg.Hostname)
	assert.Equal(t, "myapp", msg.AppName)
	assert.Equal(t, "1234", msg.ProcID)
	assert.Equal(t, "Test message", msg.Message)
}

func TestParseRFC5424WithStructuredData(t *testing.T) {
	msg, err := Parse(`<134>1 2024-01-28T10:30:00Z host app - - [exampleSDID@32473 iut="3" eventSource="Application"] Test`)
	require.NoError(t, err)

	require.Len(t, msg.StructuredData, 1)
	assert.Equal(t, "exampleSDID@32473", msg.StructuredData[0].ID)
	assert.Equal(t, "3", msg.StructuredData[0].Params["iut"])
	assert.Equal(t, "Application", msg.StructuredData[0].Params["eventSource"])
	assert.Equal(t, "Test", msg.Message)
}

func TestParseRFC5424Nilvalues(t *testing.T) {
	msg, err := Parse("<134>1 - - - - - - Test message")
	require.NoError(t, err)

	assert.Equal(t, "", msg.Hostname)
	assert.Equal(t, "", msg.AppName)
	assert.Equal(t, "", msg.ProcID)
	assert.Equal(t, "", msg.MsgID)
	assert.Equal(t, "Test message", msg.Message)
}

func TestFacilitySeverityDecode(t *testing.T) {
	// PRI 134 = facility 16 (local0), severity 6 (info): 134 = 16*8 + 6
	msg, err := Parse("<134>1 2024-01-28T10:30:00Z host app - - - Test")
	require.NoError(t, err)

	assert.Equal(t, FacilityLocal0, msg.Facility)
	assert.Equal(t, SeverityInfo, msg.Severity)
}

func TestSeverityMapping(t *testing.T) {
	assert.Equal(t, kartexmodel.LevelFatal, SeverityEmergency.ToLogLevel())
	assert.Equal(t, kartexmodel.LevelFatal, SeverityAlert.ToLogLevel())
	assert.Equal(t, kartexmodel.LevelError, SeverityCritical.ToLogLevel())
	assert.Equal(t, kartexmodel.LevelError, SeverityError.ToLogLevel())
	assert.Equal(t, kartexmodel.LevelWarn, SeverityWarning.ToLogLevel())
	assert.Equal(t, kartexmodel.LevelInfo, SeverityNotice.ToLogLevel())
	assert.Equal(t, kartexmodel.LevelInfo, SeverityInfo.ToLogLevel())
	assert.Equal(t, kartexmodel.LevelDebug, SeverityDebug.ToLogLevel())
}

func TestOctetCountedParsing(t *testing.T) {
	data := []byte("11 <134>1 test")
	end, msg, err := ParseOctetCounted(data)
	require.NoError(t, err)

	assert.Equal(t, 14, end)
	assert.Equal(t, []byte("<134>1 test"), msg)
}

func TestOctetCountedIncompleteFrame(t *testing.T) {
	data := []byte("20 <134>1 too short")
	_, _, err := ParseOctetCounted(data)
	assert.Error(t, err)
}

func TestParseRejectsMissingPRI(t *testing.T) {
	_, err := Parse("no pri here")
	assert.ErrorIs(t, err, ErrMissingPRI)
}

func TestParseRejectsMalformedPRI(t *testing.T) {
	_, err := Parse("<134no closing bracket")
	assert.ErrorIs(t, err, ErrMalformedPRI)
}

func TestToLogRecordIncludesStructuredData(t *testing.T) {
	msg, err := Parse(`<134>1 2024-01-28T10:30:00Z host app - - [exampleSDID@32473 iut="3"] Test`)
	require.NoError(t, err)

	record := msg.ToLogRecord("127.0.0.1")
	assert.Contains(t, record.Metadata, "sd_exampleSDID@32473")
	assert.Equal(t, "app", record.Service)
}
