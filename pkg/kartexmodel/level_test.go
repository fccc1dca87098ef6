package kartexmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tt := []struct {
		in   string
		want Level
	}{
		{"TRACE", LevelTrace},
		{"verbose", LevelTrace},
		{"Information", LevelInfo},
		{"warning", LevelWarn},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"FATAL", LevelFatal},
	}
	for _, tc := range tt {
		got, err := ParseLevel(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseLevelUnknown(t *testing.T) {
	_, err := ParseLevel("bogus")
	assert.Error(t, err)
}

func TestLevelIsErrorOrWorse(t *testing.T) {
	assert.True(t, LevelError.IsErrorOrWorse())
	assert.True(t, LevelFatal.IsErrorOrWorse())
	assert.False(t, LevelWarn.IsErrorOrWorse())
}

func TestLevelJSONRoundTrip(t *testing.T) {
	b, err := LevelWarn.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"WARN"`, string(b))

	var l Level
	require.NoError(t, l.UnmarshalJSON(b))
	assert.Equal(t, LevelWarn, l)
}
