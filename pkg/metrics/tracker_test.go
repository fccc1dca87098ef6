package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
)

func TestTrackerSnapshotErrorRate(t *testing.T) {
	tr := New(nil)
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }

	for i := 0; i < 8; i++ {
		tr.Record(kartexmodel.LevelInfo)
	}
	for i := 0; i < 2; i++ {
		tr.Record(kartexmodel.LevelError)
	}

	snap := tr.Snapshot()
	require.Equal(t, uint64(10), snap.LogsLastMinute)
	require.Equal(t, uint64(2), snap.ErrorsLastMinute)
	assert.InDelta(t, 0.2, snap.ErrorRate, 0.0001)
	assert.InDelta(t, 10.0/60.0, snap.LogsPerSecond, 0.0001)
}

func TestTrackerSnapshotEmptyIsZeroRate(t *testing.T) {
	tr := New(nil)
	snap := tr.Snapshot()
	assert.Equal(t, 0.0, snap.ErrorRate)
	assert.Equal(t, uint64(0), snap.LogsLastMinute)
}

func TestTrackerEvictsOldBuckets(t *testing.T) {
	tr := New(nil)
	cur := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return cur }

	tr.Record(kartexmodel.LevelInfo)

	cur = cur.Add(90 * time.Second)
	tr.Record(kartexmodel.LevelInfo)

	snap := tr.Snapshot()
	assert.Equal(t, uint64(1), snap.LogsLastMinute)
}

func TestTrackerFatalCountsAsError(t *testing.T) {
	tr := New(nil)
	tr.Record(kartexmodel.LevelFatal)
	snap := tr.Snapshot()
	assert.Equal(t, uint64(1), snap.ErrorsLastMinute)
	assert.Equal(t, uint64(1), snap.ByLevel.Fatal)
}
