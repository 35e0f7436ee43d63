package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorEmptySnapshot(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()

	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
	assert.Nil(t, snap.Predict)
	assert.Nil(t, snap.Flush)
	assert.Nil(t, snap.Job)
}

func TestCollectorRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpPredict, 10*time.Millisecond)
	c.RecordTiming(OpPredict, 30*time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.Predict)
	assert.Equal(t, int64(2), snap.Predict.Count)
	assert.Equal(t, int64(40), snap.Predict.TotalTimeMs)
	assert.Equal(t, 20.0, snap.Predict.AvgTimeMs)
	assert.Equal(t, int64(10), snap.Predict.MinTimeMs)
	assert.Equal(t, int64(30), snap.Predict.MaxTimeMs)

	assert.Nil(t, snap.Flush, "other operations stay untouched")
}

func TestCollectorConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTiming(OpFlush, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	require.NotNil(t, snap.Flush)
	assert.Equal(t, int64(1000), snap.Flush.Count)
}

func TestMetricsRegistersStats(t *testing.T) {
	m := New()
	require.NotNil(t, m.Stats)
	require.NotNil(t, m.Registry)
}
