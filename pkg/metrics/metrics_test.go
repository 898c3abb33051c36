package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersAccumulateConcurrently(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementStarted()
			m.IncrementCompleted()
		}()
	}
	wg.Wait()
	m.IncrementTimedOut()
	m.IncrementPersistenceFailure()

	snap := m.Snapshot()
	assert.Equal(t, int64(50), snap.InterviewsStarted)
	assert.Equal(t, int64(50), snap.InterviewsCompleted)
	assert.Equal(t, int64(1), snap.InterviewsTimedOut)
	assert.Equal(t, int64(1), snap.PersistenceFailures)
	assert.Zero(t, snap.InterviewsCancelled)
	assert.False(t, snap.LastUpdateTime.IsZero())
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementStarted()
		m.IncrementRejected()
		m.IncrementCommands()
	})
	assert.Equal(t, Snapshot{}, m.Snapshot())
}
