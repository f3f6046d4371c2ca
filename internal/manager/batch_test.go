package manager_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidechart/tidechart/internal/chart"
	"github.com/tidechart/tidechart/internal/testutil"
)

func TestStartBatchValidatesInput(t *testing.T) {
	m, _ := newTestManager(t, &testutil.FakeClient{}, 1)

	_, err := m.StartBatch([]string{"c1"}, []string{"u1", "u2"}, chart.PriorityNormal)
	assert.Error(t, err)

	_, err = m.StartBatchTasks(nil)
	assert.Error(t, err)
}

func TestBatchCompletesAndAggregates(t *testing.T) {
	client := &testutil.FakeClient{Content: []byte("batch member bytes"), SupportsRange: true}
	m, _ := newTestManager(t, client, 2)
	m.Recover()

	batchID, err := m.StartBatchTasks([]chart.DownloadTask{
		testTask("b1", chart.PriorityNormal),
		testTask("b2", chart.PriorityNormal),
	})
	require.NoError(t, err)
	require.NotEmpty(t, batchID)

	require.Eventually(t, func() bool {
		agg, ok := m.GetBatchProgress(batchID)
		return ok && agg.Status == chart.BatchCompleted
	}, pollTimeout, pollInterval)

	agg, ok := m.GetBatchProgress(batchID)
	require.True(t, ok)
	assert.Equal(t, 2, agg.TotalCharts)
	assert.Equal(t, 2, agg.CompletedCharts)
	assert.Equal(t, 0, agg.FailedCharts)
	assert.Equal(t, 1.0, agg.OverallProgress)

	// Members carry the batch id in their progress entries.
	p, ok := m.GetProgress("b1")
	require.True(t, ok)
	assert.Equal(t, batchID, p.BatchID)
}

func TestBatchCountsFailures(t *testing.T) {
	client := &testutil.FakeClient{
		Content:           []byte("never arrives"),
		SupportsRange:     true,
		TransientFailures: 1000,
	}
	m, _ := newTestManager(t, client, 2)
	m.Recover()

	batchID, err := m.StartBatchTasks([]chart.DownloadTask{
		testTask("b1", chart.PriorityNormal),
		testTask("b2", chart.PriorityNormal),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		agg, ok := m.GetBatchProgress(batchID)
		return ok && agg.Status == chart.BatchCompleted && agg.FailedCharts == 2
	}, pollTimeout, pollInterval)
}

func TestBatchPauseAndResume(t *testing.T) {
	hold := make(chan struct{})
	client := &testutil.FakeClient{
		Content:       make([]byte, 32),
		SupportsRange: true,
		ChunkSize:     8,
		Hold:          hold,
	}
	m, _ := newTestManager(t, client, 2)
	m.Recover()

	batchID, err := m.StartBatchTasks([]chart.DownloadTask{
		testTask("b1", chart.PriorityNormal),
		testTask("b2", chart.PriorityNormal),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.ActiveCount() == 2 }, pollTimeout, pollInterval)

	require.True(t, m.PauseBatch(batchID))
	for _, id := range []string{"b1", "b2"} {
		waitForStatus(t, m, id, chart.StatusPaused)
	}
	agg, ok := m.GetBatchProgress(batchID)
	require.True(t, ok)
	assert.Equal(t, chart.BatchPaused, agg.Status)

	close(hold)
	require.Eventually(t, func() bool {
		// Workers may still be unwinding right after the pause; keep
		// nudging until every member has been re-queued and finished.
		m.ResumeBatch(batchID)
		agg, ok := m.GetBatchProgress(batchID)
		return ok && agg.CompletedCharts == 2
	}, pollTimeout, pollInterval)

	assert.False(t, m.PauseBatch("no-such-batch"))
	assert.False(t, m.ResumeBatch("no-such-batch"))
}

func TestBatchCancel(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	client := &testutil.FakeClient{
		Content:       make([]byte, 32),
		SupportsRange: true,
		ChunkSize:     8,
		Hold:          hold,
	}
	m, _ := newTestManager(t, client, 1)
	m.Recover()

	batchID, err := m.StartBatchTasks([]chart.DownloadTask{
		testTask("b1", chart.PriorityNormal),
		testTask("b2", chart.PriorityNormal),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.ActiveCount() == 1 }, pollTimeout, pollInterval)
	require.True(t, m.CancelBatch(batchID))

	for _, id := range []string{"b1", "b2"} {
		waitForStatus(t, m, id, chart.StatusCancelled)
	}
	agg, ok := m.GetBatchProgress(batchID)
	require.True(t, ok)
	assert.Equal(t, chart.BatchCancelled, agg.Status)
}

func TestBatchProgressUnknownID(t *testing.T) {
	m, _ := newTestManager(t, &testutil.FakeClient{}, 1)
	_, ok := m.GetBatchProgress("nope")
	assert.False(t, ok)
}
