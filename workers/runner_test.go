package workers

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, r *Runner, id string, want JobStatus) JobInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, ok := r.Status(id)
		if ok && info.Status == want {
			return info
		}
		time.Sleep(10 * time.Millisecond)
	}
	info, _ := r.Status(id)
	t.Fatalf("job %s never reached status %s (last: %s)", id, want, info.Status)
	return JobInfo{}
}

func TestRunnerExecutesJobs(t *testing.T) {
	r := NewRunner(4, 1)
	defer r.Stop()

	var mu sync.Mutex
	ran := false
	id, err := r.Enqueue(JobTraining, "", func() error {
		mu.Lock()
		defer mu.Unlock()
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	info := waitForStatus(t, r, id, StatusDone)
	assert.Empty(t, info.Error)
	require.NotNil(t, info.FinishedAt)

	mu.Lock()
	assert.True(t, ran)
	mu.Unlock()
}

func TestRunnerRecordsFailure(t *testing.T) {
	r := NewRunner(4, 1)
	defer r.Stop()

	id, err := r.Enqueue(JobNotification, "", func() error {
		return errors.New("smtp unreachable")
	})
	require.NoError(t, err)

	info := waitForStatus(t, r, id, StatusFailed)
	assert.Contains(t, info.Error, "smtp unreachable")
}

func TestRunnerDeduplicatesByKey(t *testing.T) {
	r := NewRunner(4, 1)
	defer r.Stop()

	release := make(chan struct{})
	firstID, err := r.Enqueue(JobTraining, "training", func() error {
		<-release
		return nil
	})
	require.NoError(t, err)

	// same key while the first is pending: no second job
	secondID, err := r.Enqueue(JobTraining, "training", func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)

	close(release)
	waitForStatus(t, r, firstID, StatusDone)

	// after completion the key is free again
	thirdID, err := r.Enqueue(JobTraining, "training", func() error { return nil })
	require.NoError(t, err)
	assert.NotEqual(t, firstID, thirdID)
	waitForStatus(t, r, thirdID, StatusDone)
}

func TestRunnerRejectsWhenQueueFull(t *testing.T) {
	r := NewRunner(1, 1)
	defer r.Stop()

	release := make(chan struct{})
	defer close(release)

	// occupy the single worker, then fill the single queue slot
	_, err := r.Enqueue(JobTraining, "", func() error {
		<-release
		return nil
	})
	require.NoError(t, err)

	// the worker may not have picked up the first job yet; keep feeding
	// until the queue rejects
	var rejected bool
	for i := 0; i < 3; i++ {
		if _, err := r.Enqueue(JobTraining, "", func() error { return nil }); err != nil {
			rejected = true
			break
		}
	}
	assert.True(t, rejected)
}

func TestRunnerUnknownJobStatus(t *testing.T) {
	r := NewRunner(1, 1)
	defer r.Stop()

	_, ok := r.Status("no-such-job")
	assert.False(t, ok)
}
