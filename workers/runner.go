package workers

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camden-git/smartguardbackend/metrics"
)

// JobType constants
const (
	JobTraining     = "training"
	JobNotification = "notification"
)

// JobStatus values a job moves through.
type JobStatus string

const (
	StatusQueued  JobStatus = "queued"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusFailed  JobStatus = "failed"
)

type job struct {
	id      string
	jobType string
	key     string
	run     func() error
}

// JobInfo is the observable state of a submitted job.
type JobInfo struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key,omitempty"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt int64     `json:"enqueued_at"`
	FinishedAt *int64    `json:"finished_at,omitempty"`
}

// Runner executes background jobs on a fixed worker pool. Every submission
// gets an id so callers can poll its outcome instead of firing and
// forgetting.
type Runner struct {
	JobQueue chan job
	StopChan chan struct{}
	Wg       sync.WaitGroup

	Mutex   sync.Mutex
	Pending map[string]string // dedupe key -> job id
	jobs    map[string]*JobInfo
}

// NewRunner starts numWorkers workers draining a queue of queueSize.
func NewRunner(queueSize, numWorkers int) *Runner {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	r := &Runner{
		JobQueue: make(chan job, queueSize),
		StopChan: make(chan struct{}),
		Pending:  make(map[string]string),
		jobs:     make(map[string]*JobInfo),
	}
	r.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go r.worker(i)
	}
	log.Printf("started %d job worker(s) with queue size %d", numWorkers, queueSize)
	return r
}

// Enqueue submits a job and returns its id. A non-empty key deduplicates: if
// a job with the same key is already queued or running, its id is returned
// instead of submitting a second one.
func (r *Runner) Enqueue(jobType, key string, run func() error) (string, error) {
	r.Mutex.Lock()
	if key != "" {
		if existingID, ok := r.Pending[key]; ok {
			r.Mutex.Unlock()
			log.Printf("jobs: %s job for %q already pending as %s", jobType, key, existingID)
			return existingID, nil
		}
	}

	id := uuid.NewString()
	info := &JobInfo{
		ID:         id,
		Type:       jobType,
		Key:        key,
		Status:     StatusQueued,
		EnqueuedAt: time.Now().Unix(),
	}
	r.jobs[id] = info
	if key != "" {
		r.Pending[key] = id
	}
	r.Mutex.Unlock()

	select {
	case r.JobQueue <- job{id: id, jobType: jobType, key: key, run: run}:
		return id, nil
	default:
		r.Mutex.Lock()
		delete(r.jobs, id)
		if key != "" {
			delete(r.Pending, key)
		}
		r.Mutex.Unlock()
		return "", fmt.Errorf("job queue is full, dropping %s job", jobType)
	}
}

// Status returns the state of a job by id.
func (r *Runner) Status(id string) (JobInfo, bool) {
	r.Mutex.Lock()
	defer r.Mutex.Unlock()
	info, ok := r.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return *info, true
}

func (r *Runner) worker(id int) {
	defer r.Wg.Done()
	log.Printf("job worker %d started", id)

	for {
		select {
		case j, ok := <-r.JobQueue:
			if !ok {
				log.Printf("job worker %d stopping: queue closed", id)
				return
			}
			r.execute(id, j)
		case <-r.StopChan:
			log.Printf("job worker %d stopping: stop signal received", id)
			return
		}
	}
}

func (r *Runner) execute(workerID int, j job) {
	r.setStatus(j.id, StatusRunning, nil)
	log.Printf("worker %d: running %s job %s", workerID, j.jobType, j.id)

	err := j.run()

	r.Mutex.Lock()
	if j.key != "" {
		delete(r.Pending, j.key)
	}
	r.Mutex.Unlock()

	if err != nil {
		r.setStatus(j.id, StatusFailed, err)
		metrics.JobsTotal.WithLabelValues(j.jobType, string(StatusFailed)).Inc()
		log.Printf("worker %d: %s job %s failed: %v", workerID, j.jobType, j.id, err)
		return
	}
	r.setStatus(j.id, StatusDone, nil)
	metrics.JobsTotal.WithLabelValues(j.jobType, string(StatusDone)).Inc()
	log.Printf("worker %d: %s job %s done", workerID, j.jobType, j.id)
}

func (r *Runner) setStatus(id string, status JobStatus, err error) {
	r.Mutex.Lock()
	defer r.Mutex.Unlock()
	info, ok := r.jobs[id]
	if !ok {
		return
	}
	info.Status = status
	if err != nil {
		info.Error = err.Error()
	}
	if status == StatusDone || status == StatusFailed {
		now := time.Now().Unix()
		info.FinishedAt = &now
	}
}

// Stop signals workers to exit and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	close(r.StopChan)
	r.Wg.Wait()
	log.Println("job workers stopped")
}
