package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/loadcycle.report/internal/config"
	"github.com/banshee-data/loadcycle.report/internal/db"
	"github.com/banshee-data/loadcycle.report/internal/detect"
	"github.com/banshee-data/loadcycle.report/internal/fsutil"
	"github.com/banshee-data/loadcycle.report/internal/media"
	"github.com/banshee-data/loadcycle.report/internal/monitoring"
	"github.com/banshee-data/loadcycle.report/internal/pipeline"
	"github.com/banshee-data/loadcycle.report/internal/timeutil"
)

type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Job is the queue-side view of one requested analysis.
type Job struct {
	ID         string            `json:"id"`
	Video      string            `json:"video"`
	State      JobState          `json:"state"`
	RunID      string            `json:"run_id,omitempty"`
	Error      string            `json:"error,omitempty"`
	Progress   pipeline.Progress `json:"progress"`
	Outputs    *media.OutputSet  `json:"outputs,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// ErrQueueFull is returned by Enqueue when the job queue is at capacity.
var ErrQueueFull = errors.New("job queue is full")

const defaultQueueSize = 16

// JobRunner serialises analysis work: a single worker goroutine drains a
// bounded queue, so at most one video is being processed at any time.
type JobRunner struct {
	files    *media.FileManager
	fs       fsutil.FileSystem
	detector detect.Detector
	tuning   *config.TuningConfig
	db       *db.DB
	clock    timeutil.Clock

	mu   sync.Mutex
	byID map[string]*Job
	// order holds job IDs oldest first.
	order []string

	queue chan string
	wg    sync.WaitGroup
}

// NewJobRunner builds a runner over the given analysis dependencies. The
// database may be nil. queueSize <= 0 selects the default.
func NewJobRunner(files *media.FileManager, fs fsutil.FileSystem, detector detect.Detector, tuning *config.TuningConfig, database *db.DB, queueSize int) *JobRunner {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &JobRunner{
		files:    files,
		fs:       fs,
		detector: detector,
		tuning:   tuning,
		db:       database,
		clock:    timeutil.RealClock{},
		byID:     make(map[string]*Job),
		queue:    make(chan string, queueSize),
	}
}

// Start launches the worker goroutine. It exits when ctx is cancelled; a job
// in flight at that point is cancelled through the same context and recorded
// as failed.
func (jr *JobRunner) Start(ctx context.Context) {
	jr.wg.Add(1)
	go func() {
		defer jr.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-jr.queue:
				jr.run(ctx, id)
			}
		}
	}()
}

// Wait blocks until the worker goroutine has exited.
func (jr *JobRunner) Wait() {
	jr.wg.Wait()
}

// Enqueue registers a job for the named input video and hands it to the
// worker. The returned Job is a snapshot; poll Get for progress.
func (jr *JobRunner) Enqueue(video string) (Job, error) {
	job := &Job{
		ID:         uuid.NewString(),
		Video:      video,
		State:      JobQueued,
		EnqueuedAt: jr.clock.Now(),
	}

	jr.mu.Lock()
	jr.byID[job.ID] = job
	jr.order = append(jr.order, job.ID)
	jr.mu.Unlock()

	select {
	case jr.queue <- job.ID:
		return *job, nil
	default:
		jr.update(job.ID, func(j *Job) {
			j.State = JobFailed
			j.Error = ErrQueueFull.Error()
		})
		return Job{}, ErrQueueFull
	}
}

// Get returns a snapshot of the job with the given ID.
func (jr *JobRunner) Get(id string) (Job, bool) {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	job, ok := jr.byID[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of all known jobs, newest first.
func (jr *JobRunner) List() []Job {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	out := make([]Job, 0, len(jr.order))
	for i := len(jr.order) - 1; i >= 0; i-- {
		out = append(out, *jr.byID[jr.order[i]])
	}
	return out
}

func (jr *JobRunner) update(id string, fn func(*Job)) {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	if job, ok := jr.byID[id]; ok {
		fn(job)
	}
}

func (jr *JobRunner) run(ctx context.Context, id string) {
	job, ok := jr.Get(id)
	if !ok {
		return
	}

	started := jr.clock.Now()
	jr.update(id, func(j *Job) {
		j.State = JobRunning
		j.StartedAt = &started
	})

	outcome, err := pipeline.RunVideo(ctx, pipeline.RunOptions{
		VideoName: job.Video,
		Files:     jr.files,
		FS:        jr.fs,
		Detector:  jr.detector,
		Tuning:    jr.tuning,
		DB:        jr.db,
		Progress: func(p pipeline.Progress) {
			jr.update(id, func(j *Job) { j.Progress = p })
		},
	})

	finished := jr.clock.Now()
	if err != nil {
		jr.update(id, func(j *Job) {
			j.State = JobFailed
			j.Error = err.Error()
			j.FinishedAt = &finished
		})
		monitoring.Logf("analysis job %s (%s) failed: %v", id, job.Video, err)
		return
	}

	jr.update(id, func(j *Job) {
		j.State = JobCompleted
		j.RunID = outcome.RunID
		j.Outputs = &outcome.Outputs
		j.FinishedAt = &finished
	})
	monitoring.Logf("analysis job %s (%s) completed in %s: ritase=%d passing=%d frames=%d",
		id, job.Video, jr.clock.Since(started).Round(time.Millisecond),
		outcome.Result.Ritase, outcome.Result.Passing, outcome.Result.Frames)
}
