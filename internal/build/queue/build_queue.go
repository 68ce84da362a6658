// Package queue runs build jobs on a single background worker and hands
// callers a Ticket to await the outcome.
package queue

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/oxobuilder/internal/build"
	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
	"git.home.luguber.info/inful/oxobuilder/internal/metrics"
)

// ErrQueueStopped is returned by Submit after Stop and by tickets that were
// still queued when the queue stopped.
var ErrQueueStopped = stdErrors.New("build queue stopped")

// Releaser is a held claim (normally a workspace lease) that the worker
// gives back once the job is terminal.
type Releaser interface {
	Release()
}

// BuildEventEmitter receives build lifecycle events. Emission errors are
// logged and never affect the job.
type BuildEventEmitter interface {
	EmitBuildStarted(ctx context.Context, job *build.Job, workerID string) error
	EmitBuildFinished(ctx context.Context, job *build.Job, res *build.BuildResult) error
}

// Ticket is the future for one submitted job.
type Ticket struct {
	job    *build.Job
	done   chan struct{}
	result *build.BuildResult
	err    error
}

// Job returns the submitted job.
func (t *Ticket) Job() *build.Job { return t.job }

// Done is closed once the job is terminal or was dropped.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the job finishes or ctx is done. The error is the job's
// BuildError, ErrQueueStopped, or ctx's error.
func (t *Ticket) Wait(ctx context.Context) (*build.BuildResult, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Ticket) complete(res *build.BuildResult, err error) {
	t.result = res
	t.err = err
	close(t.done)
}

type entry struct {
	ticket *Ticket
	req    build.BuildRequest
	lease  Releaser
}

// BuildQueue serializes build jobs onto one worker goroutine.
type BuildQueue struct {
	jobs        chan *entry
	maxSize     int
	mu          sync.RWMutex
	active      *build.Job
	pending     int
	history     []*build.Job
	historySize int
	stopped     bool
	stopChan    chan struct{}
	wg          sync.WaitGroup
	cancel      context.CancelFunc
	service     build.BuildService

	recorder     metrics.Recorder
	eventEmitter BuildEventEmitter
}

// NewBuildQueue creates a queue holding at most maxSize waiting jobs.
func NewBuildQueue(maxSize int, service build.BuildService) *BuildQueue {
	if maxSize <= 0 {
		maxSize = 1
	}
	if service == nil {
		panic("NewBuildQueue: build service is required")
	}
	return &BuildQueue{
		jobs:        make(chan *entry, maxSize),
		maxSize:     maxSize,
		history:     make([]*build.Job, 0),
		historySize: 20,
		stopChan:    make(chan struct{}),
		service:     service,
		recorder:    metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder.
func (bq *BuildQueue) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	bq.recorder = r
}

// SetEventEmitter injects a build event emitter.
func (bq *BuildQueue) SetEventEmitter(emitter BuildEventEmitter) {
	bq.eventEmitter = emitter
}

// Start launches the worker.
func (bq *BuildQueue) Start(ctx context.Context) {
	ctx, bq.cancel = context.WithCancel(ctx)
	slog.Info("Starting build queue", logfields.Worker("worker-0"), slog.Int("max_size", bq.maxSize))
	bq.wg.Add(1)
	go bq.worker(ctx, "worker-0")
}

// Stop cancels the running job, fails queued tickets and waits for the worker.
func (bq *BuildQueue) Stop(_ context.Context) {
	bq.mu.Lock()
	if bq.stopped {
		bq.mu.Unlock()
		return
	}
	bq.stopped = true
	close(bq.stopChan)
	if bq.cancel != nil {
		bq.cancel()
	}
	bq.mu.Unlock()

	bq.wg.Wait()
	bq.drain()
}

func (bq *BuildQueue) drain() {
	for {
		select {
		case e := <-bq.jobs:
			bq.mu.Lock()
			bq.pending--
			bq.mu.Unlock()
			e.lease.Release()
			e.ticket.complete(nil, ErrQueueStopped)
		default:
			return
		}
	}
}

// Busy reports whether a job is running or waiting.
func (bq *BuildQueue) Busy() bool {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	return bq.active != nil || bq.pending > 0
}

// Active returns the running job, if any.
func (bq *BuildQueue) Active() (*build.Job, bool) {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	return bq.active, bq.active != nil
}

// Last returns the most recently finished job, if any.
func (bq *BuildQueue) Last() (*build.Job, bool) {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	if len(bq.history) == 0 {
		return nil, false
	}
	return bq.history[len(bq.history)-1], true
}

// Submit enqueues req without blocking. lease is released by the worker once
// the job is terminal, or immediately when Submit fails. A full queue yields
// a busy error.
func (bq *BuildQueue) Submit(req build.BuildRequest, lease Releaser) (*Ticket, error) {
	if lease == nil {
		lease = noopRelease{}
	}
	if req.Job == nil {
		lease.Release()
		return nil, ferrors.ValidationError("job cannot be nil").Build()
	}

	bq.mu.Lock()
	defer bq.mu.Unlock()
	if bq.stopped {
		lease.Release()
		return nil, ErrQueueStopped
	}

	t := &Ticket{job: req.Job, done: make(chan struct{})}
	select {
	case bq.jobs <- &entry{ticket: t, req: req, lease: lease}:
		bq.pending++
		bq.recorder.SetQueueBusy(true)
		return t, nil
	default:
		lease.Release()
		bq.recorder.IncRejected("build")
		return nil, ferrors.BusyError("build queue is full").
			WithContext("max_size", bq.maxSize).
			Build()
	}
}

func (bq *BuildQueue) worker(ctx context.Context, workerID string) {
	defer bq.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-bq.stopChan:
			return
		case e := <-bq.jobs:
			bq.processJob(ctx, e, workerID)
		}
	}
}

func (bq *BuildQueue) processJob(ctx context.Context, e *entry, workerID string) {
	job := e.ticket.job

	bq.mu.Lock()
	bq.pending--
	bq.active = job
	bq.mu.Unlock()

	bq.emitBuildStarted(ctx, job, workerID)

	start := time.Now()
	res, err := bq.service.Run(ctx, e.req)
	if res == nil {
		res = &build.BuildResult{JobID: job.ID, State: job.State(), StartTime: start, EndTime: time.Now()}
		res.Duration = res.EndTime.Sub(start)
	}
	slog.Debug("Build job finished",
		logfields.JobID(job.ID),
		logfields.JobState(string(job.State())),
		logfields.Worker(workerID),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))

	bq.emitBuildFinished(ctx, job, res)

	// The outcome is reported while the lease is still held, so a build
	// accepted after release cannot log ahead of it.
	if line := job.TerminalLine(); line != "" && e.req.Progress != nil {
		e.req.Progress(context.WithoutCancel(ctx), line)
	}

	bq.mu.Lock()
	bq.active = nil
	bq.addToHistory(job)
	busy := bq.pending > 0
	bq.mu.Unlock()
	bq.recorder.SetQueueBusy(busy)

	// Released before the ticket resolves; waiters may start the next build at once.
	e.lease.Release()
	e.ticket.complete(res, err)
}

func (bq *BuildQueue) emitBuildStarted(ctx context.Context, job *build.Job, workerID string) {
	if bq.eventEmitter == nil {
		return
	}
	if err := bq.eventEmitter.EmitBuildStarted(ctx, job, workerID); err != nil {
		slog.Warn("Failed to emit BuildStarted event", logfields.JobID(job.ID), logfields.Error(err))
	}
}

func (bq *BuildQueue) emitBuildFinished(ctx context.Context, job *build.Job, res *build.BuildResult) {
	if bq.eventEmitter == nil {
		return
	}
	if err := bq.eventEmitter.EmitBuildFinished(ctx, job, res); err != nil {
		slog.Warn("Failed to emit BuildFinished event", logfields.JobID(job.ID), logfields.Error(err))
	}
}

func (bq *BuildQueue) addToHistory(job *build.Job) {
	bq.history = append(bq.history, job)
	if len(bq.history) > bq.historySize {
		copy(bq.history, bq.history[len(bq.history)-bq.historySize:])
		bq.history = bq.history[:bq.historySize]
	}
}

type noopRelease struct{}

func (noopRelease) Release() {}

// Fanout forwards events to several emitters. The first error is returned
// after every emitter ran.
type Fanout []BuildEventEmitter

func (f Fanout) EmitBuildStarted(ctx context.Context, job *build.Job, workerID string) error {
	var first error
	for _, em := range f {
		if err := em.EmitBuildStarted(ctx, job, workerID); err != nil && first == nil {
			first = fmt.Errorf("%T: %w", em, err)
		}
	}
	return first
}

func (f Fanout) EmitBuildFinished(ctx context.Context, job *build.Job, res *build.BuildResult) error {
	var first error
	for _, em := range f {
		if err := em.EmitBuildFinished(ctx, job, res); err != nil && first == nil {
			first = fmt.Errorf("%T: %w", em, err)
		}
	}
	return first
}
