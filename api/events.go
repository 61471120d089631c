package api

import (
	"context"
	"math"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lanre-19/WorkAura/domain"
)

type dispatchJob struct {
	event   domain.Event
	attempt int
}

type dispatcherConfig struct {
	bufferSize     int
	workerCount    int
	enqueueTimeout time.Duration
	retryInitial   time.Duration
	retryMax       time.Duration
	maxAttempts    int
}

func dispatcherConfigFromEnv() dispatcherConfig {
	cfg := dispatcherConfig{
		bufferSize:     envInt("EVENTS_BUFFER", 1024),
		workerCount:    envInt("EVENTS_WORKERS", 4),
		enqueueTimeout: envDur("EVENTS_ENQUEUE_TIMEOUT", 5*time.Second),
		retryInitial:   envDur("EVENTS_RETRY_INITIAL", 250*time.Millisecond),
		retryMax:       envDur("EVENTS_RETRY_MAX", 10*time.Second),
		maxAttempts:    envInt("EVENTS_MAX_ATTEMPTS", 5),
	}
	if cfg.workerCount <= 0 {
		cfg.workerCount = 1
	}
	if cfg.bufferSize <= 0 {
		cfg.bufferSize = cfg.workerCount * 2
	}
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = 1
	}
	return cfg
}

// EventDispatcher delivers board events to the queue off the request path.
// Delivery is best effort: a full buffer or an exhausted retry budget drops
// the event with a log line, never an error to the caller.
type EventDispatcher struct {
	cfg    dispatcherConfig
	store  Storage
	logger *log.Logger

	jobs    chan dispatchJob
	stopCh  chan struct{}
	wg      sync.WaitGroup
	retryWG sync.WaitGroup

	closeOnce sync.Once
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewEventDispatcher creates a dispatcher and starts its workers. Tunables
// come from EVENTS_* environment variables.
func NewEventDispatcher(store Storage, logger *log.Logger) *EventDispatcher {
	if store == nil {
		panic("storage is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	cfg := dispatcherConfigFromEnv()
	d := &EventDispatcher{
		cfg:    cfg,
		store:  store,
		logger: logger,
		jobs:   make(chan dispatchJob, cfg.bufferSize),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < d.cfg.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// Publish hands an event to the dispatcher. It never blocks; when the buffer
// is full or the dispatcher has shut down the event is dropped and counted.
func (d *EventDispatcher) Publish(ev domain.Event) {
	defer func() {
		if recover() != nil {
			d.dropped.Add(1)
		}
	}()
	select {
	case d.jobs <- dispatchJob{event: ev}:
	default:
		d.dropped.Add(1)
		d.logger.WithFields(log.Fields{
			"event_type":   ev.Type,
			"workspace_id": ev.WorkspaceID,
		}).Warn("event buffer full, dropping board event")
	}
}

func (d *EventDispatcher) worker(id int) {
	defer d.wg.Done()
	for job := range d.jobs {
		d.deliver(job, id)
	}
}

func (d *EventDispatcher) deliver(job dispatchJob, workerID int) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.enqueueTimeout)
	err := d.store.EnqueueEvent(ctx, job.event)
	cancel()
	if err == nil {
		d.delivered.Add(1)
		return
	}

	job.attempt++
	if job.attempt >= d.cfg.maxAttempts {
		d.dropped.Add(1)
		d.logger.WithFields(log.Fields{
			"event_type":   job.event.Type,
			"workspace_id": job.event.WorkspaceID,
			"attempts":     job.attempt,
			"worker":       workerID,
			"error":        err.Error(),
		}).Error("giving up on board event")
		return
	}

	d.logger.WithFields(log.Fields{
		"event_type":   job.event.Type,
		"workspace_id": job.event.WorkspaceID,
		"attempt":      job.attempt,
		"worker":       workerID,
		"error":        err.Error(),
	}).Warn("board event delivery failed, retrying")
	d.scheduleRetry(job)
}

func (d *EventDispatcher) scheduleRetry(job dispatchJob) {
	delay := exponentialBackoff(job.attempt, d.cfg.retryInitial, d.cfg.retryMax)
	d.retryWG.Add(1)
	go func() {
		defer d.retryWG.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-d.stopCh:
			// deliver once more on the way out rather than losing the event
		}
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.enqueueTimeout)
		defer cancel()
		if err := d.store.EnqueueEvent(ctx, job.event); err != nil {
			job.attempt++
			if job.attempt >= d.cfg.maxAttempts {
				d.dropped.Add(1)
				return
			}
			d.scheduleRetry(job)
			return
		}
		d.delivered.Add(1)
	}()
}

func exponentialBackoff(attempt int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		initial = time.Second
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	if attempt <= 0 {
		return initial
	}
	backoff := float64(initial) * math.Pow(2, float64(attempt-1))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	jitter := 0.2 * backoff
	return time.Duration(backoff + (rand.Float64()-0.5)*2*jitter)
}

// Shutdown drains buffered events and stops the workers.
func (d *EventDispatcher) Shutdown() {
	d.closeOnce.Do(func() {
		close(d.stopCh)
		close(d.jobs)
	})
	d.wg.Wait()
	d.retryWG.Wait()

	stats := d.Stats()
	d.logger.WithFields(log.Fields{
		"delivered": stats.Delivered,
		"dropped":   stats.Dropped,
	}).Info("event dispatcher stopped")
}

// DispatcherStats is a point-in-time view of the dispatcher's counters.
type DispatcherStats struct {
	Buffered  int    `json:"buffered"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

func (d *EventDispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Buffered:  len(d.jobs),
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}

func envDur(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return val
}
