// Package worker provides an asynchronous worker pool that persists completed
// chat exchanges through a history store.
//
// The pool decouples JSON-file writes from the HTTP hot path so a slow disk
// never stalls a streaming response.
package worker

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrQueueFull is returned by Record when the job queue is saturated and the
// exchange had to be dropped.
var ErrQueueFull = errors.New("persistence queue full, record dropped")

// Recorder persists one completed exchange. *history.Store satisfies this.
type Recorder interface {
	RecordChat(userMessage, assistantMessage, clientIP string, messageCount int) error
}

// Job is one exchange waiting to be persisted.
type Job struct {
	UserMessage      string
	AssistantMessage string
	ClientIP         string
	MessageCount     int
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Store receives the persisted exchanges.
	Store Recorder

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Pool processes persistence jobs asynchronously via a worker pool.
type Pool struct {
	store  Recorder
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Store == nil {
		return nil, errors.New("store is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		store:  c.Store,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := uint(0); i < c.NumWorkers; i++ {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job
// being dropped.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("persistence job queued",
			zap.String("client_ip", job.ClientIP),
			zap.Int("message_count", job.MessageCount),
		)
		return true
	default:
		p.logger.Error("persistence job dropped, queue full",
			zap.String("client_ip", job.ClientIP),
		)
		return false
	}
}

// Record enqueues one completed exchange. It never blocks; a saturated queue
// drops the record and returns ErrQueueFull.
func (p *Pool) Record(userMessage, assistantMessage, clientIP string, messageCount int) error {
	if !p.Enqueue(Job{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		ClientIP:         clientIP,
		MessageCount:     messageCount,
	}) {
		return ErrQueueFull
	}
	return nil
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker continuously pulls jobs off the queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		if err := p.store.RecordChat(job.UserMessage, job.AssistantMessage, job.ClientIP, job.MessageCount); err != nil {
			p.logger.Error("async record failed",
				zap.String("client_ip", job.ClientIP),
				zap.Error(err),
			)
		}
	}

	p.logger.Debug("worker stopped", zap.Uint("worker_id", id))
}
