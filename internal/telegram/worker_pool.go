package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/studybot/studybot/internal/logger"
)

var (
	ErrPoolNotStarted = errors.New("worker pool not started")
	ErrPoolStopping   = errors.New("worker pool is shutting down")
	ErrQueueFull      = errors.New("update queue full")
)

// UpdateHandler processes one update. HandleFailure is called with the error
// returned by HandleUpdate, or with a recovered panic.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
	HandleFailure(ctx context.Context, update tgbotapi.Update, err error)
}

// WorkerPool processes updates concurrently
type WorkerPool struct {
	handler     UpdateHandler
	queue       chan tgbotapi.Update
	workerCount int
	stopTimeout time.Duration

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex
}

type WorkerPoolConfig struct {
	Workers     int
	QueueSize   int
	StopTimeout time.Duration // how long Stop waits for queued updates to drain
}

func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:     8,
		QueueSize:   100,
		StopTimeout: 30 * time.Second,
	}
}

func NewWorkerPool(handler UpdateHandler, config WorkerPoolConfig) *WorkerPool {
	defaults := DefaultWorkerPoolConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = defaults.StopTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		handler:     handler,
		queue:       make(chan tgbotapi.Update, config.QueueSize),
		workerCount: config.Workers,
		stopTimeout: config.StopTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return fmt.Errorf("worker pool already started")
	}

	logger.Info("Starting worker pool", map[string]interface{}{
		"workers":    wp.workerCount,
		"queue_size": cap(wp.queue),
	})

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.started = true
	return nil
}

// Stop closes the queue and waits for queued updates to finish. In-flight
// handlers are cancelled if they outlive the stop timeout.
func (wp *WorkerPool) Stop() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.started {
		return ErrPoolNotStarted
	}

	logger.InfoMsg("Stopping worker pool...")
	close(wp.queue)
	wp.started = false

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		logger.InfoMsg("Worker pool stopped gracefully")
		return nil
	case <-time.After(wp.stopTimeout):
		wp.cancel()
		logger.Warn("Worker pool shutdown timed out", map[string]interface{}{
			"pending": len(wp.queue),
		})
		return fmt.Errorf("worker pool shutdown timed out")
	}
}

// Submit queues an update without blocking.
func (wp *WorkerPool) Submit(update tgbotapi.Update) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.started {
		return ErrPoolNotStarted
	}

	select {
	case <-wp.ctx.Done():
		return ErrPoolStopping
	default:
	}

	select {
	case wp.queue <- update:
		return nil
	default:
		logger.Warn("Update queue full, dropping update", map[string]interface{}{
			"update_id": update.UpdateID,
		})
		return ErrQueueFull
	}
}

func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	for update := range wp.queue {
		wp.process(update, workerID)
	}

	logger.Debug("Worker stopping", map[string]interface{}{
		"worker_id": workerID,
	})
}

// process runs the handler for one update. A panic is confined to this update.
func (wp *WorkerPool) process(update tgbotapi.Update, workerID int) {
	ctx := withRequestID(wp.ctx, uuid.NewString())
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Update handler panic recovered", requestFields(ctx, map[string]interface{}{
				"worker_id": workerID,
				"update_id": update.UpdateID,
				"panic":     fmt.Sprint(r),
			}))
			wp.handler.HandleFailure(ctx, update, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := wp.handler.HandleUpdate(ctx, update); err != nil {
		wp.handler.HandleFailure(ctx, update, err)
	}

	logger.Debug("Update processed", requestFields(ctx, map[string]interface{}{
		"worker_id": workerID,
		"update_id": update.UpdateID,
		"duration":  time.Since(startTime).String(),
	}))
}

func (wp *WorkerPool) GetStats() map[string]interface{} {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	return map[string]interface{}{
		"started":        wp.started,
		"queue_size":     len(wp.queue),
		"queue_capacity": cap(wp.queue),
		"workers":        wp.workerCount,
	}
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestFields adds the request id of ctx to fields.
func requestFields(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if id := requestID(ctx); id != "" {
		fields["request_id"] = id
	}
	return fields
}
