// Package audit is the asynchronous compliance audit trail. Events are
// queued to a worker pool and written to one or more sinks; a sink failure
// is reported but never aborts the request that produced the event.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/repositories"
	"go.uber.org/zap"
)

// Sink receives finished audit records.
type Sink interface {
	Write(ctx context.Context, log *models.AuditLog) error
}

// RepositorySink persists audit records through an AuditRepository.
type RepositorySink struct {
	repo repositories.AuditRepository
}

// NewRepositorySink wraps a repository as a sink.
func NewRepositorySink(repo repositories.AuditRepository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Write(ctx context.Context, log *models.AuditLog) error {
	return s.repo.Insert(ctx, log)
}

// ZapSink emits audit records as structured log lines. Useful on its own
// in deployments without an audit database, or alongside one for live
// inspection.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink writing to the given logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Write(_ context.Context, log *models.AuditLog) error {
	fields := []zap.Field{
		zap.String("id", log.ID.String()),
		zap.String("event_type", string(log.EventType)),
		zap.String("actor_id", log.ActorID),
		zap.String("tenant_id", log.TenantID),
		zap.String("resource_type", log.ResourceType),
		zap.String("resource_id", log.ResourceID),
		zap.String("request_id", log.RequestID),
	}
	if log.Provider != nil {
		fields = append(fields, zap.String("provider", *log.Provider))
	}
	if log.Cost != nil {
		fields = append(fields, zap.Float64("cost", *log.Cost))
	}
	if log.ErrorMsg != nil {
		fields = append(fields, zap.String("error", *log.ErrorMsg))
	}
	s.logger.Info("audit", fields...)
	return nil
}

// Config holds configuration for the Service
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 5,
	}
}

// Service queues audit events and fans them out to sinks from a worker
// pool. LogEvent never blocks the caller.
type Service struct {
	sinks       []Sink
	logger      *zap.Logger
	eventChan   chan *models.AuditLog
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	stopped     bool
	mu          sync.Mutex
}

// NewService creates an audit service writing to the given sinks.
func NewService(config Config, logger *zap.Logger, sinks ...Sink) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		sinks:       sinks,
		logger:      logger,
		eventChan:   make(chan *models.AuditLog, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}
	if s.stopped {
		return fmt.Errorf("audit service already stopped")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the service, draining pending events up to the
// given timeout.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	// Flip started before closing so a concurrent enqueue can never send
	// on the closed channel.
	s.started = false
	s.stopped = true
	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))
	close(s.eventChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues one audit event. Non-blocking: when the buffer is full
// the event is dropped and the drop itself is logged. Safe to call from
// request paths.
func (s *Service) LogEvent(eventType models.AuditEventType, actorID, resourceType, resourceID string, metadata map[string]interface{}) {
	log := models.NewAuditLog(eventType, actorID, resourceType, resourceID)
	if metadata != nil {
		if tenant, ok := metadata["tenant_id"].(string); ok {
			log.TenantID = tenant
		}
		log.WithDetails(metadata)
	}
	log.RequestID = resourceID

	s.enqueue(log)
}

// LogRecord queues a fully built audit record.
func (s *Service) LogRecord(log *models.AuditLog) {
	s.enqueue(log)
}

func (s *Service) enqueue(log *models.AuditLog) {
	// The send happens under the same lock Stop holds while closing the
	// channel, so enqueue never races a close.
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.logger.Warn("audit event outside service lifetime, dropping",
			zap.String("event_type", string(log.EventType)))
		return
	}

	select {
	case s.eventChan <- log:
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("event_type", string(log.EventType)),
			zap.String("actor_id", log.ActorID))
	}
}

// worker processes events from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for log := range s.eventChan {
		s.processEvent(log)
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent writes one record to every sink. A failed sink is reported
// and the remaining sinks still receive the record.
func (s *Service) processEvent(log *models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, sink := range s.sinks {
		if err := sink.Write(ctx, log); err != nil {
			s.logger.Error("failed to write audit event",
				zap.Error(err),
				zap.String("event_type", string(log.EventType)),
				zap.String("actor_id", log.ActorID))
		}
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
	}
}
