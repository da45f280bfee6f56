package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker reports progress of long-running row processing at intervals
type ProgressTracker struct {
	logger      Logger
	operation   string
	current     int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.Mutex
}

// NewProgressTracker creates a tracker for the named operation
func NewProgressTracker(operation string, log Logger) *ProgressTracker {
	if log == nil {
		log = GetGlobalLogger()
	}

	now := time.Now()
	return &ProgressTracker{
		logger:      log.WithComponent("progress"),
		operation:   operation,
		startTime:   now,
		lastLogTime: now,
		logInterval: 5 * time.Second,
	}
}

// Add increments the processed counter by delta
func (p *ProgressTracker) Add(delta int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current += delta
	now := time.Now()
	if now.Sub(p.lastLogTime) >= p.logInterval {
		p.logProgress(now)
		p.lastLogTime = now
	}
}

// Complete logs final throughput statistics
func (p *ProgressTracker) Complete() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	duration := time.Since(p.startTime)
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"processed": p.current,
		"duration":  duration.String(),
		"rate":      fmt.Sprintf("%.2f/sec", rate(p.current, duration)),
	}).Info("Operation completed")
}

func (p *ProgressTracker) logProgress(now time.Time) {
	duration := now.Sub(p.startTime)
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"processed": p.current,
		"rate":      fmt.Sprintf("%.2f/sec", rate(p.current, duration)),
	}).Info("Progress update")
}

func rate(processed int64, duration time.Duration) float64 {
	if duration.Seconds() <= 0 {
		return 0
	}
	return float64(processed) / duration.Seconds()
}

// OperationLogger provides structured logging for operations with timing
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, log Logger) *OperationLogger {
	if log == nil {
		log = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    log.WithComponent("operation"),
		operation: operation,
		fields:    make(Fields),
		startTime: time.Now(),
	}

	ol.logger.WithField("operation", operation).Info("Starting operation")
	return ol
}

// WithField adds a field to the operation context
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

// Step logs a step within the operation
func (ol *OperationLogger) Step(step string) {
	fields := Fields{
		"operation": ol.operation,
		"step":      step,
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithFields(fields).Info("Operation step")
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string) {
	fields := Fields{
		"operation": ol.operation,
		"duration":  time.Since(ol.startTime).String(),
		"status":    "success",
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithFields(fields).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	fields := Fields{
		"operation": ol.operation,
		"duration":  time.Since(ol.startTime).String(),
		"status":    "error",
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithError(err).WithFields(fields).Error(message)
}
