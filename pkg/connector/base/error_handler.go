package base

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	"github.com/ajitpratap0/nebula-gocardless/pkg/metrics"
	"go.uber.org/zap"
)

// ErrorHandler categorizes errors, decides whether they are worth retrying
// and keeps counts per category.
type ErrorHandler struct {
	logger    *zap.Logger
	collector *metrics.Collector

	errorCounts   map[string]int64
	errorMutex    sync.RWMutex
	totalErrors   int64
	retriedErrors int64
	fatalErrors   int64
}

// NewErrorHandler creates a new error handler. collector may be nil.
func NewErrorHandler(logger *zap.Logger, collector *metrics.Collector) *ErrorHandler {
	return &ErrorHandler{
		logger:      logger,
		collector:   collector,
		errorCounts: make(map[string]int64),
	}
}

// HandleError logs and counts err and returns it unchanged.
func (eh *ErrorHandler) HandleError(ctx context.Context, err error, stream string) error {
	if err == nil {
		return nil
	}

	atomic.AddInt64(&eh.totalErrors, 1)

	category := eh.categorizeError(err)
	eh.incrementErrorCount(category)
	if eh.collector != nil {
		eh.collector.RecordError(category)
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("error_type", category),
	}
	if stream != "" {
		fields = append(fields, zap.String("stream", stream))
	}

	if eh.ShouldRetry(err) {
		atomic.AddInt64(&eh.retriedErrors, 1)
		eh.logger.Warn("retryable error occurred", fields...)
		return err
	}

	atomic.AddInt64(&eh.fatalErrors, 1)
	eh.logger.Error("fatal error occurred", fields...)
	return err
}

// ShouldRetry reports whether err is transient. Typed errors are decided by
// their type; untyped ones by message.
func (eh *ErrorHandler) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var typed *errors.Error
	if errors.As(err, &typed) {
		return errors.IsRetryable(err)
	}

	errStr := strings.ToLower(err.Error())

	nonRetryable := []string{
		"context canceled",
		"context deadline exceeded",
		"invalid credentials",
		"unauthorized",
		"forbidden",
		"not found",
		"bad request",
	}
	for _, pattern := range nonRetryable {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}

	retryable := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"no such host",
	}
	for _, pattern := range retryable {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// GetErrorStats returns error statistics
func (eh *ErrorHandler) GetErrorStats() map[string]interface{} {
	eh.errorMutex.RLock()
	defer eh.errorMutex.RUnlock()

	errorCounts := make(map[string]int64, len(eh.errorCounts))
	for k, v := range eh.errorCounts {
		errorCounts[k] = v
	}

	return map[string]interface{}{
		"total_errors":   atomic.LoadInt64(&eh.totalErrors),
		"retried_errors": atomic.LoadInt64(&eh.retriedErrors),
		"fatal_errors":   atomic.LoadInt64(&eh.fatalErrors),
		"errors_by_type": errorCounts,
	}
}

func (eh *ErrorHandler) categorizeError(err error) string {
	var typed *errors.Error
	if errors.As(err, &typed) {
		return string(typed.Type)
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout"):
		return string(errors.ErrorTypeTimeout)
	case strings.Contains(errStr, "connection"):
		return string(errors.ErrorTypeConnection)
	case strings.Contains(errStr, "unauthorized"):
		return string(errors.ErrorTypeAuthentication)
	case strings.Contains(errStr, "parse") || strings.Contains(errStr, "unmarshal"):
		return string(errors.ErrorTypeData)
	default:
		return "unknown"
	}
}

func (eh *ErrorHandler) incrementErrorCount(category string) {
	eh.errorMutex.Lock()
	defer eh.errorMutex.Unlock()
	eh.errorCounts[category]++
}
