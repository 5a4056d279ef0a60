// Package base provides BaseConnector, which connectors embed for state
// bookkeeping, retries, error classification, health and metrics.
//
//	type MySource struct {
//	    *base.BaseConnector
//	}
//
//	func NewMySource() *MySource {
//	    return &MySource{
//	        BaseConnector: base.NewBaseConnector("my-source", core.ConnectorTypeSource, "1.0.0"),
//	    }
//	}
package base

import (
	"context"
	"sync"

	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	"github.com/ajitpratap0/nebula-gocardless/pkg/logger"
	"github.com/ajitpratap0/nebula-gocardless/pkg/metrics"
	"go.uber.org/zap"
)

// BaseConnector holds the behaviour shared by every connector.
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	config        *config.BaseConfig
	logger        *zap.Logger

	// per-stream state, keyed by stream name
	states     map[string]core.State
	stateMutex sync.RWMutex

	closed     bool
	closeMutex sync.Mutex

	healthChecker    *HealthChecker
	metricsCollector *metrics.Collector
	errorHandler     *ErrorHandler
	retryPolicy      *RetryPolicy
}

// NewBaseConnector creates a base connector. Initialize must be called
// before use.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	bc := &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		states:        make(map[string]core.State),
		logger:        logger.Get().With(zap.String("connector", name)),
	}
	bc.healthChecker = NewHealthChecker(name)
	bc.metricsCollector = metrics.NewCollector(name)
	bc.errorHandler = NewErrorHandler(bc.logger, bc.metricsCollector)
	bc.retryPolicy = DefaultRetryPolicy()
	return bc
}

// Initialize applies the reliability settings of cfg.
func (bc *BaseConnector) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}
	bc.config = cfg

	bc.retryPolicy = RetryPolicyFromConfig(cfg.Reliability)

	bc.logger.Debug("connector initialized",
		zap.String("type", string(bc.connectorType)),
		zap.String("version", bc.version),
		zap.Int("max_attempts", bc.retryPolicy.MaxAttempts))

	return nil
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// GetState returns a copy of every stream's state.
func (bc *BaseConnector) GetState() map[string]core.State {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	out := make(map[string]core.State, len(bc.states))
	for stream, s := range bc.states {
		out[stream] = s.Copy()
	}
	return out
}

// StreamState returns a copy of one stream's state, or nil.
func (bc *BaseConnector) StreamState(stream string) core.State {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()
	return bc.states[stream].Copy()
}

// SetState replaces one stream's state. A nil state clears it.
func (bc *BaseConnector) SetState(stream string, state core.State) error {
	if stream == "" {
		return errors.New(errors.ErrorTypeValidation, "stream name is required")
	}

	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()

	if state == nil {
		delete(bc.states, stream)
	} else {
		bc.states[stream] = state.Copy()
	}
	bc.logger.Debug("state updated", zap.String("stream", stream), zap.Any("state", state))
	return nil
}

// Health reports the last recorded health, running the registered check
// function when there is one.
func (bc *BaseConnector) Health(ctx context.Context) error {
	bc.closeMutex.Lock()
	closed := bc.closed
	bc.closeMutex.Unlock()
	if closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}

	status := bc.healthChecker.Check(ctx)
	if status.Status != "healthy" {
		if status.Error != nil {
			return errors.Wrap(status.Error, errors.ErrorTypeConnection, "health check failed")
		}
		return errors.New(errors.ErrorTypeConnection, "connector is unhealthy")
	}
	return nil
}

// Metrics returns current metrics
func (bc *BaseConnector) Metrics() map[string]interface{} {
	m := bc.metricsCollector.GetAll()
	m["name"] = bc.name
	m["type"] = bc.connectorType
	m["version"] = bc.version

	status := bc.healthChecker.GetStatus()
	m["health_status"] = status.Status
	m["health_check_count"] = bc.healthChecker.CheckCount()
	m["health_failure_count"] = bc.healthChecker.FailureCount()

	for k, v := range bc.errorHandler.GetErrorStats() {
		m[k] = v
	}
	return m
}

// Close marks the connector closed. It is safe to call more than once.
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return nil
	}
	bc.closed = true
	bc.healthChecker.UpdateStatus(false, map[string]interface{}{"reason": "closed"})
	bc.logger.Debug("connector closed")
	return nil
}

// ExecuteWithRetry runs fn under the retry policy, retrying only errors the
// error handler classifies as transient.
func (bc *BaseConnector) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	return bc.retryPolicy.ExecuteWithCondition(ctx, fn, bc.errorHandler.ShouldRetry)
}

// HandleError logs and counts err.
func (bc *BaseConnector) HandleError(ctx context.Context, err error, stream string) error {
	return bc.errorHandler.HandleError(ctx, err, stream)
}

// GetLogger returns the connector logger
func (bc *BaseConnector) GetLogger() *zap.Logger {
	return bc.logger
}

// GetConfig returns the connector configuration
func (bc *BaseConnector) GetConfig() *config.BaseConfig {
	return bc.config
}

// GetMetricsCollector returns the metrics collector
func (bc *BaseConnector) GetMetricsCollector() *metrics.Collector {
	return bc.metricsCollector
}

// GetRetryPolicy returns the retry policy
func (bc *BaseConnector) GetRetryPolicy() *RetryPolicy {
	return bc.retryPolicy
}

// SetRetryPolicy replaces the retry policy.
func (bc *BaseConnector) SetRetryPolicy(p *RetryPolicy) {
	bc.retryPolicy = p
}

// SetHealthCheck registers fn as the connector's health check.
func (bc *BaseConnector) SetHealthCheck(fn func(ctx context.Context) error) {
	bc.healthChecker.SetCheckFunc(fn)
}

// UpdateHealth updates the health status
func (bc *BaseConnector) UpdateHealth(healthy bool, details map[string]interface{}) {
	bc.healthChecker.UpdateStatus(healthy, details)
}

// IsHealthy returns true if the last recorded status is healthy.
func (bc *BaseConnector) IsHealthy() bool {
	return bc.healthChecker.IsHealthy()
}
