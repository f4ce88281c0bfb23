package processing

import (
	"time"

	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// DefaultSlowThreshold is how long a handler may run before it is reported as slow
const DefaultSlowThreshold = 100 * time.Millisecond

// LoggingResultHandler logs failed and slow messages
type LoggingResultHandler struct {
	logger        customlog.Logger
	slowThreshold time.Duration
}

// NewLoggingResultHandler creates a new logging result handler
func NewLoggingResultHandler(logger customlog.Logger) *LoggingResultHandler {
	return &LoggingResultHandler{
		logger:        logger,
		slowThreshold: DefaultSlowThreshold,
	}
}

// HandleResult logs one result. Failed messages are skipped; they never stop the pool.
func (h *LoggingResultHandler) HandleResult(result *ProcessResult) {
	log := h.logger.WithField("topic", result.Topic)

	if result.Error != nil {
		log.Warnf("Skipping message: %v", result.Error)
		return
	}
	if h.slowThreshold > 0 && result.Duration > h.slowThreshold {
		log.Warnf("Slow handler: took %s", result.Duration)
		return
	}
	log.Debugf("Processed message (timestamp: %d, took %s)", result.Timestamp, result.Duration)
}

// CreateHandlerFunc creates a ResultHandler function for the ProcessingPool
func (h *LoggingResultHandler) CreateHandlerFunc() ResultHandler {
	return func(processResult *ProcessResult) {
		if processResult == nil {
			h.logger.Errorf("Received nil ProcessResult")
			return
		}
		h.HandleResult(processResult)
	}
}
