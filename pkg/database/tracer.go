package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// slowQueryThreshold marks queries logged at warn level regardless of the
// configured trace level.
const slowQueryThreshold = 500 * time.Millisecond

// QueryTracer adapts zerolog to the pgx tracelog.Logger interface
type QueryTracer struct {
	logger zerolog.Logger
}

// NewQueryTracer creates a tracelog adapter writing to logger
func NewQueryTracer(logger zerolog.Logger) *QueryTracer {
	return &QueryTracer{logger: logger}
}

// Log implements tracelog.Logger
func (q *QueryTracer) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	var event *zerolog.Event

	switch level {
	case tracelog.LogLevelTrace:
		event = q.logger.Trace()
	case tracelog.LogLevelDebug:
		event = q.logger.Debug()
	case tracelog.LogLevelInfo:
		event = q.logger.Info()
	case tracelog.LogLevelWarn:
		event = q.logger.Warn()
	case tracelog.LogLevelError:
		event = q.logger.Error()
	default:
		event = q.logger.Info()
	}

	if d, ok := data["time"].(time.Duration); ok && d > slowQueryThreshold && level > tracelog.LogLevelWarn {
		event = q.logger.Warn().Bool("slow", true)
	}

	for key, value := range data {
		if key == "time" {
			if d, ok := value.(time.Duration); ok {
				event = event.Int64("duration_ms", d.Milliseconds())
				continue
			}
		}
		event = event.Interface(key, value)
	}

	event.Msg(msg)
}
