package events

import (
	"github.com/ThreeDotsLabs/watermill"

	"slmchat/internal/logger"
)

const logModule = "EVENTS"

// watermillLogger routes watermill's own logging into the application logger.
type watermillLogger struct {
	log    logger.Logger
	fields watermill.LogFields
}

func newWatermillLogger(log logger.Logger) watermill.LoggerAdapter {
	return watermillLogger{log: log}
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	details := l.details(fields)
	details["error"] = err
	l.log.Error(logModule, msg, details)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log.Info(logModule, msg, l.details(fields))
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug(logModule, msg, l.details(fields))
}

// Trace is folded into debug; zap has no lower level.
func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log.Debug(logModule, msg, l.details(fields))
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{log: l.log, fields: l.details(fields)}
}

func (l watermillLogger) details(fields watermill.LogFields) map[string]interface{} {
	out := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
