package engine

import "log/slog"

// NewLoggingListener returns a listener that logs every change using
// structured logging. A nil logger uses slog.Default().
func NewLoggingListener(logger *slog.Logger) Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c Change) {
		logger.Debug("table_change",
			"kind", c.Kind,
			"position", c.Position,
			"values", c.Values.String(),
			"timestamp", c.Timestamp,
		)
	}
}
