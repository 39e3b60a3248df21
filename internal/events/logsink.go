package events

import (
	"log/slog"

	"github.com/gale-deploy/agent/internal/logging"
)

// LogSink writes events to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: logging.L("events")}
}

func (s *LogSink) Publish(e Event) {
	switch ev := e.(type) {
	case Accepted:
		s.logger.Info("operation accepted",
			logging.KeyOperationID, ev.OperationID,
			"op", string(ev.Op),
			logging.KeyPackage, ev.Package,
			"version", ev.Version)
	case Executing:
		s.logger.Info("installer running, waiting for it to finish",
			logging.KeyOperationID, ev.OperationID,
			"op", string(ev.Op),
			logging.KeyPackage, ev.Package,
			"command", ev.Command)
	case Succeeded:
		s.logger.Info("operation succeeded",
			logging.KeyOperationID, ev.OperationID,
			"op", string(ev.Op),
			logging.KeyPackage, ev.Package,
			"version", ev.Version)
	case Failed:
		s.logger.Error("operation failed",
			logging.KeyOperationID, ev.OperationID,
			"op", string(ev.Op),
			logging.KeyPackage, ev.Package,
			"exitCode", ev.ExitCode,
			"reason", ev.Reason,
			"logPath", ev.LogPath)
	default:
		s.logger.Info("event", "kind", e.Kind())
	}
}
