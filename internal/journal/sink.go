package journal

import (
	"github.com/gale-deploy/agent/internal/events"
)

// Sink records published events in the journal.
type Sink struct {
	w *Writer
}

func NewSink(w *Writer) *Sink {
	return &Sink{w: w}
}

func (s *Sink) Publish(e events.Event) {
	switch ev := e.(type) {
	case events.Accepted:
		details := map[string]any{"op": string(ev.Op)}
		if ev.Version != "" {
			details["version"] = ev.Version
		}
		s.w.Record(ev.Kind(), ev.OperationID, ev.Package, details)

	case events.Executing:
		s.w.Record(ev.Kind(), ev.OperationID, ev.Package, map[string]any{
			"op":      string(ev.Op),
			"command": ev.Command,
		})

	case events.Succeeded:
		details := map[string]any{"op": string(ev.Op)}
		if ev.Version != "" {
			details["version"] = ev.Version
		}
		s.w.Record(ev.Kind(), ev.OperationID, ev.Package, details)

	case events.Failed:
		details := map[string]any{
			"op":       string(ev.Op),
			"exitCode": ev.ExitCode,
		}
		if ev.Reason != "" {
			details["reason"] = ev.Reason
		}
		if ev.LogPath != "" {
			details["logPath"] = ev.LogPath
		}
		s.w.Record(ev.Kind(), ev.OperationID, ev.Package, details)

	default:
		s.w.Record(e.Kind(), "", "", nil)
	}
}
