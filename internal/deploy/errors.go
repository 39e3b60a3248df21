package deploy

import "fmt"

// ExecError reports an installer process that ran and exited non-zero.
// Reason is the adapter's human-readable explanation for the exit code
// when its table has one; LogPath points at the installer's own log
// when logging arguments were applied for the run.
type ExecError struct {
	Package  string
	ExitCode int
	Reason   string
	LogPath  string
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("installer for %s exited with code %d", e.Package, e.ExitCode)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.LogPath != "" {
		msg += " (log: " + e.LogPath + ")"
	}
	return msg
}
