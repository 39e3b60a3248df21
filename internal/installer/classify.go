package installer

// RunResult is the classified outcome of one installer process run.
type RunResult struct {
	ExitCode  int
	Succeeded bool

	// Reason is the adapter's human-readable explanation for a non-zero
	// exit code. Empty when the code is not in the adapter's table.
	Reason string

	// LogPath is the installer's log file, set only on failure and only
	// when logging arguments were applied for this run.
	LogPath string
}

// Classify maps a raw exit code through the adapter's reason table.
// Exit code 0 is success and carries neither reason nor log path.
// logPath must be the path the argument builder applied, or empty when
// no logging was requested; pointing callers at a log file that was
// never written would be misleading.
func Classify(exitCode int, ad *Adapter, logPath string) RunResult {
	if exitCode == 0 {
		return RunResult{ExitCode: 0, Succeeded: true}
	}

	return RunResult{
		ExitCode: exitCode,
		Reason:   ad.ExitCodes[exitCode],
		LogPath:  logPath,
	}
}
