package installer

import (
	"errors"
	"fmt"
	"os/exec"
)

// LaunchError means the installer process could not be started at all
// (missing executable, permission denied). It is distinct from a
// non-zero installer exit code.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch installer %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ExecRunner spawns installer processes and blocks until they exit.
// Installers are never killed or timed out from here: one that never
// exits blocks its operation indefinitely.
type ExecRunner struct{}

// Run starts the executable and waits for it to exit, returning the raw
// exit code. A process that could not be spawned returns a *LaunchError.
func (ExecRunner) Run(exe string, args []string) (int, error) {
	cmd := exec.Command(exe, args...)

	if err := cmd.Start(); err != nil {
		return 0, &LaunchError{Path: exe, Err: err}
	}

	log.Info("waiting for installer process to exit", "path", exe, "pid", cmd.Process.Pid)

	err := cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("wait on installer %s: %w", exe, err)
	}

	return 0, nil
}
