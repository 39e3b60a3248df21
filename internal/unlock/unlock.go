// Package unlock releases holds on an installation path before an
// installer replaces files under it. The usual hold is the application
// itself still running from the path; an installer asked to overwrite
// locked binaries fails or schedules a reboot.
package unlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/gale-deploy/agent/internal/logging"
)

var log = logging.L("unlock")

type Unlocker struct {
	// KillTimeout bounds the wait between Terminate and Kill for
	// processes that ignore the polite request.
	KillTimeout time.Duration
}

func New() *Unlocker {
	return &Unlocker{KillTimeout: 5 * time.Second}
}

// Unlock stops processes still executing from path. Idempotent, an
// already-released path is a no-op. Termination failures are collected
// rather than aborting, the caller decides whether they matter.
func (u *Unlocker) Unlock(path, method string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Clean(path)
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	procs, err := process.Processes()
	if err != nil {
		return fmt.Errorf("enumerate processes: %w", err)
	}

	self := int32(os.Getpid())
	var errs []error
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		exe, err := p.Exe()
		if err != nil || !underDir(exe, dir) {
			continue
		}
		name, _ := p.Name()
		log.Info("stopping process holding installation path",
			"pid", p.Pid, "name", name, "path", dir, "method", method)
		if err := u.stop(p); err != nil {
			errs = append(errs, fmt.Errorf("stop %s (pid %d): %w", name, p.Pid, err))
		}
	}
	return errors.Join(errs...)
}

// stop asks politely, then escalates once the grace period runs out.
func (u *Unlocker) stop(p *process.Process) error {
	if err := p.Terminate(); err != nil {
		return p.Kill()
	}

	deadline := time.Now().Add(u.KillTimeout)
	for time.Now().Before(deadline) {
		running, err := p.IsRunning()
		if err != nil || !running {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	log.Warn("process ignored terminate, killing", "pid", p.Pid)
	return p.Kill()
}

func underDir(exe, dir string) bool {
	if exe == "" {
		return false
	}
	prefix := dir + string(filepath.Separator)
	if runtime.GOOS == "windows" {
		return strings.HasPrefix(strings.ToLower(exe), strings.ToLower(prefix))
	}
	return strings.HasPrefix(exe, prefix)
}
