// Package hostinfo gathers the host facts installer selection needs.
package hostinfo

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// Host describes the machine an operation runs on.
type Host struct {
	Hostname  string
	OS        string // GOOS-style: windows, darwin, linux
	OSVersion string // platform version, e.g. "10.0.19045"
	Arch      string // GOARCH-style: amd64, arm64, 386
}

// Collect reads host facts. Partial data is acceptable: OS and Arch
// always come from the runtime, hostname and version are best-effort.
func Collect() *Host {
	h := &Host{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if info, err := host.Info(); err == nil {
		h.Hostname = info.Hostname
		h.OSVersion = info.PlatformVersion
	}

	return h
}
