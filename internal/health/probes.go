package health

import (
	"fmt"
	"os"
	"path/filepath"
)

// Probe inspects one subsystem and reports its condition.
type Probe struct {
	Name string
	Run  func() (Status, string)
}

// RunAll executes each probe and records its result.
func (m *Monitor) RunAll(probes ...Probe) {
	for _, p := range probes {
		status, message := p.Run()
		m.Update(p.Name, status, message)
	}
}

// DirWritable probes that a directory exists (creating it if needed)
// and accepts writes.
func DirWritable(name, dir string) Probe {
	return Probe{
		Name: name,
		Run: func() (Status, string) {
			if dir == "" {
				return Unhealthy, "no directory configured"
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return Unhealthy, fmt.Sprintf("create %s: %v", dir, err)
			}
			probeFile := filepath.Join(dir, ".gale-probe")
			if err := os.WriteFile(probeFile, []byte("probe"), 0644); err != nil {
				return Unhealthy, fmt.Sprintf("write to %s: %v", dir, err)
			}
			os.Remove(probeFile)
			return Healthy, ""
		},
	}
}
