// Package selector picks the best installer candidate for a host.
package selector

import (
	"fmt"
	"strings"

	version "github.com/hashicorp/go-version"

	"github.com/gale-deploy/agent/internal/hostinfo"
	"github.com/gale-deploy/agent/internal/logging"
	"github.com/gale-deploy/agent/internal/manifest"
)

var log = logging.L("selector")

// NoCandidateError means no declared installer fits the host.
type NoCandidateError struct {
	OS   string
	Arch string
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("no installer candidate matches host %s/%s", e.OS, e.Arch)
}

// Selector ranks installer candidates against fixed host facts. Given
// the same candidate set it always returns the same choice.
type Selector struct {
	host *hostinfo.Host
}

func New(host *hostinfo.Host) *Selector {
	return &Selector{host: host}
}

// Best returns the highest-ranked candidate that can run on the host.
// Ties keep manifest order, so authors control preference by listing
// their favorite first.
func (s *Selector) Best(candidates []manifest.Installer) (*manifest.Installer, error) {
	bestScore := 0
	bestIdx := -1

	for i, c := range candidates {
		score := s.score(c)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return nil, &NoCandidateError{OS: s.host.OS, Arch: s.host.Arch}
	}

	chosen := &candidates[bestIdx]
	log.Debug("installer candidate selected",
		"location", chosen.Location, "arch", chosen.Arch, "os", chosen.OS)
	return chosen, nil
}

// score ranks a candidate; 0 excludes it. An exact architecture match
// beats a 32-bit-on-64-bit match, which beats an unconstrained one.
func (s *Selector) score(c manifest.Installer) int {
	if c.OS != "" && !strings.EqualFold(c.OS, s.host.OS) {
		return 0
	}

	if !s.osVersionSatisfied(c.MinOSVersion) {
		return 0
	}

	switch {
	case c.Arch == "":
		return 1
	case strings.EqualFold(c.Arch, s.host.Arch):
		return 3
	case c.Arch == "386" && s.host.Arch == "amd64":
		return 2
	default:
		return 0
	}
}

// osVersionSatisfied compares the candidate's minimum OS version against
// the host. Unparseable versions on either side skip the check rather
// than disqualify the candidate.
func (s *Selector) osVersionSatisfied(minVersion string) bool {
	if minVersion == "" {
		return true
	}

	hostVer, err := version.NewVersion(s.host.OSVersion)
	if err != nil {
		return true
	}
	minVer, err := version.NewVersion(minVersion)
	if err != nil {
		return true
	}

	return !hostVer.LessThan(minVer)
}
