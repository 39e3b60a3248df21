// Package installer drives external installer technologies (MSI, NSIS,
// Inno Setup and friends) through a uniform adapter contract: argument
// templates per interactivity level, an exit-code reason table, and a
// command hook that resolves the executable to run.
package installer

import (
	"fmt"
	"strings"

	"github.com/gale-deploy/agent/internal/logging"
)

var log = logging.L("installer")

// Level is how much user-facing UI the external installer shows.
type Level int

const (
	Silent Level = iota
	Passive
	Interactive
)

func (l Level) String() string {
	switch l {
	case Silent:
		return "silent"
	case Passive:
		return "passive"
	case Interactive:
		return "interactive"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a config/CLI string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return Silent, nil
	case "passive":
		return Passive, nil
	case "interactive":
		return Interactive, nil
	default:
		return Interactive, fmt.Errorf("unknown interactivity level %q", s)
	}
}

// ResolveLevel maps the requested level to one the package/adapter pair
// actually supports. Interactive is always granted. A Silent request
// degrades to Passive when only passive templates exist, and a Passive
// request degrades to Silent the same way; when neither quiet level is
// available the request falls through to Interactive. Degradation is not
// an error: a one-step fallback logs at info, landing on Interactive
// logs at warning.
func ResolveLevel(requested Level, pkg ArgOverrides, ad *Adapter) Level {
	if requested == Interactive {
		return Interactive
	}

	if supportsLevel(requested, pkg, ad) {
		return requested
	}

	var fallback Level
	switch requested {
	case Silent:
		fallback = Passive
	case Passive:
		fallback = Silent
	}

	if supportsLevel(fallback, pkg, ad) {
		log.Info("interactivity degraded",
			"requested", requested.String(),
			"effective", fallback.String(),
			"method", ad.Method)
		return fallback
	}

	log.Warn("interactivity degraded to interactive",
		"requested", requested.String(),
		"method", ad.Method)
	return Interactive
}

// supportsLevel reports whether either side carries an argument template
// for the level.
func supportsLevel(l Level, pkg ArgOverrides, ad *Adapter) bool {
	return pkg.templateFor(l) != "" || ad.templateFor(l) != ""
}
