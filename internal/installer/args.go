package installer

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// LogPlaceholder is the token in a logging argument template that gets
// replaced with the resolved log file path.
const LogPlaceholder = "{logfile}"

// ArgOverrides are a package's per-operation argument overrides. They
// extend (install side) or replace (log side) the adapter's defaults.
type ArgOverrides struct {
	Silent      string `yaml:"silent,omitempty"`
	Passive     string `yaml:"passive,omitempty"`
	Interactive string `yaml:"interactive,omitempty"`
	Log         string `yaml:"log,omitempty"`
}

func (o ArgOverrides) templateFor(l Level) string {
	switch l {
	case Silent:
		return o.Silent
	case Passive:
		return o.Passive
	case Interactive:
		return o.Interactive
	}
	return ""
}

// Arguments is a built installer command line. Tokens are individual
// argv elements; LogPath is set only when a logging template was applied.
type Arguments struct {
	Tokens  []string
	LogPath string
}

// String renders the arguments for display, quoting tokens that contain
// whitespace. The rendered form is for logs and events; process spawning
// uses Tokens directly.
func (a Arguments) String() string {
	parts := make([]string, 0, len(a.Tokens))
	for _, tok := range a.Tokens {
		if strings.ContainsAny(tok, " \t") {
			parts = append(parts, `"`+tok+`"`)
		} else {
			parts = append(parts, tok)
		}
	}
	return strings.Join(parts, " ")
}

// BuildArguments assembles the command line for the effective level:
// adapter template tokens first, then package override tokens. The
// logging template (package override wins over adapter default) is
// appended last with LogPlaceholder replaced by logPath. When neither
// side has a logging template no log file is requested and LogPath
// stays empty.
func BuildArguments(level Level, pkg ArgOverrides, ad *Adapter, logPath string) Arguments {
	var args Arguments

	args.Tokens = append(args.Tokens, strings.Fields(ad.templateFor(level))...)
	args.Tokens = append(args.Tokens, strings.Fields(pkg.templateFor(level))...)

	logTemplate := ad.LogArgs
	if pkg.Log != "" {
		logTemplate = pkg.Log
	}

	if logTemplate != "" && logPath != "" {
		for _, tok := range strings.Fields(logTemplate) {
			args.Tokens = append(args.Tokens, strings.ReplaceAll(tok, LogPlaceholder, logPath))
		}
		args.LogPath = logPath
	}

	return args
}

// LogFilePath picks the log file location for one run of a package's
// installer.
func LogFilePath(logDir, pkgID string) string {
	stamp := time.Now().Format("20060102-150405")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", sanitizeName(pkgID), stamp))
}

// sanitizeName strips characters that are unsafe in file names.
func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
