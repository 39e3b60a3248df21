// Package records enumerates installed software and resolves which
// record an uninstall request refers to.
package records

import (
	"fmt"
	"regexp"
	"strings"
)

// Record is one installed-software entry. The opaque uninstall key is
// not carried here; sources resolve it on demand via Key.
type Record struct {
	// ID is the source-scoped stable identifier: registry key path,
	// MSI product code, or statefile entry id.
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Version     string `json:"version"`

	// Method is the install-method tag used to select the uninstall
	// adapter.
	Method string `json:"method"`

	// InstallPath is the installation directory when known.
	InstallPath string `json:"installPath,omitempty"`
}

// Source enumerates installed records and resolves uninstall keys.
type Source interface {
	Records() ([]Record, error)
	Key(recordID string) (string, error)
}

// Composite merges several sources. The same product can surface from
// more than one source under different IDs, so records deduplicate by
// ID and by display name plus version, first source wins. Key asks
// each source in order until one can resolve the ID.
type Composite struct {
	sources []Source
}

func NewComposite(sources ...Source) *Composite {
	return &Composite{sources: sources}
}

func (c *Composite) Records() ([]Record, error) {
	seen := make(map[string]bool)
	var all []Record
	for _, src := range c.sources {
		recs, err := src.Records()
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			nameVer := strings.ToLower(rec.DisplayName) + "\x00" + rec.Version
			if seen[rec.ID] || seen[nameVer] {
				continue
			}
			seen[rec.ID] = true
			seen[nameVer] = true
			all = append(all, rec)
		}
	}
	return all, nil
}

func (c *Composite) Key(recordID string) (string, error) {
	var lastErr error
	for _, src := range c.sources {
		key, err := src.Key(recordID)
		if err == nil {
			return key, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no source can resolve record %q", recordID)
	}
	return "", lastErr
}

var productCodeRe = regexp.MustCompile(`^\{[0-9a-fA-F-]{36}\}$`)

// detectMethod infers the install-method tag and uninstall key from a
// registry uninstall entry. keyName is the registry subkey name,
// uninstallString the raw UninstallString value, windowsInstaller the
// WindowsInstaller DWORD flag.
func detectMethod(keyName, uninstallString string, windowsInstaller bool) (string, string) {
	if windowsInstaller || productCodeRe.MatchString(keyName) {
		return "msi", keyName
	}

	exe := firstExecutable(uninstallString)
	lower := strings.ToLower(exe)

	switch {
	case strings.HasSuffix(lower, "unins000.exe"), strings.Contains(lower, "unins0"):
		return "inno", exe
	case strings.HasSuffix(lower, "update.exe") && strings.Contains(strings.ToLower(uninstallString), "--uninstall"):
		return "squirrel", exe
	case strings.HasSuffix(lower, "uninst.exe"), strings.HasSuffix(lower, "uninstall.exe"):
		return "nsis", exe
	default:
		return "exe", exe
	}
}

// firstExecutable extracts the executable path from an UninstallString.
// The value may be quoted, may carry trailing switches, and unquoted
// paths can contain spaces, so the first ".exe" ends the path.
func firstExecutable(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if s[0] == '"' {
		if end := strings.IndexByte(s[1:], '"'); end >= 0 {
			return s[1 : end+1]
		}
		return strings.TrimPrefix(s, `"`)
	}

	if i := strings.Index(strings.ToLower(s), ".exe"); i >= 0 {
		return s[:i+4]
	}

	return strings.Fields(s)[0]
}
