//go:build windows

package privilege

import (
	"golang.org/x/sys/windows"
)

// IsElevated reports whether the process token carries administrator
// rights. Unelevated MSI installs typically die with exit code 1925.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
