// Package privilege answers whether the current process can drive
// machine-wide installers.
package privilege

import (
	"github.com/gale-deploy/agent/internal/installer"
)

// perUserMethods are install methods that write under the user profile
// and do not need elevation. Everything else is assumed to touch
// Program Files, HKLM, or system services.
var perUserMethods = map[string]bool{
	installer.MethodSquirrel: true,
}

// RequiresElevation reports whether installers of the given method need
// an elevated process to succeed.
func RequiresElevation(method string) bool {
	return !perUserMethods[method]
}
