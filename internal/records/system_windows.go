//go:build windows

package records

// NewSystemSource returns the full installed-software view for this
// host: uninstall registry hives, the Windows Installer product list,
// and the agent's own statefile.
func NewSystemSource(statePath string) Source {
	return NewComposite(RegistrySource{}, MSISource{}, NewStateSource(statePath))
}
