//go:build !windows

package records

// NewSystemSource returns the installed-software view for this host.
// Without a system uninstall registry the agent's statefile is the
// only source.
func NewSystemSource(statePath string) Source {
	return NewComposite(NewStateSource(statePath))
}
