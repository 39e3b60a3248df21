package installer

import (
	"fmt"
)

// Adapter describes one installer technology: the argument templates for
// each interactivity level, the exit-code reason table, and how to turn
// an install artifact (or uninstall key) into a runnable command.
type Adapter struct {
	// Method is the install-method tag packages and installed records
	// carry. Exactly one adapter per registry side may claim a tag.
	Method string

	// Name is the human-readable installer family name.
	Name string

	SilentArgs      string
	PassiveArgs     string
	InteractiveArgs string

	// LogArgs is the logging argument template. It may contain
	// LogPlaceholder, which the argument builder replaces with the
	// resolved log file path.
	LogArgs string

	// ExitCodes maps non-zero process exit codes to human-readable
	// failure reasons. Codes absent from the table still classify as
	// failures, just without a reason.
	ExitCodes map[int]string

	// Command resolves the executable and leading arguments for a
	// target: the downloaded artifact path on the install side, the
	// record's opaque key on the uninstall side. A nil Command runs
	// the target itself.
	Command func(target string) (exe string, args []string)
}

func (ad *Adapter) templateFor(l Level) string {
	switch l {
	case Silent:
		return ad.SilentArgs
	case Passive:
		return ad.PassiveArgs
	case Interactive:
		return ad.InteractiveArgs
	}
	return ""
}

// Resolve returns the executable and leading arguments for the target.
func (ad *Adapter) Resolve(target string) (string, []string) {
	if ad.Command == nil {
		return target, nil
	}
	return ad.Command(target)
}

// AdapterNotFoundError indicates no registered adapter claims the
// install-method tag. There is no fallback installer technology, so this
// aborts the operation.
type AdapterNotFoundError struct {
	Method string
}

func (e *AdapterNotFoundError) Error() string {
	return fmt.Sprintf("no installer adapter registered for method %q", e.Method)
}

// Registry holds the install-side and uninstall-side adapters, keyed by
// install-method tag. Registration happens once at process start; the
// registry is read-only afterwards and safe for concurrent lookups.
type Registry struct {
	install   map[string]*Adapter
	uninstall map[string]*Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		install:   make(map[string]*Adapter),
		uninstall: make(map[string]*Adapter),
	}
}

// RegisterInstall adds an install-side adapter. A second adapter claiming
// the same method tag is a configuration error.
func (r *Registry) RegisterInstall(ad *Adapter) error {
	if _, dup := r.install[ad.Method]; dup {
		return fmt.Errorf("install adapter already registered for method %q", ad.Method)
	}
	r.install[ad.Method] = ad
	return nil
}

// RegisterUninstall adds an uninstall-side adapter.
func (r *Registry) RegisterUninstall(ad *Adapter) error {
	if _, dup := r.uninstall[ad.Method]; dup {
		return fmt.Errorf("uninstall adapter already registered for method %q", ad.Method)
	}
	r.uninstall[ad.Method] = ad
	return nil
}

// MustRegisterInstall is RegisterInstall that panics on a duplicate tag.
func (r *Registry) MustRegisterInstall(ad *Adapter) {
	if err := r.RegisterInstall(ad); err != nil {
		panic(err)
	}
}

// MustRegisterUninstall is RegisterUninstall that panics on a duplicate tag.
func (r *Registry) MustRegisterUninstall(ad *Adapter) {
	if err := r.RegisterUninstall(ad); err != nil {
		panic(err)
	}
}

// Install returns the install-side adapter for the method tag.
func (r *Registry) Install(method string) (*Adapter, error) {
	ad, ok := r.install[method]
	if !ok {
		return nil, &AdapterNotFoundError{Method: method}
	}
	return ad, nil
}

// Uninstall returns the uninstall-side adapter for the method tag.
func (r *Registry) Uninstall(method string) (*Adapter, error) {
	ad, ok := r.uninstall[method]
	if !ok {
		return nil, &AdapterNotFoundError{Method: method}
	}
	return ad, nil
}

// Methods lists the install-method tags with an install-side adapter.
func (r *Registry) Methods() []string {
	methods := make([]string, 0, len(r.install))
	for m := range r.install {
		methods = append(methods, m)
	}
	return methods
}
