// Package manifest loads and validates package descriptors: the identity,
// installer candidates, and argument overrides that drive one install.
package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gale-deploy/agent/internal/installer"
)

// Installer is one downloadable installer candidate for a package.
// Candidates differ by architecture, OS, or minimum OS version; the
// selector picks the best one for the host.
type Installer struct {
	// Location is where the artifact lives: an absolute URL, or a path
	// relative to a configured repo.
	Location string `yaml:"location"`

	// SHA256 is the expected artifact digest, hex-encoded. Empty skips
	// verification.
	SHA256 string `yaml:"sha256,omitempty"`

	Arch         string `yaml:"arch,omitempty"`
	OS           string `yaml:"os,omitempty"`
	MinOSVersion string `yaml:"minOsVersion,omitempty"`
}

// Package is one package descriptor. Descriptors are immutable for the
// duration of an operation.
type Package struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Method is the install-method tag selecting the installer adapter.
	Method string `yaml:"method"`

	// Args are the package's per-level argument overrides, appended
	// after the adapter's own template tokens.
	Args installer.ArgOverrides `yaml:"args,omitempty"`

	Installers []Installer `yaml:"installers"`

	// InstallPath is where the product lands once installed, when the
	// publisher documents it. Upgrades use it to release held files.
	InstallPath string `yaml:"installPath,omitempty"`

	Homepage string `yaml:"homepage,omitempty"`
}

// DisplayName returns the human-facing name, falling back to the ID.
func (p *Package) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

var (
	sha256Hex  = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	knownOS    = map[string]bool{"windows": true, "darwin": true, "linux": true}
	knownArchs = map[string]bool{"amd64": true, "arm64": true, "386": true}
)

// Validate reports every problem with the descriptor at once.
func (p *Package) Validate() error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, errors.New("package id is required"))
	}
	if p.Version == "" {
		errs = append(errs, errors.New("package version is required"))
	}
	if p.Method == "" {
		errs = append(errs, errors.New("package install method is required"))
	}
	if len(p.Installers) == 0 {
		errs = append(errs, errors.New("package declares no installers"))
	}

	for i, inst := range p.Installers {
		if inst.Location == "" {
			errs = append(errs, fmt.Errorf("installer %d: location is required", i))
		}
		if inst.SHA256 != "" && !sha256Hex.MatchString(inst.SHA256) {
			errs = append(errs, fmt.Errorf("installer %d: sha256 %q is not a 64-char hex digest", i, inst.SHA256))
		}
		if inst.OS != "" && !knownOS[strings.ToLower(inst.OS)] {
			errs = append(errs, fmt.Errorf("installer %d: unknown os %q", i, inst.OS))
		}
		if inst.Arch != "" && !knownArchs[strings.ToLower(inst.Arch)] {
			errs = append(errs, fmt.Errorf("installer %d: unknown arch %q", i, inst.Arch))
		}
	}

	return errors.Join(errs...)
}

// ResolveLocation makes an installer location absolute. Locations that
// already carry a URL scheme (a single-letter scheme is a windows drive
// path) or are absolute paths pass through; anything else is joined to
// the repo base URL.
func ResolveLocation(repoURL, location string) string {
	if location == "" {
		return location
	}
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		return location
	}
	if filepath.IsAbs(location) {
		return location
	}
	if repoURL == "" {
		return location
	}
	return strings.TrimSuffix(repoURL, "/") + "/" + strings.TrimPrefix(location, "/")
}

// Load reads and validates a single package descriptor.
func Load(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a descriptor from YAML bytes.
func Parse(data []byte) (*Package, error) {
	var pkg Package
	if err := yaml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := pkg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest for %q: %w", pkg.DisplayName(), err)
	}
	return &pkg, nil
}

// LoadDir loads every .yaml/.yml descriptor in a directory, sorted by
// package ID. Subdirectories are not descended into.
func LoadDir(dir string) ([]*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read manifest dir: %w", err)
	}

	var pkgs []*Package
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		pkg, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pkgs = append(pkgs, pkg)
	}

	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ID < pkgs[j].ID })
	return pkgs, errors.Join(errs...)
}
