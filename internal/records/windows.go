//go:build windows

package records

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows/registry"

	"github.com/gale-deploy/agent/internal/logging"
)

var log = logging.L("records")

var uninstallHives = []string{
	`Software\Microsoft\Windows\CurrentVersion\Uninstall`,
	`Software\Wow6432Node\Microsoft\Windows\CurrentVersion\Uninstall`,
}

// RegistrySource enumerates the Windows uninstall hives, covering both
// 64-bit and 32-bit installs. Record IDs are full registry key paths.
type RegistrySource struct{}

func (RegistrySource) Records() ([]Record, error) {
	var recs []Record
	for _, hive := range uninstallHives {
		key, err := registry.OpenKey(registry.LOCAL_MACHINE, hive, registry.READ)
		if err != nil {
			continue
		}

		names, err := key.ReadSubKeyNames(-1)
		if err != nil {
			key.Close()
			return nil, fmt.Errorf("enumerate %s: %w", hive, err)
		}
		key.Close()

		for _, name := range names {
			fullPath := hive + `\` + name
			rec, ok := readUninstallEntry(fullPath, name)
			if !ok {
				continue
			}
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (RegistrySource) Key(recordID string) (string, error) {
	subkey := recordID
	if i := strings.LastIndex(recordID, `\`); i >= 0 {
		subkey = recordID[i+1:]
	}

	key, err := registry.OpenKey(registry.LOCAL_MACHINE, recordID, registry.READ)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", recordID, err)
	}
	defer key.Close()

	uninstallString, _, _ := key.GetStringValue("UninstallString")
	windowsInstaller, _, _ := key.GetIntegerValue("WindowsInstaller")

	_, opaque := detectMethod(subkey, uninstallString, windowsInstaller == 1)
	if opaque == "" {
		return "", fmt.Errorf("record %s has no uninstall command", recordID)
	}
	return opaque, nil
}

// readUninstallEntry reads one uninstall subkey. Entries without a
// display name are updates and components, not applications.
func readUninstallEntry(fullPath, subkey string) (Record, bool) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, fullPath, registry.READ)
	if err != nil {
		return Record{}, false
	}
	defer key.Close()

	displayName, _, err := key.GetStringValue("DisplayName")
	if err != nil || displayName == "" {
		return Record{}, false
	}
	if systemComponent, _, err := key.GetIntegerValue("SystemComponent"); err == nil && systemComponent == 1 {
		return Record{}, false
	}

	version, _, _ := key.GetStringValue("DisplayVersion")
	uninstallString, _, _ := key.GetStringValue("UninstallString")
	installLocation, _, _ := key.GetStringValue("InstallLocation")
	windowsInstaller, _, _ := key.GetIntegerValue("WindowsInstaller")

	method, opaque := detectMethod(subkey, uninstallString, windowsInstaller == 1)
	if opaque == "" {
		log.Debug("skipping uninstall entry without command", "key", fullPath, "name", displayName)
		return Record{}, false
	}

	return Record{
		ID:          fullPath,
		DisplayName: displayName,
		Version:     version,
		Method:      method,
		InstallPath: installLocation,
	}, true
}
