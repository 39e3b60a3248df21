package installer

// Install-method tags recognized out of the box.
const (
	MethodMSI      = "msi"
	MethodInno     = "inno"
	MethodNSIS     = "nsis"
	MethodSquirrel = "squirrel"
	MethodExe      = "exe"
)

// msiExitCodes covers the Windows Installer codes worth explaining to an
// operator. Anything else surfaces as a bare exit code.
var msiExitCodes = map[int]string{
	1601: "the windows installer service could not be accessed",
	1602: "user cancelled installation",
	1603: "fatal error during installation",
	1605: "this product is not installed",
	1618: "another installation is already in progress",
	1619: "installation package could not be opened",
	1620: "installation package is invalid",
	1638: "another version of this product is already installed",
	1641: "the installer initiated a restart",
	3010: "a restart is required to complete the installation",
}

var innoExitCodes = map[int]string{
	1: "setup failed to initialize",
	2: "user cancelled installation",
	3: "fatal error preparing installation",
	4: "fatal error during installation",
	5: "installation cancelled before it began",
	6: "setup was forcibly closed",
	7: "installation blocked by another running process",
	8: "a restart is required before installation can continue",
}

var nsisExitCodes = map[int]string{
	1: "installation aborted by user",
	2: "installation aborted by script",
}

// Default returns a registry with the stock adapters for both operation
// sides registered.
func Default() *Registry {
	r := NewRegistry()

	r.MustRegisterInstall(&Adapter{
		Method:      MethodMSI,
		Name:        "Windows Installer",
		SilentArgs:  "/qn /norestart",
		PassiveArgs: "/passive /norestart",
		LogArgs:     "/l*v {logfile}",
		ExitCodes:   msiExitCodes,
		Command: func(artifact string) (string, []string) {
			return "msiexec", []string{"/i", artifact}
		},
	})
	r.MustRegisterUninstall(&Adapter{
		Method:      MethodMSI,
		Name:        "Windows Installer",
		SilentArgs:  "/qn /norestart",
		PassiveArgs: "/passive /norestart",
		LogArgs:     "/l*v {logfile}",
		ExitCodes:   msiExitCodes,
		Command: func(productCode string) (string, []string) {
			return "msiexec", []string{"/x", productCode}
		},
	})

	r.MustRegisterInstall(&Adapter{
		Method:      MethodInno,
		Name:        "Inno Setup",
		SilentArgs:  "/VERYSILENT /SUPPRESSMSGBOXES /NORESTART",
		PassiveArgs: "/SILENT /SUPPRESSMSGBOXES /NORESTART",
		LogArgs:     "/LOG={logfile}",
		ExitCodes:   innoExitCodes,
	})
	r.MustRegisterUninstall(&Adapter{
		Method:      MethodInno,
		Name:        "Inno Setup",
		SilentArgs:  "/VERYSILENT /SUPPRESSMSGBOXES /NORESTART",
		PassiveArgs: "/SILENT /SUPPRESSMSGBOXES /NORESTART",
		LogArgs:     "/LOG={logfile}",
		ExitCodes:   innoExitCodes,
	})

	// NSIS has no passive mode and no built-in logging switch.
	r.MustRegisterInstall(&Adapter{
		Method:     MethodNSIS,
		Name:       "NSIS",
		SilentArgs: "/S",
		ExitCodes:  nsisExitCodes,
	})
	r.MustRegisterUninstall(&Adapter{
		Method:     MethodNSIS,
		Name:       "NSIS",
		SilentArgs: "/S",
		ExitCodes:  nsisExitCodes,
	})

	r.MustRegisterInstall(&Adapter{
		Method:     MethodSquirrel,
		Name:       "Squirrel",
		SilentArgs: "--silent",
	})
	// Squirrel apps uninstall through their Update.exe, recorded as the
	// record key.
	r.MustRegisterUninstall(&Adapter{
		Method:     MethodSquirrel,
		Name:       "Squirrel",
		SilentArgs: "--silent",
		Command: func(updateExe string) (string, []string) {
			return updateExe, []string{"--uninstall"}
		},
	})

	// Generic executables carry no known switches; packages supply their
	// own overrides.
	r.MustRegisterInstall(&Adapter{
		Method: MethodExe,
		Name:   "Executable",
	})
	r.MustRegisterUninstall(&Adapter{
		Method: MethodExe,
		Name:   "Executable",
	})

	return r
}
