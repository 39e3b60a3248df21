package installer

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildArgumentsAdapterTokensPrecedePackageTokens(t *testing.T) {
	ad := &Adapter{Method: "msi", SilentArgs: "/qn /norestart"}
	pkg := ArgOverrides{Silent: "TARGETDIR=C:\\apps REBOOT=ReallySuppress"}

	args := BuildArguments(Silent, pkg, ad, "")

	want := []string{"/qn", "/norestart", "TARGETDIR=C:\\apps", "REBOOT=ReallySuppress"}
	if !reflect.DeepEqual(args.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", args.Tokens, want)
	}
}

func TestBuildArgumentsTrimsRaggedTemplates(t *testing.T) {
	ad := &Adapter{Method: "inno", SilentArgs: "  /VERYSILENT   /NORESTART  "}
	args := BuildArguments(Silent, ArgOverrides{}, ad, "")

	want := []string{"/VERYSILENT", "/NORESTART"}
	if !reflect.DeepEqual(args.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", args.Tokens, want)
	}
}

func TestBuildArgumentsAppliesAdapterLogTemplate(t *testing.T) {
	ad := &Adapter{Method: "msi", SilentArgs: "/qn", LogArgs: "/l*v {logfile}"}
	args := BuildArguments(Silent, ArgOverrides{}, ad, "/var/log/gale/vlc.log")

	want := []string{"/qn", "/l*v", "/var/log/gale/vlc.log"}
	if !reflect.DeepEqual(args.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", args.Tokens, want)
	}
	if args.LogPath != "/var/log/gale/vlc.log" {
		t.Fatalf("LogPath = %q, want the resolved path", args.LogPath)
	}
}

func TestBuildArgumentsPackageLogOverrideWins(t *testing.T) {
	ad := &Adapter{Method: "inno", SilentArgs: "/VERYSILENT", LogArgs: "/LOG={logfile}"}
	pkg := ArgOverrides{Log: "/CUSTOMLOG={logfile}"}

	args := BuildArguments(Silent, pkg, ad, "/tmp/x.log")

	want := []string{"/VERYSILENT", "/CUSTOMLOG=/tmp/x.log"}
	if !reflect.DeepEqual(args.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", args.Tokens, want)
	}
}

func TestBuildArgumentsNoLogTemplateMeansNoLogPath(t *testing.T) {
	ad := &Adapter{Method: "nsis", SilentArgs: "/S"}
	args := BuildArguments(Silent, ArgOverrides{}, ad, "/tmp/would-be.log")

	if args.LogPath != "" {
		t.Fatalf("LogPath = %q, want empty when no logging template exists", args.LogPath)
	}
	want := []string{"/S"}
	if !reflect.DeepEqual(args.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", args.Tokens, want)
	}
}

func TestArgumentsStringQuotesWhitespaceTokens(t *testing.T) {
	args := Arguments{Tokens: []string{"/qn", "/l*v", `C:\logs\my app.log`}}
	got := args.String()
	if !strings.Contains(got, `"C:\logs\my app.log"`) {
		t.Fatalf("expected quoted log path in %q", got)
	}
	if !strings.HasPrefix(got, "/qn /l*v ") {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestBuildArgumentsSilentRequestOnInteractiveOnlyAdapter(t *testing.T) {
	// A package asks for silent but the adapter only has an interactive
	// template: the resolver lands on interactive and the built command
	// is the adapter's interactive template plus the package's override.
	ad := &Adapter{Method: "exe", InteractiveArgs: "--wizard"}
	pkg := ArgOverrides{Interactive: "--locale=en"}

	level := ResolveLevel(Silent, pkg, ad)
	if level != Interactive {
		t.Fatalf("effective level = %s, want interactive", level)
	}

	args := BuildArguments(level, pkg, ad, "")
	want := []string{"--wizard", "--locale=en"}
	if !reflect.DeepEqual(args.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", args.Tokens, want)
	}
}

func TestLogFilePathSanitizesPackageID(t *testing.T) {
	got := LogFilePath("/var/log/gale", "weird/pkg name")
	if strings.ContainsAny(got[len("/var/log/gale/"):], "/ ") {
		t.Fatalf("expected sanitized file name, got %q", got)
	}
	if !strings.HasPrefix(got, "/var/log/gale/weird_pkg_name-") {
		t.Fatalf("unexpected log path %q", got)
	}
	if !strings.HasSuffix(got, ".log") {
		t.Fatalf("expected .log suffix, got %q", got)
	}
}
