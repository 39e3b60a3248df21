package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const vlcManifest = `
id: vlc
name: VLC media player
version: 3.0.20
method: msi
args:
  silent: "ALLUSERS=1"
installers:
  - location: https://pkgs.example.com/vlc/vlc-3.0.20-win64.msi
    sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
    arch: amd64
    os: windows
  - location: https://pkgs.example.com/vlc/vlc-3.0.20-win32.msi
    arch: "386"
    os: windows
`

func TestParseValidManifest(t *testing.T) {
	pkg, err := Parse([]byte(vlcManifest))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if pkg.ID != "vlc" || pkg.Version != "3.0.20" || pkg.Method != "msi" {
		t.Fatalf("unexpected package fields: %+v", pkg)
	}
	if len(pkg.Installers) != 2 {
		t.Fatalf("expected 2 installers, got %d", len(pkg.Installers))
	}
	if pkg.Args.Silent != "ALLUSERS=1" {
		t.Fatalf("silent override = %q, want ALLUSERS=1", pkg.Args.Silent)
	}
	if pkg.DisplayName() != "VLC media player" {
		t.Fatalf("DisplayName = %q", pkg.DisplayName())
	}
}

func TestParseCollectsAllValidationErrors(t *testing.T) {
	_, err := Parse([]byte(`
name: broken
installers:
  - location: ""
    sha256: nothex
    arch: sparc
`))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"id is required", "version is required", "method is required", "location is required", "not a 64-char hex digest", "unknown arch"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in error, got: %v", want, err)
		}
	}
}

func TestParseRejectsNoInstallers(t *testing.T) {
	_, err := Parse([]byte("id: x\nversion: 1.0\nmethod: exe\n"))
	if err == nil || !strings.Contains(err.Error(), "declares no installers") {
		t.Fatalf("expected no-installers error, got: %v", err)
	}
}

func TestDisplayNameFallsBackToID(t *testing.T) {
	pkg := &Package{ID: "7zip"}
	if pkg.DisplayName() != "7zip" {
		t.Fatalf("DisplayName = %q, want 7zip", pkg.DisplayName())
	}
}

func TestLoadDirSortsAndSkipsNonManifests(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "zulu.yaml"), "id: zulu\nversion: 1.0\nmethod: exe\ninstallers:\n  - location: https://x/z.exe\n")
	writeFile(t, filepath.Join(dir, "alpha.yml"), "id: alpha\nversion: 2.0\nmethod: msi\ninstallers:\n  - location: https://x/a.msi\n")
	writeFile(t, filepath.Join(dir, "README.md"), "not a manifest")

	pkgs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(pkgs))
	}
	if pkgs[0].ID != "alpha" || pkgs[1].ID != "zulu" {
		t.Fatalf("expected sorted ids, got %s, %s", pkgs[0].ID, pkgs[1].ID)
	}
}

func TestLoadDirReportsBrokenManifests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.yaml"), "id: ok\nversion: 1.0\nmethod: exe\ninstallers:\n  - location: https://x/ok.exe\n")
	writeFile(t, filepath.Join(dir, "bad.yaml"), "id: bad\n")

	pkgs, err := LoadDir(dir)
	if err == nil {
		t.Fatal("expected error for broken manifest")
	}
	if len(pkgs) != 1 || pkgs[0].ID != "ok" {
		t.Fatalf("expected the valid package to still load, got %v", pkgs)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveLocation(t *testing.T) {
	const repo = "https://pkgs.example.com/stable/"

	cases := []struct {
		name     string
		location string
		want     string
	}{
		{"absolute https", "https://cdn.example.com/app.msi", "https://cdn.example.com/app.msi"},
		{"absolute s3", "s3://bucket/app.msi", "s3://bucket/app.msi"},
		{"windows drive path", `C:\staging\app.msi`, `C:\staging\app.msi`},
		{"repo relative", "vlc/vlc-3.0.20.msi", "https://pkgs.example.com/stable/vlc/vlc-3.0.20.msi"},
		{"repo relative with leading slash", "/vlc/vlc-3.0.20.msi", "https://pkgs.example.com/stable/vlc/vlc-3.0.20.msi"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveLocation(repo, tc.location); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestResolveLocationWithoutRepo(t *testing.T) {
	if got := ResolveLocation("", "vlc/app.msi"); got != "vlc/app.msi" {
		t.Errorf("expected relative location to pass through, got %q", got)
	}
}
