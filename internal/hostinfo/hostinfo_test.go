package hostinfo

import (
	"runtime"
	"testing"
)

func TestCollectAlwaysKnowsOSAndArch(t *testing.T) {
	h := Collect()
	if h.OS != runtime.GOOS {
		t.Fatalf("OS = %q, want %q", h.OS, runtime.GOOS)
	}
	if h.Arch != runtime.GOARCH {
		t.Fatalf("Arch = %q, want %q", h.Arch, runtime.GOARCH)
	}
}
