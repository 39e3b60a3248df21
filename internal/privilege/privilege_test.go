package privilege

import (
	"os"
	"runtime"
	"testing"

	"github.com/gale-deploy/agent/internal/installer"
)

func TestRequiresElevation(t *testing.T) {
	cases := []struct {
		method string
		want   bool
	}{
		{installer.MethodMSI, true},
		{installer.MethodInno, true},
		{installer.MethodNSIS, true},
		{installer.MethodExe, true},
		{installer.MethodSquirrel, false},
		{"somethingelse", true},
	}

	for _, tc := range cases {
		if got := RequiresElevation(tc.method); got != tc.want {
			t.Errorf("RequiresElevation(%q) = %v, want %v", tc.method, got, tc.want)
		}
	}
}

func TestIsElevatedMatchesEUID(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("euid has no meaning on windows")
	}
	// The test environment may or may not be root; either way the result
	// must agree with the effective UID.
	want := os.Geteuid() == 0
	if got := IsElevated(); got != want {
		t.Fatalf("IsElevated() = %v, want %v", got, want)
	}
}
