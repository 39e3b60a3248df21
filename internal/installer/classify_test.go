package installer

import "testing"

func TestClassifyZeroIsSuccess(t *testing.T) {
	ad := &Adapter{Method: "msi", ExitCodes: msiExitCodes}

	// Success carries neither reason nor log path, even when the run
	// was logging.
	res := Classify(0, ad, "/var/log/gale/vlc.log")
	if !res.Succeeded {
		t.Fatal("exit code 0 should classify as success")
	}
	if res.Reason != "" {
		t.Fatalf("unexpected reason on success: %q", res.Reason)
	}
	if res.LogPath != "" {
		t.Fatalf("unexpected log path on success: %q", res.LogPath)
	}
}

func TestClassifyMappedCodeCarriesReason(t *testing.T) {
	ad := &Adapter{Method: "msi", ExitCodes: msiExitCodes}

	res := Classify(1603, ad, "/var/log/gale/vlc.log")
	if res.Succeeded {
		t.Fatal("exit code 1603 should classify as failure")
	}
	if res.Reason != "fatal error during installation" {
		t.Fatalf("reason = %q, want mapped msi reason", res.Reason)
	}
	if res.LogPath != "/var/log/gale/vlc.log" {
		t.Fatalf("LogPath = %q, want the applied log path", res.LogPath)
	}
	if res.ExitCode != 1603 {
		t.Fatalf("ExitCode = %d, want 1603", res.ExitCode)
	}
}

func TestClassifyUnmappedCodeHasEmptyReason(t *testing.T) {
	ad := &Adapter{Method: "msi", ExitCodes: msiExitCodes}

	res := Classify(42, ad, "")
	if res.Succeeded {
		t.Fatal("non-zero exit code should classify as failure")
	}
	if res.Reason != "" {
		t.Fatalf("reason = %q, want empty for unmapped code", res.Reason)
	}
}

func TestClassifyNilTableIsSafe(t *testing.T) {
	ad := &Adapter{Method: "exe"}

	res := Classify(7, ad, "")
	if res.Succeeded || res.Reason != "" {
		t.Fatalf("unexpected result for adapter without table: %+v", res)
	}
}

func TestClassifyNoLogPathWhenLoggingNotApplied(t *testing.T) {
	ad := &Adapter{Method: "nsis", ExitCodes: nsisExitCodes}

	res := Classify(1, ad, "")
	if res.LogPath != "" {
		t.Fatalf("LogPath = %q, want empty when no logging was requested", res.LogPath)
	}
	if res.Reason != "installation aborted by user" {
		t.Fatalf("reason = %q, want nsis abort reason", res.Reason)
	}
}
