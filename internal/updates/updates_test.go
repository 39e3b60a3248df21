package updates

import (
	"path/filepath"
	"testing"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(filepath.Join(t.TempDir(), "updates.json"))
}

func TestUpdatesForUnknownPackage(t *testing.T) {
	tr := newTestTracker(t)
	prior, err := tr.UpdatesFor("vlc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prior) != 0 {
		t.Fatalf("expected no prior installations, got %+v", prior)
	}
}

func TestNoteAndLookup(t *testing.T) {
	tr := newTestTracker(t)

	if err := tr.Note("vlc", "3.0.19", `C:\Program Files\VideoLAN\VLC`); err != nil {
		t.Fatalf("note: %v", err)
	}
	if err := tr.Note("vlc", "3.0.20", `C:\Program Files\VideoLAN\VLC`); err != nil {
		t.Fatalf("note: %v", err)
	}
	if err := tr.Note("7zip", "23.01", ""); err != nil {
		t.Fatalf("note: %v", err)
	}

	prior, err := tr.UpdatesFor("vlc")
	if err != nil {
		t.Fatalf("updatesFor: %v", err)
	}
	if len(prior) != 2 {
		t.Fatalf("expected 2 prior installations, got %d", len(prior))
	}
	if prior[0].Version != "3.0.19" || prior[1].Version != "3.0.20" {
		t.Fatalf("expected oldest-first order, got %+v", prior)
	}
	if prior[0].InstalledAt.IsZero() {
		t.Error("expected install timestamp to be set")
	}

	prior, err = tr.UpdatesFor("7zip")
	if err != nil {
		t.Fatalf("updatesFor: %v", err)
	}
	if len(prior) != 1 || prior[0].InstallPath != "" {
		t.Fatalf("expected single pathless entry, got %+v", prior)
	}
}

func TestNoteSameVersionReplaces(t *testing.T) {
	tr := newTestTracker(t)

	if err := tr.Note("vlc", "3.0.20", `C:\old`); err != nil {
		t.Fatalf("note: %v", err)
	}
	if err := tr.Note("vlc", "3.0.20", `C:\new`); err != nil {
		t.Fatalf("note: %v", err)
	}

	prior, err := tr.UpdatesFor("vlc")
	if err != nil {
		t.Fatalf("updatesFor: %v", err)
	}
	if len(prior) != 1 {
		t.Fatalf("expected reinstall to replace entry, got %+v", prior)
	}
	if prior[0].InstallPath != `C:\new` {
		t.Fatalf("expected replacement path, got %q", prior[0].InstallPath)
	}
}

func TestForget(t *testing.T) {
	tr := newTestTracker(t)

	if err := tr.Note("vlc", "3.0.20", ""); err != nil {
		t.Fatalf("note: %v", err)
	}
	if err := tr.Forget("vlc"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	prior, err := tr.UpdatesFor("vlc")
	if err != nil {
		t.Fatalf("updatesFor: %v", err)
	}
	if len(prior) != 0 {
		t.Fatalf("expected empty history after forget, got %+v", prior)
	}

	if err := tr.Forget("never-seen"); err != nil {
		t.Fatalf("forget of unknown package: %v", err)
	}
}
