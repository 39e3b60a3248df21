package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type stubSource struct {
	scheme   string
	content  []byte
	failures int
	calls    int
}

func (s *stubSource) Schemes() []string {
	return []string{s.scheme}
}

func (s *stubSource) Get(ctx context.Context, u *url.URL, dst *os.File) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("transient transport error")
	}
	_, err := dst.Write(s.content)
	return err
}

func digest(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func TestFetchDownloadsAndVerifies(t *testing.T) {
	content := []byte("installer bytes")
	src := &stubSource{scheme: "stub", content: content}
	svc := NewService(time.Minute, src)

	dir := t.TempDir()
	path, err := svc.Fetch(context.Background(), "stub://repo/vlc-3.0.20.msi", dir, digest(content))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if filepath.Base(path) != "vlc-3.0.20.msi" {
		t.Fatalf("unexpected artifact name %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("artifact content = %q, want %q", got, content)
	}
}

func TestFetchChecksumMismatchReturnsNoPath(t *testing.T) {
	src := &stubSource{scheme: "stub", content: []byte("tampered")}
	svc := NewService(time.Minute, src)

	dir := t.TempDir()
	path, err := svc.Fetch(context.Background(), "stub://repo/app.msi", dir, digest([]byte("expected")))

	if path != "" {
		t.Fatalf("expected no path on integrity failure, got %q", path)
	}
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected *IntegrityError, got %v", err)
	}
	if integrity.Expected == integrity.Actual {
		t.Fatal("expected differing digests in error")
	}

	// The partial download must not linger in the cache.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read cache dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected clean cache dir, found %v", entries)
	}
}

func TestFetchChecksumMismatchDoesNotRetry(t *testing.T) {
	src := &stubSource{scheme: "stub", content: []byte("wrong")}
	svc := NewService(time.Minute, src)

	_, err := svc.Fetch(context.Background(), "stub://repo/app.msi", t.TempDir(), digest([]byte("right")))
	if err == nil {
		t.Fatal("expected integrity error")
	}
	if src.calls != 1 {
		t.Fatalf("expected a single download attempt, got %d", src.calls)
	}
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	content := []byte("eventually fine")
	src := &stubSource{scheme: "stub", content: content, failures: 1}
	svc := NewService(time.Minute, src)

	path, err := svc.Fetch(context.Background(), "stub://repo/app.exe", t.TempDir(), digest(content))
	if err != nil {
		t.Fatalf("Fetch failed after retry: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", src.calls)
	}
	if path == "" {
		t.Fatal("expected a path after successful retry")
	}
}

func TestFetchUnknownSchemeFails(t *testing.T) {
	svc := NewService(time.Minute, &stubSource{scheme: "stub"})
	_, err := svc.Fetch(context.Background(), "gopher://old/app.exe", t.TempDir(), "")
	if err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}

func TestFetchWithoutDigestSkipsVerification(t *testing.T) {
	src := &stubSource{scheme: "stub", content: []byte("anything")}
	svc := NewService(time.Minute, src)

	path, err := svc.Fetch(context.Background(), "stub://repo/app.exe", t.TempDir(), "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if path == "" {
		t.Fatal("expected a path")
	}
}

func TestArtifactNameSanitizing(t *testing.T) {
	cases := []struct {
		location string
		want     string
	}{
		{"stub://repo/dir/My App Setup.exe", "My_App_Setup.exe"},
		{"stub://repo/", "artifact"},
	}
	for _, tc := range cases {
		u, err := url.Parse(tc.location)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.location, err)
		}
		if got := artifactName(u); got != tc.want {
			t.Fatalf("artifactName(%q) = %q, want %q", tc.location, got, tc.want)
		}
	}
}
