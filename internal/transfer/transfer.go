// Package transfer fetches installer artifacts from package repositories
// into the local cache, verifying integrity on the way.
package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gale-deploy/agent/internal/logging"
)

var log = logging.L("transfer")

// Source downloads one URL scheme family into an open destination file.
// Implementations may write sequentially or with ranged writes; the file
// is truncated between retry attempts.
type Source interface {
	Schemes() []string
	Get(ctx context.Context, u *url.URL, dst *os.File) error
}

// IntegrityError means the downloaded artifact did not match its
// expected digest. Integrity failures are never retried: a repeat
// download of a corrupted repo object would fetch the same bytes.
type IntegrityError struct {
	Location string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Location, e.Expected, e.Actual)
}

// Service routes fetches to the source registered for the location's
// scheme, retries transport failures with exponential backoff, and
// verifies the SHA-256 digest before handing the path back.
type Service struct {
	sources map[string]Source
	timeout time.Duration
}

// NewService builds a service over the given sources. timeout bounds one
// whole fetch including retries; zero means no bound.
func NewService(timeout time.Duration, srcs ...Source) *Service {
	m := make(map[string]Source)
	for _, src := range srcs {
		for _, scheme := range src.Schemes() {
			m[scheme] = src
		}
	}
	return &Service{sources: m, timeout: timeout}
}

// Fetch downloads location into destDir and returns the local path.
// When expectedSHA256 is non-empty the artifact is verified first; a
// path is never returned for content that failed verification.
func (s *Service) Fetch(ctx context.Context, location, destDir, expectedSHA256 string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse artifact location %q: %w", location, err)
	}

	// A single-letter scheme is a Windows drive path, not a URL.
	if len(u.Scheme) == 1 {
		u = &url.URL{Path: location}
	}

	src, ok := s.sources[u.Scheme]
	if !ok {
		return "", fmt.Errorf("no transfer source for scheme %q", u.Scheme)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	finalPath := filepath.Join(destDir, artifactName(u))
	tmp, err := os.OpenFile(finalPath+".partial", os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	operation := func() error {
		if err := tmp.Truncate(0); err != nil {
			return backoff.Permanent(fmt.Errorf("reset download file: %w", err))
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(fmt.Errorf("reset download file: %w", err))
		}
		if err := src.Get(ctx, u, tmp); err != nil {
			log.Warn("download attempt failed", "location", location, "error", err)
			return err
		}
		return nil
	}

	backOff := &backoff.ExponentialBackOff{
		InitialInterval:     time.Second,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         15 * time.Second,
		MaxElapsedTime:      5 * time.Minute,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	backOff.Reset()

	if err := backoff.Retry(operation, backoff.WithContext(backOff, ctx)); err != nil {
		return "", fmt.Errorf("download %s: %w", location, err)
	}

	if expectedSHA256 != "" {
		actual, err := fileSHA256(tmp)
		if err != nil {
			return "", fmt.Errorf("hash downloaded artifact: %w", err)
		}
		if !strings.EqualFold(actual, expectedSHA256) {
			return "", &IntegrityError{Location: location, Expected: strings.ToLower(expectedSHA256), Actual: actual}
		}
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close download file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("move artifact into cache: %w", err)
	}

	log.Info("artifact fetched", "location", location, "path", finalPath)
	return finalPath, nil
}

func fileSHA256(f *os.File) (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// artifactName derives a safe cache file name from the URL.
func artifactName(u *url.URL) string {
	name := path.Base(u.Path)
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == "/" {
		name = "artifact"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
