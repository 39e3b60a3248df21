package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
)

var validLevels = map[string]bool{
	"silent":      true,
	"passive":     true,
	"interactive": true,
}

// Schemes the transfer layer has a source for. An empty scheme is a bare
// filesystem path.
var knownRepoSchemes = map[string]bool{
	"":       true,
	"file":   true,
	"http":   true,
	"https":  true,
	"s3":     true,
	"gs":     true,
	"azblob": true,
	"b2":     true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult splits config problems into fatals (refuse to start)
// and warnings (auto-corrected or tolerable).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

func (r *ValidationResult) fatal(format string, args ...any) {
	r.Fatals = append(r.Fatals, fmt.Errorf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Errorf(format, args...))
}

// LogWarnings emits each warning through the given logger.
func (r *ValidationResult) LogWarnings(logger *slog.Logger) {
	for _, err := range r.Warnings {
		logger.Warn("config validation", "error", err)
	}
}

// ValidateTiered checks the config. Values that would break the agent are
// fatal; out-of-range numeric settings are clamped and reported as warnings.
func (c *Config) ValidateTiered() ValidationResult {
	var result ValidationResult

	if c.Interactivity != "" && !validLevels[strings.ToLower(c.Interactivity)] {
		result.fatal("interactivity %q is not valid (use silent, passive, interactive)", c.Interactivity)
	}

	if c.EventsURL != "" {
		u, err := url.Parse(c.EventsURL)
		if err != nil {
			result.fatal("events_url %q is not a valid URL: %v", c.EventsURL, err)
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			result.fatal("events_url scheme must be ws or wss, got %q", u.Scheme)
		}
	}

	if c.EventsToken != "" {
		for _, r := range c.EventsToken {
			if unicode.IsControl(r) {
				result.fatal("events_token contains control characters")
				break
			}
		}
	}

	if (c.EventsClientCert == "") != (c.EventsClientKey == "") {
		result.fatal("events_client_cert and events_client_key must be set together")
	}

	for _, repo := range c.Repos {
		if repo.URL == "" {
			result.fatal("repo %q has an empty url", repo.Name)
			continue
		}
		u, err := url.Parse(repo.URL)
		if err != nil {
			result.fatal("repo %q url %q is not valid: %v", repo.Name, repo.URL, err)
			continue
		}
		if !knownRepoSchemes[strings.ToLower(u.Scheme)] {
			result.fatal("repo %q has unsupported scheme %q", repo.Name, u.Scheme)
		}
	}

	// Clamp concurrency settings to safe range
	if c.MaxConcurrentInstalls < 1 {
		result.warn("max_concurrent_installs %d is below minimum 1, clamping", c.MaxConcurrentInstalls)
		c.MaxConcurrentInstalls = 1
	} else if c.MaxConcurrentInstalls > 16 {
		result.warn("max_concurrent_installs %d exceeds maximum 16, clamping", c.MaxConcurrentInstalls)
		c.MaxConcurrentInstalls = 16
	}

	if c.InstallQueueSize < 1 {
		result.warn("install_queue_size %d is below minimum 1, clamping", c.InstallQueueSize)
		c.InstallQueueSize = 1
	} else if c.InstallQueueSize > 4096 {
		result.warn("install_queue_size %d exceeds maximum 4096, clamping", c.InstallQueueSize)
		c.InstallQueueSize = 4096
	}

	if c.DownloadTimeoutSeconds < 0 {
		result.warn("download_timeout_seconds %d is negative, clamping to 0 (no timeout)", c.DownloadTimeoutSeconds)
		c.DownloadTimeoutSeconds = 0
	}

	if c.LogMaxSizeMB < 0 {
		result.warn("log_max_size_mb %d is negative, clamping to 0", c.LogMaxSizeMB)
		c.LogMaxSizeMB = 0
	}
	if c.LogMaxBackups < 0 {
		result.warn("log_max_backups %d is negative, clamping to 0", c.LogMaxBackups)
		c.LogMaxBackups = 0
	}

	if c.JournalMaxSizeMB < 0 {
		result.warn("journal_max_size_mb %d is negative, clamping to 0", c.JournalMaxSizeMB)
		c.JournalMaxSizeMB = 0
	}
	if c.JournalMaxBackups < 0 {
		result.warn("journal_max_backups %d is negative, clamping to 0", c.JournalMaxBackups)
		c.JournalMaxBackups = 0
	}

	if c.CacheRetentionDays < 0 {
		result.warn("cache_retention_days %d is negative, clamping to 0 (no age bound)", c.CacheRetentionDays)
		c.CacheRetentionDays = 0
	}
	if c.CacheMaxSizeMB < 0 {
		result.warn("cache_max_size_mb %d is negative, clamping to 0 (no size bound)", c.CacheMaxSizeMB)
		c.CacheMaxSizeMB = 0
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.warn("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		result.warn("log_format %q is not valid (use text or json)", c.LogFormat)
	}

	return result
}
