package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Repo is a package repository the agent can fetch installers from.
// URL schemes map to transfer sources: http(s), s3, gs, azblob, b2, file.
type Repo struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type Config struct {
	CacheDir               string `mapstructure:"cache_dir"`
	LogDir                 string `mapstructure:"log_dir"`
	StateDir               string `mapstructure:"state_dir"`
	LogLevel               string `mapstructure:"log_level"`
	LogFormat              string `mapstructure:"log_format"`
	LogFile                string `mapstructure:"log_file"`
	LogMaxSizeMB           int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups          int    `mapstructure:"log_max_backups"`
	Interactivity          string `mapstructure:"interactivity"`
	EventsURL              string `mapstructure:"events_url"`
	EventsToken            string `mapstructure:"events_token"`
	EventsClientCert       string `mapstructure:"events_client_cert"`
	EventsClientKey        string `mapstructure:"events_client_key"`
	EventsCACert           string `mapstructure:"events_ca_cert"`
	JournalMaxSizeMB       int    `mapstructure:"journal_max_size_mb"`
	JournalMaxBackups      int    `mapstructure:"journal_max_backups"`
	CacheRetentionDays     int    `mapstructure:"cache_retention_days"`
	CacheMaxSizeMB         int    `mapstructure:"cache_max_size_mb"`
	MaxConcurrentInstalls  int    `mapstructure:"max_concurrent_installs"`
	InstallQueueSize       int    `mapstructure:"install_queue_size"`
	DownloadTimeoutSeconds int    `mapstructure:"download_timeout_seconds"`
	Repos                  []Repo `mapstructure:"repos"`
}

func Default() *Config {
	return &Config{
		CacheDir:               filepath.Join(dataDir(), "cache"),
		LogDir:                 filepath.Join(dataDir(), "logs"),
		StateDir:               filepath.Join(dataDir(), "state"),
		LogLevel:               "info",
		LogFormat:              "text",
		LogMaxSizeMB:           20,
		LogMaxBackups:          4,
		Interactivity:          "silent",
		JournalMaxSizeMB:       50,
		JournalMaxBackups:      3,
		CacheRetentionDays:     30,
		MaxConcurrentInstalls:  2,
		InstallQueueSize:       64,
		DownloadTimeoutSeconds: 600,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GALE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("cache_dir", cfg.CacheDir)
	viper.Set("log_dir", cfg.LogDir)
	viper.Set("state_dir", cfg.StateDir)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("log_file", cfg.LogFile)
	viper.Set("log_max_size_mb", cfg.LogMaxSizeMB)
	viper.Set("log_max_backups", cfg.LogMaxBackups)
	viper.Set("interactivity", cfg.Interactivity)
	viper.Set("events_url", cfg.EventsURL)
	viper.Set("events_token", cfg.EventsToken)
	viper.Set("events_client_cert", cfg.EventsClientCert)
	viper.Set("events_client_key", cfg.EventsClientKey)
	viper.Set("events_ca_cert", cfg.EventsCACert)
	viper.Set("journal_max_size_mb", cfg.JournalMaxSizeMB)
	viper.Set("journal_max_backups", cfg.JournalMaxBackups)
	viper.Set("cache_retention_days", cfg.CacheRetentionDays)
	viper.Set("cache_max_size_mb", cfg.CacheMaxSizeMB)
	viper.Set("max_concurrent_installs", cfg.MaxConcurrentInstalls)
	viper.Set("install_queue_size", cfg.InstallQueueSize)
	viper.Set("download_timeout_seconds", cfg.DownloadTimeoutSeconds)
	viper.Set("repos", cfg.Repos)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "agent.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (contains events token)
	return os.Chmod(cfgPath, 0600)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Gale")
	case "darwin":
		return "/Library/Application Support/Gale"
	default:
		return "/etc/gale"
	}
}

// ManifestDir is where package manifests live unless overridden.
func ManifestDir() string {
	return filepath.Join(configDir(), "manifests")
}

func dataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Gale")
	case "darwin":
		return "/Library/Application Support/Gale"
	default:
		return "/var/lib/gale"
	}
}
