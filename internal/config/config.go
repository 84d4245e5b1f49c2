package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/italolelis/politodown/internal/catalog"
	"github.com/kelseyhightower/envconfig"
)

// Remote session kinds.
const (
	RemotePortal = "portal"
	RemotePutio  = "putio"
)

// Config struct for environment variables.
type Config struct {
	Remote string `envconfig:"REMOTE" default:"portal"`

	PortalBaseURL string `envconfig:"PORTAL_BASE_URL"`
	PortalToken   string `envconfig:"PORTAL_TOKEN"`

	PutioToken    string `envconfig:"PUTIO_TOKEN"`
	PutioFolderID int64  `envconfig:"PUTIO_FOLDER_ID" default:"0"`

	Category        string `envconfig:"CATEGORY" default:"Materiali"`
	Year            string `envconfig:"YEAR" required:"true"`
	Material        string `envconfig:"MATERIAL"`
	Assignment      string `envconfig:"ASSIGNMENT"`
	VideoCollection string `envconfig:"VIDEO_COLLECTION"`
	VideoStore      string `envconfig:"VIDEO_STORE"`

	TargetDir        string        `envconfig:"TARGET_DIR" required:"true"`
	RetryDelay       time.Duration `envconfig:"RETRY_DELAY" default:"5s"`
	RetryMaxAttempts uint          `envconfig:"RETRY_MAX_ATTEMPTS" default:"0"`
	Progress         bool          `envconfig:"PROGRESS" default:"true"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`
	DBPath            string `envconfig:"DB_PATH"`
	TelemetryEnabled  bool   `envconfig:"TELEMETRY_ENABLED" default:"false"`
	OTLPEndpoint      string `envconfig:"OTLP_ENDPOINT"`

	Web struct {
		BindAddress     string        `split_words:"true"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the remote is usable and the selection is complete.
func (c *Config) Validate() error {
	var errs []error

	switch c.Remote {
	case RemotePortal:
		if c.PortalBaseURL == "" {
			errs = append(errs, errors.New("PORTAL_BASE_URL is required for the portal remote"))
		}

		if c.PortalToken == "" {
			errs = append(errs, errors.New("PORTAL_TOKEN is required for the portal remote"))
		}
	case RemotePutio:
		if c.PutioToken == "" {
			errs = append(errs, errors.New("PUTIO_TOKEN is required for the putio remote"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown REMOTE %q: use %s or %s", c.Remote, RemotePortal, RemotePutio))
	}

	switch c.Category {
	case catalog.CategoryMaterials:
		if c.Material == "" || c.Assignment == "" {
			errs = append(errs, errors.New("MATERIAL and ASSIGNMENT are required for Materiali"))
		}
	case catalog.CategoryVideos:
		if c.VideoCollection == "" || c.VideoStore == "" {
			errs = append(errs, errors.New("VIDEO_COLLECTION and VIDEO_STORE are required for Videolezioni"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CATEGORY %q: use %s or %s", c.Category, catalog.CategoryMaterials, catalog.CategoryVideos))
	}

	if c.RetryDelay <= 0 {
		errs = append(errs, errors.New("RETRY_DELAY must be positive"))
	}

	return errors.Join(errs...)
}

// Selection is the catalog selection described by the config.
func (c *Config) Selection() catalog.Selection {
	return catalog.Selection{
		Category:        c.Category,
		Year:            c.Year,
		Material:        c.Material,
		Assignment:      c.Assignment,
		VideoCollection: c.VideoCollection,
		VideoStore:      c.VideoStore,
	}
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
