// Package config loads server configuration from defaults, an optional
// YAML or TOML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sosodev/duration"
	"gopkg.in/yaml.v3"

	"github.com/quentinrf/geiger-monitor/internal/poller"
)

// Repository backends.
const (
	RepoMemory   = "memory"
	RepoSQLite   = "sqlite"
	RepoPostgres = "postgres"
)

// TLS holds certificate paths. Empty Cert disables TLS.
type TLS struct {
	Cert string `yaml:"cert" toml:"cert"` // path to this service's certificate
	Key  string `yaml:"key" toml:"key"`   // path to this service's private key
	CA   string `yaml:"ca" toml:"ca"`     // path to the CA certificate
}

// Config holds application configuration
type Config struct {
	Port        string `yaml:"port" toml:"port"`
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr"` // empty disables the metrics listener

	RepoType    string        `yaml:"repo_type" toml:"repo_type"`       // "memory" | "sqlite" | "postgres"
	DBPath      string        `yaml:"db_path" toml:"db_path"`           // used when RepoType=sqlite
	DatabaseURL string        `yaml:"database_url" toml:"database_url"` // used when RepoType=postgres
	Retention   time.Duration `yaml:"retention" toml:"retention"`

	StartPoller    bool          `yaml:"start_poller" toml:"start_poller"`
	PollInterval   time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	SerialSimulate bool          `yaml:"serial_simulate" toml:"serial_simulate"`
	Poller         poller.Config `yaml:"poller" toml:"poller"`

	// PollerLegacy accepts the flat legacy key shape and replaces Poller.
	PollerLegacy map[string]any `yaml:"poller_legacy" toml:"poller_legacy"`

	Threshold     int64 `yaml:"geiger_threshold" toml:"geiger_threshold"`
	WindowMinutes int   `yaml:"analytics_window_minutes" toml:"analytics_window_minutes"`

	TLS TLS `yaml:"tls" toml:"tls"`

	// AuthSecret enables bearer token checks on the gRPC API when set.
	AuthSecret string `yaml:"auth_jwt_secret" toml:"auth_jwt_secret"`

	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"` // "console" | "json"

	DockerBuild bool `yaml:"-" toml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:          "50051",
		MetricsAddr:   ":9100",
		RepoType:      RepoMemory,
		DBPath:        "./geiger.db",
		Retention:     30 * 24 * time.Hour,
		PollInterval:  time.Second,
		Poller:        poller.DefaultConfig(poller.ModeFake),
		Threshold:     50,
		WindowMinutes: 10,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Load builds the configuration. CONFIG_FILE names an optional YAML file,
// or TOML when it ends in .toml; environment variables override both.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.merge(data, strings.EqualFold(filepath.Ext(path), ".toml")); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) merge(data []byte, isTOML bool) error {
	if isTOML {
		if _, err := toml.Decode(string(data), c); err != nil {
			return err
		}
	} else if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	if len(c.PollerLegacy) > 0 {
		p, err := poller.ConfigFromMap(c.PollerLegacy)
		if err != nil {
			return fmt.Errorf("poller_legacy: %w", err)
		}
		c.Poller = p
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error

	setString(&c.Port, "PORT")
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	setString(&c.RepoType, "REPO_TYPE")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.DatabaseURL, "DATABASE_URL")
	errs = append(errs, setDuration(&c.Retention, "RETENTION"))

	errs = append(errs, setBool(&c.StartPoller, "START_POLLER"))
	errs = append(errs, setDuration(&c.PollInterval, "POLL_INTERVAL"))
	errs = append(errs, setBool(&c.SerialSimulate, "SERIAL_SIMULATE"))

	if v := os.Getenv("POLLER_MODE"); v != "" {
		c.Poller.Mode = poller.Mode(strings.ToLower(v))
	}
	if v := os.Getenv("POLLING_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("POLLING_ENABLED: %w", err))
		} else {
			c.Poller.PollingEnabled = &enabled
		}
	}
	errs = append(errs, setInt(&c.Poller.FakeFrameValue, "FAKE_FRAME_VALUE"))
	setString(&c.Poller.SerialPort, "SERIAL_PORT")
	errs = append(errs, setInt(&c.Poller.SerialBaudrate, "SERIAL_BAUDRATE"))
	errs = append(errs, setDuration(&c.Poller.SerialTimeout, "SERIAL_TIMEOUT"))
	if v := os.Getenv("MAX_FRAMES"); v != "" {
		n, err := parseMaxFrames(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_FRAMES: %w", err))
		} else {
			c.Poller.MaxFrames = n
		}
	}

	if v := os.Getenv("GEIGER_THRESHOLD"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("GEIGER_THRESHOLD: %w", err))
		} else {
			c.Threshold = n
		}
	}
	errs = append(errs, setInt(&c.WindowMinutes, "ANALYTICS_WINDOW_MINUTES"))

	setString(&c.TLS.Cert, "TLS_CERT")
	setString(&c.TLS.Key, "TLS_KEY")
	setString(&c.TLS.CA, "TLS_CA")
	setString(&c.AuthSecret, "AUTH_JWT_SECRET")

	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	c.DockerBuild = os.Getenv("DOCKER_BUILD") == "1"

	return errors.Join(errs...)
}

// parseMaxFrames maps "0", "none" and "unbounded" to nil.
func parseMaxFrames(v string) (*int, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "none", "unbounded":
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.RepoType {
	case RepoMemory, RepoSQLite:
	case RepoPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown repo type %q", c.RepoType))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.Retention < 0 {
		errs = append(errs, fmt.Errorf("retention cannot be negative, got %s", c.Retention))
	}
	if c.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("geiger threshold must be positive, got %d", c.Threshold))
	}
	if c.WindowMinutes <= 0 {
		errs = append(errs, fmt.Errorf("analytics window must be positive, got %d", c.WindowMinutes))
	}
	if c.TLS.Cert != "" && (c.TLS.Key == "" || c.TLS.CA == "") {
		errs = append(errs, errors.New("TLS_CERT requires TLS_KEY and TLS_CA"))
	}
	if c.AuthSecret != "" && len(c.AuthSecret) < 16 {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be at least 16 bytes"))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	if err := c.Poller.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ShouldStartPoller reports whether the background runner starts at boot.
// Image builds never start it.
func (c Config) ShouldStartPoller() bool {
	return c.StartPoller && !c.DockerBuild
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// ParseDuration accepts Go durations ("90s", "720h") and ISO 8601
// durations ("PT90S", "P30D").
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}

	iso, err := duration.Parse(strings.ToUpper(v))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return iso.ToTimeDuration(), nil
}
