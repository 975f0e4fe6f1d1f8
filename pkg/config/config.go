// Package config loads formkit settings from YAML with ${VAR} expansion and
// FORMKIT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FORMKIT_"

// DefaultRetryDelay applies when retry.delay is absent. An explicit 0s
// retries without waiting.
const DefaultRetryDelay = 2 * time.Second

// Storage kinds for built artifacts.
const (
	StorageDir = "dir"
	StorageS3  = "s3"
)

// Config is the full formkit configuration.
type Config struct {
	Platform string        `yaml:"platform"`
	Server   ServerConfig  `yaml:"server"`
	App      AppConfig     `yaml:"app"`
	Retry    RetryConfig   `yaml:"retry"`
	Build    BuildConfig   `yaml:"build"`
	Parser   ParserConfig  `yaml:"parser"`
	Logging  LoggingConfig `yaml:"logging"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Sandbox  SandboxConfig `yaml:"sandbox"`
}

// ServerConfig locates the remote form creator.
type ServerConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	APIID           string        `yaml:"api_id"`
	CreatorPath     string        `yaml:"creator_path"`
	RefererTemplate string        `yaml:"referer_template"`
	Timeout         time.Duration `yaml:"timeout"`
}

// AppConfig supplies deploy parameters not carried by the canonical spec.
type AppConfig struct {
	AppID             string `yaml:"app_id"`
	AppVersion        string `yaml:"app_version"`
	CreateAPIEndpoint bool   `yaml:"create_api_endpoint"`
	APIName           string `yaml:"api_name"`
	CreateCRUD        bool   `yaml:"create_crud"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

type BuildConfig struct {
	OutputDir      string   `yaml:"output_dir"`
	Overwrite      bool     `yaml:"overwrite"`
	TableNameLimit int      `yaml:"table_name_limit"`
	Storage        string   `yaml:"storage"`
	S3             S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

type ParserConfig struct {
	StrictReferences bool `yaml:"strict_references"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Textfile receives the deploy metrics in the text exposition format
	// when a command finishes.
	Textfile string `yaml:"textfile"`
}

// SandboxConfig configures the local form creator emulator.
type SandboxConfig struct {
	Addr   string `yaml:"addr"`
	APIID  string `yaml:"api_id"`
	APIKey string `yaml:"api_key"`
}

// Load reads path, expands ${VAR} references, applies FORMKIT_* overrides and
// defaults, then validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := seeded()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := finish(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv builds a configuration from defaults and FORMKIT_* variables.
func LoadFromEnv() (*Config, error) {
	cfg := seeded()
	if err := finish(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadWithFallback loads path when it names an existing file and falls back
// to the environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// Default returns a configuration with only defaults applied.
func Default() *Config {
	cfg := seeded()
	setDefaults(cfg)
	return cfg
}

// seeded presets the values whose zero is meaningful, so an explicit
// "delay: 0" survives decoding.
func seeded() *Config {
	return &Config{Retry: RetryConfig{Delay: DefaultRetryDelay}}
}

func finish(cfg *Config) error {
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg.Validate()
}

func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	flag := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = parseBool(v)
		}
	}

	str("PLATFORM", &cfg.Platform)

	str("BASE_URL", &cfg.Server.BaseURL)
	str("API_KEY", &cfg.Server.APIKey)
	str("API_ID", &cfg.Server.APIID)
	str("CREATOR_PATH", &cfg.Server.CreatorPath)
	str("REFERER_TEMPLATE", &cfg.Server.RefererTemplate)
	dur("TIMEOUT", &cfg.Server.Timeout)

	str("APP_ID", &cfg.App.AppID)
	str("APP_VERSION", &cfg.App.AppVersion)
	flag("CREATE_API_ENDPOINT", &cfg.App.CreateAPIEndpoint)
	str("API_NAME", &cfg.App.APIName)
	flag("CREATE_CRUD", &cfg.App.CreateCRUD)

	num("RETRY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts)
	dur("RETRY_DELAY", &cfg.Retry.Delay)

	str("OUTPUT_DIR", &cfg.Build.OutputDir)
	flag("OVERWRITE", &cfg.Build.Overwrite)
	num("TABLE_NAME_LIMIT", &cfg.Build.TableNameLimit)
	str("STORAGE", &cfg.Build.Storage)
	str("S3_BUCKET", &cfg.Build.S3.Bucket)
	str("S3_PREFIX", &cfg.Build.S3.Prefix)
	str("S3_REGION", &cfg.Build.S3.Region)
	str("S3_ENDPOINT", &cfg.Build.S3.Endpoint)
	str("S3_ACCESS_KEY", &cfg.Build.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.Build.S3.SecretKey)
	flag("S3_PATH_STYLE", &cfg.Build.S3.PathStyle)

	flag("STRICT_REFERENCES", &cfg.Parser.StrictReferences)

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	flag("METRICS_ENABLED", &cfg.Metrics.Enabled)
	str("METRICS_TEXTFILE", &cfg.Metrics.Textfile)

	str("SANDBOX_ADDR", &cfg.Sandbox.Addr)
	str("SANDBOX_API_ID", &cfg.Sandbox.APIID)
	str("SANDBOX_API_KEY", &cfg.Sandbox.APIKey)
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Platform == "" {
		cfg.Platform = "joget"
	}

	if cfg.Server.CreatorPath == "" {
		cfg.Server.CreatorPath = "/api/formcreator/formCreator/addWithFiles"
	}
	if cfg.Server.RefererTemplate == "" {
		cfg.Server.RefererTemplate = "{root}/jw/web/userview/{appId}/v/_/"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	if cfg.App.AppVersion == "" {
		cfg.App.AppVersion = "1"
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}

	if cfg.Build.OutputDir == "" {
		cfg.Build.OutputDir = "build"
	}
	if cfg.Build.TableNameLimit == 0 {
		cfg.Build.TableNameLimit = 20
	}
	if cfg.Build.Storage == "" {
		cfg.Build.Storage = StorageDir
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Sandbox.Addr == "" {
		cfg.Sandbox.Addr = "127.0.0.1:8089"
	}
	if cfg.Sandbox.APIID == "" {
		cfg.Sandbox.APIID = "sandbox"
	}
	if cfg.Sandbox.APIKey == "" {
		cfg.Sandbox.APIKey = "sandbox-key"
	}
}

// Validate checks values every command relies on. Deploy settings are
// checked separately by ValidateDeploy.
func (c *Config) Validate() error {
	var errs []error
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, fmt.Errorf("retry.delay must not be negative"))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, fmt.Errorf("server.timeout must not be negative"))
	}
	if c.Build.TableNameLimit < 1 {
		errs = append(errs, fmt.Errorf("build.table_name_limit must be positive"))
	}
	switch c.Build.Storage {
	case StorageDir:
	case StorageS3:
		if c.Build.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("build.s3.bucket is required when build.storage is s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("build.storage must be %q or %q, got %q", StorageDir, StorageS3, c.Build.Storage))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format))
	}
	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		errs = append(errs, fmt.Errorf("metrics.textfile is required when metrics are enabled"))
	}
	if !strings.Contains(c.Server.RefererTemplate, "{appId}") {
		errs = append(errs, fmt.Errorf("server.referer_template must contain {appId}"))
	}
	return errors.Join(errs...)
}

// ValidateDeploy checks the settings a deployment needs.
func (c *Config) ValidateDeploy() error {
	var errs []error
	if c.Server.BaseURL == "" {
		errs = append(errs, fmt.Errorf("server.base_url is required (or %sBASE_URL)", EnvPrefix))
	} else if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.base_url %q is not an absolute URL", c.Server.BaseURL))
	}
	if c.Server.APIKey == "" {
		errs = append(errs, fmt.Errorf("server.api_key is required (or %sAPI_KEY)", EnvPrefix))
	}
	if c.Server.APIID == "" {
		errs = append(errs, fmt.Errorf("server.api_id is required (or %sAPI_ID)", EnvPrefix))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
