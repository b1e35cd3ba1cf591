// Package config provides YAML-based configuration loading for logyard.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "logyard.yaml"

// Environment variables holding secrets. They never live in the YAML file.
const (
	EnvSlackWebhookURL   = "LY_SLACK_WEBHOOK_URL"
	EnvDiscordWebhookURL = "LY_DISCORD_WEBHOOK_URL"
	EnvGitHubToken       = "LY_GITHUB_TOKEN"
)

// Config is the top-level logyard configuration, loaded from logyard.yaml.
type Config struct {
	APIHost          string           `yaml:"api_host" validate:"required,url"`
	TrainingLogsPath string           `yaml:"training_logs_path" validate:"required,startswith=/"`
	Stream           StreamConfig     `yaml:"stream"`
	State            StoreConfig      `yaml:"state"`
	Source           SourceConfig     `yaml:"source"`
	Dashboard        DashboardConfig  `yaml:"dashboard"`
	Notify           NotifyConfig     `yaml:"notify"`
	Share            ShareConfig      `yaml:"share"`
	Log              LogConfig        `yaml:"log"`
	Classifier       ClassifierConfig `yaml:"classifier"`

	Secrets Secrets `yaml:"-"`
}

// StreamConfig controls how the live log is followed.
type StreamConfig struct {
	Transports   []string `yaml:"transports" validate:"dive,oneof=sse socket poll"`
	PollSchedule string   `yaml:"poll_schedule"`
	ConfigID     int      `yaml:"config_id" validate:"gte=0"`
}

// StoreConfig names a database for gorm.
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite mysql"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// SourceConfig configures the bundled training-log source server.
type SourceConfig struct {
	Port           int    `yaml:"port" validate:"gte=1,lte=65535"`
	Driver         string `yaml:"driver" validate:"oneof=sqlite mysql"`
	DSN            string `yaml:"dsn" validate:"required"`
	PushIntervalMs int    `yaml:"push_interval_ms" validate:"gte=10"`
	HeartbeatSec   int    `yaml:"heartbeat_sec" validate:"gte=1"`
}

// DashboardConfig configures the web dashboard.
type DashboardConfig struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

// NotifyConfig selects which outcomes are announced to chat.
type NotifyConfig struct {
	Events []string `yaml:"events" validate:"dive,oneof=completed failed"`
}

// ShareConfig controls gist publishing.
type ShareConfig struct {
	Public bool `yaml:"public"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// ClassifierConfig extends the built-in outcome vocabularies.
type ClassifierConfig struct {
	ExtraErrorTerms    []string `yaml:"extra_error_terms"`
	ExtraCompleteTerms []string `yaml:"extra_complete_terms"`
}

// Secrets are read from the environment.
type Secrets struct {
	SlackWebhookURL   string
	DiscordWebhookURL string
	GitHubToken       string
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// LoadOrDefault loads path, falling back to defaults when the file does not
// exist. Any other read or validation error is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns a validated Config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSecrets fills Secrets from the environment after loading envFile, if
// it exists. Variables already set in the environment take precedence.
func (c *Config) LoadSecrets(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	c.Secrets = Secrets{
		SlackWebhookURL:   os.Getenv(EnvSlackWebhookURL),
		DiscordWebhookURL: os.Getenv(EnvDiscordWebhookURL),
		GitHubToken:       os.Getenv(EnvGitHubToken),
	}
	return nil
}

// TrainingLogsURL is the root the stream endpoints hang off.
func (c *Config) TrainingLogsURL() string {
	return strings.TrimRight(c.APIHost, "/") + c.TrainingLogsPath
}

// NotifyOn reports whether an outcome name is configured for notification.
func (c *Config) NotifyOn(outcome string) bool {
	for _, e := range c.Notify.Events {
		if e == outcome {
			return true
		}
	}
	return false
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.APIHost == "" {
		c.APIHost = "http://localhost:8080"
	}
	if c.TrainingLogsPath == "" {
		c.TrainingLogsPath = "/api/model/training-logs"
	}
	if len(c.Stream.Transports) == 0 {
		c.Stream.Transports = []string{"sse", "socket", "poll"}
	}
	if c.Stream.PollSchedule == "" {
		c.Stream.PollSchedule = "@every 2s"
	}
	if c.State.Driver == "" {
		c.State.Driver = "sqlite"
	}
	if c.State.DSN == "" {
		c.State.DSN = "logyard.db"
	}
	if c.Source.Port == 0 {
		c.Source.Port = 8080
	}
	if c.Source.Driver == "" {
		c.Source.Driver = "sqlite"
	}
	if c.Source.DSN == "" {
		c.Source.DSN = "logyard-source.db"
	}
	if c.Source.PushIntervalMs == 0 {
		c.Source.PushIntervalMs = 500
	}
	if c.Source.HeartbeatSec == 0 {
		c.Source.HeartbeatSec = 15
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8090
	}
	if c.Notify.Events == nil {
		c.Notify.Events = []string{"completed", "failed"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: validate: %w", err)
	}
	errs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		errs = append(errs, describe(field, fe))
	}
	return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", field, fe.Value())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s must be %s %s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
