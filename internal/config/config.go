// Package config provides configuration management for contactform using
// Viper for loading from files, environment variables and command-line flags.
//
// Values come from (highest priority first) flags bound by the cmd package,
// CONTACTFORM_<SECTION>_<KEY> environment variables, and an optional
// .contactform.yml file. Anything left unset falls back to the defaults below.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/toast"
	"github.com/conneroisu/contactform/internal/validation"
)

// Defaults applied by Load.
const (
	DefaultPort            = 8080
	DefaultHost            = "localhost"
	DefaultSendTimeout     = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultSuccessMessage  = "Thanks! Your message has been sent."
	DefaultFailureMessage  = "Sorry, your message could not be sent. Please try again later."
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONTACTFORM"

// Keys lists every configuration key. Viper only unmarshals environment
// overrides for keys it knows about.
var Keys = []string{
	"server.port",
	"server.host",
	"server.allowed_origins",
	"server.shutdown_timeout",
	"recaptcha.site_key",
	"sender.endpoint",
	"sender.timeout",
	"sender.success_message",
	"sender.failure_message",
	"toast.auto_close",
	"toast.position",
	"profile.path",
	"profile.watch",
	"log.level",
	"log.format",
}

// BindEnv wires CONTACTFORM_<SECTION>_<KEY> overrides into v.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Recaptcha RecaptchaConfig `mapstructure:"recaptcha"`
	Sender    SenderConfig    `mapstructure:"sender"`
	Toast     ToastConfig     `mapstructure:"toast"`
	Profile   ProfileConfig   `mapstructure:"profile"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RecaptchaConfig struct {
	SiteKey string `mapstructure:"site_key"`
}

type SenderConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Timeout        time.Duration `mapstructure:"timeout"`
	SuccessMessage string        `mapstructure:"success_message"`
	FailureMessage string        `mapstructure:"failure_message"`
}

type ToastConfig struct {
	AutoClose time.Duration `mapstructure:"auto_close"`
	Position  string        `mapstructure:"position"`
}

type ProfileConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the global viper instance into a Config, applies defaults and
// validates the result.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against a specific viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// slices bound to env vars can come through empty after Unmarshal
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("profile.watch") {
		config.Profile.Watch = v.GetBool("profile.watch")
	}

	applyDefaults(&config, v)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config, v *viper.Viper) {
	if config.Server.Port == 0 && !v.IsSet("server.port") {
		config.Server.Port = DefaultPort
	}
	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{
			fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
			fmt.Sprintf("localhost:%d", config.Server.Port),
			fmt.Sprintf("127.0.0.1:%d", config.Server.Port),
		}
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if config.Sender.Timeout == 0 {
		config.Sender.Timeout = DefaultSendTimeout
	}
	if config.Sender.SuccessMessage == "" {
		config.Sender.SuccessMessage = DefaultSuccessMessage
	}
	if config.Sender.FailureMessage == "" {
		config.Sender.FailureMessage = DefaultFailureMessage
	}

	if config.Toast.AutoClose == 0 {
		config.Toast.AutoClose = toast.DefaultAutoClose
	}
	if config.Toast.Position == "" {
		config.Toast.Position = string(toast.PositionBottomLeft)
	}

	if config.Profile.Path == "" && !v.IsSet("profile.path") {
		config.Profile.Path = "profile.yml"
	}
	if !v.IsSet("profile.watch") {
		config.Profile.Watch = true
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// validateConfig validates configuration values
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateRecaptchaConfig(&config.Recaptcha); err != nil {
		return fmt.Errorf("recaptcha config: %w", err)
	}
	if err := validateSenderConfig(&config.Sender); err != nil {
		return fmt.Errorf("sender config: %w", err)
	}
	if err := validateToastConfig(&config.Toast); err != nil {
		return fmt.Errorf("toast config: %w", err)
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// 0 lets the OS pick a port, used in tests
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return fmt.Errorf("host contains dangerous character: %q", char)
		}
	}

	if config.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative")
	}
	return nil
}

func validateRecaptchaConfig(config *RecaptchaConfig) error {
	if strings.TrimSpace(config.SiteKey) == "" {
		return fmt.Errorf("site_key is required")
	}
	if strings.ContainsAny(config.SiteKey, "\"'<> \t\n") {
		return fmt.Errorf("site_key contains invalid characters")
	}
	return nil
}

func validateSenderConfig(config *SenderConfig) error {
	if config.Endpoint != "" {
		if err := validation.ValidateURL(config.Endpoint); err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

func validateToastConfig(config *ToastConfig) error {
	if config.AutoClose < 0 {
		return fmt.Errorf("auto_close must not be negative")
	}
	if _, ok := toast.ParsePosition(config.Position); !ok {
		return fmt.Errorf("unknown position %q", config.Position)
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}
	if config.Format != "text" && config.Format != "json" {
		return fmt.Errorf("format must be text or json, got %q", config.Format)
	}
	return nil
}

// RequireSender reports an error when no form endpoint is configured. Only
// commands that actually send need it.
func (c *Config) RequireSender() error {
	if c.Sender.Endpoint == "" {
		return fmt.Errorf("sender.endpoint is required")
	}
	return nil
}

// Address is the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ToastPosition returns the validated toast position.
func (c *Config) ToastPosition() toast.Position {
	p, _ := toast.ParsePosition(c.Toast.Position)
	return p
}

// Logger builds the logger described by the log section.
func (c *Config) Logger() *logging.AppLogger {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: c.Log.Format,
	})
}
