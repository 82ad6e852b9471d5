package cnwentitlement

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by LoadConfig.
const EnvPrefix = "CNW_ENTITLEMENT"

// Policy selects how the public entitlement predicates answer.
type Policy string

const (
	// PolicyAlwaysGrant reports full entitlement regardless of the installed
	// license. Validation still runs and its state stays inspectable.
	PolicyAlwaysGrant Policy = "always-grant"
	// PolicyEnforce reports the outcome of license validation.
	PolicyEnforce Policy = "enforce"
)

// Config holds the Manager settings.
type Config struct {
	Policy Policy `yaml:"policy" envconfig:"POLICY" validate:"required,oneof=always-grant enforce"`
	// SuppressValidationLog silences the per-call limit logs of
	// ShouldPreventAction.
	SuppressValidationLog bool   `yaml:"suppress_validation_log" envconfig:"SUPPRESS_VALIDATION_LOG"`
	WorkspaceURL          string `yaml:"workspace_url" envconfig:"WORKSPACE_URL"`
	// License is an encrypted license installed at startup.
	License          string      `yaml:"license" envconfig:"LICENSE"`
	TrustedPublicKey string      `yaml:"trusted_public_key" envconfig:"TRUSTED_PUBLIC_KEY" validate:"omitempty,base64"`
	Cloud            CloudConfig `yaml:"cloud" envconfig:"CLOUD"`
}

// CloudConfig configures the license cloud client.
type CloudConfig struct {
	URL         string        `yaml:"url" envconfig:"URL" validate:"omitempty,url"`
	APIKey      string        `yaml:"api_key" envconfig:"API_KEY" validate:"required_with=URL"`
	WorkspaceID string        `yaml:"workspace_id" envconfig:"WORKSPACE_ID"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Policy:                PolicyAlwaysGrant,
		SuppressValidationLog: true,
		Cloud: CloudConfig{
			Timeout: defaultTimeout,
		},
	}
}

// LoadConfig builds a Config from the defaults, the optional YAML file at
// path and CNW_ENTITLEMENT_* environment variables, in that order of
// precedence. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// No default tags: unset variables leave file and default values alone.
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
