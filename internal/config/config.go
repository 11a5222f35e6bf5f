package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/giropos/fiscal/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment  DeploymentConfig  `validate:"required"`
	Server      ServerConfig      `validate:"required"`
	Logging     LoggingConfig     `validate:"required"`
	Emitter     EmitterConfig     `validate:"required"`
	Fiscal      FiscalConfig      `validate:"required"`
	Certificate CertificateConfig `validate:"required"`
	Authority   AuthorityConfig   `validate:"required"`
	Contingency ContingencyConfig `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

// EmitterConfig is the fixed identity of the issuing establishment
type EmitterConfig struct {
	TaxID        string `mapstructure:"tax_id" validate:"required,len=14,numeric"`
	StateTaxID   string `mapstructure:"state_tax_id" validate:"required"`
	Name         string `validate:"required"`
	TradeName    string `mapstructure:"trade_name"`
	Address      string `validate:"required"`
	City         string `validate:"required"`
	CityCode     string `mapstructure:"city_code" validate:"required,len=7,numeric"`
	Jurisdiction string `validate:"required,len=2"`
	PostalCode   string `mapstructure:"postal_code" validate:"required,len=8,numeric"`
	Phone        string
}

// FiscalConfig carries the per-deployment document numbering and
// consumer verification secrets
type FiscalConfig struct {
	Environment    types.Environment `validate:"required"`
	Series         int               `validate:"required,min=1,max=999"`
	SecurityCodeID string            `mapstructure:"security_code_id" validate:"required"`
	SecurityCode   string            `mapstructure:"security_code" validate:"required"`
}

type CertificateConfig struct {
	Path     string `validate:"required"`
	Password string `validate:"required"`
}

type AuthorityConfig struct {
	Timeout time.Duration `validate:"required"`
	// Optional per-deployment endpoint overrides; when empty, the
	// per-jurisdiction defaults apply.
	AuthorizeURL string `mapstructure:"authorize_url"`
	StatusURL    string `mapstructure:"status_url"`
}

type ContingencyConfig struct {
	Dir   string `validate:"required"`
	Topic string `validate:"required"`

	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/giropos")

	// Set up environment variables support
	v.SetEnvPrefix("FISCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Fiscal.Environment.Validate(); err != nil {
		return err
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Fiscal: FiscalConfig{
			Environment:    types.EnvironmentStaging,
			Series:         1,
			SecurityCodeID: "1",
			SecurityCode:   "000000",
		},
		Authority: AuthorityConfig{
			Timeout: 30 * time.Second,
		},
		Contingency: ContingencyConfig{
			Topic:           "fiscal_retransmit",
			MaxRetries:      5,
			InitialInterval: 5 * time.Second,
			MaxInterval:     5 * time.Minute,
			Multiplier:      2,
			MaxElapsedTime:  30 * time.Minute,
		},
	}
}
