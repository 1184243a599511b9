// Package config loads the dwroadmap settings from viper and validates them.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	DegreeWorks DegreeWorks `mapstructure:"degreeworks"`
	Fetch       Fetch       `mapstructure:"fetch"`
	DB          DB          `mapstructure:"db"`
	Server      Server      `mapstructure:"server"`
}

type DegreeWorks struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// Cookie is the session cookie of a logged-in browser. Only needed for
	// live fetches.
	Cookie string `mapstructure:"cookie"`
}

type Fetch struct {
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=64"`
	Rate        float64       `mapstructure:"rate" validate:"gte=0"`
	Retries     int           `mapstructure:"retries" validate:"min=0,max=10"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type DB struct {
	// Path is empty for the default location.
	Path string `mapstructure:"path"`
}

type Server struct {
	Addr     string `mapstructure:"addr" validate:"required,hostname_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password" validate:"required_with=Username"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("degreeworks.base_url", "https://dw.auburn.edu")
	v.SetDefault("degreeworks.cookie", "")
	v.SetDefault("fetch.concurrency", 5)
	v.SetDefault("fetch.rate", 4.0)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("db.path", "")
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")
}

// EnvPrefix is prepended to every environment override, e.g.
// DWROADMAP_FETCH_CONCURRENCY for fetch.concurrency.
const EnvPrefix = "dwroadmap"

// BindEnv makes v read DWROADMAP_<SECTION>_<KEY> variables. Only keys with a
// registered default are seen by Load.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var validate = newValidator()

// newValidator reports fields under their config key names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// keyOf turns "Config.fetch.concurrency" into "fetch.concurrency".
func keyOf(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func formatFieldError(e validator.FieldError) string {
	key := keyOf(e)
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", key)
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", key, strings.ToLower(e.Param()))
	case "url":
		return fmt.Sprintf("%s must be a URL", key)
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port", key)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", key, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", key, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", key)
	}
}
