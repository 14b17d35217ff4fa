// Package config loads the server's settings from TENANTAUTH_* environment
// variables, reading a .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "TENANTAUTH_"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed.
	ErrParsingConfig = errors.New("config: failed to parse environment")
	// ErrInvalid is returned when values parse but do not make sense together.
	ErrInvalid = errors.New("config: invalid configuration")
)

type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	// Strategy is "convention" or "lookup".
	Strategy      string `env:"STRATEGY" envDefault:"convention"`
	BaseAuthority string `env:"BASE_AUTHORITY"`
	Audience      string `env:"AUDIENCE"`
	ClaimsIssuer  string `env:"CLAIMS_ISSUER"`

	RequireHTTPSMetadata       bool          `env:"REQUIRE_HTTPS_METADATA" envDefault:"true"`
	UseSecurityTokenValidators bool          `env:"USE_SECURITY_TOKEN_VALIDATORS"`
	IncludeErrorDetails        bool          `env:"INCLUDE_ERROR_DETAILS"`
	MapInboundClaims           bool          `env:"MAP_INBOUND_CLAIMS"`
	SaveToken                  bool          `env:"SAVE_TOKEN"`
	RequireTenant              bool          `env:"REQUIRE_TENANT"`
	ClockSkew                  time.Duration `env:"CLOCK_SKEW" envDefault:"5m"`
	BackchannelTimeout         time.Duration `env:"BACKCHANNEL_TIMEOUT" envDefault:"1m"`
	RefreshInterval            time.Duration `env:"REFRESH_INTERVAL" envDefault:"5m"`
	AutomaticRefreshInterval   time.Duration `env:"AUTOMATIC_REFRESH_INTERVAL" envDefault:"12h"`
	BuildTimeout               time.Duration `env:"BUILD_TIMEOUT" envDefault:"30s"`

	// Store backs the lookup strategy: "memory", "redis" or "postgres".
	Store       string `env:"STORE" envDefault:"memory"`
	TenantsFile string `env:"TENANTS_FILE"`
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	Migrate     bool   `env:"MIGRATE"`

	// Malformed tenant names allowed per client and minute; 0 disables throttling.
	TenantResolveLimit int `env:"TENANT_RESOLVE_LIMIT" envDefault:"30"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	// the .env file is optional
	_ = godotenv.Load()
	return parse(env.Options{Prefix: Prefix})
}

// Parse reads configuration from environ instead of the process environment.
func Parse(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks combinations env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Strategy) {
	case "convention":
		if c.BaseAuthority == "" {
			errs = append(errs, errors.New("BASE_AUTHORITY is required for the convention strategy"))
		}
		if c.Audience == "" {
			errs = append(errs, errors.New("AUDIENCE is required for the convention strategy"))
		}
	case "lookup":
		switch strings.ToLower(c.Store) {
		case "memory":
		case "redis":
			if c.RedisURL == "" {
				errs = append(errs, errors.New("REDIS_URL is required for the redis store"))
			}
		case "postgres":
			if c.DatabaseURL == "" {
				errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown STORE %q", c.Store))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STRATEGY %q", c.Strategy))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat))
	}
	if c.ClockSkew < 0 || c.BackchannelTimeout <= 0 {
		errs = append(errs, errors.New("CLOCK_SKEW must be >= 0 and BACKCHANNEL_TIMEOUT > 0"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalid}, errs...)...)
	}
	return nil
}
