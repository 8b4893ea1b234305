package auth

import (
	"os"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Token lifetime defaults; override in production via configuration.
const (
	DefaultAccessTokenLifetime  = 7 * 24 * time.Hour
	DefaultRefreshTokenLifetime = 30 * 24 * time.Hour
)

// Config holds auth options
type Config interface {
	GetAccessSigningKey() string
	GetRefreshSigningKey() string
	GetAccessTokenLifetime() time.Duration
	GetRefreshTokenLifetime() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
}

// EnvConfig reads configuration from the environment, with defaults that
// are only safe for local development. The signing secrets must be set for
// any real deployment.
type EnvConfig struct {
	AccessSigningKey     string
	RefreshSigningKey    string
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
	Issuer               string
	Audience             []string
	ContextKey           string
	TokenLookup          string
	AuthScheme           string
}

var _ Config = (*EnvConfig)(nil)

// NewEnvConfig builds an EnvConfig from the process environment:
// JWT_SECRET, JWT_REFRESH_SECRET, JWT_EXPIRE, JWT_REFRESH_EXPIRE,
// AUTH_ISSUER, AUTH_AUDIENCE (comma separated).
func NewEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{
		AccessSigningKey:     envOrDefault("JWT_SECRET", "default-access-secret"),
		RefreshSigningKey:    envOrDefault("JWT_REFRESH_SECRET", "default-refresh-secret"),
		AccessTokenLifetime:  DefaultAccessTokenLifetime,
		RefreshTokenLifetime: DefaultRefreshTokenLifetime,
		Issuer:               os.Getenv("AUTH_ISSUER"),
		ContextKey:           "user",
		TokenLookup:          "header:Authorization",
		AuthScheme:           "Bearer",
	}

	if aud := os.Getenv("AUTH_AUDIENCE"); aud != "" {
		for _, a := range strings.Split(aud, ",") {
			if a = strings.TrimSpace(a); a != "" {
				cfg.Audience = append(cfg.Audience, a)
			}
		}
	}

	if raw := os.Getenv("JWT_EXPIRE"); raw != "" {
		lifetime, err := ParseLifetime(raw)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid JWT_EXPIRE value")
		}
		cfg.AccessTokenLifetime = lifetime
	}

	if raw := os.Getenv("JWT_REFRESH_EXPIRE"); raw != "" {
		lifetime, err := ParseLifetime(raw)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid JWT_REFRESH_EXPIRE value")
		}
		cfg.RefreshTokenLifetime = lifetime
	}

	return cfg, nil
}

func (c *EnvConfig) GetAccessSigningKey() string  { return c.AccessSigningKey }
func (c *EnvConfig) GetRefreshSigningKey() string { return c.RefreshSigningKey }
func (c *EnvConfig) GetIssuer() string            { return c.Issuer }
func (c *EnvConfig) GetAudience() []string        { return c.Audience }

func (c *EnvConfig) GetAccessTokenLifetime() time.Duration {
	if c.AccessTokenLifetime <= 0 {
		return DefaultAccessTokenLifetime
	}
	return c.AccessTokenLifetime
}

func (c *EnvConfig) GetRefreshTokenLifetime() time.Duration {
	if c.RefreshTokenLifetime <= 0 {
		return DefaultRefreshTokenLifetime
	}
	return c.RefreshTokenLifetime
}

func (c *EnvConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

func (c *EnvConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return "header:Authorization"
	}
	return c.TokenLookup
}

func (c *EnvConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

// ParseLifetime parses token lifetime strings. It accepts a day suffix
// ("7d") in addition to time.ParseDuration units, since deployment configs
// express token lifetimes in days.
func ParseLifetime(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(raw)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
