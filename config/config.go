// Package config loads the service configuration from defaults, an
// optional YAML file and command line flags, in that order of precedence.
package config

import (
	"time"

	"github.com/goliatone/go-accounts"
)

type BaseConfig struct {
	Debug    bool     `koanf:"debug" json:"debug"`
	Server   Server   `koanf:"server" json:"server"`
	Database Database `koanf:"database" json:"database"`
	Auth     Auth     `koanf:"auth" json:"auth"`
	Mail     Mail     `koanf:"mail" json:"mail"`
	Redis    Redis    `koanf:"redis" json:"redis"`
	Metrics  Metrics  `koanf:"metrics" json:"metrics"`
}

type Server struct {
	Address         string        `koanf:"address" json:"address"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

type Database struct {
	Driver  string `koanf:"driver" json:"driver"`
	DSN     string `koanf:"dsn" json:"-"`
	Migrate bool   `koanf:"migrate" json:"migrate"`
}

type Auth struct {
	AccessTokenSecret  string        `koanf:"access_token_secret" json:"-"`
	AccessTokenTTL     time.Duration `koanf:"access_token_ttl" json:"access_token_ttl"`
	RefreshTokenSecret string        `koanf:"refresh_token_secret" json:"-"`
	RefreshTokenTTL    time.Duration `koanf:"refresh_token_ttl" json:"refresh_token_ttl"`
	Issuer             string        `koanf:"issuer" json:"issuer"`
	Audience           []string      `koanf:"audience" json:"audience"`
	PasswordCost       int           `koanf:"password_cost" json:"password_cost"`
	ActivationTokenTTL time.Duration `koanf:"activation_token_ttl" json:"activation_token_ttl"`
	ContextKey         string        `koanf:"context_key" json:"context_key"`
	TokenLookup        string        `koanf:"token_lookup" json:"token_lookup"`
	AuthScheme         string        `koanf:"auth_scheme" json:"auth_scheme"`
	HashidAccountIDs   bool          `koanf:"hashid_account_ids" json:"hashid_account_ids"`
}

type Mail struct {
	// Driver is either "log" or "smtp"
	Driver      string  `koanf:"driver" json:"driver"`
	From        string  `koanf:"from" json:"from"`
	Host        string  `koanf:"host" json:"host"`
	Port        int     `koanf:"port" json:"port"`
	Username    string  `koanf:"username" json:"username"`
	Password    string  `koanf:"password" json:"-"`
	BaseURL     string  `koanf:"base_url" json:"base_url"`
	MaxRetries  uint64  `koanf:"max_retries" json:"max_retries"`
	RatePerSec  float64 `koanf:"rate_per_sec" json:"rate_per_sec"`
	RateBurst   int     `koanf:"rate_burst" json:"rate_burst"`
	TemplateDir string  `koanf:"template_dir" json:"template_dir"`
}

type Redis struct {
	// Address enables the distributed regeneration lock when set
	Address  string        `koanf:"address" json:"address"`
	Password string        `koanf:"password" json:"-"`
	DB       int           `koanf:"db" json:"db"`
	LockTTL  time.Duration `koanf:"lock_ttl" json:"lock_ttl"`
}

type Metrics struct {
	Enabled bool   `koanf:"enabled" json:"enabled"`
	Address string `koanf:"address" json:"address"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *BaseConfig {
	return &BaseConfig{
		Server: Server{
			Address:         ":8572",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			Driver: "sqlite",
			DSN:    "file:accounts.db?cache=shared",
		},
		Auth: Auth{
			AccessTokenTTL:     15 * time.Minute,
			RefreshTokenTTL:    720 * time.Hour,
			Issuer:             "go-accounts",
			PasswordCost:       12,
			ActivationTokenTTL: accounts.DefaultActivationTokenTTL,
			ContextKey:         accounts.DefaultContextKey,
			TokenLookup:        "header:Authorization",
			AuthScheme:         "Bearer",
		},
		Mail: Mail{
			Driver:     "log",
			From:       "no-reply@localhost",
			Port:       587,
			BaseURL:    "http://localhost:8572",
			MaxRetries: 3,
			RatePerSec: 5,
			RateBurst:  10,
		},
		Redis: Redis{
			LockTTL: 30 * time.Second,
		},
		Metrics: Metrics{
			Address: ":9572",
		},
	}
}

var _ accounts.Config = (*BaseConfig)(nil)

func (c *BaseConfig) GetAccessTokenSecret() string         { return c.Auth.AccessTokenSecret }
func (c *BaseConfig) GetAccessTokenTTL() time.Duration     { return c.Auth.AccessTokenTTL }
func (c *BaseConfig) GetRefreshTokenSecret() string        { return c.Auth.RefreshTokenSecret }
func (c *BaseConfig) GetRefreshTokenTTL() time.Duration    { return c.Auth.RefreshTokenTTL }
func (c *BaseConfig) GetIssuer() string                    { return c.Auth.Issuer }
func (c *BaseConfig) GetAudience() []string                { return c.Auth.Audience }
func (c *BaseConfig) GetPasswordCost() int                 { return c.Auth.PasswordCost }
func (c *BaseConfig) GetActivationTokenTTL() time.Duration { return c.Auth.ActivationTokenTTL }
func (c *BaseConfig) GetContextKey() string                { return c.Auth.ContextKey }
func (c *BaseConfig) GetTokenLookup() string               { return c.Auth.TokenLookup }
func (c *BaseConfig) GetAuthScheme() string                { return c.Auth.AuthScheme }
