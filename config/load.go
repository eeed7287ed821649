package config

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// flagKeys maps command line flags onto configuration keys. Flags that are
// not listed here are not configuration.
var flagKeys = map[string]string{
	"address": "server.address",
	"migrate": "database.migrate",
	"debug":   "debug",
	"driver":  "database.driver",
	"dsn":     "database.dsn",
}

// Load builds the configuration from Defaults, the YAML file at path when
// path is not empty, and the changed flags in flags.
func Load(path string, flags *pflag.FlagSet) (*BaseConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to load config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to load flags")
		}
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *BaseConfig) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Auth.AccessTokenSecret) == "" {
		problems = append(problems, "auth.access_token_secret is required")
	}
	if strings.TrimSpace(c.Auth.RefreshTokenSecret) == "" {
		problems = append(problems, "auth.refresh_token_secret is required")
	}
	if c.Auth.AccessTokenSecret != "" && c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		problems = append(problems, "auth.access_token_secret and auth.refresh_token_secret must differ")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 || c.Auth.ActivationTokenTTL <= 0 {
		problems = append(problems, "auth token lifetimes must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "database.driver must be sqlite or postgres")
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database.dsn is required")
	}
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" {
			problems = append(problems, "mail.host is required for the smtp driver")
		}
	default:
		problems = append(problems, "mail.driver must be log or smtp")
	}

	if len(problems) == 0 {
		return nil
	}

	return goerrors.New("invalid configuration", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"problems": problems})
}
