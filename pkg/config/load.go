// pkg/config/load.go

package config

import (
	"errors"
	"os"

	cerr "github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables Vault tooling already uses.
var envBindings = map[string][]string{
	"vault.baseUrl":                {"VAULT_ADDR"},
	"vault.token":                  {"VAULT_TOKEN"},
	"vault.namespace":              {"VAULT_NAMESPACE"},
	"vault.auth.approle.roleId":    {"VAULT_ROLE_ID"},
	"vault.auth.approle.secretId":  {"VAULT_SECRET_ID"},
	"vault.auth.userpass.username": {"VAULT_USERNAME"},
	"vault.auth.userpass.password": {"VAULT_PASSWORD"},
	"log.level":                    {"LOG_LEVEL"},
	"log.file":                     {"KVAULT_LOG_FILE"},
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile is an explicit path; empty searches the default locations.
	ConfigFile string
	// DotEnv is a .env file loaded before the environment is read.
	DotEnv string
}

// Prepare registers defaults, env bindings and the config file on v.
// Flags bound before or after Prepare take precedence over all of them.
func Prepare(v *viper.Viper, opts LoadOptions) error {
	if err := loadDotEnv(opts.DotEnv); err != nil {
		return err
	}

	d := Default()
	v.SetDefault("vault.baseUrl", d.Vault.BaseURL)
	v.SetDefault("vault.timeout", d.Vault.Timeout)
	v.SetDefault("vault.maxListDepth", d.Vault.MaxListDepth)
	v.SetDefault("vault.listConcurrency", d.Vault.ListConcurrency)
	v.SetDefault("vault.breakerCooldown", d.Vault.BreakerCooldown)
	v.SetDefault("log.level", d.Log.Level)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return cerr.Wrapf(err, "bind env for %s", key)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("kvault")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/kvault")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return cerr.Wrap(err, "read config file")
		}
	}
	return nil
}

// Decode unmarshals v into a Config without validating it.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, cerr.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Load prepares v and decodes it.
func Load(v *viper.Viper, opts LoadOptions) (Config, error) {
	if err := Prepare(v, opts); err != nil {
		return Config{}, err
	}
	return Decode(v)
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return cerr.Wrap(err, "stat .env")
	}
	if err := godotenv.Load(path); err != nil {
		return cerr.Wrapf(err, "load %s", path)
	}
	return nil
}
