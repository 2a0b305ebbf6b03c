// pkg/config/config.go

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultBaseURL         = "http://localhost:8200"
	DefaultTimeout         = 30 * time.Second
	DefaultMaxListDepth    = 32
	DefaultListConcurrency = 4
	DefaultBreakerCooldown = 30 * time.Second
)

// Config is the full kvault configuration tree.
type Config struct {
	Vault Vault `mapstructure:"vault" yaml:"vault"`
	Log   Log   `mapstructure:"log" yaml:"log"`
}

// Vault holds the connection settings for one Vault server.
type Vault struct {
	BaseURL         string        `mapstructure:"baseUrl" yaml:"baseUrl" validate:"omitempty,url"`
	Token           string        `mapstructure:"token" yaml:"token"`
	Namespace       string        `mapstructure:"namespace" yaml:"namespace,omitempty"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	RateLimit       float64       `mapstructure:"rateLimit" yaml:"rateLimit,omitempty" validate:"gte=0"`
	MaxListDepth    int           `mapstructure:"maxListDepth" yaml:"maxListDepth" validate:"gte=0"`
	ListConcurrency int           `mapstructure:"listConcurrency" yaml:"listConcurrency" validate:"gte=0"`
	BreakerFailures uint32        `mapstructure:"breakerFailures" yaml:"breakerFailures,omitempty"`
	BreakerCooldown time.Duration `mapstructure:"breakerCooldown" yaml:"breakerCooldown,omitempty" validate:"gte=0"`
	MinVersion      string        `mapstructure:"minVersion" yaml:"minVersion,omitempty"`
	HealthStrict    bool          `mapstructure:"healthStrict" yaml:"healthStrict,omitempty"`
	Auth            Auth          `mapstructure:"auth" yaml:"auth,omitempty"`
}

// Auth configures an optional login used instead of a static token.
type Auth struct {
	AppRole  AppRole  `mapstructure:"approle" yaml:"approle,omitempty"`
	Userpass Userpass `mapstructure:"userpass" yaml:"userpass,omitempty"`
}

type AppRole struct {
	RoleID    string `mapstructure:"roleId" yaml:"roleId,omitempty"`
	SecretID  string `mapstructure:"secretId" yaml:"secretId,omitempty"`
	MountPath string `mapstructure:"mountPath" yaml:"mountPath,omitempty"`
}

type Userpass struct {
	Username  string `mapstructure:"username" yaml:"username,omitempty"`
	Password  string `mapstructure:"password" yaml:"password,omitempty"`
	MountPath string `mapstructure:"mountPath" yaml:"mountPath,omitempty"`
}

// Log controls the logger built by pkg/logger.
type Log struct {
	Level string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Vault: Vault{
			BaseURL:         DefaultBaseURL,
			Timeout:         DefaultTimeout,
			MaxListDepth:    DefaultMaxListDepth,
			ListConcurrency: DefaultListConcurrency,
			BreakerCooldown: DefaultBreakerCooldown,
		},
		Log: Log{Level: "info"},
	}
}

func (a AppRole) Enabled() bool  { return a.RoleID != "" }
func (u Userpass) Enabled() bool { return u.Username != "" }

// HasLogin reports whether a login method can supply the token.
func (v Vault) HasLogin() bool {
	return v.Auth.AppRole.Enabled() || v.Auth.Userpass.Enabled()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks required keys first, in the order a user would fix them,
// then the struct tags.
func (v Vault) Validate() error {
	if strings.TrimSpace(v.BaseURL) == "" {
		return kv_err.MissingConfig("vault.baseUrl")
	}
	if strings.TrimSpace(v.Token) == "" && !v.HasLogin() {
		return kv_err.MissingConfig("vault.token")
	}
	if v.Auth.AppRole.Enabled() && v.Auth.AppRole.SecretID == "" {
		return kv_err.MissingConfig("vault.auth.approle.secretId")
	}
	if v.Auth.Userpass.Enabled() && v.Auth.Userpass.Password == "" {
		return kv_err.MissingConfig("vault.auth.userpass.password")
	}
	return structErr("vault", validate.Struct(v))
}

// Validate checks the whole tree.
func (c Config) Validate() error {
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// Validate checks the logging section on its own, before a client exists.
func (l Log) Validate() error {
	return structErr("log", validate.Struct(l))
}

func structErr(prefix string, err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return kv_err.WrapValidationError(err)
	}
	fe := fieldErrs[0]
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	return kv_err.NewExpectedError(kv_err.WrapValidationError(
		fmt.Errorf("invalid config value at '%s.%s': failed %q check", prefix, key, fe.Tag()),
	))
}
