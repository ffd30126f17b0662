// Package config holds the configuration of release runs.
//
// Configuration is layered with viper: defaults, then a config file, then
// MONOREL_ prefixed environment variables, then command line flags.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/oneconcern/monorel/pkg/build"
	"github.com/oneconcern/monorel/pkg/credential"
	"github.com/oneconcern/monorel/pkg/dlogger"
	"github.com/oneconcern/monorel/pkg/guard"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/status"
	"github.com/oneconcern/monorel/pkg/workspace"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix of environment variables overriding configuration keys
const EnvPrefix = "MONOREL"

// Registry kinds
const (
	RegistryLocalFS = "localfs"
	RegistryS3      = "s3"
	RegistryExec    = "exec"
)

// Author of automation commits
type Author struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Email string `mapstructure:"email" yaml:"email"`
}

// Registry configures where released packages are published
type Registry struct {
	Kind           string `mapstructure:"kind" yaml:"kind"`
	Path           string `mapstructure:"path" yaml:"path"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Prefix         string `mapstructure:"prefix" yaml:"prefix"`
	Region         string `mapstructure:"region" yaml:"region"`
	UseSSL         bool   `mapstructure:"useSSL" yaml:"useSSL"`
	AccessKeyEnv   string `mapstructure:"accessKeyEnv" yaml:"accessKeyEnv"`
	SecretKeyEnv   string `mapstructure:"secretKeyEnv" yaml:"secretKeyEnv"`
	PublishCommand string `mapstructure:"publishCommand" yaml:"publishCommand"`
	CheckCommand   string `mapstructure:"checkCommand" yaml:"checkCommand"`
}

// Credential configures the push credential of runs
type Credential struct {
	TokenEnv     string `mapstructure:"tokenEnv" yaml:"tokenEnv"`
	Username     string `mapstructure:"username" yaml:"username"`
	IDTokenEnv   string `mapstructure:"idTokenEnv" yaml:"idTokenEnv"`
	OIDCIssuer   string `mapstructure:"oidcIssuer" yaml:"oidcIssuer"`
	OIDCAudience string `mapstructure:"oidcAudience" yaml:"oidcAudience"`
}

// Config of release runs
type Config struct {
	ProtectedBranch        string        `mapstructure:"protectedBranch" yaml:"protectedBranch"`
	RequiredApprovals      int           `mapstructure:"requiredApprovals" yaml:"requiredApprovals"`
	AutomationCommitMarker string        `mapstructure:"automationCommitMarker" yaml:"automationCommitMarker"`
	AutomationTrailer      string        `mapstructure:"automationTrailer" yaml:"automationTrailer"`
	Timeout                time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Remote                 string        `mapstructure:"remote" yaml:"remote"`
	TagFormat              string        `mapstructure:"tagFormat" yaml:"tagFormat"`
	Packages               []string      `mapstructure:"packages" yaml:"packages"`
	Manifest               string        `mapstructure:"manifest" yaml:"manifest"`
	Changelog              string        `mapstructure:"changelog" yaml:"changelog"`
	BuildCommand           string        `mapstructure:"buildCommand" yaml:"buildCommand"`
	DeployCommand          string        `mapstructure:"deployCommand" yaml:"deployCommand"`
	Author                 Author        `mapstructure:"author" yaml:"author"`
	Registry               Registry      `mapstructure:"registry" yaml:"registry"`
	Credential             Credential    `mapstructure:"credential" yaml:"credential"`
	LogLevel               string        `mapstructure:"logLevel" yaml:"logLevel"`
	LogEncoding            string        `mapstructure:"logEncoding" yaml:"logEncoding"`
	MetricsTextfile        string        `mapstructure:"metricsTextfile" yaml:"metricsTextfile"`
	Report                 string        `mapstructure:"report" yaml:"report"`
}

// Default configuration
func Default() Config {
	return Config{
		ProtectedBranch:        "main",
		RequiredApprovals:      1,
		AutomationCommitMarker: guard.DefaultMarker,
		AutomationTrailer:      guard.DefaultTrailer,
		Timeout:                30 * time.Minute,
		Remote:                 "origin",
		TagFormat:              model.DefaultTagFormat,
		Packages:               []string{workspace.DefaultPattern},
		Manifest:               workspace.DefaultManifest,
		Changelog:              workspace.DefaultChangelog,
		Author:                 Author{Name: "monorel", Email: "monorel@localhost"},
		Registry: Registry{
			Kind:         RegistryLocalFS,
			Path:         "~/.monorel/registry",
			UseSSL:       true,
			AccessKeyEnv: "AWS_ACCESS_KEY_ID",
			SecretKeyEnv: "AWS_SECRET_ACCESS_KEY",
		},
		Credential: Credential{
			TokenEnv:   credential.DefaultTokenEnv,
			Username:   credential.DefaultUsername,
			IDTokenEnv: "MONOREL_ID_TOKEN",
		},
		LogLevel:    dlogger.LogLevelInfo,
		LogEncoding: dlogger.EncodingConsole,
	}
}

// SetDefaults registers every configuration key with its default value.
//
// Keys must be known to viper for environment variables to be picked up when unmarshalling.
func SetDefaults(v *viper.Viper) {
	var defaults map[string]interface{}
	if err := mapstructure.Decode(Default(), &defaults); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	setDefaults(v, "", defaults)
}

func setDefaults(v *viper.Viper, prefix string, values map[string]interface{}) {
	for key, value := range values {
		switch nested := value.(type) {
		case map[string]interface{}:
			setDefaults(v, prefix+key+".", nested)
		default:
			v.SetDefault(prefix+key, value)
		}
	}
}

// New viper instance with defaults and environment overrides configured
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load decodes and validates the configuration held by viper
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	err := v.Unmarshal(&c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, status.ErrInvalidConfig.Wrap(err)
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate the configuration
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...interface{}) {
		err = multierr.Append(err, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.ProtectedBranch) == "" {
		invalid("protectedBranch is required")
	}
	if c.RequiredApprovals < 0 {
		invalid("requiredApprovals must not be negative, got %d", c.RequiredApprovals)
	}
	if strings.TrimSpace(c.AutomationCommitMarker) == "" {
		invalid("automationCommitMarker is required")
	}
	if strings.ContainsAny(c.AutomationTrailer, " :\t\n") {
		invalid("automationTrailer %q is not a valid trailer key", c.AutomationTrailer)
	}
	if c.Timeout <= 0 {
		invalid("timeout must be positive, got %v", c.Timeout)
	}
	if strings.TrimSpace(c.Remote) == "" {
		invalid("remote is required")
	}
	if _, ferr := model.NewTagFormat(c.TagFormat); ferr != nil {
		invalid("tagFormat: %v", ferr)
	}
	if c.Author.Name == "" || c.Author.Email == "" {
		invalid("author.name and author.email are required")
	}
	if c.LogLevel != dlogger.LogLevelNone {
		var lvl zapcore.Level
		if lerr := lvl.UnmarshalText([]byte(c.LogLevel)); lerr != nil {
			invalid("logLevel: %v", lerr)
		}
	}
	switch c.LogEncoding {
	case dlogger.EncodingConsole, dlogger.EncodingJSON:
	default:
		invalid("logEncoding must be %q or %q, got %q", dlogger.EncodingConsole, dlogger.EncodingJSON, c.LogEncoding)
	}

	switch c.Registry.Kind {
	case RegistryLocalFS:
		// a relative path lands in the checkout, which CI discards after each run
		if !filepath.IsAbs(c.Registry.Path) && !strings.HasPrefix(c.Registry.Path, "~/") {
			invalid("registry.path must be absolute or start with ~/, got %q", c.Registry.Path)
		}
	case RegistryS3:
		if c.Registry.Bucket == "" {
			invalid("registry.bucket is required for an s3 registry")
		}
	case RegistryExec:
		if strings.TrimSpace(c.Registry.PublishCommand) == "" {
			invalid("registry.publishCommand is required for an exec registry")
		}
		if strings.TrimSpace(c.Registry.CheckCommand) == "" {
			invalid("registry.checkCommand is required for an exec registry")
		}
	default:
		invalid("unsupported registry.kind %q", c.Registry.Kind)
	}

	if (c.Credential.OIDCIssuer == "") != (c.Credential.OIDCAudience == "") {
		invalid("credential.oidcIssuer and credential.oidcAudience go together")
	}

	if err != nil {
		return status.ErrInvalidConfig.Wrap(err)
	}
	return nil
}

// Commands returns the build and deploy steps configured
func (c *Config) Commands(runner *build.Runner) (build.Builder, build.Deployer) {
	return build.NewBuilder(c.BuildCommand, runner), build.NewDeployer(c.DeployCommand, runner)
}
