// Package config loads the dispensa configuration file.
//
// Values are resolved in this order: built-in defaults, the YAML file, then
// DISPENSA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up at the project root.
const FileName = "dispensa.yaml"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFS     = "fs"
	DriverLocal  = "local"
)

// Auth modes.
const (
	AuthStatic = "static"
	AuthToken  = "token"
)

// Config is the full configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Auth   AuthConfig   `yaml:"auth"`
	Server ServerConfig `yaml:"server"`
	Backup BackupConfig `yaml:"backup"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	// Driver is one of memory, fs or local.
	Driver    string        `yaml:"driver"`
	Path      string        `yaml:"path"`
	Format    string        `yaml:"format"`
	Pattern   string        `yaml:"pattern"`
	ReadOnly  bool          `yaml:"read_only"`
	MustExist bool          `yaml:"must_exist"`
	Debounce  time.Duration `yaml:"debounce"`
	KV        KVConfig      `yaml:"kv"`
}

// KVConfig is the table backing the local store.
type KVConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig selects the session provider.
type AuthConfig struct {
	Mode     string `yaml:"mode"`
	UID      string `yaml:"uid"`
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	SignedIn bool   `yaml:"signed_in"`

	Secret    string `yaml:"secret"`
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// ServerConfig is used by the serve command.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// BackupConfig holds the export destinations.
type BackupConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config points at an S3 compatible bucket.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Driver:   DriverLocal,
			Path:     "data",
			Format:   ".json",
			Debounce: 50 * time.Millisecond,
			KV:       KVConfig{Driver: "sqlite"},
		},
		Auth: AuthConfig{
			Mode:     AuthStatic,
			UID:      "local",
			Name:     "Dispensa",
			SignedIn: true,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
	}
}

// Load reads path (if not empty) over the defaults and applies the
// environment.
func Load(path string) (Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that have a closed set of choices.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory, DriverFS, DriverLocal:
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	switch strings.TrimPrefix(c.Store.Format, ".") {
	case "json", "yaml", "yml":
	default:
		errs = append(errs, fmt.Errorf("store.format: unsupported format %q", c.Store.Format))
	}
	switch c.Auth.Mode {
	case AuthStatic:
		if c.Auth.UID == "" {
			errs = append(errs, errors.New("auth.uid: required in static mode"))
		}
	case AuthToken:
		if c.Auth.Secret == "" {
			errs = append(errs, errors.New("auth.secret: required in token mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.mode: unknown mode %q", c.Auth.Mode))
	}
	return errors.Join(errs...)
}

type binding struct {
	key string
	set func(string) error
}

func str(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func boolean(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func duration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	bindings := []binding{
		{"DISPENSA_STORE_DRIVER", str(&c.Store.Driver)},
		{"DISPENSA_STORE_PATH", str(&c.Store.Path)},
		{"DISPENSA_STORE_FORMAT", str(&c.Store.Format)},
		{"DISPENSA_STORE_PATTERN", str(&c.Store.Pattern)},
		{"DISPENSA_STORE_READ_ONLY", boolean(&c.Store.ReadOnly)},
		{"DISPENSA_STORE_MUST_EXIST", boolean(&c.Store.MustExist)},
		{"DISPENSA_STORE_DEBOUNCE", duration(&c.Store.Debounce)},
		{"DISPENSA_KV_DRIVER", str(&c.Store.KV.Driver)},
		{"DISPENSA_KV_DSN", str(&c.Store.KV.DSN)},
		{"DISPENSA_AUTH_MODE", str(&c.Auth.Mode)},
		{"DISPENSA_AUTH_UID", str(&c.Auth.UID)},
		{"DISPENSA_AUTH_EMAIL", str(&c.Auth.Email)},
		{"DISPENSA_AUTH_NAME", str(&c.Auth.Name)},
		{"DISPENSA_AUTH_SIGNED_IN", boolean(&c.Auth.SignedIn)},
		{"DISPENSA_AUTH_SECRET", str(&c.Auth.Secret)},
		{"DISPENSA_AUTH_TOKEN", str(&c.Auth.Token)},
		{"DISPENSA_AUTH_TOKEN_FILE", str(&c.Auth.TokenFile)},
		{"DISPENSA_SERVER_ADDR", str(&c.Server.Addr)},
		{"DISPENSA_S3_BUCKET", str(&c.Backup.S3.Bucket)},
		{"DISPENSA_S3_REGION", str(&c.Backup.S3.Region)},
		{"DISPENSA_S3_ENDPOINT", str(&c.Backup.S3.Endpoint)},
		{"DISPENSA_S3_PATH_STYLE", boolean(&c.Backup.S3.PathStyle)},
	}
	for _, b := range bindings {
		v, ok := lookup(b.key)
		if !ok {
			continue
		}
		if err := b.set(v); err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
	}
	return nil
}
