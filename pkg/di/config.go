package di

import (
	"path/filepath"
	"reflect"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/goliatone/go-repository-identity/model"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// EnvPrefix prefixes every environment override, e.g. IDENTITY_DATABASE_DSN.
const EnvPrefix = "IDENTITY"

// Config holds the configuration for the container.
type Config struct {
	// Database holds the connection the storage adapter reads through.
	Database DatabaseConfig `mapstructure:"database"`
	// Log holds configuration for the logger.
	Log LogConfig `mapstructure:"log"`
	// Identity holds identity map options.
	Identity IdentityConfig `mapstructure:"identity"`
}

// DatabaseConfig describes the database connection.
type DatabaseConfig struct {
	// Connection is the name rows are read under. It is part of every
	// identity key, so two containers pointing at different databases must
	// use different names if they share an identity map.
	Connection string `mapstructure:"connection" default:"default"`
	// Driver is the database/sql driver name (sqlite3, postgres).
	Driver string `mapstructure:"driver" default:"sqlite3"`
	// DSN is the driver specific data source name.
	DSN string `mapstructure:"dsn" default:":memory:"`
	// MaxOpenConns caps open connections. Zero keeps the driver default,
	// except for sqlite where it becomes 1.
	MaxOpenConns int `mapstructure:"max_open_conns" default:"0"`
}

// LogConfig holds configuration for the logger.
type LogConfig struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string `mapstructure:"level" default:"info"`
	// Format is the encoding (json, console).
	Format string `mapstructure:"format" default:"json"`
}

// IdentityConfig holds identity map options.
type IdentityConfig struct {
	// EscapeKeys escapes the key separator inside entity types, ids and
	// connection names.
	EscapeKeys bool `mapstructure:"escape_keys" default:"false"`
}

// DefaultConfig returns the configuration used when nothing is provided:
// an in-memory sqlite database on the default connection.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Connection: model.DefaultConnection,
			Driver:     DriverSQLite,
			DSN:        ":memory:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Database),
		validation.Field(&c.Log),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid identity configuration").
			WithTextCode("INVALID_CONFIG")
	}
	return nil
}

// Validate checks the database settings.
func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Connection, validation.Required),
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
	)
}

// Validate checks the logger settings.
func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.In("json", "console")),
	)
}

// LoadConfig loads configuration from the environment, after reading the
// .env file in dir when there is one. Variables already set in the
// environment take precedence over the file.
func LoadConfig(dir string) (*Config, error) {
	// missing .env is fine outside development
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	bindDefaults(v, Config{}, "")

	// database.dsn -> IDENTITY_DATABASE_DSN
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindDefaults walks the struct and registers every mapstructure key with
// its default tag value, so AutomaticEnv can resolve it.
func bindDefaults(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindDefaults(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		v.SetDefault(key, field.Tag.Get("default"))
	}
}
