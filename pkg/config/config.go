package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kass/go-geo-rank/pkg/models"
)

// EnvPrefix is prepended to every environment variable, e.g. GEORANK_LOG_LEVEL
const EnvPrefix = "GEORANK"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Index    IndexConfig
	Query    QueryConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type IndexConfig struct {
	// File is the gob file written by `georank load`
	File string
	// Directory is a JSON or YAML file of points of interest
	Directory string
}

type QueryConfig struct {
	RadiusKm float64
	Limit    int
	// Origin is used when a command is given no --lat/--lon; nil when unset
	Origin *models.GeoPoint
}

type LogConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "geodb")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("index.file", "data/index.gob")
	v.SetDefault("index.directory", "")

	v.SetDefault("query.radius_km", 10.0)
	v.SetDefault("query.limit", 10)
	v.SetDefault("query.origin_lat", "")
	v.SetDefault("query.origin_lon", "")

	v.SetDefault("log.level", "info")
}

// Load reads configuration from path (any format viper understands) and from
// GEORANK_* environment variables, which take precedence. With an empty path
// a georank.{yaml,json,toml} in the working directory is used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("georank")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         v.GetString("server.host"),
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.name"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxConns:        v.GetInt("database.max_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Index: IndexConfig{
			File:      v.GetString("index.file"),
			Directory: v.GetString("index.directory"),
		},
		Query: QueryConfig{
			RadiusKm: v.GetFloat64("query.radius_km"),
			Limit:    v.GetInt("query.limit"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}

	if v.GetString("query.origin_lat") != "" || v.GetString("query.origin_lon") != "" {
		cfg.Query.Origin = &models.GeoPoint{
			Lat: v.GetFloat64("query.origin_lat"),
			Lon: v.GetFloat64("query.origin_lon"),
		}
	}

	if cfg.Query.RadiusKm < 0 {
		return nil, fmt.Errorf("invalid config: query.radius_km must be non-negative, got %v", cfg.Query.RadiusKm)
	}
	if cfg.Query.Limit <= 0 {
		cfg.Query.Limit = 10
	}

	return cfg, nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// DSN renders the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.DBName,
		d.SSLMode,
	)
}
