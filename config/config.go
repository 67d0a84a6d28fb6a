// Package config loads runtime settings from an optional file, the environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "DUALSTORE"

const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

var ErrUnknownDialect = errors.New("unknown relational dialect")

type Relational struct {
	Dialect string `mapstructure:"dialect"`
	DSN     string `mapstructure:"dsn"`
	Echo    bool   `mapstructure:"echo"`
}

type Mongo struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Neo4j struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type Seed struct {
	Users           int   `mapstructure:"users"`
	MaxPostsPerUser int   `mapstructure:"max_posts_per_user"`
	RandomSeed      int64 `mapstructure:"random_seed"`
}

type Projector struct {
	UserPageSize int `mapstructure:"user_page_size"`
	PostPageSize int `mapstructure:"post_page_size"`
}

// Window holds the raw window bounds; see Config.Window for parsing.
type Window struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type Compare struct {
	Posts bool `mapstructure:"posts"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	Relational Relational `mapstructure:"relational"`
	Mongo      Mongo      `mapstructure:"mongo"`
	Redis      Redis      `mapstructure:"redis"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Neo4j      Neo4j      `mapstructure:"neo4j"`
	Seed       Seed       `mapstructure:"seed"`
	Projector  Projector  `mapstructure:"projector"`
	Window     Window     `mapstructure:"window"`
	Compare    Compare    `mapstructure:"compare"`
	Server     Server     `mapstructure:"server"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("relational.dialect", DialectSQLite)
	v.SetDefault("relational.dsn", "dualstore.db")
	v.SetDefault("relational.echo", false)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "db_demo")
	v.SetDefault("mongo.timeout", 10*time.Second)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "dualstore_runs")
	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("seed.users", 100)
	v.SetDefault("seed.max_posts_per_user", 10)
	v.SetDefault("seed.random_seed", 0)
	v.SetDefault("projector.user_page_size", 100)
	v.SetDefault("projector.post_page_size", 20)
	v.SetDefault("window.start", "2025-06-01")
	v.SetDefault("window.end", "2025-06-30")
	v.SetDefault("compare.posts", true)
	v.SetDefault("server.addr", ":1234")
}

// Load reads path when given, otherwise dualstore.yaml from the working directory if present.
// Environment variables such as DUALSTORE_MONGO_URI override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dualstore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Relational.Dialect {
	case DialectSQLite, DialectMySQL, DialectPostgres:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDialect, c.Relational.Dialect)
	}
	if c.Seed.Users <= 0 {
		return fmt.Errorf("seed.users must be positive, got %d", c.Seed.Users)
	}
	if c.Seed.MaxPostsPerUser < 3 {
		return fmt.Errorf("seed.max_posts_per_user must be at least 3, got %d", c.Seed.MaxPostsPerUser)
	}
	if c.Projector.UserPageSize <= 0 || c.Projector.PostPageSize <= 0 {
		return errors.New("projector page sizes must be positive")
	}
	if _, _, err := c.WindowBounds(); err != nil {
		return err
	}
	return nil
}

// WindowBounds parses the configured window. Dates without a time component are midnight UTC.
func (c *Config) WindowBounds() (time.Time, time.Time, error) {
	start, err := ParseTime(c.Window.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window.start: %w", err)
	}
	end, err := ParseTime(c.Window.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window.end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("window end %s before start %s", c.Window.End, c.Window.Start)
	}
	return start, end, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC3339 or a plain date/datetime, interpreted as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
