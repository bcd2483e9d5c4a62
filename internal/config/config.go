package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port          string `env:"PORT" envDefault:"8000"`
	DBAdapter     string `env:"DB_ADAPTER" envDefault:"postgres"`
	SQLiteFile    string `env:"SQLITE_FILE" envDefault:"./data/gitfav.db"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"./migrations"`
	JwtSecret     string `env:"JWT_SECRET" envDefault:"change-me"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	Env           string `env:"ENV"`
	NodeEnv       string `env:"NODE_ENV"`
	// Identity provider: "local" keeps accounts in DB, "supabase" delegates to GoTrue
	IdentityProvider string `env:"IDENTITY_PROVIDER" envDefault:"local"`
	SupabaseURL      string `env:"SUPABASE_URL"`
	SupabaseKey      string `env:"SUPABASE_KEY"`
	// Browser origins allowed to call the API
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	// PostgreSQL connection settings
	PostgresDSN      string `env:"POSTGRES_DSN"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"gitfav"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"gitfav"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

// Production reports whether ENV or NODE_ENV names a production deployment.
func (c *Config) Production() bool {
	env := strings.ToLower(c.Env)
	if env == "" {
		env = strings.ToLower(c.NodeEnv)
	}
	return env == "production" || env == "prod"
}

func New() (*Config, error) {
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.DBAdapter {
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	case "sqlite":
		if c.SQLiteFile == "" {
			return errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	switch c.IdentityProvider {
	case "local":
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_KEY must be set when IDENTITY_PROVIDER=supabase")
		}
	default:
		return fmt.Errorf("unsupported IDENTITY_PROVIDER: %s (supported: local, supabase)", c.IdentityProvider)
	}

	if c.JwtSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.Production() && c.JwtSecret == "change-me" {
		return errors.New("JWT_SECRET must be set in production")
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT: %s", c.Port)
	}

	origins := c.CORSAllowedOrigins[:0]
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSAllowedOrigins = origins

	return nil
}
