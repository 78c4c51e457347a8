package config

import "fmt"

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	Host     string `env:"SIGNIN_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"SIGNIN_PG_PORT" env-default:"5432"`
	Database string `env:"SIGNIN_PG_DATABASE" env-default:"signin_db"`
	User     string `env:"SIGNIN_PG_USER" env-default:"signin"`
	Password string `env:"SIGNIN_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"SIGNIN_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

// RedisConfig holds the connection settings for the Redis code store
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// StorageConfig selects the backends for users, invites and codes.
// Valid values are "postgres" and "inmem"; codes additionally accept "redis".
type StorageConfig struct {
	UserStore   string `env:"SIGNIN_USER_STORE" env-default:"postgres"`
	CodeStore   string `env:"SIGNIN_CODE_STORE" env-default:"redis"`
	InviteStore string `env:"SIGNIN_INVITE_STORE" env-default:"postgres"`
}

// NeedsPostgres reports whether any backend requires a database pool
func (s StorageConfig) NeedsPostgres() bool {
	return s.UserStore == "postgres" || s.CodeStore == "postgres" || s.InviteStore == "postgres"
}
