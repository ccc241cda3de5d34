// Package config provides configuration management for the event management
// service. It handles loading and validation of configuration values from
// environment variables, with support for required variables, default
// values, and collective error reporting: every problem found during loading
// is reported in one pass instead of failing var by var.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends the service can run against.
const (
	// StoragePostgres selects the pgx-backed store (the default).
	StoragePostgres = "postgres"
	// StorageMemory selects the in-memory store, for local runs and demos.
	StorageMemory = "memory"
)

// PoolConfig represents configuration for the database connection pool.
type PoolConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxSize  int
}

// KeysConfig holds API-key related configuration: which headers carry the
// user and admin secrets, and whether main should mint a missing admin key
// at startup.
type KeysConfig struct {
	UserHeader     string
	AdminHeader    string
	BootstrapAdmin bool
}

// CacheConfig holds the response cache settings. An empty Addr disables
// caching entirely.
type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Storage string
	DB      *PoolConfig
	Keys    *KeysConfig
	Cache   *CacheConfig
	Server  *ServerConfig
}

// getRequiredEnv reads a required environment variable, collecting an error
// when it is absent.
func getRequiredEnv(key string, errs *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		*errs = append(*errs, fmt.Sprintf("missing required environment variable: %s", key))
		return ""
	}
	return value
}

// getOptionalEnv reads an environment variable, falling back to a default.
func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getOptionalEnvInt reads an integer variable, falling back to a default and
// collecting an error when the value does not parse.
func getOptionalEnvInt(key string, defaultValue int, errs *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

// getOptionalEnvBool reads a boolean variable ("true"/"false", "1"/"0").
func getOptionalEnvBool(key string, defaultValue bool, errs *[]string) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueBool, err := strconv.ParseBool(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected boolean, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueBool
}

// getOptionalEnvDuration reads a duration variable in time.ParseDuration
// notation ("30s", "5m").
func getOptionalEnvDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected duration string, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueDuration
}

// clampPoolSize keeps the connection pool size within sane bounds,
// collecting an error when the configured value had to be adjusted.
func clampPoolSize(size int, varName string, errs *[]string) int {
	if size < 2 {
		*errs = append(*errs, fmt.Sprintf("pool size for %s (%d) is less than minimum 2, clamping to 2", varName, size))
		return 2
	}
	if size > 100 {
		*errs = append(*errs, fmt.Sprintf("pool size for %s (%d) is greater than maximum 100, clamping to 100", varName, size))
		return 100
	}
	return size
}

// LoadConfig creates an AppConfig by reading and validating environment
// variables. It collects all errors encountered and returns them as a single
// error if any exist.
func LoadConfig() (*AppConfig, error) {
	var errs []string

	// Storage backend. Database settings are only required for postgres.
	storage := strings.ToLower(getOptionalEnv("EMS_STORAGE", StoragePostgres))
	if storage != StoragePostgres && storage != StorageMemory {
		errs = append(errs, fmt.Sprintf("invalid value for EMS_STORAGE: expected '%s' or '%s', got '%s'", StoragePostgres, StorageMemory, storage))
	}

	var db *PoolConfig
	if storage == StoragePostgres {
		db = &PoolConfig{
			Host:     getOptionalEnv("DB_HOST", "localhost"),
			Port:     getOptionalEnvInt("DB_PORT", 5432, &errs),
			User:     getRequiredEnv("DB_USER", &errs),
			Password: getRequiredEnv("DB_PASSWORD", &errs),
			DBName:   getRequiredEnv("DB_NAME", &errs),
			MaxSize:  clampPoolSize(getOptionalEnvInt("DB_POOL_SIZE", 10, &errs), "DB_POOL_SIZE", &errs),
		}
	}

	keys := &KeysConfig{
		UserHeader:     getOptionalEnv("EMS_USER_KEY_HEADER", "User-Api-Key"),
		AdminHeader:    getOptionalEnv("EMS_ADMIN_KEY_HEADER", "EMS-Api-Key"),
		BootstrapAdmin: getOptionalEnvBool("EMS_BOOTSTRAP_ADMIN_KEY", true, &errs),
	}

	cache := &CacheConfig{
		Addr: getOptionalEnv("EMS_CACHE_ADDR", ""),
		TTL:  getOptionalEnvDuration("EMS_CACHE_TTL", 5*time.Minute, &errs),
	}

	server := &ServerConfig{
		Port: getOptionalEnv("PORT", "8080"),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}

	return &AppConfig{
		Storage: storage,
		DB:      db,
		Keys:    keys,
		Cache:   cache,
		Server:  server,
	}, nil
}
