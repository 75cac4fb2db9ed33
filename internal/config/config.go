// Package config reads the settings of the contacts service from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Config holds all settings of the service.
type Config struct {
	Port        int
	DBUser      string
	DBPassword  string
	DBHost      string
	DBName      string
	GinMode     string
	HTTPLogging bool
	LogMode     string
	CORSOrigins []string

	// OpenTelemetry settings, off unless OTEL_ENABLED is set.
	TracingEnabled     bool
	TracingEndpoint    string
	TracingInsecure    bool
	TracingSampleRatio float64
	ServiceName        string
}

// Load reads the configuration from the system's environment variables.
//
// Usage example on the command line:
// > PORT=8080 DBHOST=localhost DBUSER=dirk DBPWD=bullo92 DBNAME=test LOG_MODE=production
func Load() (Config, error) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		return Config{}, fmt.Errorf("could not parse PORT env variable: %w", err)
	}
	if port < 1 || port > 65535 {
		return Config{}, fmt.Errorf("PORT env variable out of range: %d", port)
	}
	cfg := LoadDatabase()
	cfg.Port = port
	cfg.GinMode = os.Getenv("GIN_MODE")
	cfg.HTTPLogging = !strings.EqualFold(os.Getenv("GIN_LOGGING"), "off")
	cfg.LogMode = getenvDefault("LOG_MODE", "development")
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	cfg.TracingEnabled = isTrue(os.Getenv("OTEL_ENABLED"))
	cfg.TracingEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	cfg.TracingInsecure = isTrue(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"))
	cfg.TracingSampleRatio = 1
	if value := strings.TrimSpace(os.Getenv("OTEL_SAMPLER_RATIO")); value != "" {
		ratio, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Config{}, fmt.Errorf("could not parse OTEL_SAMPLER_RATIO env variable: %w", err)
		}
		cfg.TracingSampleRatio = ratio
	}
	cfg.ServiceName = getenvDefault("OTEL_SERVICE_NAME", "contacts-directory")
	return cfg, nil
}

// LoadDatabase reads only the database settings. Tools that never open an HTTP port use it.
func LoadDatabase() Config {
	return Config{
		DBUser:     os.Getenv("DBUSER"),
		DBPassword: os.Getenv("DBPWD"),
		DBHost:     getenvDefault("DBHOST", "localhost:3306"),
		DBName:     getenvDefault("DBNAME", "test"),
	}
}

// DSN returns the data source name for the MySQL driver.
//
// ClientFoundRows makes UPDATE report matched rows rather than changed rows, so that an update
// which sets the values already stored is not mistaken for a missing contact.
func (c Config) DSN() string {
	dsn := mysql.NewConfig()
	dsn.User = c.DBUser
	dsn.Passwd = c.DBPassword
	dsn.Net = "tcp"
	dsn.Addr = c.DBHost
	dsn.DBName = c.DBName
	dsn.ParseTime = true
	dsn.ClientFoundRows = true
	return dsn.FormatDSN()
}

// Address returns the listen address of the HTTP server.
func (c Config) Address() string {
	return ":" + strconv.Itoa(c.Port)
}

func getenvDefault(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func isTrue(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// splitList splits a comma separated list and drops empty entries.
func splitList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
