package discovery

import (
	"os"
	"strconv"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// envNames are the client environment variables of one driver
type envNames struct {
	host, port, user, password string
	defaultPort                int
}

var environment = map[string]envNames{
	models.DriverMySQL:    {"MYSQL_HOST", "MYSQL_TCP_PORT", "MYSQL_USER", "MYSQL_PWD", 3306},
	models.DriverPostgres: {"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", 5432},
}

func envPort(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if p, err := strconv.Atoi(value); err == nil && p > 0 && p <= 65535 {
		return p
	}
	return fallback
}

// ParseEnvironment reads the host and port variables of driver
func ParseEnvironment(driver string) *models.DiscoveredInstance {
	names, ok := environment[driver]
	if !ok {
		return nil
	}
	host := os.Getenv(names.host)
	if host == "" {
		return nil
	}

	return &models.DiscoveredInstance{
		Host:      host,
		Port:      envPort(os.Getenv(names.port), names.defaultPort),
		Driver:    driver,
		Source:    models.SourceEnvironment,
		Available: true, // verified on connect
	}
}

// GetEnvironmentConfig builds a session from the variables of driver, nil
// when neither host nor user is set
func GetEnvironmentConfig(driver string) *models.ConnectionConfig {
	names, ok := environment[driver]
	if !ok {
		return nil
	}
	host := os.Getenv(names.host)
	user := os.Getenv(names.user)
	if host == "" && user == "" {
		return nil
	}

	cfg := models.NewConnectionConfig()
	cfg.Name = "Environment"
	cfg.Driver = driver
	cfg.Port = envPort(os.Getenv(names.port), names.defaultPort)
	cfg.Password = os.Getenv(names.password)
	if host != "" {
		cfg.Host = host
	}
	if user != "" {
		cfg.User = user
	}
	return &cfg
}
