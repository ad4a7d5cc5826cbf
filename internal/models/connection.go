package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Supported drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// ConnectionConfig represents a saved session configuration
type ConnectionConfig struct {
	Name     string `yaml:"name"`
	UUID     string `yaml:"uuid"`
	Host     string `yaml:"hostname"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	Port     int    `yaml:"port"`
	Driver   string `yaml:"driver,omitempty"`
}

// NewConnectionConfig returns the defaults used for a freshly created session
func NewConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Name:   "Unnamed",
		UUID:   uuid.New().String(),
		Host:   "localhost",
		User:   "root",
		Port:   3306,
		Driver: DriverMySQL,
	}
}

// DriverName returns the configured driver, defaulting to MySQL
func (c ConnectionConfig) DriverName() string {
	if c.Driver == "" {
		return DriverMySQL
	}
	return c.Driver
}

// Address returns host:port
func (c ConnectionConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String describes the session without its password
func (c ConnectionConfig) String() string {
	return fmt.Sprintf("%s@%s:%d", c.User, c.Host, c.Port)
}

// ConnectionState represents the current connection state
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "disconnected"
	}
}

// DiscoveredInstance represents a server instance found via auto-discovery
type DiscoveredInstance struct {
	Host         string
	Port         int
	Driver       string
	Source       DiscoverySource
	Available    bool
	ResponseTime time.Duration
}

// DiscoverySource indicates how an instance was discovered
type DiscoverySource int

const (
	SourceEnvironment DiscoverySource = iota
	SourcePortScan
)

func (s DiscoverySource) String() string {
	switch s {
	case SourcePortScan:
		return "Port Scan"
	case SourceEnvironment:
		return "Environment"
	default:
		return "Unknown"
	}
}
