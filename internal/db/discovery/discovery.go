// Package discovery finds local database servers to seed the first session.
package discovery

import (
	"context"
	"sort"
	"strconv"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// Discoverer coordinates the environment and port scan sources
type Discoverer struct {
	scanner *Scanner
}

// NewDiscoverer creates a new discoverer
func NewDiscoverer() *Discoverer {
	return &Discoverer{
		scanner: NewScanner(),
	}
}

// DiscoverAll runs every discovery method; environment results come first
func (d *Discoverer) DiscoverAll(ctx context.Context) []models.DiscoveredInstance {
	instances := make([]models.DiscoveredInstance, 0)
	for _, driver := range []string{models.DriverMySQL, models.DriverPostgres} {
		if env := ParseEnvironment(driver); env != nil {
			instances = append(instances, *env)
		}
	}
	instances = append(instances, d.scanner.ScanLocalhost(ctx)...)
	return deduplicateInstances(instances)
}

// Seed returns the session created on first run: the environment session if
// any, else the first server found listening, else the defaults
func (d *Discoverer) Seed(ctx context.Context) models.ConnectionConfig {
	for _, driver := range []string{models.DriverMySQL, models.DriverPostgres} {
		if cfg := GetEnvironmentConfig(driver); cfg != nil {
			return *cfg
		}
	}

	cfg := models.NewConnectionConfig()
	for _, inst := range d.DiscoverAll(ctx) {
		cfg.Name = inst.Host
		cfg.Host = inst.Host
		cfg.Port = inst.Port
		cfg.Driver = inst.Driver
		if inst.Driver == models.DriverPostgres {
			cfg.User = "postgres"
		}
		break
	}
	return cfg
}

// deduplicateInstances keeps one instance per host:port, preferring the
// higher priority source, ordered by source then port
func deduplicateInstances(instances []models.DiscoveredInstance) []models.DiscoveredInstance {
	seen := make(map[string]models.DiscoveredInstance)
	for _, instance := range instances {
		key := instance.Host + ":" + strconv.Itoa(instance.Port)
		if existing, exists := seen[key]; !exists || instance.Source < existing.Source {
			seen[key] = instance
		}
	}

	result := make([]models.DiscoveredInstance, 0, len(seen))
	for _, instance := range seen {
		result = append(result, instance)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Source != result[j].Source {
			return result[i].Source < result[j].Source
		}
		return result[i].Port < result[j].Port
	})
	return result
}
