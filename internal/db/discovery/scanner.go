package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// DefaultPorts are the local ports scanned per driver
var DefaultPorts = map[string][]int{
	models.DriverMySQL:    {3306, 3307},
	models.DriverPostgres: {5432, 5433},
}

// Scanner dials TCP ports to find listening servers
type Scanner struct {
	timeout time.Duration
}

// NewScanner creates a new scanner
func NewScanner() *Scanner {
	return &Scanner{
		timeout: 2 * time.Second,
	}
}

// ScanPorts dials ports of host concurrently and returns the open ones
func (s *Scanner) ScanPorts(ctx context.Context, host, driver string, ports []int) []models.DiscoveredInstance {
	if len(ports) == 0 {
		ports = DefaultPorts[driver]
	}

	instances := make([]models.DiscoveredInstance, 0, len(ports))
	resultChan := make(chan models.DiscoveredInstance, len(ports))

	var wg sync.WaitGroup
	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			resultChan <- s.scanPort(ctx, host, driver, p)
		}(port)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for instance := range resultChan {
		if instance.Available {
			instances = append(instances, instance)
		}
	}
	return instances
}

func (s *Scanner) scanPort(ctx context.Context, host, driver string, port int) models.DiscoveredInstance {
	instance := models.DiscoveredInstance{
		Host:   host,
		Port:   port,
		Driver: driver,
		Source: models.SourcePortScan,
	}

	start := time.Now()
	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	instance.ResponseTime = time.Since(start)
	if err != nil {
		return instance
	}

	_ = conn.Close()
	instance.Available = true
	return instance
}

// ScanLocalhost scans the default ports of every driver on localhost
func (s *Scanner) ScanLocalhost(ctx context.Context) []models.DiscoveredInstance {
	var out []models.DiscoveredInstance
	for _, driver := range []string{models.DriverMySQL, models.DriverPostgres} {
		out = append(out, s.ScanPorts(ctx, "localhost", driver, DefaultPorts[driver])...)
	}
	return out
}
