package discovery

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebeliceyang/lazymy/internal/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range environment {
		for _, key := range []string{names.host, names.port, names.user, names.password} {
			t.Setenv(key, "")
		}
	}
}

func TestParseEnvironment(t *testing.T) {
	clearEnv(t)
	assert.Nil(t, ParseEnvironment(models.DriverMySQL))

	t.Setenv("MYSQL_HOST", "db.local")
	t.Setenv("MYSQL_TCP_PORT", "3310")
	inst := ParseEnvironment(models.DriverMySQL)
	require.NotNil(t, inst)
	assert.Equal(t, "db.local", inst.Host)
	assert.Equal(t, 3310, inst.Port)
	assert.Equal(t, models.SourceEnvironment, inst.Source)

	t.Setenv("MYSQL_TCP_PORT", "99999")
	assert.Equal(t, 3306, ParseEnvironment(models.DriverMySQL).Port)

	assert.Nil(t, ParseEnvironment("oracle"))
}

func TestGetEnvironmentConfig(t *testing.T) {
	clearEnv(t)
	assert.Nil(t, GetEnvironmentConfig(models.DriverPostgres))

	t.Setenv("PGUSER", "app")
	t.Setenv("PGPASSWORD", "pw")
	cfg := GetEnvironmentConfig(models.DriverPostgres)
	require.NotNil(t, cfg)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, models.DriverPostgres, cfg.Driver)
	assert.NotEmpty(t, cfg.UUID)
}

func TestSeed_PrefersEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MYSQL_USER", "admin")

	cfg := NewDiscoverer().Seed(context.Background())
	assert.Equal(t, "Environment", cfg.Name)
	assert.Equal(t, "admin", cfg.User)
	assert.Equal(t, models.DriverMySQL, cfg.Driver)
}

func TestScanner_ScanPorts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	open := ln.Addr().(*net.TCPAddr).Port

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	require.NoError(t, closed.Close())

	found := NewScanner().ScanPorts(context.Background(), "127.0.0.1", models.DriverMySQL, []int{open, closedPort})
	require.Len(t, found, 1)
	assert.Equal(t, open, found[0].Port)
	assert.Equal(t, models.DriverMySQL, found[0].Driver)
	assert.True(t, found[0].Available)
}

func TestDeduplicateInstances(t *testing.T) {
	in := []models.DiscoveredInstance{
		{Host: "localhost", Port: 3307, Source: models.SourcePortScan},
		{Host: "localhost", Port: 3306, Source: models.SourcePortScan},
		{Host: "localhost", Port: 3306, Source: models.SourceEnvironment},
	}

	out := deduplicateInstances(in)
	require.Len(t, out, 2)
	assert.Equal(t, models.SourceEnvironment, out[0].Source)
	assert.Equal(t, 3306, out[0].Port)
	assert.Equal(t, 3307, out[1].Port)
}
