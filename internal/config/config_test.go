package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AcceptsBothNamingStyles(t *testing.T) {
	t.Setenv("CNR_POSTGRESQL_HOST", "db.internal")
	t.Setenv("CNR_USER", "loader")
	t.Setenv("CNR_PASSWORD", "secret")
	t.Setenv("CNR_GD_DB", "cnr")

	cfg := Load()
	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, "loader", cfg.DBUser)
	assert.Equal(t, "secret", cfg.DBPassword)
	assert.Equal(t, "cnr", cfg.DBName)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.NoError(t, cfg.ValidateDB())
}

func TestLoad_KPIDefaults(t *testing.T) {
	t.Setenv("KPI_BASE", "http://kpi.internal")
	t.Setenv("KPI_PRECEDENCE", "prefer-partner")
	t.Setenv("KPI_TIMEOUT", "5s")

	cfg := Load()
	assert.Equal(t, "http://kpi.internal", cfg.KPIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.KPITimeout)
	assert.Equal(t, 1.7, cfg.PUEFallback)
	assert.NoError(t, cfg.ValidateKPI())
}

func TestValidateDB_ListsMissing(t *testing.T) {
	err := Config{}.ValidateDB()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host")
	assert.Contains(t, err.Error(), "dbname")
}

func TestValidateKPI(t *testing.T) {
	t.Run("disabled needs nothing", func(t *testing.T) {
		assert.NoError(t, Config{}.ValidateKPI())
	})
	t.Run("enabled requires precedence", func(t *testing.T) {
		err := Config{KPIBaseURL: "http://kpi"}.ValidateKPI()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "KPI_PRECEDENCE")
	})
	t.Run("rejects unknown precedence", func(t *testing.T) {
		err := Config{KPIBaseURL: "http://kpi", KPIPrecedence: "newest-wins"}.ValidateKPI()
		assert.Error(t, err)
	})
}
