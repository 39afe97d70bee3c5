package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "./data/billtx.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.BusyTimeout)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.AuthEnabled())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("BILLTX_PORT", "9090")
	t.Setenv("BILLTX_LOG_LEVEL", "debug")
	t.Setenv("BILLTX_STORE_DRIVER", "postgres")
	t.Setenv("BILLTX_DATABASE_URL", "postgres://billtx@localhost/billtx")
	t.Setenv("BILLTX_JWT_SECRET", "s3cret")
	t.Setenv("BILLTX_TOKEN_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://billtx@localhost/billtx", cfg.DatabaseURL)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.AuthEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite", Config{Port: 8080, StoreDriver: DriverSQLite, DBPath: "x.db"}, false},
		{"sqlite without path", Config{Port: 8080, StoreDriver: DriverSQLite}, true},
		{"postgres without url", Config{Port: 8080, StoreDriver: DriverPostgres}, true},
		{"unknown driver", Config{Port: 8080, StoreDriver: "mysql"}, true},
		{"bad port", Config{Port: 0, StoreDriver: DriverSQLite, DBPath: "x.db"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
