package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpesa-console/internal/config"
)

func TestPoolConfig(t *testing.T) {
	nairobi, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)

	tests := []struct {
		name    string
		cfg     config.Config
		wantTZ  string
		wantApp string
		wantMin int32
		wantMax int32
	}{
		{
			name:    "named zone",
			cfg:     config.Config{DatabaseURL: "postgres://u:p@localhost:5432/console", DBMinConns: 2, DBMaxConns: 8, Timezone: "Africa/Nairobi", Location: nairobi},
			wantTZ:  "Africa/Nairobi",
			wantApp: ApplicationName,
			wantMin: 2,
			wantMax: 8,
		},
		{
			name:    "local zone keeps server default",
			cfg:     config.Config{DatabaseURL: "postgres://u:p@localhost:5432/console", DBMinConns: 10, DBMaxConns: 4, Timezone: "Local", Location: time.Local},
			wantTZ:  "",
			wantApp: ApplicationName,
			wantMin: 4,
			wantMax: 4,
		},
		{
			name:    "url application name wins",
			cfg:     config.Config{DatabaseURL: "postgres://u:p@localhost:5432/console?application_name=reporting", DBMinConns: 1, DBMaxConns: 2, Timezone: "UTC", Location: time.UTC},
			wantTZ:  "UTC",
			wantApp: "reporting",
			wantMin: 1,
			wantMax: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poolCfg, err := PoolConfig(&tt.cfg)
			require.NoError(t, err)

			params := poolCfg.ConnConfig.RuntimeParams
			assert.Equal(t, tt.wantTZ, params["timezone"])
			assert.Equal(t, tt.wantApp, params["application_name"])
			assert.Equal(t, tt.wantMin, poolCfg.MinConns)
			assert.Equal(t, tt.wantMax, poolCfg.MaxConns)
			assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
		})
	}
}

func TestPoolConfig_InvalidURL(t *testing.T) {
	_, err := PoolConfig(&config.Config{DatabaseURL: "postgres://u:p@localhost:notaport/db"})
	assert.Error(t, err)
}
