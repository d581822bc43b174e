package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, "userapi", cfg.Store.Name)
	assert.Equal(t, "user-api", cfg.Auth.Issuer)
	assert.Equal(t, 60, cfg.Auth.TokenTTLMinutes)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, "admin", cfg.Seed.AdminLogin)
	assert.Equal(t, "admin123", cfg.Seed.AdminPassword)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("USERAPI_AUTH_JWTSECRET", "s3cret")
	t.Setenv("USERAPI_STORE_DRIVER", StoreSQLite)
	t.Setenv("USERAPI_AUTH_TOKENTTLMINUTES", "15")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, 15, cfg.Auth.TokenTTLMinutes)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.Auth.JWTSecret = "k"
		c.Auth.TokenTTLMinutes = 5
		c.Store.Driver = StoreMemory
		c.Seed.AdminLogin = "admin"
		c.Seed.AdminPassword = "admin123"
		return c
	}
	require.NoError(t, valid().Validate())

	noSecret := valid()
	noSecret.Auth.JWTSecret = " "
	assert.Error(t, noSecret.Validate())

	badTTL := valid()
	badTTL.Auth.TokenTTLMinutes = 0
	assert.Error(t, badTTL.Validate())

	badDriver := valid()
	badDriver.Store.Driver = "postgres"
	assert.Error(t, badDriver.Validate())

	noSeed := valid()
	noSeed.Seed.AdminPassword = ""
	assert.Error(t, noSeed.Validate())
}
