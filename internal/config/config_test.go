package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnvs sets multiple env vars for the duration of the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, map[string]string{"ENVIRONMENT": "development"})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessExpiry)
	assert.Equal(t, 168*time.Hour, cfg.JWTRefreshExpiry)
	assert.Equal(t, 24*time.Hour, cfg.JWTEmailExpiry)
	assert.Equal(t, MailDispatchAsync, cfg.MailDispatch)
	assert.Equal(t, "redis", cfg.RateLimitBackend)
	assert.Equal(t, 2, cfg.RateLimitTimes)
	assert.Equal(t, 10*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, []string{"Python-urllib"}, cfg.BannedUserAgents)
	assert.Empty(t, cfg.BannedIPs)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Equal(t, "TODO Systems", cfg.MailFromName)
}

func TestLoad_Development_AcceptsDefaultSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":    "development",
		"SECRET_KEY_JWT": defaultJWTSecret,
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, defaultJWTSecret, cfg.JWTSecret)
}

func TestLoad_Production_RejectsDefaultSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":    "production",
		"SECRET_KEY_JWT": defaultJWTSecret,
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY_JWT must be explicitly set")
}

func TestLoad_Production_RejectsShortSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":    "production",
		"SECRET_KEY_JWT": "too-short",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestLoad_Production_AcceptsStrongSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":    "production",
		"SECRET_KEY_JWT": strongSecret,
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, strongSecret, cfg.JWTSecret)
}

func TestLoad_Algorithm(t *testing.T) {
	tests := []struct {
		alg     string
		wantErr bool
	}{
		{"HS256", false},
		{"HS512", false},
		{"HS384", true},
		{"RS256", true},
		{"none", true},
	}

	for _, tt := range tests {
		t.Run(tt.alg, func(t *testing.T) {
			setEnvs(t, map[string]string{"ALGORITHM": tt.alg})

			cfg, err := Load()
			if tt.wantErr {
				assert.Nil(t, cfg)
				assert.ErrorContains(t, err, "ALGORITHM must be HS256 or HS512")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.alg, cfg.JWTAlgorithm)
		})
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	setEnvs(t, map[string]string{"HTTP_PORT": "70000"})

	_, err := Load()

	assert.ErrorContains(t, err, "invalid HTTP port")
}

func TestLoad_InvalidMailDispatch(t *testing.T) {
	setEnvs(t, map[string]string{"MAIL_DISPATCH": "carrier-pigeon"})

	_, err := Load()

	assert.ErrorContains(t, err, "MAIL_DISPATCH")
}

func TestLoad_InvalidRateLimitBackend(t *testing.T) {
	setEnvs(t, map[string]string{"RATE_LIMIT_BACKEND": "memcached"})

	_, err := Load()

	assert.ErrorContains(t, err, "RATE_LIMIT_BACKEND")
}

func TestLoad_InconsistentBounds(t *testing.T) {
	setEnvs(t, map[string]string{
		"CONTACTS_LIMIT_MIN":     "50",
		"CONTACTS_LIMIT_DEFAULT": "10",
	})

	_, err := Load()

	assert.ErrorContains(t, err, "CONTACTS_LIMIT bounds are inconsistent")
}

func TestConfig_Postgres(t *testing.T) {
	setEnvs(t, map[string]string{
		"DB_URL":                    "postgres://u:p@db:5432/book?sslmode=require",
		"DB_MAX_CONN_LIFETIME_MINS": "5",
	})

	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "postgres://u:p@db:5432/book?sslmode=require", pg.DSN())
	assert.Equal(t, 5*time.Minute, pg.MaxConnLifetime)
	assert.Equal(t, int32(10), pg.MaxConns)
}

func TestConfig_Bounds(t *testing.T) {
	setEnvs(t, map[string]string{"ENVIRONMENT": "development"})

	cfg, err := Load()
	require.NoError(t, err)

	limits := cfg.ContactsLimits()
	assert.Equal(t, 10, limits.Min)
	assert.Equal(t, 500, limits.Max)
	assert.Equal(t, 10, limits.Default)

	days := cfg.BirthdayDays()
	assert.Equal(t, 7, days.Min)
	assert.Equal(t, 100, days.Max)
	assert.Equal(t, 7, days.Default)

	assert.Equal(t, "localhost:6379", cfg.Redis().Addr())
}
