package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(3000), cfg.HTTP.Port)
	assert.Equal(t, DatabaseDriverSQLite, cfg.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 168*time.Hour, cfg.Auth.TokenExpiry)
	assert.Equal(t, 20, cfg.Uploads.MaxPDFSizeMB)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
	assert.Empty(t, cfg.Admin.Emails)
	assert.False(t, cfg.Admin.ElevationEnabled())
}

func TestNewConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("ADMIN_EMAILS", " Admin@Example.com , ,librarian@example.com")
	t.Setenv("ADMIN_PASSWORD", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AUTH_TOKEN_EXPIRY", "1h")

	cfg := NewConfig()

	assert.Equal(t, int32(8080), cfg.HTTP.Port)
	assert.Equal(t, DatabaseDriverPostgres, cfg.Database.Driver)
	assert.Equal(t, []string{"admin@example.com", "librarian@example.com"}, cfg.Admin.Emails)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Hour, cfg.Auth.TokenExpiry)
	assert.True(t, cfg.Admin.ElevationEnabled())
}

func TestAdmin_IsAdminEmail(t *testing.T) {
	admin := Admin{Emails: []string{"admin@example.com"}, Password: "x"}

	tests := []struct {
		email string
		want  bool
	}{
		{"admin@example.com", true},
		{"  ADMIN@example.com ", true},
		{"other@example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, admin.IsAdminEmail(tt.email))
		})
	}
}

func TestUploads_MaxPDFSizeBytes(t *testing.T) {
	assert.Equal(t, int64(20*1024*1024), Uploads{MaxPDFSizeMB: 20}.MaxPDFSizeBytes())
}
