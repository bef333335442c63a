package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"UNIEATS_ENV", "UNIEATS_DB_DSN", "UNIEATS_REDIS_ADDR", "UNIEATS_ADMIN_EMAILS", "UNIEATS_DB_STATEMENT_TIMEOUT", "UNIEATS_WS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, 3*time.Second, cfg.DB.StatementTimeout)
	require.Equal(t, time.Minute, cfg.Realtime.TicketTTL)
	require.Equal(t, "unieats:events", cfg.Realtime.Channel)
	require.Empty(t, cfg.DB.DSN)
	require.Empty(t, cfg.AdminEmails)
	require.Empty(t, cfg.Realtime.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UNIEATS_DB_STATEMENT_TIMEOUT", "750ms")
	t.Setenv("UNIEATS_ADMIN_EMAILS", " Ops@Princeton.edu, ,cs@princeton.edu")
	t.Setenv("UNIEATS_PUSH_ENABLED", "true")
	t.Setenv("UNIEATS_REALTIME_SEND_QUEUE", "8")
	t.Setenv("UNIEATS_WS_ALLOWED_ORIGINS", "http://localhost:3000, https://UniEats.app")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 750*time.Millisecond, cfg.DB.StatementTimeout)
	require.Equal(t, []string{"ops@princeton.edu", "cs@princeton.edu"}, cfg.AdminEmails)
	require.True(t, cfg.Push.Enabled)
	require.Equal(t, 8, cfg.Realtime.SendQueue)
	require.Equal(t, []string{"http://localhost:3000", "https://unieats.app"}, cfg.Realtime.AllowedOrigins)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("UNIEATS_DB_STATEMENT_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("UNIEATS_DB_STATEMENT_TIMEOUT", "-1s")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadProductionRequiresDSN(t *testing.T) {
	t.Setenv("UNIEATS_ENV", "production")
	t.Setenv("UNIEATS_DB_DSN", "")
	_, err := Load()
	require.ErrorContains(t, err, "UNIEATS_DB_DSN")
}
