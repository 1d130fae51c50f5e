package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wipe-commander/internal/config"
	"wipe-commander/internal/router"
	"wipe-commander/internal/wipe"
)

type namedBot string

func (b namedBot) Username() string { return string(b) }

func TestHealthCheckHandler(t *testing.T) {
	total := wipe.NewLedger(3, wipe.CountDistinct)
	total.Register(wipe.TotalScope(-1), 1, time.Now())
	roles := router.NewRoleStore()
	roles.Set(7, "You are a pirate.")

	handler := createHealthCheckHandler(namedBot("wipe_bot"), &runtimeStatus{
		total:     total,
		personal:  wipe.NewLedger(2, wipe.CountRepeats),
		mailboxes: router.NewMailboxes(nil),
		roles:     roles,
		aiEnabled: true,
		operator:  "+15551234567",
	})

	tests := []struct {
		path string
		code int
		body string
	}{
		{path: "/health", code: http.StatusOK, body: "OK"},
		{path: "/ready", code: http.StatusOK, body: "Ready"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.code, rec.Code, tt.path)
		assert.Equal(t, tt.body, rec.Body.String(), tt.path)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "running", status["status"])
	assert.Equal(t, map[string]interface{}{"username": "wipe_bot"}, status["bot"])
	assert.Equal(t, map[string]interface{}{"total": 1.0, "personal": 0.0}, status["vote_windows"])
	assert.Equal(t, 1.0, status["custom_roles"])
	assert.Equal(t, 0.0, status["active_chats"])
	assert.Equal(t, true, status["ai_enabled"])
	assert.Equal(t, "********4567", status["operator"])
}

func TestReadyWithoutBot(t *testing.T) {
	handler := createHealthCheckHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunHealthCheck(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	v, err := config.New(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, runHealthCheck(v))

	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	v, err = config.New(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, runHealthCheck(v))
}

func TestNewLogger(t *testing.T) {
	logger, closeLog, err := newLogger("debug", "")
	require.NoError(t, err)
	defer closeLog()
	assert.Equal(t, "debug", logger.GetLevel().String())

	logger, closeLog2, err := newLogger("bogus", t.TempDir()+"/bot.log")
	require.NoError(t, err)
	defer closeLog2()
	assert.Equal(t, "info", logger.GetLevel().String())
}
