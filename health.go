package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"wipe-commander/internal/config"
	"wipe-commander/internal/router"
	"wipe-commander/internal/wipe"
)

// runHealthCheck verifies the configuration can be loaded
func runHealthCheck(v *viper.Viper) int {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	if _, err := config.Load(v); err != nil {
		logger.WithError(err).Error("Health check failed")
		return 1
	}

	logger.Info("Health check passed")
	return 0
}

type botInfo interface {
	Username() string
}

// runtimeStatus collects the counters reported by /status.
type runtimeStatus struct {
	total     *wipe.Ledger
	personal  *wipe.Ledger
	mailboxes *router.Mailboxes
	roles     *router.RoleStore
	aiEnabled bool
	operator  string
}

func (s *runtimeStatus) snapshot() map[string]interface{} {
	return map[string]interface{}{
		"vote_windows": map[string]interface{}{
			"total":    s.total.Open(),
			"personal": s.personal.Open(),
		},
		"active_chats": s.mailboxes.Active(),
		"custom_roles": s.roles.Len(),
		"ai_enabled":   s.aiEnabled,
		"operator":     maskPhone(s.operator),
	}
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// createHealthCheckHandler creates HTTP handlers for health checks
func createHealthCheckHandler(bot botInfo, st *runtimeStatus) http.Handler {
	mux := http.NewServeMux()

	// Liveness probe
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Readiness probe
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if bot == nil {
			http.Error(w, "Bot not initialized", http.StatusServiceUnavailable)
			return
		}
		if st == nil {
			http.Error(w, "Wipe services not initialized", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ready"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		statusData := map[string]interface{}{
			"status": "running",
		}
		if bot != nil {
			statusData["bot"] = map[string]interface{}{
				"username": bot.Username(),
			}
		}
		if st != nil {
			for k, v := range st.snapshot() {
				statusData[k] = v
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(statusData)
	})

	return mux
}
