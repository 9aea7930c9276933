package handler

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/calebdunn/hearth/internal/auth"
	"github.com/calebdunn/hearth/internal/events"
)

// HandleWebSocket returns an HTTP handler that upgrades authenticated
// connections to WebSocket and runs them as hub clients scoped to the
// caller's household.
func HandleWebSocket(hub *events.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Allow connections from any origin (household LAN)
		})
		if err != nil {
			logger.Error("websocket accept", "error", err)
			return
		}

		client := events.NewClient(hub, conn, ac.HouseholdID)
		client.Run(r.Context())
	}
}
