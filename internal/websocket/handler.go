package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/chorewheel/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and runs it as a Hub
// client until the connection closes. allowedOrigins follows the CORS
// setting; "*" accepts any origin.
func HandleWebSocket(hub *Hub, allowedOrigins []string, logger *slog.Logger) http.HandlerFunc {
	opts := acceptOptions(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// The server's read and write timeouts must not apply to a long-lived
		// connection.
		rc := http.NewResponseController(w)
		rc.SetReadDeadline(time.Time{})
		rc.SetWriteDeadline(time.Time{})

		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			logger.Warn("websocket accept", "user_id", userID, "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("websocket connected", "user_id", userID)
		NewClient(hub, conn, userID).Run(r.Context())
		logger.Debug("websocket disconnected", "user_id", userID)
	}
}

func acceptOptions(allowedOrigins []string) *ws.AcceptOptions {
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		return &ws.AcceptOptions{InsecureSkipVerify: true}
	}

	patterns := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		} else {
			patterns = append(patterns, o)
		}
	}
	return &ws.AcceptOptions{OriginPatterns: patterns}
}
