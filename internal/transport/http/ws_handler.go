package http

import (
	"log"
	"net/http"

	"edulearn-engine/internal/app"
	"edulearn-engine/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler streams leaderboard snapshots to websocket clients. The stream is
// one-directional: clients pick a scope at connect time and receive a fresh
// snapshot after every XP grant.
type WSHandler struct {
	leaderboard *app.LeaderboardService
	upgrader    websocket.Upgrader
}

func NewWSHandler(leaderboard *app.LeaderboardService) *WSHandler {
	return &WSHandler{
		leaderboard: leaderboard,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string                     `json:"type"`
	Payload domain.LeaderboardSnapshot `json:"payload"`
}

// ServeWS upgrades the request and subscribes it to leaderboard updates for
// the requested scope (default global).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	scope := domain.LeaderboardScope(r.URL.Query().Get("scope"))
	switch scope {
	case "":
		scope = domain.ScopeGlobal
	case domain.ScopeGlobal, domain.ScopeWeekly:
	default:
		http.Error(w, "unknown scope", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.leaderboard.Subscribe(r.Context(), scope)
	if err != nil {
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer cancel()

	// Single writer goroutine; the read loop below only detects disconnects.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for snapshot := range updates {
			if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: snapshot}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-writerDone
}
