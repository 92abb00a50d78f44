package http

import (
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"quiz-attempt-service/internal/app"
)

const wsWriteWait = 10 * time.Second

// WSHandler streams quiz leaderboard snapshots over a websocket. The feed is
// read-only; inbound frames are drained only to notice the client leaving.
type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS subscribes before upgrading so unknown quizzes get a plain 404.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["quizId"]
	updates, cancel, err := h.service.SubscribeLeaderboard(r.Context(), quizID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	closeSignals := make(chan struct{})
	go func() {
		defer close(closeSignals)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(outboundMessage[leaderboardView]{Type: "leaderboard", Payload: newLeaderboardView(update)}); err != nil {
				glog.V(1).Infof("ws write error for quiz %s: %v", quizID, err)
				return
			}
		case <-closeSignals:
			return
		case <-r.Context().Done():
			return
		}
	}
}
