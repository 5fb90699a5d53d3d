package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"birdwatch/internal/config"
	"birdwatch/internal/logger"
	"birdwatch/internal/service/session"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AnalyzeWebsocketHandler serves one client connection. Commands are handled
// one at a time in arrival order; on disconnect every capture the client
// saved is deleted.
func AnalyzeWebsocketHandler(dispatcher *Dispatcher, sessions *session.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		connection.SetReadLimit(cfg.WSMaxMessageBytes)

		sess := sessions.Connect()
		defer sessions.Teardown(sess.ID)

		log := logger.WithConnection(sess.ID)
		ctx := context.Background()

		for {
			_, message, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Info("Client disconnected normally")
				} else {
					log.Error("Client disconnected with error: %v", err)
				}
				break
			}

			reply := dispatcher.Dispatch(ctx, sess.ID, message)
			if reply == nil {
				continue
			}

			data, err := json.Marshal(reply)
			if err != nil {
				log.Error("Failed to encode reply: %v", err)
				continue
			}
			if err := connection.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error("Failed to send reply: %v", err)
				break
			}
		}
	}
}
