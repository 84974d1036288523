package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
	hub "github.com/ranitraj/instaLens/internal/service/websocket"
)

// ViewWebsocketHandler handles viewer connections over WebSocket and registers them in the
// HubService. A viewer announces its preview size with {"width":W,"height":H}, and may
// resend it whenever the preview changes.
func ViewWebsocketHandler(hubService *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return viewWebsocketHandler(hubService, logger, DefaultKeepAlive)
}

func viewWebsocketHandler(hubService *hub.HubService, logger *logger.Logger, keepAlive KeepAlive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		stopPing := keepAlive.start(connection)
		defer stopPing()

		viewer := hub.NewViewer(connection)
		if !hubService.Register(viewer) {
			connection.Close()
			return
		}
		defer hubService.Unregister(viewer)

		for {
			_, msg, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				return
			}
			keepAlive.extend(connection)

			var size model.Size
			if err := json.Unmarshal(msg, &size); err != nil {
				logger.Warning("Ignoring viewer message: %v", err)
				continue
			}
			hubService.SetPreview(viewer, size)
		}
	}
}
