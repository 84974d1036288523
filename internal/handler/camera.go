package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/ranitraj/instaLens/internal/config"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/service"
	"github.com/ranitraj/instaLens/internal/service/analyzer"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// frameAssembler rebuilds JPEG frames split over several packets.
type frameAssembler struct {
	buf bytes.Buffer
}

// push adds one packet and returns a complete frame when the packet ends one.
func (a *frameAssembler) push(data []byte) ([]byte, bool) {
	if bytes.HasPrefix(data, jpegHeader) {
		a.buf.Reset()
	}
	if a.buf.Len() == 0 && !bytes.HasPrefix(data, jpegHeader) {
		// Tail of a frame whose start was lost.
		return nil, false
	}
	a.buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}
	frame := make([]byte, a.buf.Len())
	copy(frame, a.buf.Bytes())
	a.buf.Reset()
	return frame, true
}

// UDPCameraHandler listens for UDP packets from the camera, reconstructs JPEG frames,
// and forwards complete frames to the Manager. It returns when ctx is done.
func UDPCameraHandler(ctx context.Context, manager *service.Manager, logger *logger.Logger, config *config.Config) {
	port := strconv.Itoa(config.CamerasPort)

	addr, err := net.ResolveUDPAddr("udp", ":"+port)
	if err != nil {
		logger.Error("Failed to resolve UDP address: %v", err)
		return
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		logger.Error("Failed to listen on UDP port %s: %v", port, err)
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP Camera handler started on port %s", port)
	buffer := make([]byte, 65536)
	var assembler frameAssembler

	for {
		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("UDP Camera handler stopped")
				return
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		if frame, ok := assembler.push(buffer[:n]); ok {
			manager.HandleFrame(analyzer.NewEncodedFrame(frame, 0, nil))
		}
	}
}

// cameraControl is a text message a camera may send to report a new orientation.
type cameraControl struct {
	Rotation *int `json:"rotation"`
}

// CameraWebsocketHandler accepts a camera stream: every binary message is one encoded frame.
// The initial rotation comes from the "rotation" query parameter.
func CameraWebsocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rotation := rotationParam(r)

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		stopPing := DefaultKeepAlive.start(connection)
		defer stopPing()

		logger.Info("Camera connected (rotation %d)", rotation)

		for {
			kind, msg, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Camera disconnected normally")
				} else {
					logger.Warning("Camera disconnected: %v", err)
				}
				return
			}
			DefaultKeepAlive.extend(connection)

			switch kind {
			case websocket.BinaryMessage:
				manager.HandleFrame(analyzer.NewEncodedFrame(msg, rotation, nil))
			case websocket.TextMessage:
				var ctrl cameraControl
				if err := json.Unmarshal(msg, &ctrl); err != nil || ctrl.Rotation == nil {
					logger.Warning("Ignoring camera message: %s", msg)
					continue
				}
				rotation = *ctrl.Rotation
				logger.Debug("Camera rotation set to %d", rotation)
			}
		}
	}
}
