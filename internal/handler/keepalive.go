package handler

import (
	"time"

	"github.com/gorilla/websocket"
)

// KeepAlive holds the WebSocket liveness timing: the peer must answer a ping (or send
// anything) within PongWait, and the server pings every PingPeriod.
type KeepAlive struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// DefaultKeepAlive pings at 9/10 of the read deadline.
var DefaultKeepAlive = KeepAlive{
	PongWait:   60 * time.Second,
	PingPeriod: 54 * time.Second,
	WriteWait:  10 * time.Second,
}

// extend pushes the read deadline out by PongWait.
func (k KeepAlive) extend(connection *websocket.Conn) {
	connection.SetReadDeadline(time.Now().Add(k.PongWait))
}

// start arms the read deadline, refreshes it on every pong and pings the peer until the
// returned stop func is called. WriteControl may run alongside other writers.
func (k KeepAlive) start(connection *websocket.Conn) (stop func()) {
	k.extend(connection)
	connection.SetPongHandler(func(string) error {
		k.extend(connection)
		return nil
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(k.PingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := connection.WriteControl(websocket.PingMessage, nil, time.Now().Add(k.WriteWait)); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}
