package websocket

import (
	"context"
	"sync"

	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/service/overlay"
	"github.com/ranitraj/instaLens/internal/service/state"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Viewer is one connected overlay client and the preview size it announced.
type Viewer struct {
	conn    Conn
	preview model.Size
}

// NewViewer wraps conn. The preview size stays empty until the viewer announces one.
func NewViewer(conn Conn) *Viewer {
	return &Viewer{conn: conn}
}

type resize struct {
	viewer *Viewer
	size   model.Size
}

// Snapshots is the detection state the hub follows.
type Snapshots interface {
	Subscribe() (<-chan state.Snapshot, func())
}

// HubService pushes rendered overlays to every viewer whenever the detection state changes.
// All writes happen on the Run goroutine.
type HubService struct {
	clients    map[*Viewer]bool
	register   chan *Viewer
	unregister chan *Viewer
	resize     chan resize
	done       chan struct{}
	mutex      sync.RWMutex

	state    Snapshots
	renderer *overlay.Renderer
	logger   *logger.Logger
}

func NewHubService(st Snapshots, renderer *overlay.Renderer, logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*Viewer]bool),
		register:   make(chan *Viewer),
		unregister: make(chan *Viewer),
		resize:     make(chan resize),
		done:       make(chan struct{}),
		state:      st,
		renderer:   renderer,
		logger:     logger,
	}
}

// Run serves viewers until ctx is done, then closes every connection.
func (h *HubService) Run(ctx context.Context) {
	snapshots, cancel := h.state.Subscribe()
	defer cancel()
	defer close(h.done)

	var last state.Snapshot
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.conn.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", h.GetClientCount())

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
			}
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())

		case r := <-h.resize:
			h.mutex.RLock()
			_, ok := h.clients[r.viewer]
			h.mutex.RUnlock()
			if !ok {
				continue
			}
			r.viewer.preview = r.size
			h.send(r.viewer, last)

		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			last = snap
			h.mutex.RLock()
			clients := make([]*Viewer, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mutex.RUnlock()
			for _, client := range clients {
				h.send(client, snap)
			}
		}
	}
}

// send writes the overlay for snap to client, dropping the client on a write error.
func (h *HubService) send(client *Viewer, snap state.Snapshot) {
	if err := client.conn.WriteJSON(h.renderer.Render(snap, client.preview)); err != nil {
		h.logger.Error("Error sending overlay: %v", err)
		h.mutex.Lock()
		delete(h.clients, client)
		h.mutex.Unlock()
		client.conn.Close()
	}
}

// Register adds a viewer. It reports false once the hub has stopped.
func (h *HubService) Register(client *Viewer) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *HubService) Unregister(client *Viewer) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SetPreview records the viewer's preview size and sends it the current overlay.
func (h *HubService) SetPreview(client *Viewer, size model.Size) {
	select {
	case h.resize <- resize{viewer: client, size: size}:
	case <-h.done:
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
