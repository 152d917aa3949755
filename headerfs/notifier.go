package headerfs

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// TipUpdate is the payload broadcast to subscribers when SwapWithParent
// promotes a branch over its parent. Headers or chunks saved without a
// swap send no TipUpdate.
type TipUpdate struct {
	Checkpoint int64 `json:"checkpoint"`
	Height     int64 `json:"height"`
}

// Notifier is a best-effort websocket hub that pushes TipUpdate messages
// to every currently-connected subscriber. A subscriber whose write fails
// is dropped; writes carry no deadline, so a slow subscriber delays the
// broadcast. Nothing about header storage depends on a notification
// actually arriving.
type Notifier struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]struct{}
}

// NewNotifier returns an empty hub ready to accept subscribers.
func NewNotifier() *Notifier {
	return &Notifier{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades an incoming request to a websocket connection and
// registers it as a subscriber until the client disconnects.
func (n *Notifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("notifier: upgrade failed: %v", err)
		return
	}

	n.mu.Lock()
	n.clients[conn] = struct{}{}
	n.mu.Unlock()

	go n.drain(conn)
}

// drain discards anything the client sends and removes it once the
// connection closes, the only way gorilla/websocket detects a dead peer.
func (n *Notifier) drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			n.mu.Lock()
			delete(n.clients, conn)
			n.mu.Unlock()
			conn.Close()
			return
		}
	}
}

// BroadcastTipChanged pushes update to every connected subscriber,
// silently dropping any that fail to accept it.
func (n *Notifier) BroadcastTipChanged(update TipUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for conn := range n.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(n.clients, conn)
			conn.Close()
		}
	}
	return nil
}

// Close disconnects every subscriber.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for conn := range n.clients {
		conn.Close()
		delete(n.clients, conn)
	}
}
