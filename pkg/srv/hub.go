/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package srv

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/log"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 30 * time.Second
	wsPingPeriod = 20 * time.Second
	wsSendBuf    = 32
	wsQueueSize  = 16
)

// SnapshotFrame is the message sent to websocket clients after every cycle
type SnapshotFrame struct {
	Cycle    uint64                    `json:"cycle"`
	Channels []encoder.ChannelSnapshot `json:"channels"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

// Hub streams snapshots to websocket clients. Slow clients are disconnected.
type Hub struct {
	broadcast  chan *SnapshotFrame
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	count   atomic.Int32

	upgrader websocket.Upgrader
}

var _ Publisher = &Hub{}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan *SnapshotFrame, wsQueueSize),
		register:   make(chan *wsClient, wsQueueSize),
		unregister: make(chan *wsClient, wsQueueSize),
		done:       make(chan struct{}),
		clients:    make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Publish queues the snapshots for the connected clients, they are encoded by Run.
// Nothing is queued while nobody listens and frames are dropped when the hub
// falls behind.
func (h *Hub) Publish(cycle uint64, snaps []encoder.ChannelSnapshot) {
	if h.count.Load() == 0 {
		return
	}
	select {
	case h.broadcast <- &SnapshotFrame{Cycle: cycle, Channels: snaps}:
	default:
	}
}

// Run fans out frames until ctx is done, then disconnects every client
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return nil
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.count.Store(int32(len(h.clients)))
			h.mu.Unlock()
			log.Info("Websocket client connected: %s", c.addr)
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
			h.mu.Unlock()
		case frame := <-h.broadcast:
			msg, err := sonnet.Marshal(frame)
			if err != nil {
				log.Error("Error while encoding snapshot frame: %s", err)
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					log.Warning("Websocket client %s too slow, disconnecting", c.addr)
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with h.mu held
func (h *Hub) drop(c *wsClient) {
	delete(h.clients, c)
	h.count.Store(int32(len(h.clients)))
	close(c.send)
	c.conn.Close()
	log.Info("Websocket client disconnected: %s", c.addr)
}

// ServeHTTP upgrades the request and registers the client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warning("Websocket upgrade failed: %s", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuf), addr: r.RemoteAddr}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	// the request context ends when this handler returns, the pumps outlive it
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *wsClient) {
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			select {
			case h.unregister <- c:
			case <-h.done:
			}
			return
		}
	}
}
