package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"tea_refill/internal/domain"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsSendQueue  = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient is one dashboard or app connection. filter is a userId or requestId;
// empty means the client receives every event.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	filter string
}

func (c *wsClient) wants(event domain.RequestEvent) bool {
	return c.filter == "" || c.filter == event.RecipientUserID || c.filter == event.RequestID
}

// WebSocketManager routes request lifecycle events to subscribed connections. A client
// whose send queue is full is dropped rather than allowed to stall the others.
type WebSocketManager struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan domain.RequestEvent
	mutex      sync.RWMutex
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan domain.RequestEvent, 256),
	}
}

func (wsm *WebSocketManager) Start() {
	for {
		select {
		case client := <-wsm.register:
			wsm.mutex.Lock()
			wsm.clients[client] = true
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			log.Printf("WebSocket: client connected (filter %q). Total: %d", client.filter, total)

		case client := <-wsm.unregister:
			wsm.drop(client)

		case event := <-wsm.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				log.Printf("WebSocket: cannot marshal event for %s: %v", event.RequestID, err)
				continue
			}
			wsm.mutex.RLock()
			var slow []*wsClient
			for client := range wsm.clients {
				if !client.wants(event) {
					continue
				}
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			wsm.mutex.RUnlock()
			for _, client := range slow {
				log.Printf("WebSocket: send queue full, dropping client (filter %q)", client.filter)
				wsm.drop(client)
			}
		}
	}
}

func (wsm *WebSocketManager) drop(client *wsClient) {
	wsm.mutex.Lock()
	defer wsm.mutex.Unlock()
	if _, ok := wsm.clients[client]; ok {
		delete(wsm.clients, client)
		close(client.send)
		log.Printf("WebSocket: client disconnected. Total: %d", len(wsm.clients))
	}
}

// ClientCount reports the number of connected clients.
func (wsm *WebSocketManager) ClientCount() int {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	return len(wsm.clients)
}

func (wsm *WebSocketManager) BroadcastRequestEvent(event domain.RequestEvent) {
	select {
	case wsm.broadcast <- event:
	default:
		log.Printf("WebSocket: broadcast queue full, dropping event for %s", event.RequestID)
	}
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
}

func NewWebSocketHandler(wsManager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager}
}

// GET /ws?subscribe=<userId|requestId>
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket: upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, wsSendQueue), filter: c.Query("subscribe")}
	h.wsManager.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

// readPump only consumes control frames; clients never send events.
func (h *WebSocketHandler) readPump(client *wsClient) {
	defer func() {
		h.wsManager.unregister <- client
	}()
	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket: read error: %v", err)
			}
			return
		}
	}
}

func (h *WebSocketHandler) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket: write error: %v", err)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
