package proxy

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/airchains-network/settlement-bridge/bridge"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Subscription topics and the bridge events they carry.
var topics = map[string]bridge.EventKind{
	"batches":     bridge.EventBatch,
	"deposits":    bridge.EventDeposit,
	"withdrawals": bridge.EventWithdrawal,
}

// WebSocketClient represents a connected WebSocket client
type WebSocketClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *logrus.Logger

	mu            sync.Mutex
	subscriptions map[string]bridge.EventKind
}

// WebSocketManager fans bridge events out to subscribed clients. It never
// blocks on a client: a client whose buffer is full misses the notification.
type WebSocketManager struct {
	clients    map[*WebSocketClient]bool
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	bridge     *bridge.Bridge
	events     chan bridge.Event
	quit       chan struct{}
	closeOnce  sync.Once
	log        *logrus.Logger
}

// NewWebSocketManager creates a new WebSocket manager for b's events.
func NewWebSocketManager(b *bridge.Bridge, log *logrus.Logger) *WebSocketManager {
	manager := &WebSocketManager{
		clients:    make(map[*WebSocketClient]bool),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		bridge:     b,
		events:     make(chan bridge.Event, 256),
		quit:       make(chan struct{}),
		log:        log,
	}
	return manager
}

// Run subscribes to the bridge events and serves clients until Close.
func (manager *WebSocketManager) Run() {
	sub := manager.bridge.SubscribeEvents(manager.events)
	defer sub.Unsubscribe()
	for {
		select {
		case client := <-manager.register:
			manager.clients[client] = true
			manager.log.Infof("New WebSocket client connected. Total clients: %d", len(manager.clients))
		case client := <-manager.unregister:
			if _, ok := manager.clients[client]; ok {
				delete(manager.clients, client)
				client.close()
				manager.log.Infof("WebSocket client disconnected. Total clients: %d", len(manager.clients))
			}
		case ev := <-manager.events:
			manager.broadcast(ev)
		case err := <-sub.Err():
			if err != nil {
				manager.log.Errorf("Bridge event subscription failed: %v", err)
			}
			return
		case <-manager.quit:
			for client := range manager.clients {
				client.close()
			}
			return
		}
	}
}

// Close stops Run and disconnects every client.
func (manager *WebSocketManager) Close() {
	manager.closeOnce.Do(func() { close(manager.quit) })
}

func (manager *WebSocketManager) broadcast(ev bridge.Event) {
	for client := range manager.clients {
		client.mu.Lock()
		var ids []string
		for id, kind := range client.subscriptions {
			if kind == ev.Kind {
				ids = append(ids, id)
			}
		}
		client.mu.Unlock()

		for _, id := range ids {
			notification, err := json.Marshal(map[string]any{
				"jsonrpc": "2.0",
				"method":  "bridge_subscription",
				"params": map[string]any{
					"subscription": id,
					"result":       ev,
				},
			})
			if err != nil {
				manager.log.Errorf("Failed to marshal notification: %v", err)
				continue
			}
			select {
			case client.send <- notification:
			default:
				manager.log.Warnf("Dropping %s notification for slow WebSocket client", ev.Kind)
			}
		}
	}
}

// handleWebSocket processes WebSocket connections
func handleWebSocket(c *gin.Context, upgrader websocket.Upgrader, manager *WebSocketManager) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		manager.log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := &WebSocketClient{
		conn:          conn,
		send:          make(chan []byte, 256),
		done:          make(chan struct{}),
		log:           manager.log,
		subscriptions: make(map[string]bridge.EventKind),
	}

	select {
	case manager.register <- client:
	case <-manager.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(manager)
}

func (c *WebSocketClient) close() {
	c.once.Do(func() { close(c.done) })
}

// readPump reads subscription requests until the connection fails
func (c *WebSocketClient) readPump(manager *WebSocketManager) {
	defer func() {
		select {
		case manager.unregister <- c:
		case <-manager.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512 * 1024) // 512KB
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Errorf("WebSocket read error: %v", err)
			}
			return
		}

		var req struct {
			Jsonrpc string   `json:"jsonrpc"`
			Method  string   `json:"method"`
			Params  []string `json:"params"`
			ID      any      `json:"id"`
		}
		resp := rpcResponse{Jsonrpc: "2.0"}
		if err := json.Unmarshal(message, &req); err != nil {
			resp.Error = &rpcError{Code: codeParseError, Message: "Invalid JSON-RPC request"}
		} else {
			resp.ID = req.ID
			resp.Result, resp.Error = c.handle(req.Method, req.Params)
		}

		responseBytes, err := json.Marshal(resp)
		if err != nil {
			c.log.Errorf("Failed to marshal WebSocket response: %v", err)
			continue
		}
		select {
		case c.send <- responseBytes:
		case <-c.done:
			return
		}
	}
}

func (c *WebSocketClient) handle(method string, params []string) (any, *rpcError) {
	switch method {
	case "bridge_subscribe":
		if len(params) < 1 {
			return nil, invalidParams("Missing subscription type")
		}
		kind, ok := topics[params[0]]
		if !ok {
			return nil, invalidParams("Unsupported subscription type: %s", params[0])
		}
		id := uuid.NewString()
		c.mu.Lock()
		c.subscriptions[id] = kind
		c.mu.Unlock()
		return id, nil

	case "bridge_unsubscribe":
		if len(params) < 1 {
			return nil, invalidParams("Missing subscription ID")
		}
		c.mu.Lock()
		_, exists := c.subscriptions[params[0]]
		delete(c.subscriptions, params[0])
		c.mu.Unlock()
		return exists, nil

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "Method not supported: " + method}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
