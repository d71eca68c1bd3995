package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"monogest/backend/internal/domain"
)

// AccessChecker answers whether a counterparty may watch a conversation.
type AccessChecker interface {
	IsParticipant(ctx context.Context, conversationID, counterpartyID string) (bool, error)
}

// JWTClaims is the token payload expected on the websocket handshake.
type JWTClaims struct {
	CounterpartyID string `json:"sub"`
	Kind           string `json:"kind"`
	jwt.RegisteredClaims
}

func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// same-origin requests carry no Origin header
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType tags the frames exchanged over the socket.
type MessageType string

const (
	MessageTypeNewMessage  MessageType = "new_message"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"
)

// Frame is the wire format for both directions.
type Frame struct {
	Type           MessageType     `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Error          string          `json:"error,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Client is one connected session.
type Client struct {
	ID             string
	CounterpartyID string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	watched        map[string]bool // subscribed conversation ids
	mu             sync.RWMutex
	log            *zap.Logger
}

// Hub fans replies out to the sessions subscribed to each conversation
// topic. It implements service.Notifier.
type Hub struct {
	clients        map[string]*Client            // client id -> client
	conversations  map[string]map[string]*Client // conversation id -> client id -> client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *topicFrame
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	jwtSecret      string
	access         AccessChecker
}

type topicFrame struct {
	conversationID string
	frame          *Frame
}

// NewHub creates the hub. An empty origin list allows every origin.
func NewHub(allowedOrigins []string, jwtSecret string, access AccessChecker, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		conversations:  make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *topicFrame, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
		jwtSecret:      jwtSecret,
		access:         access,
	}
}

// Run drives registration, fan-out and keepalive until the context ends.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Info("client registered",
				zap.String("id", client.ID),
				zap.String("counterparty_id", client.CounterpartyID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for conversationID := range client.watched {
					if clients, exists := h.conversations[conversationID]; exists {
						delete(clients, client.ID)
						if len(clients) == 0 {
							delete(h.conversations, conversationID)
						}
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToConversation(msg.conversationID, msg.frame)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// NewMessageData is the payload pushed when a reply lands.
type NewMessageData struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Preview        string `json:"preview,omitempty"`
	Attachments    int    `json:"attachments"`
	CreatedAt      string `json:"createdAt"`
}

// NotifyNewMessage pushes a reply to every session watching the
// conversation. The payload is a preview; clients re-fetch the thread
// for the full message.
func (h *Hub) NotifyNewMessage(conversationID string, message *domain.Message) {
	preview := message.Body
	if len(preview) > 100 {
		preview = preview[:100]
	}

	data, err := json.Marshal(NewMessageData{
		MessageID:      message.ID,
		ConversationID: conversationID,
		SenderID:       message.SenderID,
		Preview:        preview,
		Attachments:    len(message.Attachments),
		CreatedAt:      message.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		h.log.Error("failed to marshal new message data", zap.Error(err))
		return
	}

	h.broadcast <- &topicFrame{
		conversationID: conversationID,
		frame: &Frame{
			Type:           MessageTypeNewMessage,
			ConversationID: conversationID,
			Data:           data,
			Timestamp:      time.Now().UTC(),
		},
	}
}

func (h *Hub) broadcastToConversation(conversationID string, frame *Frame) {
	h.mu.RLock()
	clients := h.conversations[conversationID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("failed to marshal frame", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			h.log.Warn("client channel blocked, skipping", zap.String("client_id", client.ID))
		}
	}
}

func (h *Hub) pingAllClients() {
	data, err := json.Marshal(&Frame{Type: MessageTypePing, Timestamp: time.Now().UTC()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.conversations = make(map[string]map[string]*Client)
}

// authenticateClient validates the handshake token from the query string
// or the Authorization header.
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}

	if token == "" {
		return nil, errors.New("missing authentication token")
	}

	counterpartyID, err := h.validateJWT(token)
	if err != nil {
		return nil, err
	}

	return &Client{
		ID:             uuid.NewString(),
		CounterpartyID: counterpartyID,
		watched:        make(map[string]bool),
		log:            h.log,
	}, nil
}

func (h *Hub) validateJWT(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims.CounterpartyID, nil
	}
	return "", errors.New("invalid token claims")
}

// HandleWebSocket upgrades the connection and starts the pumps.
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}
		c.handleFrame(&frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(frame *Frame) {
	switch frame.Type {
	case MessageTypeSubscribe:
		c.subscribe(frame.ConversationID)
	case MessageTypeUnsubscribe:
		c.unsubscribe(frame.ConversationID)
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown frame type", zap.String("type", string(frame.Type)))
	}
}

// subscribe attaches the session to a conversation topic after checking
// the participant set.
func (c *Client) subscribe(conversationID string) {
	if conversationID == "" {
		c.sendError("conversation ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := c.hub.access.IsParticipant(ctx, conversationID, c.CounterpartyID)
	if err != nil || !ok {
		c.log.Warn("subscription denied",
			zap.String("client_id", c.ID),
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		c.sendError(fmt.Sprintf("no access to conversation: %s", conversationID))
		return
	}

	c.mu.Lock()
	c.watched[conversationID] = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	if c.hub.conversations[conversationID] == nil {
		c.hub.conversations[conversationID] = make(map[string]*Client)
	}
	c.hub.conversations[conversationID][c.ID] = c
	c.hub.mu.Unlock()

	c.sendFrame(&Frame{
		Type:           MessageTypeSubscribed,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
	})
}

func (c *Client) unsubscribe(conversationID string) {
	c.mu.Lock()
	delete(c.watched, conversationID)
	c.mu.Unlock()

	c.hub.mu.Lock()
	if clients, exists := c.hub.conversations[conversationID]; exists {
		delete(clients, c.ID)
		if len(clients) == 0 {
			delete(c.hub.conversations, conversationID)
		}
	}
	c.hub.mu.Unlock()
}

func (c *Client) sendError(errMsg string) {
	c.sendFrame(&Frame{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	})
}

func (c *Client) sendFrame(frame *Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("failed to marshal frame", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("client_id", c.ID))
	}
}
