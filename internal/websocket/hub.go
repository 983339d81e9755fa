package chatws

import (
	"context"
	"encoding/json"
	"log"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/mindnest/MindNestBack/internal/models"
)

// conversationService is the slice of the consultation service the hub needs.
type conversationService interface {
	SendMessage(ctx context.Context, conversationID models.ConversationID, sender models.Role, text string) (*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID models.ConversationID, reader models.Role) error
	SubscribeToConversation(conversationID models.ConversationID, callback func([]models.Message)) func()
}

// Hub groups connected sockets by conversation. Each conversation holds one
// store subscription, opened when the first socket joins and cancelled when
// the last one leaves; every change pushes the full ordered message list to
// all participants.
type Hub struct {
	service    conversationService
	rooms      map[models.ConversationID]*room
	register   chan *Client
	unregister chan *Client
	broadcast  chan *update
}

type room struct {
	clients map[*Client]struct{}
	cancel  func()
}

type update struct {
	conversation models.ConversationID
	messages     []models.Message
}

type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	conversation models.ConversationID
	role         models.Role
	send         chan []byte
}

type frame struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	Messages []models.Message `json:"messages,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func NewHub(service conversationService) *Hub {
	return &Hub{
		service:    service,
		rooms:      make(map[models.ConversationID]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *update, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, conversation models.ConversationID, role models.Role) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		conversation: conversation,
		role:         role,
		send:         make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			r, ok := h.rooms[client.conversation]
			if !ok {
				r = &room{clients: make(map[*Client]struct{})}
				conversation := client.conversation
				r.cancel = h.service.SubscribeToConversation(conversation, func(messages []models.Message) {
					h.broadcast <- &update{conversation: conversation, messages: messages}
				})
				h.rooms[client.conversation] = r
			}
			r.clients[client] = struct{}{}
		case client := <-h.unregister:
			r, ok := h.rooms[client.conversation]
			if !ok {
				continue
			}
			if _, exists := r.clients[client]; exists {
				delete(r.clients, client)
				close(client.send)
			}
			if len(r.clients) == 0 {
				r.cancel()
				delete(h.rooms, client.conversation)
			}
		case u := <-h.broadcast:
			h.deliver(u)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) deliver(u *update) {
	r, ok := h.rooms[u.conversation]
	if !ok {
		return
	}

	payload, err := json.Marshal(frame{Type: "messages", Messages: u.messages})
	if err != nil {
		log.Printf("chat hub encode update: %v", err)
		return
	}

	for client := range r.clients {
		select {
		case client.send <- payload:
		default:
			delete(r.clients, client)
			close(client.send)
		}
	}
	if len(r.clients) == 0 {
		r.cancel()
		delete(h.rooms, u.conversation)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming frame
		if err := json.Unmarshal(payload, &incoming); err != nil {
			writeError(c, "invalid message payload")
			continue
		}

		switch incoming.Type {
		case "message":
			_, err := c.hub.service.SendMessage(context.Background(), c.conversation, c.role, incoming.Text)
			if err != nil {
				writeError(c, "failed to send message")
			}
		case "mark_read":
			if err := c.hub.service.MarkConversationRead(context.Background(), c.conversation, c.role); err != nil {
				writeError(c, "failed to mark conversation read")
			}
		default:
			writeError(c, "unsupported message type")
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func writeError(client *Client, message string) {
	payload, err := json.Marshal(frame{Type: "error", Error: message})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
		client.hub.Unregister(client)
	}
}
