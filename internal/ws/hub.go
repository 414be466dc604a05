package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages notification stream subscriptions keyed by recipient user ID.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

// message couples payload with its recipient.
type message struct {
	userID  string
	payload []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	userID string
	client Subscriber
}

// NewHub creates an initialized Hub. buffer bounds how many broadcasts may
// queue before senders block behind slow connections.
func NewHub(buffer int) *Hub {
	if buffer < 0 {
		buffer = 0
	}
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, buffer),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.userID]; !ok {
				h.clients[sub.userID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.userID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.userID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.userID)
				}
			}
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.userID]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.userID)
				}
			}
		}
	}
}

// Register adds a client to a user's notification stream.
func (h *Hub) Register(userID string, client Subscriber) {
	h.register <- subscription{userID: userID, client: client}
}

// Unregister removes a client.
func (h *Hub) Unregister(userID string, client Subscriber) {
	h.unreg <- subscription{userID: userID, client: client}
}

// Broadcast sends payload to every connection of the recipient.
func (h *Hub) Broadcast(userID string, payload []byte) {
	h.broadcast <- message{userID: userID, payload: payload}
}
