package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"curiow-be/internal/pkg/logger"
	"curiow-be/pkg/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "deepchat_cluster_events"

// envelope is what a client receives for every event.
type envelope struct {
	Type string               `json:"type"`
	Data events.DeepChatEvent `json:"data"`
}

// clusterMessage relays an encoded envelope to the other instances.
type clusterMessage struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// Hub routes deep-chat events to the websocket connections of their user,
// on this instance directly and on the others through Redis.
type Hub struct {
	// user id -> connections (multi-device)
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	rdb        *redis.Client
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Run serves registrations until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for userID, set := range h.clients {
				for client := range set {
					close(client.Send)
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]struct{})
			}
			h.clients[client.UserID][client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.UserID]; ok {
				if _, present := set[client]; present {
					delete(set, client)
					close(client.Send)
				}
				if len(set) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Connected reports how many connections the user has on this instance.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Pipe forwards bus events to their users until the channel closes.
func (h *Hub) Pipe(ch <-chan events.DeepChatEvent) {
	for evt := range ch {
		h.Send(evt)
	}
}

// Send delivers an event to the connections of evt.UserID.
func (h *Hub) Send(evt events.DeepChatEvent) {
	data, err := json.Marshal(envelope{Type: "deepchat", Data: evt})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode event", map[string]interface{}{"kind": evt.Kind, "error": err.Error()})
		return
	}

	h.deliverLocal(evt.UserID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{
			Origin:       h.instanceID,
			TargetUserID: evt.UserID,
			Message:      data,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to relay event to cluster", map[string]interface{}{"user_id": evt.UserID, "error": err.Error()})
		}
	}
}

// deliverLocal never blocks: a connection whose buffer is full is dropped.
func (h *Hub) deliverLocal(userID string, data []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients[userID] {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"user_id": userID})
		go h.Unregister(client)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.instanceID {
			continue
		}
		h.deliverLocal(payload.TargetUserID, payload.Message)
	}
}
