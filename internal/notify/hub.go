// Package notify delivers live notifications to signed-in users over
// WebSocket and keeps a short per-user history.
package notify

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// Notification kinds.
const (
	KindCourseCreated   = "course_created"
	KindCourseUpdated   = "course_updated"
	KindModuleCompleted = "module_completed"
	KindFeedbackUpdated = "feedback_updated"
)

// Notification is one message for one user.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Bus fans notifications out across gateway instances.
type Bus interface {
	Publish(ctx context.Context, n Notification) error
	// Subscribe calls onMsg for every notification published by any
	// instance until ctx ends.
	Subscribe(ctx context.Context, onMsg func(Notification)) error
}

type client struct {
	id     uuid.UUID
	userID string
	out    chan Notification
}

// Hub keeps connected clients keyed by user ID.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]bool
	recent  map[string][]Notification
	limit   int
	bus     Bus
	origins []string
	now     func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithRecentLimit sets how many notifications are kept per user.
func WithRecentLimit(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.limit = n
		}
	}
}

// WithBus routes Publish through b. Run must be started to receive.
func WithBus(b Bus) Option {
	return func(h *Hub) {
		h.bus = b
	}
}

// WithOriginPatterns allows cross-origin WebSocket upgrades from the given
// host patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) {
		h.origins = patterns
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]map[*client]bool),
		recent:  make(map[string][]Notification),
		limit:   50,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run forwards bus messages to local clients until ctx ends. Without a bus it
// returns immediately.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		return nil
	}
	return h.bus.Subscribe(ctx, h.deliver)
}

// Publish sends n to its user. ID and CreatedAt are filled when empty.
func (h *Hub) Publish(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = h.now()
	}
	if h.bus != nil {
		return h.bus.Publish(ctx, n)
	}
	h.deliver(n)
	return nil
}

func (h *Hub) deliver(n Notification) {
	h.mu.Lock()
	list := append(h.recent[n.UserID], n)
	if len(list) > h.limit {
		list = list[len(list)-h.limit:]
	}
	h.recent[n.UserID] = list
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[n.UserID] {
		select {
		case c.out <- n:
		default:
			slog.Warn("dropping notification, client buffer full", "client_id", c.id, "user_id", n.UserID)
		}
	}
}

// Recent returns the user's kept notifications, newest first.
func (h *Hub) Recent(userID string) []Notification {
	h.mu.RLock()
	out := slices.Clone(h.recent[userID])
	h.mu.RUnlock()
	slices.Reverse(out)
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Connected returns the number of live connections for a user.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) subscribe(userID string) *client {
	c := &client{id: uuid.New(), userID: userID, out: make(chan Notification, 16)}
	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*client]bool)
		h.clients[userID] = set
	}
	set[c] = true
	h.mu.Unlock()
	slog.Debug("notification client connected", "client_id", c.id, "user_id", userID)
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
	slog.Debug("notification client disconnected", "client_id", c.id, "user_id", c.userID)
}

// ServeWS upgrades the request and streams the user's notifications as JSON
// text messages until either side closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("websocket accept failed", "user_id", userID, "error", err)
		return
	}
	defer conn.CloseNow()

	c := h.subscribe(userID)
	defer h.unsubscribe(c)

	// Incoming messages are ignored; CloseRead ends ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-c.out:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, n)
			cancel()
			if err != nil {
				slog.Debug("websocket write failed", "user_id", userID, "error", err)
				return
			}
		}
	}
}
