package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 25 * time.Second
	sendBuffer   = 32
)

// Event is the envelope pushed to websocket clients.
type Event struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Hub tracks connected clients and the aggregates each of them watches.
type Hub struct {
	subscriber Subscriber
	dispatcher *Dispatcher
	logger     *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub constructs a hub that refreshes aggregates on the dispatcher's workers.
func NewHub(subscriber Subscriber, dispatcher *Dispatcher, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscriber: subscriber,
		dispatcher: dispatcher,
		logger:     logger,
		clients:    make(map[string]map[*Client]struct{}),
	}
}

// Client is one websocket connection owned by a user.
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan Event
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watches map[string]*watch
	// lastSeq keeps numbering continuous when a name is watched again.
	lastSeq map[string]uint64
}

type watch struct {
	agg         *Aggregate[any]
	unsubscribe func()
}

// stopLocked must be called with the client's mu held.
func (c *Client) stopLocked(name string) {
	w, ok := c.watches[name]
	if !ok {
		return
	}
	w.unsubscribe()
	c.lastSeq[name] = w.agg.Close()
	delete(c.watches, name)
}

// Attach registers the connection and starts its write and keepalive loops.
func (h *Hub) Attach(userID string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		hub:     h,
		userID:  userID,
		conn:    conn,
		send:    make(chan Event, sendBuffer),
		logger:  h.logger.With(slog.String("user_id", userID)),
		ctx:     ctx,
		cancel:  cancel,
		watches: make(map[string]*watch),
		lastSeq: make(map[string]uint64),
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go c.keepAliveLoop()

	c.logger.Info("realtime client attached")
	return c
}

// Detach stops every watch of the client and closes its connection.
func (h *Hub) Detach(c *Client) {
	c.cancel()

	c.mu.Lock()
	for name := range c.watches {
		c.stopLocked(name)
	}
	c.mu.Unlock()

	h.mu.Lock()
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()

	_ = c.conn.Close()
	c.logger.Info("realtime client detached")
}

// Connected returns how many connections the user currently holds.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// UserID returns the owner of the connection.
func (c *Client) UserID() string {
	return c.userID
}

// Watch pushes a fresh snapshot of the aggregate now and again after every
// change matching filter. Watching an existing name replaces the previous
// watch; sequence numbers for a name keep increasing across replacements.
func (c *Client) Watch(name string, filter Filter, fetch FetchFunc[any]) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}

	agg := NewAggregate(name, c.hub.dispatcher, fetch, func(seq uint64, value any) {
		c.Push(Event{Type: name, Seq: seq, Data: value})
	}, c.logger)

	c.mu.Lock()
	c.stopLocked(name)
	agg.ContinueFrom(c.lastSeq[name])
	unsubscribe := c.hub.subscriber.Subscribe(filter, func(Change) {
		go func() {
			_, err := agg.Refresh(c.ctx)
			if err != nil && c.ctx.Err() == nil && !errors.Is(err, ErrAggregateClosed) {
				c.logger.Warn("schedule refetch failed", "aggregate", name, "error", err)
			}
		}()
	})
	c.watches[name] = &watch{agg: agg, unsubscribe: unsubscribe}
	c.mu.Unlock()

	if _, err := agg.Refresh(c.ctx); err != nil && !errors.Is(err, ErrAggregateClosed) {
		return err
	}
	return nil
}

// Unwatch stops refreshing the named aggregate. Refetches already in flight
// for it are dropped.
func (c *Client) Unwatch(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(name)
}

// Push queues an event for the client, dropping it when the client cannot keep up.
func (c *Client) Push(ev Event) {
	select {
	case <-c.ctx.Done():
	case c.send <- ev:
	default:
		c.logger.Warn("client send buffer full, dropping event", "type", ev.Type, "seq", ev.Seq)
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Warn("write realtime event", "type", ev.Type, "error", err)
				c.cancel()
				return
			}
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("ping failed", "error", err)
				c.cancel()
				return
			}
		}
	}
}
