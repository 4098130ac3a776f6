package sdk

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ScopeAll subscribes a handler to every feed event, including events that
// carry no conversation id (notifications, poll ticks).
const ScopeAll = "*"

// EventHandler receives feed events. Handlers run on the feed's dispatch
// goroutine with the feed's lock held, so a handler must not call Subscribe,
// a cancel func, or Stop synchronously; spawn a goroutine for those, and for
// any long work.
type EventHandler func(ev *Event)

// Feed maintains the change-feed connection and fans events out to
// subscribers. It reconnects with backoff after a drop, and a poll tick fires
// every PollInterval regardless of connection health, so subscribers that
// refetch on ticks are bounded-stale even when the socket dies silently.
type Feed struct {
	client       *Client
	pollInterval time.Duration
	pingInterval time.Duration

	mu      sync.Mutex
	subs    map[string]map[int64]EventHandler // scope -> id -> handler
	nextSub int64
	conn    *websocket.Conn
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// FeedOption configures a Feed
type FeedOption func(*Feed)

// WithPollInterval overrides the backstop poll cadence
func WithPollInterval(d time.Duration) FeedOption {
	return func(f *Feed) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

// NewFeed creates a feed bound to an authenticated client
func NewFeed(client *Client, opts ...FeedOption) *Feed {
	f := &Feed{
		client:       client,
		pollInterval: DefaultPollInterval,
		pingInterval: 25 * time.Second,
		subs:         make(map[string]map[int64]EventHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Subscribe registers a handler for a scope: a conversation id, or ScopeAll.
// The returned cancel removes the handler under the dispatch lock, so once
// cancel returns the handler will not be called again.
func (f *Feed) Subscribe(scope string, h EventHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextSub++
	id := f.nextSub
	if f.subs[scope] == nil {
		f.subs[scope] = make(map[int64]EventHandler)
	}
	f.subs[scope][id] = h

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[scope], id)
		if len(f.subs[scope]) == 0 {
			delete(f.subs, scope)
		}
	}
}

// Start connects the feed and begins dispatching. It returns after spawning
// the connection and poll loops; use Subscribe before or after.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return nil
	}
	f.started = true
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	f.wg.Add(2)
	go f.connectLoop()
	go f.pollLoop()
	return nil
}

// Stop tears down the connection and loops
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	f.started = false
	cancel := f.cancel
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()

	cancel()
	if conn != nil {
		conn.Close()
	}
	f.wg.Wait()
}

// wsURL derives the WebSocket endpoint from the client's base URL
func (f *Feed) wsURL() (string, error) {
	u, err := url.Parse(f.client.BaseURL())
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("token", f.client.GetToken())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// connectLoop dials, reads until the connection drops, then redials with
// capped exponential backoff.
func (f *Feed) connectLoop() {
	defer f.wg.Done()

	backoff := time.Second
	for {
		if f.ctx.Err() != nil {
			return
		}

		endpoint, err := f.wsURL()
		if err != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(f.ctx, endpoint, nil)
		if err != nil {
			select {
			case <-f.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}
		backoff = time.Second

		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()

		f.readUntilClosed(conn)

		f.mu.Lock()
		if f.conn == conn {
			f.conn = nil
		}
		f.mu.Unlock()
	}
}

// readUntilClosed reads and dispatches events until the connection fails.
// Application-level pings keep the server-side presence entry fresh.
func (f *Feed) readUntilClosed(conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(f.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-f.ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				conn.WriteJSON(map[string]string{"type": FramePing})
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Type == "" || ev.Type == FramePong {
			continue
		}
		f.dispatch(&ev)
	}
}

// FramePing and FramePong are the transport keepalive frame types
const (
	FramePing = "ping"
	FramePong = "pong"
)

// pollLoop fires the poll backstop tick. It runs from Start to Stop, not
// just while disconnected: polling during healthy connections is the
// redundancy that covers events lost in delivery, not only dead sockets.
func (f *Feed) pollLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.dispatch(&Event{Type: EventPollTick, At: time.Now().UnixMilli()})
		}
	}
}

// dispatch delivers an event to ScopeAll handlers and, when the event names a
// conversation, to that conversation's handlers. The lock is held across
// handler calls; that is what makes Subscribe's cancel synchronous, and why
// handlers must route Subscribe/cancel/Stop through their own goroutine (see
// EventHandler).
func (f *Feed) dispatch(ev *Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, h := range f.subs[ScopeAll] {
		h(ev)
	}
	if ev.ConversationId != "" {
		for _, h := range f.subs[ev.ConversationId] {
			h(ev)
		}
	}
}
