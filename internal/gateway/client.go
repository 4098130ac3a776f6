package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"
	"github.com/opencove/cove/internal/entity"
)

// Client represents a connected feed subscriber. The feed is one-way except
// for application-level pings: operations go over HTTP, events come down the
// socket.
type Client struct {
	mu        sync.Mutex
	conn      ClientConn
	UserId    string
	Token     string
	ConnId    string
	server    *Server
	closed    atomic.Bool
	closedErr error
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new client
func NewClient(conn ClientConn, userId, token, connId string, server *Server) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:   conn,
		UserId: userId,
		Token:  token,
		ConnId: connId,
		server: server,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the client message handling
func (c *Client) Start() {
	go c.readLoop()
}

// readLoop continuously reads frames from the connection
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.CtxError(c.ctx, "client read loop panic: user_id=%s, error=%v", c.UserId, r)
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		if err := c.handleFrame(message); err != nil {
			log.CtxWarn(c.ctx, "handle frame error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}
	}
}

// handleFrame handles a single inbound frame. Unknown types are ignored so
// newer clients stay compatible with older servers.
func (c *Client) handleFrame(message []byte) error {
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		return ErrInvalidFrame
	}

	switch frame.Type {
	case FramePing:
		c.server.userMap.RefreshOnlineStatus(c.ctx, c.UserId)
		return c.PushEvent(&Event{Type: FramePong, At: entity.NowUnixMilli()})
	default:
		log.CtxDebug(c.ctx, "ignoring frame: type=%s, user_id=%s", frame.Type, c.UserId)
		return nil
	}
}

// PushEvent pushes a feed event to the client
func (c *Client) PushEvent(ev *Event) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(data)
}

// KickOnline sends kick frame and closes connection
func (c *Client) KickOnline() error {
	c.PushEvent(&Event{Type: FrameKicked, At: entity.NowUnixMilli()})
	return c.Close()
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.closed.Store(true)
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when connection is closed
func (c *Client) close() {
	c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
