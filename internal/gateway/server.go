package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	hzws "github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/opencove/cove/internal/config"
	"github.com/opencove/cove/internal/entity"
	"github.com/opencove/cove/internal/service"
	"github.com/opencove/cove/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// Server is the change-feed gateway. It owns the WebSocket connections and
// fans feed events out to them; every event also goes through a Redis pub/sub
// channel so sibling instances can deliver to their own connections.
type Server struct {
	upgrader       *websocket.Upgrader
	cfg            *config.Config
	rdb            *redis.Client
	userMap        *UserMap
	authService    *service.AuthService
	registerChan   chan *Client
	unregisterChan chan *Client
	pushChan       chan *pushTask
	onlineUserNum  atomic.Int64
	onlineConnNum  atomic.Int64
	maxConnNum     int64
}

// pushTask carries one event to a set of target users on this instance
type pushTask struct {
	Event     *Event
	TargetIds []string
}

// NewServer creates a new feed gateway server
func NewServer(cfg *config.Config, rdb *redis.Client, authService *service.AuthService) *Server {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return &Server{
		upgrader:       upgrader,
		cfg:            cfg,
		rdb:            rdb,
		userMap:        NewUserMap(rdb),
		authService:    authService,
		registerChan:   make(chan *Client, 1000),
		unregisterChan: make(chan *Client, 1000),
		pushChan:       make(chan *pushTask, cfg.WebSocket.PushChannelSize),
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}
}

// Run starts the gateway loops
func (s *Server) Run(ctx context.Context) {
	go s.eventLoop(ctx)
	go s.subscribeLoop(ctx)

	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}
	log.Info("feed gateway started: %d push workers", workerNum)
}

// eventLoop handles client registration and unregistration
func (s *Server) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop handles async event pushing
func (s *Server) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(ctx, task)
		}
	}
}

// processPushTask delivers one event to every local connection of the targets
func (s *Server) processPushTask(ctx context.Context, task *pushTask) {
	for _, userId := range task.TargetIds {
		clients, ok := s.userMap.GetAll(userId)
		if !ok {
			continue
		}

		for _, client := range clients {
			if err := client.PushEvent(task.Event); err != nil {
				log.CtxDebug(ctx, "push to client failed: user_id=%s, conn_id=%s, error=%v", userId, client.ConnId, err)
			}
		}
	}
}

// subscribeLoop receives broadcast frames published by any instance (this one
// included) and enqueues them for local delivery. Without Redis the gateway
// still works single-instance through the broadcast fallback.
func (s *Server) subscribeLoop(ctx context.Context) {
	if s.rdb == nil {
		return
	}

	sub := s.rdb.Subscribe(ctx, constant.RedisKeyFeed())
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame broadcastFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				log.CtxWarn(ctx, "bad broadcast frame: %v", err)
				continue
			}
			s.enqueue(&pushTask{Event: frame.Event, TargetIds: frame.UserIds})
		}
	}
}

// broadcast publishes an event for a set of users. Publish failures fall back
// to local-only delivery so a Redis outage degrades to single-instance mode.
func (s *Server) broadcast(ev *Event, userIds []string) {
	if len(userIds) == 0 {
		return
	}

	if s.rdb != nil {
		frame := &broadcastFrame{UserIds: userIds, Event: ev}
		data, err := json.Marshal(frame)
		if err == nil {
			if err := s.rdb.Publish(context.Background(), constant.RedisKeyFeed(), data).Err(); err == nil {
				return
			}
			log.Warn("publish feed event failed, delivering locally: type=%s", ev.Type)
		}
	}

	s.enqueue(&pushTask{Event: ev, TargetIds: userIds})
}

// enqueue queues a push task, dropping on backpressure
func (s *Server) enqueue(task *pushTask) {
	select {
	case s.pushChan <- task:
	default:
		log.Warn("push channel full, event dropped: type=%s", task.Event.Type)
	}
}

// PushMessage implements service.FeedPusher
func (s *Server) PushMessage(view *entity.MessageView, userIds []string) {
	ev, err := NewMessageEvent(view)
	if err != nil {
		log.Warn("build message event failed: %v", err)
		return
	}
	s.broadcast(ev, userIds)
}

// PushRead implements service.FeedPusher. Read events go only to the reader's
// own sessions.
func (s *Server) PushRead(conversationId, userId string, lastReadAt int64) {
	ev, err := NewReadEvent(conversationId, userId, lastReadAt)
	if err != nil {
		log.Warn("build read event failed: %v", err)
		return
	}
	s.broadcast(ev, []string{userId})
}

// PushNotification implements service.FeedPusher
func (s *Server) PushNotification(n *entity.Notification) {
	ev, err := NewNotificationEvent(n)
	if err != nil {
		log.Warn("build notification event failed: %v", err)
		return
	}
	s.broadcast(ev, []string{n.UserId})
}

// registerClient registers a client
func (s *Server) registerClient(ctx context.Context, client *Client) {
	existingClients, exists := s.userMap.GetAll(client.UserId)
	if !exists {
		s.onlineUserNum.Add(1)
	}

	s.userMap.Register(ctx, client)
	s.onlineConnNum.Add(1)

	log.CtxInfo(ctx, "client registered: user_id=%s, conn_id=%s, existing_conns=%d, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, len(existingClients), s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// unregisterClient unregisters a client
func (s *Server) unregisterClient(ctx context.Context, client *Client) {
	isUserOffline := s.userMap.Unregister(ctx, client)
	s.onlineConnNum.Add(-1)

	if isUserOffline {
		s.onlineUserNum.Add(-1)
	}

	log.CtxInfo(ctx, "client unregistered: user_id=%s, conn_id=%s, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, isUserOffline, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// UnregisterClient queues client for unregistration
func (s *Server) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%s", client.UserId)
	}
}

// KickUser closes all of a user's connections on this instance. Implements
// service.SessionKicker.
func (s *Server) KickUser(userId string) {
	clients, ok := s.userMap.GetAll(userId)
	if !ok {
		return
	}
	for _, client := range clients {
		client.KickOnline()
	}
}

// KickToken closes the connections opened with one token, leaving the user's
// other sessions connected. Implements service.SessionKicker.
func (s *Server) KickToken(userId, token string) {
	clients, ok := s.userMap.GetAll(userId)
	if !ok {
		return
	}
	for _, client := range clients {
		if client.Token == token {
			client.KickOnline()
		}
	}
}

// HandleConnection handles a new WebSocket connection over net/http
func (s *Server) HandleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		http.Error(w, "connection limit exceeded", http.StatusServiceUnavailable)
		return
	}

	token := r.URL.Query().Get(QueryToken)
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	claims, err := s.authService.ValidateToken(ctx, token)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	connId := uuid.New().String()
	wsConn := NewWebSocketClientConn(conn, s.cfg.WebSocket.MaxMessageSize, PongWait, PingPeriod)
	client := NewClient(wsConn, claims.UserId, token, connId, s)

	s.registerChan <- client
	client.Start()
}

// HandleHertzConnection handles a WebSocket connection from Hertz using
// hertz-contrib/websocket
func (s *Server) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *hzws.HertzUpgrader) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		c.String(503, "connection limit exceeded")
		return
	}

	token := string(c.Query(QueryToken))
	if token == "" {
		c.String(400, "missing token")
		return
	}

	claims, err := s.authService.ValidateToken(ctx, token)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: %v", err)
		c.String(401, "unauthorized")
		return
	}

	err = upgrader.Upgrade(c, func(conn *hzws.Conn) {
		connId := uuid.New().String()
		wsConn := NewHertzWebSocketClientConn(conn, s.cfg.WebSocket.MaxMessageSize, PongWait, PingPeriod)
		client := NewClient(wsConn, claims.UserId, token, connId, s)

		s.registerChan <- client

		// Blocking read loop keeps the upgraded connection alive
		client.readLoop()
	})

	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}
}

// GetOnlineUserCount returns online user count
func (s *Server) GetOnlineUserCount() int64 {
	return s.onlineUserNum.Load()
}

// GetOnlineConnCount returns online connection count
func (s *Server) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}
