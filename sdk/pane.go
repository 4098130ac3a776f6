package sdk

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaneAPI is the slice of the client the pane needs
type PaneAPI interface {
	GetHistory(ctx context.Context, conversationId string, limit int) ([]*Message, error)
	GetOlder(ctx context.Context, conversationId string, before int64, limit int) ([]*Message, error)
	SendMessage(ctx context.Context, req *SendMessageRequest) (*Message, error)
	MarkRead(ctx context.Context, conversationId string) (int64, error)
	Upload(ctx context.Context, filename, contentType string, reader io.Reader) (*UploadResult, error)
}

// MsgStatus is the delivery state of a message in the pane
type MsgStatus int

const (
	// MsgStatusSent means the server has acknowledged the message
	MsgStatusSent MsgStatus = iota
	// MsgStatusPending means the message renders optimistically while the
	// send is in flight
	MsgStatusPending
	// MsgStatusFailed means the send failed; the message stays visible with
	// a retry affordance
	MsgStatusFailed
)

// PaneMessage is a message as the pane renders it
type PaneMessage struct {
	Message
	Status MsgStatus
}

// Pane is the active-conversation view model. Messages stay ascending by
// created_at; sends render immediately as pending and reconcile against the
// server's acknowledgment or feed echo, whichever lands first.
type Pane struct {
	api            PaneAPI
	feed           EventSource
	conversationId string
	viewerId       string
	pageSize       int

	mu         sync.RWMutex
	msgs       []*PaneMessage
	byId       map[string]*PaneMessage
	byClientId map[string]*PaneMessage
	lastReadAt int64
	hasMore    bool
	stopped    bool

	onChange func()
	cancel   func()
}

// NewPane creates a pane for one conversation
func NewPane(api PaneAPI, feed EventSource, conversationId, viewerId string) *Pane {
	return &Pane{
		api:            api,
		feed:           feed,
		conversationId: conversationId,
		viewerId:       viewerId,
		pageSize:       DefaultPageSize,
		byId:           make(map[string]*PaneMessage),
		byClientId:     make(map[string]*PaneMessage),
	}
}

// OnChange registers a callback invoked after every visible state change.
// Set it before Open.
func (p *Pane) OnChange(fn func()) {
	p.onChange = fn
}

// Open loads the newest page, subscribes to the conversation's events, and
// marks the conversation read.
func (p *Pane) Open(ctx context.Context) error {
	msgs, err := p.api.GetHistory(ctx, p.conversationId, p.pageSize)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.msgs = p.msgs[:0]
	p.byId = make(map[string]*PaneMessage, len(msgs))
	p.byClientId = make(map[string]*PaneMessage)
	for _, m := range msgs {
		p.insertLocked(&PaneMessage{Message: *m, Status: MsgStatusSent})
	}
	p.hasMore = len(msgs) == p.pageSize
	p.mu.Unlock()

	p.cancel = p.feed.Subscribe(p.conversationId, p.handleEvent)
	p.MarkRead()
	p.notify()
	return nil
}

// Stop unsubscribes from the feed
func (p *Pane) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Messages returns a snapshot of the pane's messages, ascending by time
func (p *Pane) Messages() []*PaneMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*PaneMessage, len(p.msgs))
	copy(out, p.msgs)
	return out
}

// HasMore reports whether older pages may remain
func (p *Pane) HasMore() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasMore
}

// LastReadAt returns the viewer's read watermark as the pane knows it
func (p *Pane) LastReadAt() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastReadAt
}

// SendText sends a text message with optimistic rendering
func (p *Pane) SendText(ctx context.Context, body string) (string, error) {
	if body == "" {
		return "", ErrEmptyMessage
	}
	return p.send(ctx, &SendMessageRequest{
		ConversationId: p.conversationId,
		Kind:           MsgKindText,
		Body:           body,
	})
}

// SendAttachment uploads first, then sends a message referencing the stored
// object. An upload failure returns before anything renders, so the caller's
// draft survives untouched.
func (p *Pane) SendAttachment(ctx context.Context, filename, contentType string, reader io.Reader, kind int32, caption string) (string, error) {
	result, err := p.api.Upload(ctx, filename, contentType, reader)
	if err != nil {
		return "", err
	}
	return p.send(ctx, &SendMessageRequest{
		ConversationId: p.conversationId,
		Kind:           kind,
		Body:           caption,
		AttachmentURL:  result.URL,
		AttachmentName: result.Name,
	})
}

// send appends a pending placeholder and fires the request in the
// background. It returns the client_msg_id identifying the placeholder.
func (p *Pane) send(ctx context.Context, req *SendMessageRequest) (string, error) {
	req.ClientMsgId = uuid.New().String()

	placeholder := &PaneMessage{
		Message: Message{
			Id:             "pending:" + req.ClientMsgId,
			ConversationId: p.conversationId,
			SenderId:       p.viewerId,
			ClientMsgId:    req.ClientMsgId,
			Kind:           req.Kind,
			Body:           req.Body,
			AttachmentURL:  req.AttachmentURL,
			AttachmentName: req.AttachmentName,
			CreatedAt:      time.Now().UnixMilli(),
		},
		Status: MsgStatusPending,
	}

	p.mu.Lock()
	p.insertLocked(placeholder)
	p.mu.Unlock()
	p.notify()

	go p.deliver(ctx, req)
	return req.ClientMsgId, nil
}

// deliver runs the send and reconciles the placeholder with the outcome
func (p *Pane) deliver(ctx context.Context, req *SendMessageRequest) {
	msg, err := p.api.SendMessage(ctx, req)

	p.mu.Lock()
	placeholder := p.byClientId[req.ClientMsgId]
	if placeholder == nil {
		// Feed echo reconciled it first
		p.mu.Unlock()
		return
	}
	if err != nil {
		placeholder.Status = MsgStatusFailed
		p.mu.Unlock()
		p.notify()
		return
	}
	p.reconcileLocked(placeholder, msg)
	p.mu.Unlock()
	p.notify()
}

// Retry resends a failed message under its original client_msg_id, so a
// retry that raced a slow success stays a single message server-side.
func (p *Pane) Retry(ctx context.Context, clientMsgId string) error {
	p.mu.Lock()
	pm := p.byClientId[clientMsgId]
	if pm == nil || pm.Status != MsgStatusFailed {
		p.mu.Unlock()
		return ErrNotFound
	}
	pm.Status = MsgStatusPending
	req := &SendMessageRequest{
		ConversationId: p.conversationId,
		ClientMsgId:    clientMsgId,
		Kind:           pm.Kind,
		Body:           pm.Body,
		AttachmentURL:  pm.AttachmentURL,
		AttachmentName: pm.AttachmentName,
	}
	p.mu.Unlock()
	p.notify()

	go p.deliver(ctx, req)
	return nil
}

// LoadOlder fetches the page before the oldest loaded message and merges it
// in front. Only strictly older messages merge; overlap with what's already
// loaded is dropped.
func (p *Pane) LoadOlder(ctx context.Context) error {
	p.mu.RLock()
	var before int64
	for _, m := range p.msgs {
		if m.Status == MsgStatusSent {
			before = m.CreatedAt
			break
		}
	}
	p.mu.RUnlock()

	if before == 0 {
		return nil
	}

	older, err := p.api.GetOlder(ctx, p.conversationId, before, p.pageSize)
	if err != nil {
		return err
	}

	p.mu.Lock()
	for _, m := range older {
		if m.CreatedAt >= before {
			continue
		}
		p.insertLocked(&PaneMessage{Message: *m, Status: MsgStatusSent})
	}
	p.hasMore = len(older) == p.pageSize
	p.mu.Unlock()

	p.notify()
	return nil
}

// MarkRead flips the local watermark immediately and tells the server in the
// background; the server's conversation.read event carries the stored value
// back to every session.
func (p *Pane) MarkRead() {
	now := time.Now().UnixMilli()

	p.mu.Lock()
	if now > p.lastReadAt {
		p.lastReadAt = now
	}
	p.mu.Unlock()
	p.notify()

	go func() {
		p.api.MarkRead(context.Background(), p.conversationId)
	}()
}

// handleEvent applies feed events scoped to this conversation
func (p *Pane) handleEvent(ev *Event) {
	switch ev.Type {
	case EventMessageNew:
		p.applyMessage(ev)
	case EventConversationRead:
		p.applyRead(ev)
	case EventPollTick:
		go p.refreshAsync()
	}
}

// applyMessage inserts an incoming message, reconciling against a pending
// placeholder when the echo of our own send arrives before the HTTP response.
func (p *Pane) applyMessage(ev *Event) {
	var msg Message
	if err := json.Unmarshal(ev.Payload, &msg); err != nil {
		return
	}
	if msg.ConversationId != p.conversationId {
		return
	}

	p.mu.Lock()
	if _, ok := p.byId[msg.Id]; ok {
		p.mu.Unlock()
		return
	}
	if placeholder := p.byClientId[msg.ClientMsgId]; placeholder != nil && msg.ClientMsgId != "" {
		p.reconcileLocked(placeholder, &msg)
	} else {
		p.insertLocked(&PaneMessage{Message: msg, Status: MsgStatusSent})
	}
	p.mu.Unlock()
	p.notify()

	// A message that arrived while the pane is open is read by definition
	if msg.SenderId != p.viewerId {
		p.MarkRead()
	}
}

// applyRead tracks the viewer's watermark from other sessions
func (p *Pane) applyRead(ev *Event) {
	var payload ReadPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return
	}
	if payload.UserId != p.viewerId {
		return
	}

	p.mu.Lock()
	changed := payload.LastReadAt > p.lastReadAt
	if changed {
		p.lastReadAt = payload.LastReadAt
	}
	p.mu.Unlock()

	if changed {
		p.notify()
	}
}

// refreshAsync is the poll backstop: refetch the newest page and merge in
// anything the feed missed.
func (p *Pane) refreshAsync() {
	p.mu.RLock()
	stopped := p.stopped
	p.mu.RUnlock()
	if stopped {
		return
	}

	msgs, err := p.api.GetHistory(context.Background(), p.conversationId, p.pageSize)
	if err != nil {
		return
	}

	changed := false
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	for _, m := range msgs {
		if _, ok := p.byId[m.Id]; ok {
			continue
		}
		if placeholder := p.byClientId[m.ClientMsgId]; placeholder != nil && m.ClientMsgId != "" {
			p.reconcileLocked(placeholder, m)
		} else {
			p.insertLocked(&PaneMessage{Message: *m, Status: MsgStatusSent})
		}
		changed = true
	}
	p.mu.Unlock()

	if changed {
		p.notify()
	}
}

// insertLocked adds a message keeping ascending order; caller holds the lock
func (p *Pane) insertLocked(pm *PaneMessage) {
	p.msgs = append(p.msgs, pm)
	sort.SliceStable(p.msgs, func(i, j int) bool {
		return p.msgs[i].CreatedAt < p.msgs[j].CreatedAt
	})
	p.byId[pm.Id] = pm
	if pm.ClientMsgId != "" && pm.Status != MsgStatusSent {
		p.byClientId[pm.ClientMsgId] = pm
	}
}

// reconcileLocked replaces a pending placeholder with the server's message;
// caller holds the lock.
func (p *Pane) reconcileLocked(placeholder *PaneMessage, msg *Message) {
	delete(p.byId, placeholder.Id)
	delete(p.byClientId, placeholder.ClientMsgId)

	placeholder.Message = *msg
	placeholder.Status = MsgStatusSent
	p.byId[msg.Id] = placeholder

	sort.SliceStable(p.msgs, func(i, j int) bool {
		return p.msgs[i].CreatedAt < p.msgs[j].CreatedAt
	})
}

func (p *Pane) notify() {
	if p.onChange != nil {
		p.onChange()
	}
}
