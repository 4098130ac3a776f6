package sdk

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"unicode/utf8"
)

// previewLimit caps the list-row preview in bytes, trimmed to a rune boundary
const previewLimit = 120

// ThreadListAPI is the slice of the client the thread list needs
type ThreadListAPI interface {
	GetConversationList(ctx context.Context, offset, limit int) ([]*Conversation, error)
	GetTotalUnread(ctx context.Context) (int64, error)
}

// EventSource is the subscription surface of a Feed
type EventSource interface {
	Subscribe(scope string, h EventHandler) func()
}

// ThreadList is the conversation-list view model. It keeps an ordered list of
// the viewer's conversations current: feed events apply locally and instantly,
// poll ticks trigger a full refetch that corrects any drift.
type ThreadList struct {
	api      ThreadListAPI
	feed     EventSource
	viewerId string
	pageSize int

	mu          sync.RWMutex
	threads     []*Conversation
	totalUnread int64
	stopped     bool

	onChange func()
	cancel   func()
}

// ThreadListOption configures a ThreadList
type ThreadListOption func(*ThreadList)

// WithPageSize overrides how many conversations a refresh fetches
func WithPageSize(n int) ThreadListOption {
	return func(l *ThreadList) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

// NewThreadList creates a thread list for the given viewer
func NewThreadList(api ThreadListAPI, feed EventSource, viewerId string, opts ...ThreadListOption) *ThreadList {
	l := &ThreadList{
		api:      api,
		feed:     feed,
		viewerId: viewerId,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnChange registers a callback invoked after every visible state change.
// Set it before Start.
func (l *ThreadList) OnChange(fn func()) {
	l.onChange = fn
}

// Start loads the initial list and subscribes to the feed
func (l *ThreadList) Start(ctx context.Context) error {
	if err := l.Refresh(ctx); err != nil {
		return err
	}
	l.cancel = l.feed.Subscribe(ScopeAll, l.handleEvent)
	return nil
}

// Stop unsubscribes from the feed
func (l *ThreadList) Stop() {
	l.mu.Lock()
	l.stopped = true
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Refresh refetches the list and badge count from the server
func (l *ThreadList) Refresh(ctx context.Context) error {
	threads, err := l.api.GetConversationList(ctx, 0, l.pageSize)
	if err != nil {
		return err
	}
	total, err := l.api.GetTotalUnread(ctx)
	if err != nil {
		return err
	}

	// Re-check under the write lock: a refresh that was in flight when Stop
	// ran must not touch state or fire OnChange afterwards.
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.threads = threads
	l.totalUnread = total
	l.mu.Unlock()

	l.notify()
	return nil
}

// LoadMore fetches the next page by offset and appends conversations not yet
// in the list
func (l *ThreadList) LoadMore(ctx context.Context) error {
	l.mu.RLock()
	offset := len(l.threads)
	l.mu.RUnlock()

	more, err := l.api.GetConversationList(ctx, offset, l.pageSize)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	for _, conv := range more {
		if l.findLocked(conv.Id) == nil {
			l.threads = append(l.threads, conv)
		}
	}
	l.sortLocked()
	l.mu.Unlock()

	l.notify()
	return nil
}

// Threads returns a snapshot of the ordered conversation list
func (l *ThreadList) Threads() []*Conversation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Conversation, len(l.threads))
	copy(out, l.threads)
	return out
}

// Get returns the thread for a conversation, or nil
func (l *ThreadList) Get(conversationId string) *Conversation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, t := range l.threads {
		if t.Id == conversationId {
			return t
		}
	}
	return nil
}

// TotalUnread returns the viewer's badge count
func (l *ThreadList) TotalUnread() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalUnread
}

// Badge returns the rendered badge text for the total unread count
func (l *ThreadList) Badge() string {
	return Badge(l.TotalUnread())
}

// handleEvent applies feed events. It runs on the feed dispatch goroutine,
// so anything that needs the network moves to its own goroutine.
func (l *ThreadList) handleEvent(ev *Event) {
	switch ev.Type {
	case EventMessageNew:
		l.applyMessage(ev)
	case EventConversationRead:
		l.applyRead(ev)
	case EventPollTick:
		go l.refreshAsync()
	}
}

// refreshAsync is the poll backstop path; errors wait for the next tick
func (l *ThreadList) refreshAsync() {
	l.mu.RLock()
	stopped := l.stopped
	l.mu.RUnlock()
	if stopped {
		return
	}
	_ = l.Refresh(context.Background())
}

// applyMessage moves the conversation to its new position and updates its
// last-message fields and unread count. A message for a conversation not in
// the list (someone opened a new thread with us) falls back to a refetch.
func (l *ThreadList) applyMessage(ev *Event) {
	var msg Message
	if err := json.Unmarshal(ev.Payload, &msg); err != nil {
		return
	}

	l.mu.Lock()
	thread := l.findLocked(msg.ConversationId)
	if thread == nil {
		l.mu.Unlock()
		go l.refreshAsync()
		return
	}

	thread.LastMsgId = msg.Id
	thread.LastMsgSender = msg.SenderId
	thread.LastMsgAt = msg.CreatedAt
	thread.LastMsgPreview = preview(&msg)
	if msg.CreatedAt > thread.UpdatedAt {
		thread.UpdatedAt = msg.CreatedAt
	}
	if msg.SenderId != l.viewerId && msg.CreatedAt > thread.LastReadAt {
		thread.UnreadCount++
		l.totalUnread++
	}
	l.sortLocked()
	l.mu.Unlock()

	l.notify()
}

// applyRead flips unread state when the viewer marks a conversation read in
// any session. Other users' read events don't change what we render.
func (l *ThreadList) applyRead(ev *Event) {
	var payload ReadPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return
	}
	if payload.UserId != l.viewerId {
		return
	}

	l.mu.Lock()
	thread := l.findLocked(ev.ConversationId)
	if thread == nil {
		l.mu.Unlock()
		return
	}
	if payload.LastReadAt > thread.LastReadAt {
		thread.LastReadAt = payload.LastReadAt
	}
	l.totalUnread -= thread.UnreadCount
	if l.totalUnread < 0 {
		l.totalUnread = 0
	}
	thread.UnreadCount = 0
	l.mu.Unlock()

	l.notify()
}

// findLocked returns the thread with the given id; caller holds the lock
func (l *ThreadList) findLocked(conversationId string) *Conversation {
	for _, t := range l.threads {
		if t.Id == conversationId {
			return t
		}
	}
	return nil
}

// sortLocked restores the server's ordering: most recent activity first,
// falling back to id for a stable tiebreak.
func (l *ThreadList) sortLocked() {
	sort.SliceStable(l.threads, func(i, j int) bool {
		a, b := activityAt(l.threads[i]), activityAt(l.threads[j])
		if a != b {
			return a > b
		}
		return l.threads[i].Id > l.threads[j].Id
	})
}

// activityAt is the sort key: last message time or, for threads with no
// messages yet, the conversation's own updated time.
func activityAt(conv *Conversation) int64 {
	if conv.LastMsgAt > conv.UpdatedAt {
		return conv.LastMsgAt
	}
	return conv.UpdatedAt
}

// preview renders the short text shown in the list row
func preview(msg *Message) string {
	if msg.Body != "" {
		if len(msg.Body) > previewLimit {
			// Back up to a rune boundary so the cut never splits a
			// multi-byte character.
			cut := previewLimit
			for cut > 0 && !utf8.RuneStart(msg.Body[cut]) {
				cut--
			}
			return msg.Body[:cut]
		}
		return msg.Body
	}
	return msg.AttachmentName
}

func (l *ThreadList) notify() {
	if l.onChange != nil {
		l.onChange()
	}
}
