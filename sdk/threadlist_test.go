package sdk

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeListAPI serves canned conversation pages and counts fetches
type fakeListAPI struct {
	mu       sync.Mutex
	convs    []*Conversation
	total    int64
	fetches  int
	totalErr error
}

func (f *fakeListAPI) GetConversationList(ctx context.Context, offset, limit int) ([]*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	out := make([]*Conversation, len(f.convs))
	for i, conv := range f.convs {
		c := *conv
		out[i] = &c
	}
	return out, nil
}

func (f *fakeListAPI) GetTotalUnread(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.totalErr != nil {
		return 0, f.totalErr
	}
	return f.total, nil
}

func (f *fakeListAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// fakeFeed hands events straight to subscribers
type fakeFeed struct {
	mu       sync.Mutex
	handlers map[string][]EventHandler
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: make(map[string][]EventHandler)}
}

func (f *fakeFeed) Subscribe(scope string, h EventHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[scope] = append(f.handlers[scope], h)
	return func() {}
}

func (f *fakeFeed) emit(ev *Event) {
	f.mu.Lock()
	handlers := append([]EventHandler{}, f.handlers[ScopeAll]...)
	if ev.ConversationId != "" {
		handlers = append(handlers, f.handlers[ev.ConversationId]...)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func messageEvent(t *testing.T, msg *Message) *Event {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	return &Event{
		Type:           EventMessageNew,
		ConversationId: msg.ConversationId,
		Payload:        payload,
		At:             msg.CreatedAt,
	}
}

func readEvent(t *testing.T, conversationId, userId string, lastReadAt int64) *Event {
	t.Helper()
	payload, err := json.Marshal(&ReadPayload{UserId: userId, LastReadAt: lastReadAt})
	require.NoError(t, err)
	return &Event{
		Type:           EventConversationRead,
		ConversationId: conversationId,
		Payload:        payload,
		At:             lastReadAt,
	}
}

func TestThreadList_StartLoadsInitialState(t *testing.T) {
	api := &fakeListAPI{
		convs: []*Conversation{
			{Id: "dc_me:a", LastMsgAt: 2000, UnreadCount: 1},
			{Id: "dc_me:b", LastMsgAt: 1000},
		},
		total: 1,
	}
	feed := newFakeFeed()

	list := NewThreadList(api, feed, "me")
	require.NoError(t, list.Start(context.Background()))
	defer list.Stop()

	threads := list.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, "dc_me:a", threads[0].Id)
	assert.Equal(t, int64(1), list.TotalUnread())
	assert.Equal(t, "1", list.Badge())
}

func TestThreadList_LoadMoreAppendsWithoutDuplicates(t *testing.T) {
	api := &fakeListAPI{
		convs: []*Conversation{
			{Id: "dc_me:a", LastMsgAt: 3000},
			{Id: "dc_me:b", LastMsgAt: 2000},
		},
	}
	feed := newFakeFeed()

	list := NewThreadList(api, feed, "me", WithPageSize(2))
	require.NoError(t, list.Start(context.Background()))
	defer list.Stop()

	// The next page overlaps the first by one row
	api.mu.Lock()
	api.convs = []*Conversation{
		{Id: "dc_me:b", LastMsgAt: 2000},
		{Id: "dc_me:c", LastMsgAt: 1000},
	}
	api.mu.Unlock()

	require.NoError(t, list.LoadMore(context.Background()))

	threads := list.Threads()
	require.Len(t, threads, 3)
	assert.Equal(t, "dc_me:a", threads[0].Id)
	assert.Equal(t, "dc_me:b", threads[1].Id)
	assert.Equal(t, "dc_me:c", threads[2].Id)
}

func TestThreadList_MessageEventUpdatesThread(t *testing.T) {
	api := &fakeListAPI{
		convs: []*Conversation{
			{Id: "dc_me:a", LastMsgAt: 2000},
			{Id: "dc_me:b", LastMsgAt: 1000, LastReadAt: 1000},
		},
	}
	feed := newFakeFeed()

	var changes int
	list := NewThreadList(api, feed, "me")
	list.OnChange(func() { changes++ })
	require.NoError(t, list.Start(context.Background()))
	defer list.Stop()

	feed.emit(messageEvent(t, &Message{
		Id:             "msg_9",
		ConversationId: "dc_me:b",
		SenderId:       "b",
		Body:           "newest",
		CreatedAt:      3000,
	}))

	threads := list.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, "dc_me:b", threads[0].Id, "conversation with the newest message moves to the top")
	assert.Equal(t, "msg_9", threads[0].LastMsgId)
	assert.Equal(t, "newest", threads[0].LastMsgPreview)
	assert.Equal(t, int64(1), threads[0].UnreadCount)
	assert.Equal(t, int64(1), list.TotalUnread())
	assert.Greater(t, changes, 1)
}

func TestThreadList_OwnMessageDoesNotIncrementUnread(t *testing.T) {
	api := &fakeListAPI{
		convs: []*Conversation{{Id: "dc_me:a", LastMsgAt: 1000, LastReadAt: 1000}},
	}
	feed := newFakeFeed()

	list := NewThreadList(api, feed, "me")
	require.NoError(t, list.Start(context.Background()))
	defer list.Stop()

	feed.emit(messageEvent(t, &Message{
		Id:             "msg_1",
		ConversationId: "dc_me:a",
		SenderId:       "me",
		Body:           "from myself",
		CreatedAt:      2000,
	}))

	thread := list.Get("dc_me:a")
	require.NotNil(t, thread)
	assert.Equal(t, int64(0), thread.UnreadCount)
	assert.Equal(t, int64(0), list.TotalUnread())
	assert.Equal(t, "msg_1", thread.LastMsgId, "last message still updates")
}

func TestThreadList_ReadEventClearsUnread(t *testing.T) {
	api := &fakeListAPI{
		convs: []*Conversation{{Id: "dc_me:a", LastMsgAt: 2000, LastReadAt: 0, UnreadCount: 2}},
		total: 2,
	}
	feed := newFakeFeed()

	list := NewThreadList(api, feed, "me")
	require.NoError(t, list.Start(context.Background()))
	defer list.Stop()

	t.Run("another user's read event is ignored", func(t *testing.T) {
		feed.emit(readEvent(t, "dc_me:a", "a", 3000))
		thread := list.Get("dc_me:a")
		require.NotNil(t, thread)
		assert.Equal(t, int64(2), thread.UnreadCount)
	})

	t.Run("viewer's read event clears the thread", func(t *testing.T) {
		feed.emit(readEvent(t, "dc_me:a", "me", 3000))
		thread := list.Get("dc_me:a")
		require.NotNil(t, thread)
		assert.Equal(t, int64(0), thread.UnreadCount)
		assert.Equal(t, int64(3000), thread.LastReadAt)
		assert.Equal(t, int64(0), list.TotalUnread())
		assert.Equal(t, "", list.Badge())
	})
}

func TestThreadList_UnknownConversationTriggersRefetch(t *testing.T) {
	api := &fakeListAPI{
		convs: []*Conversation{{Id: "dc_me:a", LastMsgAt: 1000}},
	}
	feed := newFakeFeed()

	list := NewThreadList(api, feed, "me")
	require.NoError(t, list.Start(context.Background()))
	defer list.Stop()

	before := api.fetchCount()
	feed.emit(messageEvent(t, &Message{
		Id:             "msg_1",
		ConversationId: "dc_me:new",
		SenderId:       "new",
		Body:           "first contact",
		CreatedAt:      2000,
	}))

	assert.Eventually(t, func() bool {
		return api.fetchCount() > before
	}, time.Second, 10*time.Millisecond, "a message for an unknown conversation refetches the list")
}

func TestThreadList_PollTickRefetches(t *testing.T) {
	api := &fakeListAPI{
		convs: []*Conversation{{Id: "dc_me:a", LastMsgAt: 1000}},
	}
	feed := newFakeFeed()

	list := NewThreadList(api, feed, "me")
	require.NoError(t, list.Start(context.Background()))
	defer list.Stop()

	before := api.fetchCount()
	feed.emit(&Event{Type: EventPollTick})

	assert.Eventually(t, func() bool {
		return api.fetchCount() > before
	}, time.Second, 10*time.Millisecond, "poll tick refetches the list")
}

func TestPreview_TruncatesOnRuneBoundary(t *testing.T) {
	// 3-byte runes, 120 % 3 != 0, so a byte cut would split one
	got := preview(&Message{Body: strings.Repeat("语", 50)})
	assert.True(t, utf8.ValidString(got), "preview must stay valid UTF-8")
	assert.Equal(t, strings.Repeat("语", 40), got)

	assert.Equal(t, "short", preview(&Message{Body: "short"}))
	assert.Equal(t, "a.png", preview(&Message{AttachmentName: "a.png"}))
}

// blockingListAPI lets a test hold the second list fetch open
type blockingListAPI struct {
	*fakeListAPI
	entered chan struct{}
	release chan struct{}
}

func (b *blockingListAPI) GetConversationList(ctx context.Context, offset, limit int) ([]*Conversation, error) {
	first := b.fetchCount() == 0
	out, err := b.fakeListAPI.GetConversationList(ctx, offset, limit)
	if first {
		return out, err
	}
	close(b.entered)
	<-b.release
	return []*Conversation{{Id: "dc_me:late", LastMsgAt: 9000, UnreadCount: 7}}, nil
}

func TestThreadList_StopDuringRefreshDiscardsResult(t *testing.T) {
	api := &blockingListAPI{
		fakeListAPI: &fakeListAPI{
			convs: []*Conversation{{Id: "dc_me:a", LastMsgAt: 1000}},
		},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	feed := newFakeFeed()

	var changes atomic.Int32
	list := NewThreadList(api, feed, "me")
	list.OnChange(func() { changes.Add(1) })
	require.NoError(t, list.Start(context.Background()))

	// Let a poll-backstop refresh get past the API call, then stop the
	// list while the response is still in flight.
	feed.emit(&Event{Type: EventPollTick})
	select {
	case <-api.entered:
	case <-time.After(time.Second):
		t.Fatal("poll refresh never reached the API")
	}

	list.Stop()
	api.mu.Lock()
	api.total = 7
	api.mu.Unlock()
	before := changes.Load()
	close(api.release)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, changes.Load(), "no OnChange after Stop")
	threads := list.Threads()
	require.Len(t, threads, 1)
	assert.Equal(t, "dc_me:a", threads[0].Id, "stale refresh result is discarded")
	assert.Equal(t, int64(0), list.TotalUnread())
}

func TestThreadList_StopSuppressesPollRefetch(t *testing.T) {
	api := &fakeListAPI{
		convs: []*Conversation{{Id: "dc_me:a", LastMsgAt: 1000}},
	}
	feed := newFakeFeed()

	list := NewThreadList(api, feed, "me")
	require.NoError(t, list.Start(context.Background()))
	list.Stop()

	before := api.fetchCount()
	feed.emit(&Event{Type: EventPollTick})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, api.fetchCount(), "stopped list does not refetch")
}
