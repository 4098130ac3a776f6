package sdk

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePaneAPI serves canned pages and scriptable sends
type fakePaneAPI struct {
	mu        sync.Mutex
	history   []*Message
	older     []*Message
	sendFn    func(req *SendMessageRequest) (*Message, error)
	uploadErr error
	markReads int
}

func (f *fakePaneAPI) GetHistory(ctx context.Context, conversationId string, limit int) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Message, len(f.history))
	for i, m := range f.history {
		c := *m
		out[i] = &c
	}
	return out, nil
}

func (f *fakePaneAPI) GetOlder(ctx context.Context, conversationId string, before int64, limit int) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Message, 0, len(f.older))
	for _, m := range f.older {
		if m.CreatedAt < before {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakePaneAPI) SendMessage(ctx context.Context, req *SendMessageRequest) (*Message, error) {
	f.mu.Lock()
	sendFn := f.sendFn
	f.mu.Unlock()
	if sendFn == nil {
		return nil, ErrInternalServer
	}
	return sendFn(req)
}

func (f *fakePaneAPI) MarkRead(ctx context.Context, conversationId string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads++
	return time.Now().UnixMilli(), nil
}

func (f *fakePaneAPI) Upload(ctx context.Context, filename, contentType string, reader io.Reader) (*UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &UploadResult{URL: "http://store/" + filename, Name: filename}, nil
}

func (f *fakePaneAPI) markReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markReads
}

func ackSend(senderId string) func(req *SendMessageRequest) (*Message, error) {
	var seq int64 = 10000
	var mu sync.Mutex
	return func(req *SendMessageRequest) (*Message, error) {
		mu.Lock()
		seq++
		id := seq
		mu.Unlock()
		return &Message{
			Id:             "msg_" + req.ClientMsgId,
			ConversationId: req.ConversationId,
			SenderId:       senderId,
			ClientMsgId:    req.ClientMsgId,
			Kind:           req.Kind,
			Body:           req.Body,
			AttachmentURL:  req.AttachmentURL,
			AttachmentName: req.AttachmentName,
			CreatedAt:      id,
		}, nil
	}
}

func openedPane(t *testing.T, api *fakePaneAPI, feed *fakeFeed) *Pane {
	t.Helper()
	pane := NewPane(api, feed, "dc_me:peer", "me")
	require.NoError(t, pane.Open(context.Background()))
	t.Cleanup(pane.Stop)
	return pane
}

func TestPane_OpenLoadsHistoryAndMarksRead(t *testing.T) {
	api := &fakePaneAPI{
		history: []*Message{
			{Id: "m1", ConversationId: "dc_me:peer", SenderId: "peer", Body: "one", CreatedAt: 100},
			{Id: "m2", ConversationId: "dc_me:peer", SenderId: "me", Body: "two", CreatedAt: 200},
		},
	}
	feed := newFakeFeed()
	pane := openedPane(t, api, feed)

	msgs := pane.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].Id)
	assert.Equal(t, "m2", msgs[1].Id)
	assert.Equal(t, MsgStatusSent, msgs[0].Status)
	assert.False(t, pane.HasMore(), "short page means no older messages")
	assert.Greater(t, pane.LastReadAt(), int64(0), "opening marks the conversation read")

	assert.Eventually(t, func() bool {
		return api.markReadCount() >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestPane_SendTextOptimisticThenReconciled(t *testing.T) {
	api := &fakePaneAPI{sendFn: ackSend("me")}
	feed := newFakeFeed()
	pane := openedPane(t, api, feed)

	clientMsgId, err := pane.SendText(context.Background(), "hello")
	require.NoError(t, err)
	require.NotEmpty(t, clientMsgId)

	// The placeholder renders immediately
	msgs := pane.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Body)

	assert.Eventually(t, func() bool {
		msgs := pane.Messages()
		return len(msgs) == 1 && msgs[0].Status == MsgStatusSent
	}, time.Second, 10*time.Millisecond, "placeholder reconciles with the server ack")

	msgs = pane.Messages()
	assert.Equal(t, "msg_"+clientMsgId, msgs[0].Id)
	assert.Equal(t, clientMsgId, msgs[0].ClientMsgId)
}

func TestPane_SendTextEmpty(t *testing.T) {
	api := &fakePaneAPI{}
	feed := newFakeFeed()
	pane := openedPane(t, api, feed)

	_, err := pane.SendText(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, pane.Messages())
}

func TestPane_EchoBeforeResponseLeavesSingleMessage(t *testing.T) {
	release := make(chan struct{})
	feed := newFakeFeed()
	api := &fakePaneAPI{}
	api.sendFn = func(req *SendMessageRequest) (*Message, error) {
		<-release
		return &Message{
			Id:             "msg_srv",
			ConversationId: req.ConversationId,
			SenderId:       "me",
			ClientMsgId:    req.ClientMsgId,
			Body:           req.Body,
			CreatedAt:      500,
		}, nil
	}
	pane := openedPane(t, api, feed)

	_, err := pane.SendText(context.Background(), "race")
	require.NoError(t, err)

	// The feed echo lands while the HTTP response is still in flight
	msgs := pane.Messages()
	require.Len(t, msgs, 1)
	feed.emit(messageEvent(t, &Message{
		Id:             "msg_srv",
		ConversationId: "dc_me:peer",
		SenderId:       "me",
		ClientMsgId:    msgs[0].ClientMsgId,
		Body:           "race",
		CreatedAt:      500,
	}))

	msgs = pane.Messages()
	require.Len(t, msgs, 1, "echo reconciles the placeholder instead of duplicating")
	assert.Equal(t, "msg_srv", msgs[0].Id)
	assert.Equal(t, MsgStatusSent, msgs[0].Status)

	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, pane.Messages(), 1, "late HTTP response does not add a second message")
}

func TestPane_FailedSendAndRetry(t *testing.T) {
	feed := newFakeFeed()
	api := &fakePaneAPI{}
	api.sendFn = func(req *SendMessageRequest) (*Message, error) {
		return nil, ErrInternalServer
	}
	pane := openedPane(t, api, feed)

	clientMsgId, err := pane.SendText(context.Background(), "will fail")
	require.NoError(t, err, "optimistic send itself does not fail")

	assert.Eventually(t, func() bool {
		msgs := pane.Messages()
		return len(msgs) == 1 && msgs[0].Status == MsgStatusFailed
	}, time.Second, 10*time.Millisecond)

	t.Run("retry keeps the original client_msg_id", func(t *testing.T) {
		var retriedWith string
		var mu sync.Mutex
		api.mu.Lock()
		api.sendFn = func(req *SendMessageRequest) (*Message, error) {
			mu.Lock()
			retriedWith = req.ClientMsgId
			mu.Unlock()
			return ackSend("me")(req)
		}
		api.mu.Unlock()

		require.NoError(t, pane.Retry(context.Background(), clientMsgId))

		assert.Eventually(t, func() bool {
			msgs := pane.Messages()
			return len(msgs) == 1 && msgs[0].Status == MsgStatusSent
		}, time.Second, 10*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, clientMsgId, retriedWith)
	})

	t.Run("retry of an unknown or sent message fails", func(t *testing.T) {
		assert.Error(t, pane.Retry(context.Background(), "unknown"))
		assert.Error(t, pane.Retry(context.Background(), clientMsgId), "already sent")
	})
}

func TestPane_IncomingMessageMarksRead(t *testing.T) {
	api := &fakePaneAPI{}
	feed := newFakeFeed()
	pane := openedPane(t, api, feed)

	before := api.markReadCount()
	feed.emit(messageEvent(t, &Message{
		Id:             "m_in",
		ConversationId: "dc_me:peer",
		SenderId:       "peer",
		Body:           "incoming",
		CreatedAt:      300,
	}))

	msgs := pane.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m_in", msgs[0].Id)

	assert.Eventually(t, func() bool {
		return api.markReadCount() > before
	}, time.Second, 10*time.Millisecond, "an open pane reads what arrives")

	t.Run("duplicate event is dropped", func(t *testing.T) {
		feed.emit(messageEvent(t, &Message{
			Id:             "m_in",
			ConversationId: "dc_me:peer",
			SenderId:       "peer",
			Body:           "incoming",
			CreatedAt:      300,
		}))
		assert.Len(t, pane.Messages(), 1)
	})
}

func TestPane_LoadOlder(t *testing.T) {
	api := &fakePaneAPI{
		history: []*Message{
			{Id: "m3", ConversationId: "dc_me:peer", SenderId: "peer", Body: "three", CreatedAt: 300},
		},
		older: []*Message{
			{Id: "m1", ConversationId: "dc_me:peer", SenderId: "peer", Body: "one", CreatedAt: 100},
			{Id: "m2", ConversationId: "dc_me:peer", SenderId: "peer", Body: "two", CreatedAt: 200},
			// Overlap with what is already loaded must not duplicate
			{Id: "m3", ConversationId: "dc_me:peer", SenderId: "peer", Body: "three", CreatedAt: 300},
		},
	}
	feed := newFakeFeed()
	pane := openedPane(t, api, feed)

	require.NoError(t, pane.LoadOlder(context.Background()))

	msgs := pane.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].Id)
	assert.Equal(t, "m2", msgs[1].Id)
	assert.Equal(t, "m3", msgs[2].Id)
}

func TestPane_LoadOlderWithNoHistory(t *testing.T) {
	api := &fakePaneAPI{}
	feed := newFakeFeed()
	pane := openedPane(t, api, feed)

	assert.NoError(t, pane.LoadOlder(context.Background()), "nothing loaded yet is a no-op")
	assert.Empty(t, pane.Messages())
}

func TestPane_SendAttachment(t *testing.T) {
	t.Run("upload failure keeps the draft", func(t *testing.T) {
		api := &fakePaneAPI{uploadErr: ErrInternalServer}
		feed := newFakeFeed()
		pane := openedPane(t, api, feed)

		_, err := pane.SendAttachment(context.Background(), "a.png", "image/png", strings.NewReader("data"), MsgKindImage, "")
		assert.Error(t, err)
		assert.Empty(t, pane.Messages(), "no placeholder renders on upload failure")
	})

	t.Run("upload then send", func(t *testing.T) {
		api := &fakePaneAPI{sendFn: ackSend("me")}
		feed := newFakeFeed()
		pane := openedPane(t, api, feed)

		_, err := pane.SendAttachment(context.Background(), "a.png", "image/png", strings.NewReader("data"), MsgKindImage, "look")
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			msgs := pane.Messages()
			return len(msgs) == 1 && msgs[0].Status == MsgStatusSent
		}, time.Second, 10*time.Millisecond)

		msgs := pane.Messages()
		assert.Equal(t, "http://store/a.png", msgs[0].AttachmentURL)
		assert.Equal(t, "a.png", msgs[0].AttachmentName)
		assert.Equal(t, "look", msgs[0].Body)
	})
}

func TestPane_ReadEventFromOtherSession(t *testing.T) {
	api := &fakePaneAPI{}
	feed := newFakeFeed()
	pane := openedPane(t, api, feed)

	watermark := pane.LastReadAt() + 60_000
	feed.emit(readEvent(t, "dc_me:peer", "me", watermark))
	assert.Equal(t, watermark, pane.LastReadAt())

	t.Run("another user's read event is ignored", func(t *testing.T) {
		feed.emit(readEvent(t, "dc_me:peer", "peer", watermark+60_000))
		assert.Equal(t, watermark, pane.LastReadAt())
	})

	t.Run("stale watermark does not regress", func(t *testing.T) {
		feed.emit(readEvent(t, "dc_me:peer", "me", watermark-1))
		assert.Equal(t, watermark, pane.LastReadAt())
	})
}

// blockingPaneAPI lets a test hold the poll-backstop history fetch open
type blockingPaneAPI struct {
	*fakePaneAPI
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingPaneAPI) GetHistory(ctx context.Context, conversationId string, limit int) ([]*Message, error) {
	if b.calls.Add(1) == 1 {
		return b.fakePaneAPI.GetHistory(ctx, conversationId, limit)
	}
	close(b.entered)
	<-b.release
	return []*Message{
		{Id: "m_late", ConversationId: conversationId, SenderId: "peer", Body: "late", CreatedAt: 900},
	}, nil
}

func TestPane_StopDuringPollRefreshDiscardsResult(t *testing.T) {
	api := &blockingPaneAPI{
		fakePaneAPI: &fakePaneAPI{},
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	feed := newFakeFeed()

	var changes atomic.Int32
	pane := NewPane(api, feed, "dc_me:peer", "me")
	pane.OnChange(func() { changes.Add(1) })
	require.NoError(t, pane.Open(context.Background()))

	// Let a poll-backstop refetch get past the API call, then stop the
	// pane while the response is still in flight.
	feed.emit(&Event{Type: EventPollTick})
	select {
	case <-api.entered:
	case <-time.After(time.Second):
		t.Fatal("poll refresh never reached the API")
	}

	pane.Stop()
	before := changes.Load()
	close(api.release)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, changes.Load(), "no OnChange after Stop")
	assert.Empty(t, pane.Messages(), "stale refresh result is discarded")
}

func TestPane_PollTickMergesMissedMessages(t *testing.T) {
	api := &fakePaneAPI{}
	feed := newFakeFeed()
	pane := openedPane(t, api, feed)

	// A message lands server-side without a feed event
	api.mu.Lock()
	api.history = []*Message{
		{Id: "m_missed", ConversationId: "dc_me:peer", SenderId: "peer", Body: "missed", CreatedAt: 400},
	}
	api.mu.Unlock()

	feed.emit(&Event{Type: EventPollTick})

	assert.Eventually(t, func() bool {
		msgs := pane.Messages()
		return len(msgs) == 1 && msgs[0].Id == "m_missed"
	}, time.Second, 10*time.Millisecond, "poll backstop merges what the feed missed")
}
