package tests

import (
	"fmt"
	"strings"
	"testing"
)

// Conversation represents a conversation summary as returned by the API
type Conversation struct {
	Id              string `json:"id"`
	IsGroup         bool   `json:"is_group"`
	Title           string `json:"title"`
	Avatar          string `json:"avatar"`
	CreatorId       string `json:"creator_id"`
	LastMsgId       string `json:"last_msg_id"`
	LastMsgPreview  string `json:"last_msg_preview"`
	LastMsgSenderId string `json:"last_msg_sender_id"`
	LastMsgAt       int64  `json:"last_msg_at"`
	PeerUserId      string `json:"peer_user_id"`
	RoleLevel       int32  `json:"role_level"`
	LastReadAt      int64  `json:"last_read_at"`
	UnreadCount     int64  `json:"unread_count"`
	MemberCount     int64  `json:"member_count"`
	UpdatedAt       int64  `json:"updated_at"`
}

// MemberInfo represents a conversation member
type MemberInfo struct {
	UserId    string `json:"user_id"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar"`
	RoleLevel int32  `json:"role_level"`
}

// OpenDirectRequest represents open direct conversation request
type OpenDirectRequest struct {
	PeerId string `json:"peer_id"`
}

// CreateGroupRequest represents create group request
type CreateGroupRequest struct {
	Title     string   `json:"title"`
	MemberIds []string `json:"member_ids,omitempty"`
}

// ConversationIdRequest carries a conversation id in the body
type ConversationIdRequest struct {
	ConversationId string `json:"conversation_id"`
}

// OpenDirectAndGetId is a helper that opens a direct conversation
func OpenDirectAndGetId(t *testing.T, client *APIClient, peerId string) string {
	t.Helper()
	resp, err := client.POST("/conversation/direct", OpenDirectRequest{PeerId: peerId})
	if err != nil {
		t.Fatalf("open direct failed: %v", err)
	}
	AssertSuccess(t, resp, "open direct should succeed")

	var conv Conversation
	if err := resp.ParseData(&conv); err != nil {
		t.Fatalf("parse conversation failed: %v", err)
	}
	return conv.Id
}

// CreateGroupAndGetId is a helper that creates a group conversation
func CreateGroupAndGetId(t *testing.T, client *APIClient, title string, memberIds []string) string {
	t.Helper()
	resp, err := client.POST("/conversation/group", CreateGroupRequest{Title: title, MemberIds: memberIds})
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	AssertSuccess(t, resp, "create group should succeed")

	var conv Conversation
	if err := resp.ParseData(&conv); err != nil {
		t.Fatalf("parse conversation failed: %v", err)
	}
	return conv.Id
}

func TestConversation_OpenDirect(t *testing.T) {
	clientA, _, userA := RegisterAndLogin(t, generateEmail("direct_a"), "Direct A", "password123")
	clientB, _, userB := RegisterAndLogin(t, generateEmail("direct_b"), "Direct B", "password123")

	var firstId string

	t.Run("open direct conversation", func(t *testing.T) {
		resp, err := clientA.POST("/conversation/direct", OpenDirectRequest{PeerId: userB})
		if err != nil {
			t.Fatalf("open direct failed: %v", err)
		}
		AssertSuccess(t, resp, "open direct should succeed")

		var conv Conversation
		if err := resp.ParseData(&conv); err != nil {
			t.Fatalf("parse conversation failed: %v", err)
		}

		if !strings.HasPrefix(conv.Id, "dc_") {
			t.Errorf("direct conversation id should have dc_ prefix, got %s", conv.Id)
		}
		if conv.IsGroup {
			t.Error("direct conversation should not be a group")
		}
		if conv.PeerUserId != userB {
			t.Errorf("expected peer_user_id=%s, got %s", userB, conv.PeerUserId)
		}
		firstId = conv.Id
	})

	t.Run("open direct is idempotent from either side", func(t *testing.T) {
		resp, err := clientB.POST("/conversation/direct", OpenDirectRequest{PeerId: userA})
		if err != nil {
			t.Fatalf("open direct failed: %v", err)
		}
		AssertSuccess(t, resp, "open direct should succeed")

		var conv Conversation
		if err := resp.ParseData(&conv); err != nil {
			t.Fatalf("parse conversation failed: %v", err)
		}

		if conv.Id != firstId {
			t.Errorf("both directions should resolve to the same conversation: %s vs %s", conv.Id, firstId)
		}
		if conv.PeerUserId != userA {
			t.Errorf("expected peer_user_id=%s, got %s", userA, conv.PeerUserId)
		}
	})

	t.Run("open direct with self", func(t *testing.T) {
		resp, err := clientA.POST("/conversation/direct", OpenDirectRequest{PeerId: userA})
		if err != nil {
			t.Fatalf("open direct failed: %v", err)
		}
		AssertError(t, resp, 3006, "should reject a self conversation")
	})

	t.Run("open direct with unknown peer", func(t *testing.T) {
		resp, err := clientA.POST("/conversation/direct", OpenDirectRequest{PeerId: "no_such_user"})
		if err != nil {
			t.Fatalf("open direct failed: %v", err)
		}
		AssertError(t, resp, 2005, "should return user not found")
	})
}

func TestConversation_Group(t *testing.T) {
	ownerClient, _, _ := RegisterAndLogin(t, generateEmail("group_owner"), "Group Owner", "password123")
	memberClient, _, memberId := RegisterAndLogin(t, generateEmail("group_member"), "Group Member", "password123")
	joinerClient, _, _ := RegisterAndLogin(t, generateEmail("group_joiner"), "Group Joiner", "password123")

	groupId := CreateGroupAndGetId(t, ownerClient, "Test Group", []string{memberId})

	if !strings.HasPrefix(groupId, "gc_") {
		t.Errorf("group conversation id should have gc_ prefix, got %s", groupId)
	}

	t.Run("owner role is set", func(t *testing.T) {
		resp, err := ownerClient.GET("/conversation/info?conversation_id=" + groupId)
		if err != nil {
			t.Fatalf("get conversation failed: %v", err)
		}
		AssertSuccess(t, resp, "get conversation should succeed")

		var conv Conversation
		if err := resp.ParseData(&conv); err != nil {
			t.Fatalf("parse conversation failed: %v", err)
		}
		if conv.RoleLevel != 2 {
			t.Errorf("expected owner role level 2, got %d", conv.RoleLevel)
		}
		if conv.MemberCount != 2 {
			t.Errorf("expected member_count=2, got %d", conv.MemberCount)
		}
	})

	t.Run("third user joins", func(t *testing.T) {
		resp, err := joinerClient.POST("/conversation/join", ConversationIdRequest{ConversationId: groupId})
		if err != nil {
			t.Fatalf("join failed: %v", err)
		}
		AssertSuccess(t, resp, "join should succeed")

		var conv Conversation
		if err := resp.ParseData(&conv); err != nil {
			t.Fatalf("parse conversation failed: %v", err)
		}
		if conv.MemberCount != 3 {
			t.Errorf("expected member_count=3, got %d", conv.MemberCount)
		}
	})

	t.Run("join again is a no-op", func(t *testing.T) {
		resp, err := joinerClient.POST("/conversation/join", ConversationIdRequest{ConversationId: groupId})
		if err != nil {
			t.Fatalf("join failed: %v", err)
		}
		AssertSuccess(t, resp, "repeated join should succeed")
	})

	t.Run("member list", func(t *testing.T) {
		resp, err := memberClient.GET("/conversation/members?conversation_id=" + groupId)
		if err != nil {
			t.Fatalf("get members failed: %v", err)
		}
		AssertSuccess(t, resp, "get members should succeed")

		var members []MemberInfo
		if err := resp.ParseData(&members); err != nil {
			t.Fatalf("parse members failed: %v", err)
		}
		if len(members) != 3 {
			t.Errorf("expected 3 members, got %d", len(members))
		}
	})

	t.Run("member leaves", func(t *testing.T) {
		resp, err := memberClient.POST("/conversation/leave", ConversationIdRequest{ConversationId: groupId})
		if err != nil {
			t.Fatalf("leave failed: %v", err)
		}
		AssertSuccess(t, resp, "leave should succeed")

		// Former member can no longer read members
		resp, err = memberClient.GET("/conversation/members?conversation_id=" + groupId)
		if err != nil {
			t.Fatalf("get members failed: %v", err)
		}
		AssertError(t, resp, 3002, "former member should be rejected")
	})

	t.Run("owner cannot leave own group", func(t *testing.T) {
		resp, err := ownerClient.POST("/conversation/leave", ConversationIdRequest{ConversationId: groupId})
		if err != nil {
			t.Fatalf("leave failed: %v", err)
		}
		AssertError(t, resp, 1007, "owner leave should be rejected")
	})

	t.Run("join direct conversation is rejected", func(t *testing.T) {
		otherClient, _, otherId := RegisterAndLogin(t, generateEmail("group_other"), "Group Other", "password123")
		directId := OpenDirectAndGetId(t, otherClient, memberId)

		resp, err := joinerClient.POST("/conversation/join", ConversationIdRequest{ConversationId: directId})
		if err != nil {
			t.Fatalf("join failed: %v", err)
		}
		AssertError(t, resp, 1007, "joining a direct conversation should be rejected")
		_ = otherId
	})
}

func TestConversation_Lobby(t *testing.T) {
	client, _, _ := RegisterAndLogin(t, generateEmail("lobby"), "Lobby User", "password123")

	var lobbyId string

	t.Run("enter lobby", func(t *testing.T) {
		resp, err := client.POST("/room/lobby", nil)
		if err != nil {
			t.Fatalf("enter lobby failed: %v", err)
		}
		AssertSuccess(t, resp, "enter lobby should succeed")

		var conv Conversation
		if err := resp.ParseData(&conv); err != nil {
			t.Fatalf("parse conversation failed: %v", err)
		}
		if conv.Id != "gc_lobby" {
			t.Errorf("expected lobby id gc_lobby, got %s", conv.Id)
		}
		if !conv.IsGroup {
			t.Error("lobby should be a group conversation")
		}
		lobbyId = conv.Id
	})

	t.Run("enter lobby again resolves the same room", func(t *testing.T) {
		resp, err := client.POST("/room/lobby", nil)
		if err != nil {
			t.Fatalf("enter lobby failed: %v", err)
		}
		AssertSuccess(t, resp, "re-enter lobby should succeed")

		var conv Conversation
		if err := resp.ParseData(&conv); err != nil {
			t.Fatalf("parse conversation failed: %v", err)
		}
		if conv.Id != lobbyId {
			t.Errorf("expected lobby id %s, got %s", lobbyId, conv.Id)
		}
	})

	t.Run("cannot leave the lobby", func(t *testing.T) {
		resp, err := client.POST("/conversation/leave", ConversationIdRequest{ConversationId: lobbyId})
		if err != nil {
			t.Fatalf("leave failed: %v", err)
		}
		AssertError(t, resp, 3007, "leaving the lobby should be rejected")
	})
}

func TestConversation_UnreadAndMarkRead(t *testing.T) {
	senderClient, _, _ := RegisterAndLogin(t, generateEmail("unread_sender"), "Unread Sender", "password123")
	readerClient, _, readerId := RegisterAndLogin(t, generateEmail("unread_reader"), "Unread Reader", "password123")

	conversationId := OpenDirectAndGetId(t, senderClient, readerId)

	// Sender posts three messages
	for i := 0; i < 3; i++ {
		req := SendMessageRequest{
			ConversationId: conversationId,
			ClientMsgId:    generateClientMsgId(),
			Body:           fmt.Sprintf("unread message %d", i),
		}
		resp, err := senderClient.POST("/msg/send", req)
		if err != nil {
			t.Fatalf("send message failed: %v", err)
		}
		AssertSuccess(t, resp, "send message should succeed")
	}

	t.Run("receiver sees unread count", func(t *testing.T) {
		resp, err := readerClient.GET("/conversation/info?conversation_id=" + conversationId)
		if err != nil {
			t.Fatalf("get conversation failed: %v", err)
		}
		AssertSuccess(t, resp, "get conversation should succeed")

		var conv Conversation
		if err := resp.ParseData(&conv); err != nil {
			t.Fatalf("parse conversation failed: %v", err)
		}
		if conv.UnreadCount != 3 {
			t.Errorf("expected unread_count=3, got %d", conv.UnreadCount)
		}
		if conv.LastMsgPreview != "unread message 2" {
			t.Errorf("expected preview of the newest message, got %q", conv.LastMsgPreview)
		}
	})

	t.Run("sender sees no unread", func(t *testing.T) {
		resp, err := senderClient.GET("/conversation/info?conversation_id=" + conversationId)
		if err != nil {
			t.Fatalf("get conversation failed: %v", err)
		}
		AssertSuccess(t, resp, "get conversation should succeed")

		var conv Conversation
		if err := resp.ParseData(&conv); err != nil {
			t.Fatalf("parse conversation failed: %v", err)
		}
		if conv.UnreadCount != 0 {
			t.Errorf("sender should have unread_count=0, got %d", conv.UnreadCount)
		}
	})

	t.Run("total unread badge", func(t *testing.T) {
		resp, err := readerClient.GET("/conversation/unread_count")
		if err != nil {
			t.Fatalf("get unread count failed: %v", err)
		}
		AssertSuccess(t, resp, "get unread count should succeed")

		var data struct {
			UnreadCount int64 `json:"unread_count"`
		}
		if err := resp.ParseData(&data); err != nil {
			t.Fatalf("parse unread count failed: %v", err)
		}
		if data.UnreadCount < 3 {
			t.Errorf("expected total unread >= 3, got %d", data.UnreadCount)
		}
	})

	t.Run("mark read clears unread", func(t *testing.T) {
		resp, err := readerClient.POST("/conversation/mark_read", ConversationIdRequest{ConversationId: conversationId})
		if err != nil {
			t.Fatalf("mark read failed: %v", err)
		}
		AssertSuccess(t, resp, "mark read should succeed")

		var data struct {
			LastReadAt int64 `json:"last_read_at"`
		}
		if err := resp.ParseData(&data); err != nil {
			t.Fatalf("parse mark read response failed: %v", err)
		}
		if data.LastReadAt <= 0 {
			t.Error("last_read_at should be a positive timestamp")
		}

		resp, err = readerClient.GET("/conversation/info?conversation_id=" + conversationId)
		if err != nil {
			t.Fatalf("get conversation failed: %v", err)
		}
		AssertSuccess(t, resp, "get conversation should succeed")

		var conv Conversation
		if err := resp.ParseData(&conv); err != nil {
			t.Fatalf("parse conversation failed: %v", err)
		}
		if conv.UnreadCount != 0 {
			t.Errorf("expected unread_count=0 after mark read, got %d", conv.UnreadCount)
		}
		if conv.LastReadAt < conv.LastMsgAt {
			t.Errorf("watermark %d should be at or past the last message %d", conv.LastReadAt, conv.LastMsgAt)
		}
	})

	t.Run("mark read by non-member is rejected", func(t *testing.T) {
		strangerClient, _, _ := RegisterAndLogin(t, generateEmail("unread_stranger"), "Unread Stranger", "password123")
		resp, err := strangerClient.POST("/conversation/mark_read", ConversationIdRequest{ConversationId: conversationId})
		if err != nil {
			t.Fatalf("mark read failed: %v", err)
		}
		AssertError(t, resp, 3002, "non-member mark read should be rejected")
	})
}

func TestConversation_List(t *testing.T) {
	client, _, _ := RegisterAndLogin(t, generateEmail("list_viewer"), "List Viewer", "password123")
	_, _, peer1 := RegisterAndLogin(t, generateEmail("list_peer1"), "List Peer 1", "password123")
	_, _, peer2 := RegisterAndLogin(t, generateEmail("list_peer2"), "List Peer 2", "password123")

	conv1 := OpenDirectAndGetId(t, client, peer1)
	conv2 := OpenDirectAndGetId(t, client, peer2)

	// Message into conv1 makes it the most recently active
	req := SendMessageRequest{
		ConversationId: conv1,
		ClientMsgId:    generateClientMsgId(),
		Body:           "bump",
	}
	resp, err := client.POST("/msg/send", req)
	if err != nil {
		t.Fatalf("send message failed: %v", err)
	}
	AssertSuccess(t, resp, "send message should succeed")

	t.Run("list ordered by recent activity", func(t *testing.T) {
		resp, err := client.GET("/conversation/list")
		if err != nil {
			t.Fatalf("get conversation list failed: %v", err)
		}
		AssertSuccess(t, resp, "get conversation list should succeed")

		var convs []Conversation
		if err := resp.ParseData(&convs); err != nil {
			t.Fatalf("parse conversation list failed: %v", err)
		}
		if len(convs) < 2 {
			t.Fatalf("expected at least 2 conversations, got %d", len(convs))
		}

		pos := map[string]int{}
		for i, conv := range convs {
			pos[conv.Id] = i
		}
		i1, ok1 := pos[conv1]
		i2, ok2 := pos[conv2]
		if !ok1 || !ok2 {
			t.Fatalf("both conversations should appear in the list")
		}
		if i1 > i2 {
			t.Errorf("conversation with the newest message should sort first: %d vs %d", i1, i2)
		}
	})
}
