package sdk

import (
	"context"
	"strconv"
)

// GetConversationList gets one page of the viewer's conversations, most
// recently active first
func (c *Client) GetConversationList(ctx context.Context, offset, limit int) ([]*Conversation, error) {
	params := map[string]string{}
	if offset > 0 {
		params["offset"] = strconv.Itoa(offset)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var result []*Conversation
	if err := c.get(ctx, "/conversation/list", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetConversation gets a specific conversation
func (c *Client) GetConversation(ctx context.Context, conversationId string) (*Conversation, error) {
	params := map[string]string{"conversation_id": conversationId}
	var result Conversation
	if err := c.get(ctx, "/conversation/info", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OpenDirect opens (or reuses) the direct conversation with a peer
func (c *Client) OpenDirect(ctx context.Context, peerId string) (*Conversation, error) {
	req := &OpenDirectRequest{PeerId: peerId}
	var result Conversation
	if err := c.post(ctx, "/conversation/direct", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateGroup creates a group conversation with the caller as owner
func (c *Client) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*Conversation, error) {
	var result Conversation
	if err := c.post(ctx, "/conversation/group", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// JoinConversation joins a group conversation
func (c *Client) JoinConversation(ctx context.Context, conversationId string) (*Conversation, error) {
	req := &ConversationIdRequest{ConversationId: conversationId}
	var result Conversation
	if err := c.post(ctx, "/conversation/join", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LeaveConversation leaves a group conversation
func (c *Client) LeaveConversation(ctx context.Context, conversationId string) error {
	req := &ConversationIdRequest{ConversationId: conversationId}
	return c.post(ctx, "/conversation/leave", req, nil)
}

// GetMembers lists active members of a conversation
func (c *Client) GetMembers(ctx context.Context, conversationId string) ([]*Member, error) {
	params := map[string]string{"conversation_id": conversationId}
	var result []*Member
	if err := c.get(ctx, "/conversation/members", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkRead advances the viewer's read watermark and returns the stored value
func (c *Client) MarkRead(ctx context.Context, conversationId string) (int64, error) {
	req := &ConversationIdRequest{ConversationId: conversationId}
	var result MarkReadResponse
	if err := c.post(ctx, "/conversation/mark_read", req, &result); err != nil {
		return 0, err
	}
	return result.LastReadAt, nil
}

// GetTotalUnread gets the viewer's badge count across all conversations
func (c *Client) GetTotalUnread(ctx context.Context) (int64, error) {
	var result UnreadCountResponse
	if err := c.get(ctx, "/conversation/unread_count", nil, &result); err != nil {
		return 0, err
	}
	return result.UnreadCount, nil
}

// EnterLobby resolves the global room, joining on first entry
func (c *Client) EnterLobby(ctx context.Context) (*Conversation, error) {
	var result Conversation
	if err := c.post(ctx, "/room/lobby", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
