package sdk

import (
	"context"
	"strconv"
)

// SendMessage sends a message. The client_msg_id makes retries idempotent.
func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*Message, error) {
	var result Message
	if err := c.post(ctx, "/msg/send", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendText is a convenience method to send a text message
func (c *Client) SendText(ctx context.Context, clientMsgId, conversationId, body string) (*Message, error) {
	return c.SendMessage(ctx, &SendMessageRequest{
		ConversationId: conversationId,
		ClientMsgId:    clientMsgId,
		Kind:           MsgKindText,
		Body:           body,
	})
}

// GetHistory gets the newest page of a conversation's messages, ascending by
// created_at
func (c *Client) GetHistory(ctx context.Context, conversationId string, limit int) ([]*Message, error) {
	params := map[string]string{"conversation_id": conversationId}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var result []*Message
	if err := c.get(ctx, "/msg/history", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetOlder gets messages strictly older than the cursor timestamp, ascending
// by created_at
func (c *Client) GetOlder(ctx context.Context, conversationId string, before int64, limit int) ([]*Message, error) {
	params := map[string]string{
		"conversation_id": conversationId,
		"before":          strconv.FormatInt(before, 10),
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var result []*Message
	if err := c.get(ctx, "/msg/older", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}
