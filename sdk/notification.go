package sdk

import (
	"context"
	"strconv"
)

// GetNotifications gets one page of notifications, newest first
func (c *Client) GetNotifications(ctx context.Context, offset, limit int) ([]*Notification, error) {
	params := map[string]string{}
	if offset > 0 {
		params["offset"] = strconv.Itoa(offset)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var result []*Notification
	if err := c.get(ctx, "/notification/list", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetNotificationUnreadCount counts unread notifications
func (c *Client) GetNotificationUnreadCount(ctx context.Context) (int64, error) {
	var result UnreadCountResponse
	if err := c.get(ctx, "/notification/unread_count", nil, &result); err != nil {
		return 0, err
	}
	return result.UnreadCount, nil
}

// MarkNotificationsRead marks specific notifications as read
func (c *Client) MarkNotificationsRead(ctx context.Context, ids []string) error {
	req := &MarkNotificationsReadRequest{Ids: ids}
	return c.post(ctx, "/notification/mark_read", req, nil)
}

// MarkAllNotificationsRead marks all notifications as read
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	req := &MarkNotificationsReadRequest{All: true}
	return c.post(ctx, "/notification/mark_read", req, nil)
}
