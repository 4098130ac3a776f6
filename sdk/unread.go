package sdk

import "strconv"

// IsUnread reports whether a conversation shows an unread indicator for the
// viewer. A conversation is unread when its newest message arrived after the
// viewer's read watermark and was sent by someone else; the viewer's own
// messages never mark a conversation unread.
func IsUnread(conv *Conversation, viewerId string) bool {
	if conv == nil || conv.LastMsgAt == 0 {
		return false
	}
	if conv.LastMsgSender == viewerId {
		return false
	}
	return conv.LastMsgAt > conv.LastReadAt
}

// TotalUnread sums unread counts across conversations
func TotalUnread(convs []*Conversation) int64 {
	var total int64
	for _, conv := range convs {
		total += conv.UnreadCount
	}
	return total
}

// Badge renders a count the way the UI shows it: empty for zero, the number
// up to BadgeMax, then "99+".
func Badge(count int64) string {
	if count <= 0 {
		return ""
	}
	if count > BadgeMax {
		return strconv.Itoa(BadgeMax) + "+"
	}
	return strconv.FormatInt(count, 10)
}
