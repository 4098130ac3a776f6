package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opencove/cove/pkg/constant"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// DirectConversationId derives the conversation id for a two-party direct
// conversation. The pair is sorted so both parties derive the same id and a
// second open between the same two users resolves to the existing row.
// Format: dc_{min(userA,userB)}:{max(userA,userB)}
// Uses ":" as separator between userIds to support userIds containing "_"
func DirectConversationId(userA, userB string) string {
	users := []string{userA, userB}
	sort.Strings(users)
	return fmt.Sprintf("%s%s:%s", constant.DirectConversationPrefix, users[0], users[1])
}

// GroupConversationId derives the conversation id for a group
// Format: gc_{groupId}
func GroupConversationId(groupId string) string {
	return fmt.Sprintf("%s%s", constant.GroupConversationPrefix, groupId)
}

// LobbyConversationId returns the id of the global room conversation
func LobbyConversationId() string {
	return GroupConversationId(constant.LobbyGroupId)
}

// IsDirectConversation checks if a conversation id belongs to a direct conversation
func IsDirectConversation(conversationId string) bool {
	return strings.HasPrefix(conversationId, constant.DirectConversationPrefix)
}

// IsGroupConversation checks if a conversation id belongs to a group conversation
func IsGroupConversation(conversationId string) bool {
	return strings.HasPrefix(conversationId, constant.GroupConversationPrefix)
}

// DirectPeerId extracts the other party's user id from a direct conversation id.
// Returns "" when the id is not a direct conversation or me is not a party.
func DirectPeerId(conversationId, me string) string {
	if !IsDirectConversation(conversationId) {
		return ""
	}
	pair := strings.TrimPrefix(conversationId, constant.DirectConversationPrefix)
	a, b, ok := strings.Cut(pair, ":")
	if !ok {
		return ""
	}
	switch me {
	case a:
		return b
	case b:
		return a
	default:
		return ""
	}
}
