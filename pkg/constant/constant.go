package constant

// Message kinds
const (
	MsgKindText  = 1
	MsgKindImage = 2
	MsgKindVideo = 3
	MsgKindFile  = 4
)

// Membership status
const (
	MemberStatusNormal = 0
	MemberStatusLeft   = 1
)

// Membership role levels
const (
	RoleLevelMember = 0
	RoleLevelAdmin  = 1
	RoleLevelOwner  = 2
)

// Online status
const (
	StatusOffline = 0
	StatusOnline  = 1
)

// Notification categories
const (
	NotifyCategoryMessage = "message"
	NotifyCategoryMention = "mention"
	NotifyCategorySystem  = "system"
)

// Feed event types pushed over the change feed
const (
	EventMessageNew       = "message.new"
	EventConversationRead = "conversation.read"
	EventNotificationNew  = "notification.new"
)

// Conversation id prefixes
const (
	DirectConversationPrefix = "dc_"
	GroupConversationPrefix  = "gc_"
)

// LobbyGroupId identifies the well-known global room. It always exists and
// every user may join it.
const LobbyGroupId = "lobby"

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyToken  = "token:%s"       // token:{user_id}
	redisKeyOnline = "online:%s"      // online:{user_id}
	redisKeyFeed   = "feed:broadcast" // pub/sub channel for feed fan-out
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "cove:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyToken() string  { return redisKeyPrefix + redisKeyToken }
func RedisKeyOnline() string { return redisKeyPrefix + redisKeyOnline }
func RedisKeyFeed() string   { return redisKeyPrefix + redisKeyFeed }
