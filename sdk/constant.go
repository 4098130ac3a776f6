package sdk

import "time"

// Message kinds
const (
	MsgKindText  = 1
	MsgKindImage = 2
	MsgKindVideo = 3
	MsgKindFile  = 4
)

// Membership role levels
const (
	RoleLevelMember = 0
	RoleLevelAdmin  = 1
	RoleLevelOwner  = 2
)

// Feed event types
const (
	EventMessageNew       = "message.new"
	EventConversationRead = "conversation.read"
	EventNotificationNew  = "notification.new"
)

// EventPollTick is a synthetic event the feed dispatches on its poll
// backstop timer. It never comes from the server.
const EventPollTick = "feed.poll"

// Notification categories
const (
	NotifyCategoryMessage = "message"
	NotifyCategoryMention = "mention"
	NotifyCategorySystem  = "system"
)

// DefaultPollInterval is the backstop poll cadence used when the caller does
// not set one. Polling runs even while the feed connection is healthy, so a
// silently dead socket costs at most one interval of staleness.
const DefaultPollInterval = 30 * time.Second

// DefaultPageSize is the default page size for list endpoints
const DefaultPageSize = 50

// BadgeMax is the largest count a badge renders before clamping to "99+"
const BadgeMax = 99
