package proto

import "time"

// Keepalive sentinels exchanged as bare text frames. A ping is answered
// with a pong and never persisted or routed.
const (
	KeepalivePing = "ping"
	KeepalivePong = "pong"
)

// ChatFrame is an inbound chat message from the client. Exactly one of
// ReceiverID (direct message) or GroupID (group message) must be set.
type ChatFrame struct {
	ReceiverID int64  `json:"receiverId,omitempty"`
	GroupID    int64  `json:"groupId,omitempty"`
	Content    string `json:"content"`
}

// MessageOut is a delivered chat message as written to recipient sessions.
type MessageOut struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId,omitempty"`
	GroupID    int64     `json:"groupId,omitempty"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notification event type discriminators.
const (
	EventFriendRequest         = "friend_request"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendRequestRejected = "friend_request_rejected"
	EventReadReceipt           = "read_receipt"
)

// FriendRequestEvent notifies a user about friend request lifecycle changes.
// RequestID is set only for the initial friend_request event.
type FriendRequestEvent struct {
	Type           string `json:"type"`
	RequestID      int64  `json:"requestId,omitempty"`
	SenderID       int64  `json:"senderId"`
	SenderUsername string `json:"senderUsername"`
}

// ReadReceiptEvent tells the original sender which of their messages were
// just marked read, and by whom.
type ReadReceiptEvent struct {
	Type           string  `json:"type"`
	ReadMessageIDs []int64 `json:"readMessageIds"`
	ReaderID       int64   `json:"readerId"`
}
