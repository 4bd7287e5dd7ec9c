package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Message represents a persisted chat message. Exactly one of ReceiverID
// (direct message) or GroupID (group message) is set. Read only ever
// transitions false -> true.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID *int64
	GroupID    *int64
	Content    string
	Read       bool
	CreatedAt  time.Time
}

// Group represents a chat group.
type Group struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// GroupMember represents group membership.
type GroupMember struct {
	GroupID  int64
	UserID   int64
	IsAdmin  bool
	JoinedAt time.Time
}

// FriendStatus defines friend relationship status.
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
)

// Friend represents a friend request or an accepted friendship.
// Requests are addressed by their numeric ID; UserID is the requester and
// FriendID the addressee.
type Friend struct {
	ID        int64
	UserID    int64
	FriendID  int64
	Status    FriendStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsers lists all registered users.
	ListUsers(ctx context.Context) ([]*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its assigned ID and
	// creation timestamp.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves all direct messages sent or received by a user,
	// oldest first.
	ListMessages(ctx context.Context, userID int64) ([]*Message, error)

	// ListConversation retrieves the direct messages exchanged between two
	// users, oldest first.
	ListConversation(ctx context.Context, userID, friendID int64) ([]*Message, error)

	// ListGroupMessages retrieves all messages sent to a group, oldest first.
	ListGroupMessages(ctx context.Context, groupID int64) ([]*Message, error)

	// MarkConversationRead marks all unread messages from friendID to
	// readerID as read and returns the IDs of messages that transitioned.
	// Already-read messages are untouched, so repeating the call returns
	// an empty slice.
	MarkConversationRead(ctx context.Context, readerID, friendID int64) ([]int64, error)
}

// GroupStore handles group persistence and membership.
type GroupStore interface {
	// CreateGroup creates a group and adds the creator as its admin member.
	CreateGroup(ctx context.Context, name string, creatorID int64) (*Group, error)

	// GetGroupByID retrieves a group by ID.
	GetGroupByID(ctx context.Context, id int64) (*Group, error)

	// AddGroupMember adds a user to a group.
	AddGroupMember(ctx context.Context, groupID, userID int64, isAdmin bool) error

	// IsGroupMember checks if a user belongs to a group.
	IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error)

	// ListGroupMemberIDs returns the user IDs of all members of a group.
	ListGroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error)

	// ListGroupMembers returns the membership records of a group.
	ListGroupMembers(ctx context.Context, groupID int64) ([]*GroupMember, error)

	// ListGroupsForUser lists the groups a user belongs to.
	ListGroupsForUser(ctx context.Context, userID int64) ([]*Group, error)
}

// FriendStore handles friend persistence.
type FriendStore interface {
	// CreateFriendRequest creates a new friend request (pending status).
	CreateFriendRequest(ctx context.Context, userID, friendID int64) (*Friend, error)

	// GetFriendRequestByID retrieves a friend record by its ID.
	GetFriendRequestByID(ctx context.Context, id int64) (*Friend, error)

	// GetFriendship retrieves a friend record between two users, in either
	// direction.
	GetFriendship(ctx context.Context, userID, friendID int64) (*Friend, error)

	// UpdateFriendStatus updates the status of a friend record.
	UpdateFriendStatus(ctx context.Context, id int64, status FriendStatus) error

	// DeleteFriend removes a friend record.
	DeleteFriend(ctx context.Context, id int64) error

	// ListFriends lists friend records involving a user, optionally
	// filtered by status.
	ListFriends(ctx context.Context, userID int64, status *FriendStatus) ([]*Friend, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore
	GroupStore
	FriendStore

	// Close closes the underlying database connection.
	Close() error
}
