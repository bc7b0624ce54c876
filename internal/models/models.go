package models

import "time"

// User represents an account able to sign in to dateloop.
type User struct {
	ID        string
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the public identity record of a user. Its ID equals the owning User ID.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	Bio       string    `json:"bio"`
	AvatarURL *string   `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Friend request states. Accepted and rejected are terminal.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// FriendEdge is a directed friend request from UserID to FriendID.
type FriendEdge struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	FriendID    string     `json:"friendId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

// Date is the time and place a post refers to.
type Date struct {
	ID        string    `json:"id"`
	DateTime  time.Time `json:"datetime"`
	Location  string    `json:"location"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Post is a published date plan. Every post references exactly one Date.
type Post struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	DateID      string    `json:"dateId"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PostRecord is a post joined with its author profile and owning date.
type PostRecord struct {
	Post
	Author Profile
	Date   Date
}

// Like records that UserID likes PostID. At most one row exists per pair.
type Like struct {
	PostID    string
	UserID    string
	CreatedAt time.Time
}

// Comment is an append-only remark on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentRecord is a comment joined with its author profile.
type CommentRecord struct {
	Comment
	Author Profile `json:"author"`
}

// DateInvitation asks ReceiverID out. Status moves from pending to accepted or rejected, never back.
type DateInvitation struct {
	ID          string     `json:"id"`
	SenderID    string     `json:"senderId"`
	ReceiverID  string     `json:"receiverId"`
	DateTime    time.Time  `json:"dateTime"`
	Location    string     `json:"location"`
	Notes       string     `json:"notes"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

// Challenge is a task attached to a date invitation.
type Challenge struct {
	ID          string    `json:"id"`
	DateID      string    `json:"dateId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"isCompleted"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Message is a direct message between two users.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	IsRead     bool      `json:"isRead"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
