package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat represents a direct or group conversation. Direct chats always have
// exactly two members; groups carry a name and an immutable admin.
type Chat struct {
	ID              uuid.UUID   `json:"chatId"`
	IsGroup         bool        `json:"isGroup"`
	GroupName       string      `json:"groupName,omitempty"`
	GroupAdmin      *uuid.UUID  `json:"groupAdmin,omitempty"`
	MemberIDs       []uuid.UUID `json:"-"`
	LatestMessageID *string     `json:"-"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// HasMember reports whether the given user belongs to the chat.
func (c *Chat) HasMember(userID uuid.UUID) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
