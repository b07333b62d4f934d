package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a single chat message. Content is held as ciphertext at
// rest and decrypted on every read path. Messages are immutable once created;
// they are only removed in bulk when a group chat is deleted.
type Message struct {
	ID        string    `json:"messageId"` // ULID, time-ordered
	ChatID    uuid.UUID `json:"chatId"`
	SenderID  uuid.UUID `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
