package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID `json:"userId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Image        string    `json:"userImage"`
	CreatedAt    time.Time `json:"joined"`
	UpdatedAt    time.Time `json:"-"`
}
