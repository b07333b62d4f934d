package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/Aditya1056/interact-backend/internal/models"
)

// DataStore defines the interface for persistent storage of users, chats and
// messages. PostgresStore, SQLiteStore and MemoryStore implement it.
//
// Lookup methods return (nil, nil) when no row matches; only infrastructure
// failures surface as errors.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	SearchUsersByUsername(ctx context.Context, fragment string, exclude uuid.UUID) ([]models.User, error)
	UpdateUserImage(ctx context.Context, id uuid.UUID, image string) error

	// Chat operations
	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChat(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	// FindChatByMembers matches a chat whose member set equals the given set
	// exactly (unordered, equal size).
	FindChatByMembers(ctx context.Context, memberIDs []uuid.UUID) (*models.Chat, error)
	ListChatsByMember(ctx context.Context, userID uuid.UUID) ([]models.Chat, error)
	AddChatMembers(ctx context.Context, chatID uuid.UUID, memberIDs []uuid.UUID) error
	RemoveChatMember(ctx context.Context, chatID, userID uuid.UUID) error
	SetLatestMessage(ctx context.Context, chatID uuid.UUID, messageID string) error
	// DeleteChat removes a chat along with its membership rows and messages.
	DeleteChat(ctx context.Context, chatID uuid.UUID) error

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]models.Message, error)
}
