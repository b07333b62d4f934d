package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/Aditya1056/interact-backend/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// initializes the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		image TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS chats (
		id UUID PRIMARY KEY,
		is_group BOOLEAN NOT NULL DEFAULT FALSE,
		group_name TEXT NOT NULL DEFAULT '',
		group_admin UUID REFERENCES users(id),
		latest_message_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS chat_members (
		chat_id UUID NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id),
		PRIMARY KEY (chat_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id UUID NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		sender_id UUID NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_chat_members_user ON chat_members(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_chats_updated ON chats(updated_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser inserts a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, username, password_hash, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Name, user.Email, user.Username, user.PasswordHash, user.Image, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, username, password_hash, image, created_at, updated_at
		FROM users WHERE `+where,
		arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Image,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = $1", email)
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = $1", username)
}

// GetUsersByIDs retrieves all users whose ID is in the given set.
func (s *PostgresStore) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, username, password_hash, image, created_at, updated_at
		FROM users WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUsers(rows)
}

// SearchUsersByUsername finds users whose username contains the fragment
// (case-insensitive), excluding the given user.
func (s *PostgresStore) SearchUsersByUsername(ctx context.Context, fragment string, exclude uuid.UUID) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, username, password_hash, image, created_at, updated_at
		FROM users
		WHERE username ILIKE '%' || $1 || '%' AND id <> $2
		ORDER BY username
	`, fragment, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUsers(rows)
}

func scanUsers(rows pgx.Rows) ([]models.User, error) {
	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.Username,
			&user.PasswordHash,
			&user.Image,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUserImage updates a user's avatar image.
func (s *PostgresStore) UpdateUserImage(ctx context.Context, id uuid.UUID, image string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET image = $1, updated_at = now() WHERE id = $2
	`, image, id)
	return err
}

// CreateChat inserts a chat and its membership rows in one transaction.
func (s *PostgresStore) CreateChat(ctx context.Context, chat *models.Chat) error {
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO chats (id, is_group, group_name, group_admin, latest_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, $5, $6)
	`, chat.ID, chat.IsGroup, chat.GroupName, chat.GroupAdmin, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return err
	}

	for _, memberID := range chat.MemberIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)
		`, chat.ID, memberID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) chatMembers(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM chat_members WHERE chat_id = $1`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// GetChat retrieves a chat with its member set.
func (s *PostgresStore) GetChat(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	chat := &models.Chat{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, is_group, group_name, group_admin, latest_message_id, created_at, updated_at
		FROM chats WHERE id = $1
	`, id).Scan(
		&chat.ID,
		&chat.IsGroup,
		&chat.GroupName,
		&chat.GroupAdmin,
		&chat.LatestMessageID,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if chat.MemberIDs, err = s.chatMembers(ctx, id); err != nil {
		return nil, err
	}
	return chat, nil
}

// FindChatByMembers matches a chat whose member set equals the given set.
func (s *PostgresStore) FindChatByMembers(ctx context.Context, memberIDs []uuid.UUID) (*models.Chat, error) {
	var chatID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT chat_id FROM chat_members
		GROUP BY chat_id
		HAVING COUNT(*) = $1
		   AND COUNT(*) FILTER (WHERE user_id = ANY($2)) = $1
		LIMIT 1
	`, len(memberIDs), memberIDs).Scan(&chatID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s.GetChat(ctx, chatID)
}

// ListChatsByMember lists a user's chats, newest-updated first.
func (s *PostgresStore) ListChatsByMember(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.is_group, c.group_name, c.group_admin, c.latest_message_id, c.created_at, c.updated_at
		FROM chats c
		JOIN chat_members m ON m.chat_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		if err := rows.Scan(
			&chat.ID,
			&chat.IsGroup,
			&chat.GroupName,
			&chat.GroupAdmin,
			&chat.LatestMessageID,
			&chat.CreatedAt,
			&chat.UpdatedAt,
		); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range chats {
		if chats[i].MemberIDs, err = s.chatMembers(ctx, chats[i].ID); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

// AddChatMembers inserts membership rows, ignoring duplicates.
func (s *PostgresStore) AddChatMembers(ctx context.Context, chatID uuid.UUID, memberIDs []uuid.UUID) error {
	for _, memberID := range memberIDs {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, chatID, memberID)
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveChatMember deletes a membership row.
func (s *PostgresStore) RemoveChatMember(ctx context.Context, chatID, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM chat_members WHERE chat_id = $1 AND user_id = $2
	`, chatID, userID)
	return err
}

// SetLatestMessage points the chat at its newest message and bumps updated_at.
func (s *PostgresStore) SetLatestMessage(ctx context.Context, chatID uuid.UUID, messageID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE chats SET latest_message_id = $1, updated_at = now() WHERE id = $2
	`, messageID, chatID)
	return err
}

// DeleteChat removes a chat; membership rows and messages cascade.
func (s *PostgresStore) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID)
	return err
}

// CreateMessage inserts a message, assigning a ULID and timestamp if unset.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.CreatedAt)
	return err
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, chat_id, sender_id, content, created_at
		FROM messages WHERE id = $1
	`, id).Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListMessagesByChat lists a chat's messages in creation order.
func (s *PostgresStore) ListMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, sender_id, content, created_at
		FROM messages WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
