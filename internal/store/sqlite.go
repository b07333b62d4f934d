package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/Aditya1056/interact-backend/internal/models"
)

// SQLiteStore handles SQLite database operations. It is used when no
// Postgres URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/interact.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/interact.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		image TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		is_group INTEGER NOT NULL DEFAULT 0,
		group_name TEXT NOT NULL DEFAULT '',
		group_admin TEXT,
		latest_message_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_members (
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		PRIMARY KEY (chat_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chat_members_user ON chat_members(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_chats_updated ON chats(updated_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, username, password_hash, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID.String(), user.Name, user.Email, user.Username, user.PasswordHash, user.Image, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := row.Scan(
		&idStr,
		&user.Name,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Image,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return user, nil
}

const userColumns = `id, name, email, username, password_hash, image, created_at, updated_at`

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id.String()))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (s *SQLiteStore) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var idStr string
		if err := rows.Scan(
			&idStr,
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
		if user.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetUsersByIDs retrieves all users whose ID is in the given set.
func (s *SQLiteStore) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := idPlaceholders(ids)
	return s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
}

// SearchUsersByUsername finds users whose username contains the fragment
// (case-insensitive), excluding the given user.
func (s *SQLiteStore) SearchUsersByUsername(ctx context.Context, fragment string, exclude uuid.UUID) ([]models.User, error) {
	pattern := "%" + strings.ToLower(fragment) + "%"
	return s.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE lower(username) LIKE ? AND id <> ?
		ORDER BY username
	`, pattern, exclude.String())
}

// UpdateUserImage updates a user's avatar image.
func (s *SQLiteStore) UpdateUserImage(ctx context.Context, id uuid.UUID, image string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET image = ?, updated_at = ? WHERE id = ?
	`, image, time.Now(), id.String())
	return err
}

// CreateChat inserts a chat and its membership rows in one transaction.
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *models.Chat) error {
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var admin any
	if chat.GroupAdmin != nil {
		admin = chat.GroupAdmin.String()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, is_group, group_name, group_admin, latest_message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?)
	`, chat.ID.String(), chat.IsGroup, chat.GroupName, admin, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return err
	}

	for _, memberID := range chat.MemberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_members (chat_id, user_id) VALUES (?, ?)
		`, chat.ID.String(), memberID.String()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) chatMembers(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM chat_members WHERE chat_id = ?`, chatID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) scanChat(row *sql.Row) (*models.Chat, error) {
	chat := &models.Chat{}
	var idStr string
	var adminStr sql.NullString
	err := row.Scan(
		&idStr,
		&chat.IsGroup,
		&chat.GroupName,
		&adminStr,
		&chat.LatestMessageID,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if chat.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if adminStr.Valid {
		admin, err := uuid.Parse(adminStr.String)
		if err != nil {
			return nil, err
		}
		chat.GroupAdmin = &admin
	}
	return chat, nil
}

const chatColumns = `id, is_group, group_name, group_admin, latest_message_id, created_at, updated_at`

// GetChat retrieves a chat with its member set.
func (s *SQLiteStore) GetChat(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	chat, err := s.scanChat(s.db.QueryRowContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE id = ?`, id.String()))
	if err != nil || chat == nil {
		return chat, err
	}
	if chat.MemberIDs, err = s.chatMembers(ctx, id); err != nil {
		return nil, err
	}
	return chat, nil
}

// FindChatByMembers matches a chat whose member set equals the given set.
func (s *SQLiteStore) FindChatByMembers(ctx context.Context, memberIDs []uuid.UUID) (*models.Chat, error) {
	placeholders, args := idPlaceholders(memberIDs)
	args = append(args, len(memberIDs), len(memberIDs))

	var idStr string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT chat_id FROM chat_members
		GROUP BY chat_id
		HAVING SUM(CASE WHEN user_id IN (%s) THEN 1 ELSE 0 END) = ?
		   AND COUNT(*) = ?
		LIMIT 1
	`, placeholders), args...).Scan(&idStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	chatID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return s.GetChat(ctx, chatID)
}

// ListChatsByMember lists a user's chats, newest-updated first.
func (s *SQLiteStore) ListChatsByMember(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.is_group, c.group_name, c.group_admin, c.latest_message_id, c.created_at, c.updated_at
		FROM chats c
		JOIN chat_members m ON m.chat_id = c.id
		WHERE m.user_id = ?
		ORDER BY c.updated_at DESC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		var idStr string
		var adminStr sql.NullString
		if err := rows.Scan(
			&idStr,
			&chat.IsGroup,
			&chat.GroupName,
			&adminStr,
			&chat.LatestMessageID,
			&chat.CreatedAt,
			&chat.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if chat.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if adminStr.Valid {
			admin, err := uuid.Parse(adminStr.String)
			if err != nil {
				return nil, err
			}
			chat.GroupAdmin = &admin
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
func (s *SQLiteStore) AddChatMembers(ctx context.Context, chatID uuid.UUID, memberIDs []uuid.UUID) error {
	for _, memberID := range memberIDs {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO chat_members (chat_id, user_id) VALUES (?, ?)
		`, chatID.String(), memberID.String())
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveChatMember deletes a membership row.
func (s *SQLiteStore) RemoveChatMember(ctx context.Context, chatID, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM chat_members WHERE chat_id = ? AND user_id = ?
	`, chatID.String(), userID.String())
	return err
}

// SetLatestMessage points the chat at its newest message and bumps updated_at.
func (s *SQLiteStore) SetLatestMessage(ctx context.Context, chatID uuid.UUID, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chats SET latest_message_id = ?, updated_at = ? WHERE id = ?
	`, messageID, time.Now(), chatID.String())
	return err
}

// DeleteChat removes a chat; membership rows and messages cascade.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID.String())
	return err
}

// CreateMessage inserts a message, assigning a ULID and timestamp if unset.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.ChatID.String(), msg.SenderID.String(), msg.Content, msg.CreatedAt)
	return err
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	var chatStr, senderStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, sender_id, content, created_at
		FROM messages WHERE id = ?
	`, id).Scan(&msg.ID, &chatStr, &senderStr, &msg.Content, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if msg.ChatID, err = uuid.Parse(chatStr); err != nil {
		return nil, err
	}
	if msg.SenderID, err = uuid.Parse(senderStr); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessagesByChat lists a chat's messages in creation order.
func (s *SQLiteStore) ListMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, content, created_at
		FROM messages WHERE chat_id = ?
		ORDER BY created_at ASC, id ASC
	`, chatID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var chatStr, senderStr string
		if err := rows.Scan(&msg.ID, &chatStr, &senderStr, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if msg.ChatID, err = uuid.Parse(chatStr); err != nil {
			return nil, err
		}
		if msg.SenderID, err = uuid.Parse(senderStr); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// idPlaceholders builds a "?, ?, ..." list and matching args for an IN clause.
func idPlaceholders(ids []uuid.UUID) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}
	return strings.Join(placeholders, ", "), args
}
