package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/Aditya1056/interact-backend/internal/models"
)

// MemoryStore is an in-memory DataStore used by tests and for throwaway
// development runs. Not suitable for production.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	chats    map[uuid.UUID]models.Chat
	messages map[string]models.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]models.User),
		chats:    make(map[uuid.UUID]models.Chat),
		messages: make(map[string]models.Message),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		u := user
		return &u, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []models.User
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (s *MemoryStore) SearchUsersByUsername(ctx context.Context, fragment string, exclude uuid.UUID) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(fragment)
	var users []models.User
	for _, user := range s.users {
		if user.ID == exclude {
			continue
		}
		if strings.Contains(strings.ToLower(user.Username), needle) {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemoryStore) UpdateUserImage(ctx context.Context, id uuid.UUID, image string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		user.Image = image
		user.UpdatedAt = time.Now()
		s.users[id] = user
	}
	return nil
}

func (s *MemoryStore) CreateChat(ctx context.Context, chat *models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	s.chats[chat.ID] = cloneChat(*chat)
	return nil
}

func (s *MemoryStore) GetChat(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if chat, ok := s.chats[id]; ok {
		c := cloneChat(chat)
		return &c, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindChatByMembers(ctx context.Context, memberIDs []uuid.UUID) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[uuid.UUID]bool, len(memberIDs))
	for _, id := range memberIDs {
		want[id] = true
	}
	for _, chat := range s.chats {
		if len(chat.MemberIDs) != len(want) {
			continue
		}
		match := true
		for _, id := range chat.MemberIDs {
			if !want[id] {
				match = false
				break
			}
		}
		if match {
			c := cloneChat(chat)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListChatsByMember(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chats []models.Chat
	for _, chat := range s.chats {
		if (&chat).HasMember(userID) {
			chats = append(chats, cloneChat(chat))
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].UpdatedAt.After(chats[j].UpdatedAt) })
	return chats, nil
}

func (s *MemoryStore) AddChatMembers(ctx context.Context, chatID uuid.UUID, memberIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	for _, id := range memberIDs {
		if !(&chat).HasMember(id) {
			chat.MemberIDs = append(chat.MemberIDs, id)
		}
	}
	s.chats[chatID] = chat
	return nil
}

func (s *MemoryStore) RemoveChatMember(ctx context.Context, chatID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	members := chat.MemberIDs[:0]
	for _, id := range chat.MemberIDs {
		if id != userID {
			members = append(members, id)
		}
	}
	chat.MemberIDs = members
	s.chats[chatID] = chat
	return nil
}

func (s *MemoryStore) SetLatestMessage(ctx context.Context, chatID uuid.UUID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat, ok := s.chats[chatID]; ok {
		id := messageID
		chat.LatestMessageID = &id
		chat.UpdatedAt = time.Now()
		s.chats[chatID] = chat
	}
	return nil
}

func (s *MemoryStore) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
	for id, msg := range s.messages {
		if msg.ChatID == chatID {
			delete(s.messages, id)
		}
	}
	return nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages[msg.ID] = *msg
	return nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if msg, ok := s.messages[id]; ok {
		m := msg
		return &m, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var messages []models.Message
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			messages = append(messages, msg)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func cloneChat(chat models.Chat) models.Chat {
	chat.MemberIDs = append([]uuid.UUID(nil), chat.MemberIDs...)
	if chat.LatestMessageID != nil {
		id := *chat.LatestMessageID
		chat.LatestMessageID = &id
	}
	return chat
}
