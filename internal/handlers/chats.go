package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Aditya1056/interact-backend/internal/apperr"
	"github.com/Aditya1056/interact-backend/internal/api/middleware"
	"github.com/Aditya1056/interact-backend/internal/crypto"
	"github.com/Aditya1056/interact-backend/internal/metrics"
	"github.com/Aditya1056/interact-backend/internal/models"
)

// Group size limits: invitees on top of the creator.
const (
	minGroupInvitees = 2
	maxGroupInvitees = 19
)

// MessageInfo is a message as returned by the API, content decrypted.
type MessageInfo struct {
	MessageID string    `json:"messageId"`
	Sender    uuid.UUID `json:"sender"`
	ChatID    uuid.UUID `json:"chatId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatInfo is a chat as returned by the API, members populated.
type ChatInfo struct {
	ChatID        uuid.UUID    `json:"chatId"`
	IsGroup       bool         `json:"isGroup"`
	GroupName     string       `json:"groupName,omitempty"`
	GroupAdmin    *uuid.UUID   `json:"groupAdmin,omitempty"`
	Users         []UserInfo   `json:"users"`
	LatestMessage *MessageInfo `json:"latestMessage"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// hydrateChat populates a chat's members and decrypts its latest message.
func (h *Handler) hydrateChat(ctx context.Context, chat *models.Chat) (*ChatInfo, error) {
	users, err := h.store.GetUsersByIDs(ctx, chat.MemberIDs)
	if err != nil {
		return nil, err
	}

	info := &ChatInfo{
		ChatID:     chat.ID,
		IsGroup:    chat.IsGroup,
		GroupName:  chat.GroupName,
		GroupAdmin: chat.GroupAdmin,
		Users:      make([]UserInfo, 0, len(users)),
		CreatedAt:  chat.CreatedAt,
		UpdatedAt:  chat.UpdatedAt,
	}
	for i := range users {
		info.Users = append(info.Users, userInfo(&users[i]))
	}

	if chat.LatestMessageID != nil {
		msg, err := h.store.GetMessage(ctx, *chat.LatestMessageID)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			decrypted, err := h.decryptMessage(msg)
			if err != nil {
				return nil, err
			}
			info.LatestMessage = decrypted
		}
	}

	return info, nil
}

func (h *Handler) decryptMessage(msg *models.Message) (*MessageInfo, error) {
	content, err := h.cipher.Decrypt(msg.Content)
	if err != nil {
		return nil, err
	}
	return &MessageInfo{
		MessageID: msg.ID,
		Sender:    msg.SenderID,
		ChatID:    msg.ChatID,
		Content:   content,
		CreatedAt: msg.CreatedAt,
	}, nil
}

// GetChats lists the caller's chats, newest-updated first.
func (h *Handler) GetChats(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())

	chats, err := h.store.ListChatsByMember(r.Context(), callerID)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	infos := make([]*ChatInfo, 0, len(chats))
	for i := range chats {
		info, err := h.hydrateChat(r.Context(), &chats[i])
		if err != nil {
			h.Error(w, r, err)
			return
		}
		infos = append(infos, info)
	}

	h.JSON(w, http.StatusOK, "Chats fetched successfully!", infos)
}

// SearchChats filters the caller's chats by group name or, for direct chats,
// by the other member's name.
func (h *Handler) SearchChats(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())
	term := strings.ToLower(trimmed(r.URL.Query().Get("term")))

	chats, err := h.store.ListChatsByMember(r.Context(), callerID)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	matches := make([]*ChatInfo, 0, len(chats))
	for i := range chats {
		info, err := h.hydrateChat(r.Context(), &chats[i])
		if err != nil {
			h.Error(w, r, err)
			return
		}

		matched := false
		if info.IsGroup {
			matched = strings.Contains(strings.ToLower(info.GroupName), term)
		} else {
			for _, u := range info.Users {
				if u.UserID == callerID {
					continue
				}
				if strings.Contains(strings.ToLower(u.Name), term) {
					matched = true
					break
				}
			}
		}
		if matched {
			matches = append(matches, info)
		}
	}

	h.JSON(w, http.StatusOK, "Searched Chats fetched successfully!", matches)
}

// CreateChatRequest represents the chat creation request body.
type CreateChatRequest struct {
	Users     []uuid.UUID `json:"users"`
	IsGroup   bool        `json:"isGroup"`
	GroupName string      `json:"groupName"`
}

// CreateChat creates a direct or group chat. The caller is always included
// as a member; a second creation with the same member set is a conflict.
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())

	var req CreateChatRequest
	if err := decodeBody(r, &req); err != nil {
		h.Error(w, r, err)
		return
	}

	groupName := trimmed(req.GroupName)

	if req.IsGroup && groupName == "" {
		h.Error(w, r, apperr.Validation("Group name cannot be empty!"))
		return
	}
	if len(req.Users) == 0 {
		h.Error(w, r, apperr.Validation("No users added!"))
		return
	}
	if req.IsGroup && (len(req.Users) < minGroupInvitees || len(req.Users) > maxGroupInvitees) {
		h.Error(w, r, apperr.Validation("Group should contain 2 to 19 participants (excluding you)!"))
		return
	}

	// The caller is always a member; requests that list the caller again or
	// repeat an invitee collapse to the unique set, matching what the
	// membership table can hold.
	members := make([]uuid.UUID, 0, len(req.Users)+1)
	seen := map[uuid.UUID]bool{callerID: true}
	members = append(members, callerID)
	for _, id := range req.Users {
		if seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}

	existing, err := h.store.FindChatByMembers(r.Context(), members)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if existing != nil {
		h.Error(w, r, apperr.Conflict("Chat or group already exists with given members!"))
		return
	}

	chat := &models.Chat{
		ID:        crypto.NewUUIDv7(),
		IsGroup:   req.IsGroup,
		MemberIDs: members,
	}
	if req.IsGroup {
		chat.GroupName = groupName
		admin := callerID
		chat.GroupAdmin = &admin
	}

	if err := h.store.CreateChat(r.Context(), chat); err != nil {
		h.Error(w, r, err)
		return
	}

	h.JSON(w, http.StatusCreated, "Chat created successfully!", map[string]any{"chatId": chat.ID})
}

// AddUsersRequest represents the add-members request body.
type AddUsersRequest struct {
	Users []uuid.UUID `json:"users"`
}

// AddUsersToGroup adds members to a group; admin only.
func (h *Handler) AddUsersToGroup(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())

	chatID, err := uuid.Parse(chi.URLParam(r, "groupId"))
	if err != nil {
		h.Error(w, r, apperr.Validation("Invalid group ID!"))
		return
	}

	var req AddUsersRequest
	if err := decodeBody(r, &req); err != nil {
		h.Error(w, r, err)
		return
	}
	if len(req.Users) == 0 {
		h.Error(w, r, apperr.Validation("No users added!"))
		return
	}

	chat, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if chat == nil {
		h.Error(w, r, apperr.NotFound("Chat not found!"))
		return
	}
	if chat.GroupAdmin == nil || *chat.GroupAdmin != callerID {
		h.Error(w, r, apperr.Forbidden("You are not authorized to add participants!"))
		return
	}

	if err := h.store.AddChatMembers(r.Context(), chatID, req.Users); err != nil {
		h.Error(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, "Users added successfully!", nil)
}

// RemoveUserFromGroup removes a member from a group. A member may remove
// themself; anyone else may only be removed by the admin. The admin can
// never be removed.
func (h *Handler) RemoveUserFromGroup(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())

	chatID, err := uuid.Parse(chi.URLParam(r, "groupId"))
	if err != nil {
		h.Error(w, r, apperr.Validation("Invalid group ID!"))
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.Error(w, r, apperr.Validation("Invalid user ID!"))
		return
	}

	chat, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if chat == nil {
		h.Error(w, r, apperr.NotFound("Chat not found!"))
		return
	}
	if !chat.IsGroup {
		h.Error(w, r, apperr.NotFound("Group not found!"))
		return
	}
	if chat.GroupAdmin != nil && userID == *chat.GroupAdmin {
		h.Error(w, r, apperr.Validation("Admin cannot be deleted!"))
		return
	}
	if callerID != userID && (chat.GroupAdmin == nil || callerID != *chat.GroupAdmin) {
		h.Error(w, r, apperr.Forbidden("You are not allowed to delete this user!"))
		return
	}
	if !chat.HasMember(userID) {
		h.Error(w, r, apperr.Forbidden("User is not a member of the group!"))
		return
	}

	if err := h.store.RemoveChatMember(r.Context(), chatID, userID); err != nil {
		h.Error(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, "User removed successfully!", nil)
}

// DeleteGroup deletes a group chat and all of its messages; admin only.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())

	chatID, err := uuid.Parse(chi.URLParam(r, "groupId"))
	if err != nil {
		h.Error(w, r, apperr.Validation("Invalid group ID!"))
		return
	}

	chat, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if chat == nil {
		h.Error(w, r, apperr.NotFound("Chat not found!"))
		return
	}
	if !chat.IsGroup {
		h.Error(w, r, apperr.Validation("Only groups can be deleted!"))
		return
	}
	if chat.GroupAdmin == nil || *chat.GroupAdmin != callerID {
		h.Error(w, r, apperr.Forbidden("You are not authorized to delete this group!"))
		return
	}

	if err := h.store.DeleteChat(r.Context(), chatID); err != nil {
		h.Error(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, "Group deleted successfully!", nil)
}

// GetMessages fetches a chat with its decrypted message history; members
// only.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())

	chatID, err := uuid.Parse(chi.URLParam(r, "chatId"))
	if err != nil {
		h.Error(w, r, apperr.Validation("Invalid chat ID!"))
		return
	}

	chat, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if chat == nil {
		h.Error(w, r, apperr.NotFound("Chat not found!"))
		return
	}
	if !chat.HasMember(callerID) {
		h.Error(w, r, apperr.Forbidden("You are not authorized to view this chat!"))
		return
	}

	info, err := h.hydrateChat(r.Context(), chat)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	messages, err := h.store.ListMessagesByChat(r.Context(), chatID)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	decrypted := make([]*MessageInfo, 0, len(messages))
	for i := range messages {
		msg, err := h.decryptMessage(&messages[i])
		if err != nil {
			h.Error(w, r, err)
			return
		}
		decrypted = append(decrypted, msg)
	}

	h.JSON(w, http.StatusOK, "Messages fetched successfully!", map[string]any{
		"messages": decrypted,
		"chat":     info,
	})
}

// CreateMessageRequest represents the post-message request body.
type CreateMessageRequest struct {
	Message string    `json:"message"`
	ChatID  uuid.UUID `json:"chatId"`
}

// CreateMessage posts a message to a chat; members only. Content is
// encrypted at rest and the chat's latest-message pointer is advanced.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())

	var req CreateMessageRequest
	if err := decodeBody(r, &req); err != nil {
		h.Error(w, r, err)
		return
	}

	content := trimmed(req.Message)
	if content == "" || req.ChatID == uuid.Nil {
		h.Error(w, r, apperr.Validation("Invalid message!"))
		return
	}

	chat, err := h.store.GetChat(r.Context(), req.ChatID)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if chat == nil {
		h.Error(w, r, apperr.NotFound("Chat not found!"))
		return
	}
	if !chat.HasMember(callerID) {
		h.Error(w, r, apperr.Forbidden("You are not authorized to message in this chat!"))
		return
	}

	ciphertext, err := h.cipher.Encrypt(content)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	msg := &models.Message{
		ChatID:   req.ChatID,
		SenderID: callerID,
		Content:  ciphertext,
	}
	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		h.Error(w, r, err)
		return
	}

	if err := h.store.SetLatestMessage(r.Context(), req.ChatID, msg.ID); err != nil {
		h.Error(w, r, err)
		return
	}

	chatType := "direct"
	if chat.IsGroup {
		chatType = "group"
	}
	metrics.MessagesPosted.WithLabelValues(chatType).Inc()

	h.JSON(w, http.StatusCreated, "Message created successfully!", map[string]any{"messageId": msg.ID})
}
