package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/Aditya1056/interact-backend/internal/store"
)

func TestCreateDirectChat(t *testing.T) {
	h, ms := newTestHandler(t)
	alice := createUser(t, ms, "Alice", "alice")
	bob := createUser(t, ms, "Bob", "bob")

	rec := doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{
		Users: []uuid.UUID{bob.ID},
	}, nil)
	assertStatus(t, rec, http.StatusCreated)
	assertMessage(t, rec, "Chat created successfully!")
}

func TestCreateChatDuplicateMemberSet(t *testing.T) {
	h, ms := newTestHandler(t)
	alice := createUser(t, ms, "Alice", "alice")
	bob := createUser(t, ms, "Bob", "bob")

	rec := doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{
		Users: []uuid.UUID{bob.ID},
	}, nil)
	assertStatus(t, rec, http.StatusCreated)

	// Same pair from the other side is the same unordered member set.
	rec = doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", bob.ID, CreateChatRequest{
		Users: []uuid.UUID{alice.ID},
	}, nil)
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertMessage(t, rec, "Chat or group already exists with given members!")
}

func TestCreateChatDeduplicatesMembers(t *testing.T) {
	h, ms := newTestHandler(t)
	alice := createUser(t, ms, "Alice", "alice")
	bob := createUser(t, ms, "Bob", "bob")

	// Listing the caller among the invitees, twice over, must still yield
	// one membership row per user.
	rec := doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{
		Users: []uuid.UUID{alice.ID, bob.ID, bob.ID},
	}, nil)
	assertStatus(t, rec, http.StatusCreated)

	_, data := decodeEnvelope(t, rec)
	var created struct {
		ChatID uuid.UUID `json:"chatId"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}

	chat, err := ms.GetChat(context.Background(), created.ChatID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chat.MemberIDs) != 2 {
		t.Fatalf("got %d members, want 2 unique", len(chat.MemberIDs))
	}
	if !chat.HasMember(alice.ID) || !chat.HasMember(bob.ID) {
		t.Fatal("deduplicated member set lost a user")
	}

	// The deduplicated set also participates in duplicate detection.
	rec = doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", bob.ID, CreateChatRequest{
		Users: []uuid.UUID{alice.ID},
	}, nil)
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertMessage(t, rec, "Chat or group already exists with given members!")
}

func TestCreateChatValidation(t *testing.T) {
	h, ms := newTestHandler(t)
	alice := createUser(t, ms, "Alice", "alice")
	bob := createUser(t, ms, "Bob", "bob")

	rec := doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{
		Users:   []uuid.UUID{bob.ID},
		IsGroup: true,
	}, nil)
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertMessage(t, rec, "Group name cannot be empty!")

	rec = doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{}, nil)
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertMessage(t, rec, "No users added!")

	// A group needs at least two invitees.
	rec = doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{
		Users:     []uuid.UUID{bob.ID},
		IsGroup:   true,
		GroupName: "Tiny",
	}, nil)
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertMessage(t, rec, "Group should contain 2 to 19 participants (excluding you)!")

	// And no more than nineteen.
	invitees := make([]uuid.UUID, 20)
	for i := range invitees {
		invitees[i] = uuid.New()
	}
	rec = doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{
		Users:     invitees,
		IsGroup:   true,
		GroupName: "Huge",
	}, nil)
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertMessage(t, rec, "Group should contain 2 to 19 participants (excluding you)!")
}

func seedGroup(t *testing.T, h *Handler, ms *store.MemoryStore) (admin, member, second, outsider uuid.UUID, groupID uuid.UUID) {
	t.Helper()
	a := createUser(t, ms, "Alice", "alice")
	b := createUser(t, ms, "Bob", "bob")
	c := createUser(t, ms, "Carol", "carol")
	d := createUser(t, ms, "Dave", "dave")

	rec := doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", a.ID, CreateChatRequest{
		Users:     []uuid.UUID{b.ID, c.ID},
		IsGroup:   true,
		GroupName: "Weekend Plans",
	}, nil)
	assertStatus(t, rec, http.StatusCreated)

	_, data := decodeEnvelope(t, rec)
	var created struct {
		ChatID uuid.UUID `json:"chatId"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}
	return a.ID, b.ID, c.ID, d.ID, created.ChatID
}

func TestAddUsersToGroupAdminOnly(t *testing.T) {
	h, ms := newTestHandler(t)
	admin, member, _, outsider, groupID := seedGroup(t, h, ms)

	rec := doRequest(t, h.AddUsersToGroup, http.MethodPost, "/api/chats/add-user/"+groupID.String(), member, AddUsersRequest{
		Users: []uuid.UUID{outsider},
	}, map[string]string{"groupId": groupID.String()})
	assertStatus(t, rec, http.StatusForbidden)
	assertMessage(t, rec, "You are not authorized to add participants!")

	rec = doRequest(t, h.AddUsersToGroup, http.MethodPost, "/api/chats/add-user/"+groupID.String(), admin, AddUsersRequest{
		Users: []uuid.UUID{outsider},
	}, map[string]string{"groupId": groupID.String()})
	assertStatus(t, rec, http.StatusOK)
}

func TestRemoveUserFromGroupRules(t *testing.T) {
	h, ms := newTestHandler(t)
	admin, member, second, outsider, groupID := seedGroup(t, h, ms)

	// The admin can never be removed, even by themself.
	rec := doRequest(t, h.RemoveUserFromGroup, http.MethodDelete, "/", admin, nil,
		map[string]string{"groupId": groupID.String(), "userId": admin.String()})
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertMessage(t, rec, "Admin cannot be deleted!")

	// A non-admin cannot remove someone else.
	rec = doRequest(t, h.RemoveUserFromGroup, http.MethodDelete, "/", member, nil,
		map[string]string{"groupId": groupID.String(), "userId": second.String()})
	assertStatus(t, rec, http.StatusForbidden)
	assertMessage(t, rec, "You are not allowed to delete this user!")

	// Removing a non-member is refused.
	rec = doRequest(t, h.RemoveUserFromGroup, http.MethodDelete, "/", admin, nil,
		map[string]string{"groupId": groupID.String(), "userId": outsider.String()})
	assertStatus(t, rec, http.StatusForbidden)
	assertMessage(t, rec, "User is not a member of the group!")

	// A member may leave on their own.
	rec = doRequest(t, h.RemoveUserFromGroup, http.MethodDelete, "/", member, nil,
		map[string]string{"groupId": groupID.String(), "userId": member.String()})
	assertStatus(t, rec, http.StatusOK)
	assertMessage(t, rec, "User removed successfully!")
}

func TestDeleteGroup(t *testing.T) {
	h, ms := newTestHandler(t)
	admin, member, _, _, groupID := seedGroup(t, h, ms)

	// Post a message so deletion has something to cascade over.
	rec := doRequest(t, h.CreateMessage, http.MethodPost, "/api/chats/message", member, CreateMessageRequest{
		Message: "hello all",
		ChatID:  groupID,
	}, nil)
	assertStatus(t, rec, http.StatusCreated)

	rec = doRequest(t, h.DeleteGroup, http.MethodDelete, "/", member, nil,
		map[string]string{"groupId": groupID.String()})
	assertStatus(t, rec, http.StatusForbidden)
	assertMessage(t, rec, "You are not authorized to delete this group!")

	rec = doRequest(t, h.DeleteGroup, http.MethodDelete, "/", admin, nil,
		map[string]string{"groupId": groupID.String()})
	assertStatus(t, rec, http.StatusOK)

	// Chat and message history are gone.
	rec = doRequest(t, h.GetMessages, http.MethodGet, "/", admin, nil,
		map[string]string{"chatId": groupID.String()})
	assertStatus(t, rec, http.StatusNotFound)
	assertMessage(t, rec, "Chat not found!")
}

func TestDeleteDirectChatRefused(t *testing.T) {
	h, ms := newTestHandler(t)
	alice := createUser(t, ms, "Alice", "alice")
	bob := createUser(t, ms, "Bob", "bob")

	rec := doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{
		Users: []uuid.UUID{bob.ID},
	}, nil)
	assertStatus(t, rec, http.StatusCreated)
	_, data := decodeEnvelope(t, rec)
	var created struct {
		ChatID uuid.UUID `json:"chatId"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}

	rec = doRequest(t, h.DeleteGroup, http.MethodDelete, "/", alice.ID, nil,
		map[string]string{"groupId": created.ChatID.String()})
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertMessage(t, rec, "Only groups can be deleted!")
}

func TestCreateAndFetchMessages(t *testing.T) {
	h, ms := newTestHandler(t)
	alice := createUser(t, ms, "Alice", "alice")
	bob := createUser(t, ms, "Bob", "bob")
	eve := createUser(t, ms, "Eve", "eve")

	rec := doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{
		Users: []uuid.UUID{bob.ID},
	}, nil)
	assertStatus(t, rec, http.StatusCreated)
	_, data := decodeEnvelope(t, rec)
	var created struct {
		ChatID uuid.UUID `json:"chatId"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}

	rec = doRequest(t, h.CreateMessage, http.MethodPost, "/api/chats/message", alice.ID, CreateMessageRequest{
		Message: "  hi bob  ",
		ChatID:  created.ChatID,
	}, nil)
	assertStatus(t, rec, http.StatusCreated)

	// Blank content is rejected after trimming.
	rec = doRequest(t, h.CreateMessage, http.MethodPost, "/api/chats/message", alice.ID, CreateMessageRequest{
		Message: "   ",
		ChatID:  created.ChatID,
	}, nil)
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertMessage(t, rec, "Invalid message!")

	// Non-members can neither post nor read.
	rec = doRequest(t, h.CreateMessage, http.MethodPost, "/api/chats/message", eve.ID, CreateMessageRequest{
		Message: "let me in",
		ChatID:  created.ChatID,
	}, nil)
	assertStatus(t, rec, http.StatusForbidden)
	assertMessage(t, rec, "You are not authorized to message in this chat!")

	rec = doRequest(t, h.GetMessages, http.MethodGet, "/", eve.ID, nil,
		map[string]string{"chatId": created.ChatID.String()})
	assertStatus(t, rec, http.StatusForbidden)
	assertMessage(t, rec, "You are not authorized to view this chat!")

	rec = doRequest(t, h.GetMessages, http.MethodGet, "/", bob.ID, nil,
		map[string]string{"chatId": created.ChatID.String()})
	assertStatus(t, rec, http.StatusOK)

	_, data = decodeEnvelope(t, rec)
	var fetched struct {
		Messages []MessageInfo `json:"messages"`
		Chat     ChatInfo      `json:"chat"`
	}
	if err := json.Unmarshal(data, &fetched); err != nil {
		t.Fatal(err)
	}
	if len(fetched.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(fetched.Messages))
	}
	if fetched.Messages[0].Content != "hi bob" {
		t.Fatalf("content = %q, want decrypted trimmed %q", fetched.Messages[0].Content, "hi bob")
	}
	if fetched.Messages[0].Sender != alice.ID {
		t.Fatalf("sender = %s, want %s", fetched.Messages[0].Sender, alice.ID)
	}
	if fetched.Chat.LatestMessage == nil || fetched.Chat.LatestMessage.Content != "hi bob" {
		t.Fatal("latest message not populated with decrypted content")
	}
	if len(fetched.Chat.Users) != 2 {
		t.Fatalf("chat has %d users, want 2", len(fetched.Chat.Users))
	}
}

func TestMessageStoredEncrypted(t *testing.T) {
	h, ms := newTestHandler(t)
	alice := createUser(t, ms, "Alice", "alice")
	bob := createUser(t, ms, "Bob", "bob")

	rec := doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{
		Users: []uuid.UUID{bob.ID},
	}, nil)
	assertStatus(t, rec, http.StatusCreated)
	_, data := decodeEnvelope(t, rec)
	var created struct {
		ChatID uuid.UUID `json:"chatId"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}

	rec = doRequest(t, h.CreateMessage, http.MethodPost, "/api/chats/message", alice.ID, CreateMessageRequest{
		Message: "top secret",
		ChatID:  created.ChatID,
	}, nil)
	assertStatus(t, rec, http.StatusCreated)

	stored, err := ms.ListMessagesByChat(context.Background(), created.ChatID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d stored messages, want 1", len(stored))
	}
	if stored[0].Content == "top secret" {
		t.Fatal("message stored in plaintext")
	}
}

func TestGetChatsNewestFirst(t *testing.T) {
	h, ms := newTestHandler(t)
	alice := createUser(t, ms, "Alice", "alice")
	bob := createUser(t, ms, "Bob", "bob")
	carol := createUser(t, ms, "Carol", "carol")

	first := createDirectChatID(t, h, alice.ID, bob.ID)
	second := createDirectChatID(t, h, alice.ID, carol.ID)

	// Touch the older chat so it becomes the most recent.
	rec := doRequest(t, h.CreateMessage, http.MethodPost, "/api/chats/message", alice.ID, CreateMessageRequest{
		Message: "bump",
		ChatID:  first,
	}, nil)
	assertStatus(t, rec, http.StatusCreated)

	rec = doRequest(t, h.GetChats, http.MethodGet, "/api/chats/", alice.ID, nil, nil)
	assertStatus(t, rec, http.StatusOK)

	_, data := decodeEnvelope(t, rec)
	var chats []ChatInfo
	if err := json.Unmarshal(data, &chats); err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Fatalf("got %d chats, want 2", len(chats))
	}
	if chats[0].ChatID != first || chats[1].ChatID != second {
		t.Fatalf("order = [%s %s], want bumped chat first", chats[0].ChatID, chats[1].ChatID)
	}
	if chats[0].LatestMessage == nil || chats[0].LatestMessage.Content != "bump" {
		t.Fatal("latest message not decrypted in chat list")
	}
}

func TestSearchChats(t *testing.T) {
	h, ms := newTestHandler(t)
	alice := createUser(t, ms, "Alice", "alice")
	bob := createUser(t, ms, "Bob", "bob")
	carol := createUser(t, ms, "Carol", "carol")

	createDirectChatID(t, h, alice.ID, bob.ID)
	rec := doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", alice.ID, CreateChatRequest{
		Users:     []uuid.UUID{bob.ID, carol.ID},
		IsGroup:   true,
		GroupName: "Book Club",
	}, nil)
	assertStatus(t, rec, http.StatusCreated)

	// Direct chats match on the other member's name.
	rec = doRequest(t, h.SearchChats, http.MethodGet, "/api/chats/search?term=bob", alice.ID, nil, nil)
	assertStatus(t, rec, http.StatusOK)
	_, data := decodeEnvelope(t, rec)
	var chats []ChatInfo
	if err := json.Unmarshal(data, &chats); err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 || chats[0].IsGroup {
		t.Fatalf("chats = %+v, want the direct chat with Bob", chats)
	}

	// Groups match on the group name.
	rec = doRequest(t, h.SearchChats, http.MethodGet, "/api/chats/search?term=book", alice.ID, nil, nil)
	assertStatus(t, rec, http.StatusOK)
	_, data = decodeEnvelope(t, rec)
	chats = nil
	if err := json.Unmarshal(data, &chats); err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 || !chats[0].IsGroup || chats[0].GroupName != "Book Club" {
		t.Fatalf("chats = %+v, want the Book Club group", chats)
	}
}

func createDirectChatID(t *testing.T, h *Handler, creator, other uuid.UUID) uuid.UUID {
	t.Helper()
	rec := doRequest(t, h.CreateChat, http.MethodPost, "/api/chats/create", creator, CreateChatRequest{
		Users: []uuid.UUID{other},
	}, nil)
	assertStatus(t, rec, http.StatusCreated)
	_, data := decodeEnvelope(t, rec)
	var created struct {
		ChatID uuid.UUID `json:"chatId"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}
	return created.ChatID
}
