package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adwski/chatapp/backend/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := zerolog.Nop()
	s, err := New(context.Background(), Config{
		Logger: &logger,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustUser(t *testing.T, s *Store, name, email string) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{Name: name, Email: email, PasswordHash: "h"})
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice := mustUser(t, s, "Alice", "alice@example.com")
	bob := mustUser(t, s, "Bob", "bob@example.com")
	assert.NotZero(t, alice.ID)
	assert.NotEqual(t, alice.ID, bob.ID)

	_, err := s.CreateUser(ctx, model.User{Name: "A2", Email: "alice@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, model.ErrConflict)

	got, err := s.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, bob, got)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.User{alice, bob}, users)

	found, err := s.SearchUsers(ctx, "ali")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, alice.ID, found[0].ID)

	found, err = s.SearchUsers(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, found)

	upd, err := s.UpdateUser(ctx, alice.ID, model.UserPatch{ProfilePic: ptr("pic.png")})
	require.NoError(t, err)
	assert.Equal(t, "Alice", upd.Name)
	require.NotNil(t, upd.ProfilePic)
	assert.Equal(t, "pic.png", *upd.ProfilePic)

	upd, err = s.UpdateUser(ctx, alice.ID, model.UserPatch{Name: ptr("Alicia")})
	require.NoError(t, err)
	require.NotNil(t, upd.ProfilePic)
	assert.Equal(t, "pic.png", *upd.ProfilePic)

	upd, err = s.UpdateUser(ctx, alice.ID, model.UserPatch{ProfilePic: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, upd.ProfilePic)
	assert.Equal(t, "Alicia", upd.Name)

	_, err = s.UpdateUser(ctx, bob.ID, model.UserPatch{Email: ptr("alice@example.com")})
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = s.UpdateUser(ctx, 999, model.UserPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, model.ErrNotFound)

	del, err := s.DeleteUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, bob, del)

	_, err = s.GetUser(ctx, bob.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.DeleteUser(ctx, bob.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStore_Chats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice := mustUser(t, s, "Alice", "alice@example.com")
	bob := mustUser(t, s, "Bob", "bob@example.com")
	carol := mustUser(t, s, "Carol", "carol@example.com")

	chat, err := s.CreateChat(ctx, model.ChatDraft{
		ChatName:     "team",
		IsGroupChat:  true,
		UserIDs:      []int64{bob.ID, alice.ID, alice.ID},
		GroupAdminID: &alice.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "team", chat.ChatName)
	assert.True(t, chat.IsGroupChat)
	assert.Equal(t, []model.User{alice, bob}, chat.Users)
	require.NotNil(t, chat.GroupAdmin)
	assert.Equal(t, alice.ID, chat.GroupAdmin.ID)
	assert.Nil(t, chat.LatestMessage)

	_, err = s.CreateChat(ctx, model.ChatDraft{UserIDs: []int64{42}})
	assert.ErrorIs(t, err, model.ErrNotFound)

	chat, err = s.AddChatUsers(ctx, chat.ID, []int64{carol.ID, bob.ID})
	require.NoError(t, err)
	assert.Len(t, chat.Users, 3)

	chats, err := s.ListUserChats(ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, chat.ID, chats[0].ID)

	chat, err = s.RemoveChatUsers(ctx, chat.ID, []int64{bob.ID, carol.ID})
	require.NoError(t, err)
	assert.Equal(t, []model.User{alice}, chat.Users)

	chat, err = s.UpdateChat(ctx, chat.ID, model.ChatPatch{
		ChatName: ptr("renamed"),
		UserIDs:  []int64{carol.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", chat.ChatName)
	assert.Equal(t, []model.User{carol}, chat.Users)

	chat, err = s.UpdateChat(ctx, chat.ID, model.ChatPatch{IsGroupChat: ptr(false)})
	require.NoError(t, err)
	assert.False(t, chat.IsGroupChat)
	assert.Equal(t, []model.User{carol}, chat.Users)

	_, err = s.AddChatUsers(ctx, 999, []int64{alice.ID})
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.UpdateChat(ctx, 999, model.ChatPatch{ChatName: ptr("x")})
	assert.ErrorIs(t, err, model.ErrNotFound)

	// admin removal keeps the chat
	_, err = s.DeleteUser(ctx, alice.ID)
	require.NoError(t, err)
	chat, err = s.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, chat.GroupAdmin)

	all, err := s.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	del, err := s.DeleteChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, del.ID)
	_, err = s.GetChat(ctx, chat.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	all, err = s.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_Messages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice := mustUser(t, s, "Alice", "alice@example.com")
	chat, err := s.CreateChat(ctx, model.ChatDraft{UserIDs: []int64{alice.ID}})
	require.NoError(t, err)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first, err := s.CreateMessage(ctx, model.MessageDraft{
		Content: "hello", ChatID: chat.ID, SenderID: alice.ID, Timestamp: ts,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", first.Content)
	assert.Equal(t, alice, first.Sender)
	assert.True(t, ts.Equal(first.Timestamp))

	second, err := s.CreateMessage(ctx, model.MessageDraft{
		Content: "again", ChatID: chat.ID, SenderID: alice.ID, Timestamp: ts.Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = s.CreateMessage(ctx, model.MessageDraft{Content: "x", ChatID: 999, SenderID: alice.ID, Timestamp: ts})
	assert.ErrorIs(t, err, model.ErrNotFound)

	chat, err = s.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, chat.LatestMessage)
	assert.Equal(t, second.ID, chat.LatestMessage.ID)

	msgs, err := s.ListChatMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)

	_, err = s.ListChatMessages(ctx, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)

	upd, err := s.UpdateMessage(ctx, first.ID, model.MessagePatch{Content: ptr("edited")})
	require.NoError(t, err)
	assert.Equal(t, "edited", upd.Content)
	assert.True(t, ts.Equal(upd.Timestamp))

	later := ts.Add(time.Hour)
	upd, err = s.UpdateMessage(ctx, first.ID, model.MessagePatch{Timestamp: &later})
	require.NoError(t, err)
	assert.True(t, later.Equal(upd.Timestamp))

	_, err = s.DeleteMessage(ctx, second.ID)
	require.NoError(t, err)
	chat, err = s.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, chat.LatestMessage)
	assert.Equal(t, first.ID, chat.LatestMessage.ID)

	// messages go away with their chat
	_, err = s.DeleteChat(ctx, chat.ID)
	require.NoError(t, err)
	all, err := s.ListMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\`, escapeLike(`a%b_c\`))
}
