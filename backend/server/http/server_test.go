package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adwski/chatapp/backend/model"
	"github.com/adwski/chatapp/backend/service"
	"github.com/adwski/chatapp/backend/storage/sqlite"
)

type apiClient struct {
	t   *testing.T
	url string
}

type rawResponse struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	logger := zerolog.Nop()
	store, err := sqlite.New(context.Background(), sqlite.Config{
		Logger: &logger,
		Path:   filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := NewServer(Config{
		Logger: &logger,
		ChatService: service.NewService(service.Config{
			Store:     store,
			Logger:    &logger,
			JWTSecret: "secret",
		}),
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return &apiClient{t: t, url: ts.URL}
}

func (c *apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(c.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.url+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer func() { _ = resp.Body.Close() }()

	var env rawResponse
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	if resp.StatusCode >= 400 {
		assert.NotEmpty(c.t, env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode
}

func TestAPI_UsersAndLogin(t *testing.T) {
	c := newTestAPI(t)

	var alice model.User
	code := c.do(http.MethodPost, "/api/users",
		map[string]any{"name": "Alice", "email": "alice@example.com", "password": "pw"}, &alice)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Alice", alice.Name)

	code = c.do(http.MethodPost, "/api/users",
		map[string]any{"name": "A", "email": "alice@example.com", "password": "pw"}, nil)
	assert.Equal(t, http.StatusConflict, code)

	code = c.do(http.MethodPost, "/api/users", map[string]any{"name": "A"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = c.do(http.MethodPost, "/api/users", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	var auth service.AuthPayload
	code = c.do(http.MethodPost, "/api/login", map[string]any{"email": "alice@example.com", "password": "pw"}, &auth)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, alice.ID, auth.User.ID)

	code = c.do(http.MethodPost, "/api/login", map[string]any{"email": "alice@example.com", "password": "no"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	var found []model.User
	code = c.do(http.MethodGet, "/api/users/search?name=lic", nil, &found)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, found, 1)
	assert.Equal(t, alice.ID, found[0].ID)

	var upd model.User
	code = c.do(http.MethodPut, fmt.Sprintf("/api/users/%d", alice.ID), map[string]any{"name": "Alicia"}, &upd)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Alicia", upd.Name)

	code = c.do(http.MethodGet, "/api/users/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code = c.do(http.MethodGet, "/api/users/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code = c.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", alice.ID), nil, nil)
	assert.Equal(t, http.StatusOK, code)

	var users []model.User
	code = c.do(http.MethodGet, "/api/users", nil, &users)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, users)
}

func TestAPI_ChatsAndMessages(t *testing.T) {
	c := newTestAPI(t)

	var alice, bob model.User
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/users",
		map[string]any{"name": "Alice", "email": "alice@example.com", "password": "pw"}, &alice))
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/users",
		map[string]any{"name": "Bob", "email": "bob@example.com", "password": "pw"}, &bob))

	var direct model.Chat
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/chats",
		map[string]any{"userIds": []int64{alice.ID, bob.ID}}, &direct))
	assert.Equal(t, "Chat with Bob", direct.ChatName)

	code := c.do(http.MethodDelete, fmt.Sprintf("/api/chats/%d/group", direct.ID), nil, nil)
	assert.Equal(t, http.StatusConflict, code)

	var group model.Chat
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/chats",
		map[string]any{"chatName": "g", "isGroupChat": true, "userIds": []int64{alice.ID}}, &group))

	path := fmt.Sprintf("/api/chats/%d", group.ID)
	code = c.do(http.MethodPost, path+"/messages", map[string]any{"content": "hi", "senderId": bob.ID}, nil)
	assert.Equal(t, http.StatusForbidden, code)

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, path+"/users",
		map[string]any{"userIds": []int64{bob.ID}}, &group))
	assert.Len(t, group.Users, 2)

	var msg model.Message
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, path+"/messages",
		map[string]any{"content": "hi", "senderId": bob.ID}, &msg))
	assert.Equal(t, "hi", msg.Content)

	require.Equal(t, http.StatusOK, c.do(http.MethodPut, path+"/name",
		map[string]any{"chatName": "renamed"}, &group))
	assert.Equal(t, "renamed", group.ChatName)

	var chats []model.Chat
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, fmt.Sprintf("/api/users/%d/chats", bob.ID), nil, &chats))
	require.Len(t, chats, 2)

	var got model.Chat
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, path, nil, &got))
	require.NotNil(t, got.LatestMessage)
	assert.Equal(t, msg.ID, got.LatestMessage.ID)

	var msgs []model.Message
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, path+"/messages", nil, &msgs))
	assert.Len(t, msgs, 1)

	var edited model.Message
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, fmt.Sprintf("/api/messages/%d", msg.ID),
		map[string]any{"content": "edited"}, &edited))
	assert.Equal(t, "edited", edited.Content)

	require.Equal(t, http.StatusOK, c.do(http.MethodDelete, path+"/group", nil, nil))
	code = c.do(http.MethodGet, fmt.Sprintf("/api/messages/%d", msg.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: errors.Join(ErrBadRequest, errors.New("eof")), want: http.StatusBadRequest},
		{err: errors.Join(service.ErrInvalidInput, errors.New("field")), want: http.StatusBadRequest},
		{err: service.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{err: service.ErrNotAMember, want: http.StatusForbidden},
		{err: model.ErrNotFound, want: http.StatusNotFound},
		{err: errors.Join(model.ErrConflict, errors.New("unique")), want: http.StatusConflict},
		{err: service.ErrNotGroupChat, want: http.StatusConflict},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestAPI_CORSPreflight(t *testing.T) {
	c := newTestAPI(t)

	req, err := http.NewRequest(http.MethodOptions, c.url+"/api/users", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}
