package model

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type User struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"`
	ProfilePic   *string `json:"profilePic,omitempty"`
}

type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	ProfilePic   *string
}

type Chat struct {
	ID            int64    `json:"id"`
	ChatName      string   `json:"chatName"`
	IsGroupChat   bool     `json:"isGroupChat"`
	Users         []User   `json:"users"`
	GroupAdmin    *User    `json:"groupAdmin,omitempty"`
	LatestMessage *Message `json:"latestMessage,omitempty"`
}

type ChatDraft struct {
	ChatName     string
	IsGroupChat  bool
	UserIDs      []int64
	GroupAdminID *int64
}

type ChatPatch struct {
	ChatName     *string
	IsGroupChat  *bool
	UserIDs      []int64 // nil leaves members untouched
	GroupAdminID *int64
}

type Message struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sender    User      `json:"sender"`
	ChatID    int64     `json:"chatId"`
}

type MessageDraft struct {
	Content   string
	ChatID    int64
	SenderID  int64
	Timestamp time.Time
}

type MessagePatch struct {
	Content   *string
	Timestamp *time.Time
}
