package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/adwski/chatapp/backend/model"
)

const (
	defaultTokenTTL = time.Hour
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotAMember         = errors.New("sender is not a member of this chat")
	ErrNotGroupChat       = errors.New("chat is not a group chat")
	ErrToken              = errors.New("unable to issue token")
)

type (
	// Store is the persistence gateway.
	Store interface {
		CreateUser(ctx context.Context, u model.User) (model.User, error)
		GetUser(ctx context.Context, id int64) (model.User, error)
		GetUserByEmail(ctx context.Context, email string) (model.User, error)
		ListUsers(ctx context.Context) ([]model.User, error)
		SearchUsers(ctx context.Context, name string) ([]model.User, error)
		UpdateUser(ctx context.Context, id int64, p model.UserPatch) (model.User, error)
		DeleteUser(ctx context.Context, id int64) (model.User, error)

		CreateChat(ctx context.Context, d model.ChatDraft) (model.Chat, error)
		GetChat(ctx context.Context, id int64) (model.Chat, error)
		ListChats(ctx context.Context) ([]model.Chat, error)
		ListUserChats(ctx context.Context, userID int64) ([]model.Chat, error)
		UpdateChat(ctx context.Context, id int64, p model.ChatPatch) (model.Chat, error)
		DeleteChat(ctx context.Context, id int64) (model.Chat, error)
		AddChatUsers(ctx context.Context, chatID int64, userIDs []int64) (model.Chat, error)
		RemoveChatUsers(ctx context.Context, chatID int64, userIDs []int64) (model.Chat, error)

		CreateMessage(ctx context.Context, d model.MessageDraft) (model.Message, error)
		GetMessage(ctx context.Context, id int64) (model.Message, error)
		ListMessages(ctx context.Context) ([]model.Message, error)
		ListChatMessages(ctx context.Context, chatID int64) ([]model.Message, error)
		UpdateMessage(ctx context.Context, id int64, p model.MessagePatch) (model.Message, error)
		DeleteMessage(ctx context.Context, id int64) (model.Message, error)
	}

	Service struct {
		store    Store
		validate *validator.Validate
		secret   []byte
		tokenTTL time.Duration
		now      func() time.Time
		logger   zerolog.Logger
	}

	Config struct {
		Store     Store
		Logger    *zerolog.Logger
		JWTSecret string
		TokenTTL  time.Duration
	}
)

func NewService(cfg Config) *Service {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{
		store:    cfg.Store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: ttl,
		now:      time.Now,
		logger:   cfg.Logger.With().Str("component", "service").Logger(),
	}
}

func (svc *Service) check(in any) error {
	if err := svc.validate.Struct(in); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	return nil
}
