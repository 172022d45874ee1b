package service

import (
	"context"
	"slices"
	"time"

	"github.com/adwski/chatapp/backend/model"
)

type (
	CreateMessageInput struct {
		Content  string `json:"content" validate:"required"`
		ChatID   int64  `json:"chatId" validate:"required,gt=0"`
		SenderID int64  `json:"senderId" validate:"required,gt=0"`
	}

	// PostMessageInput is a message addressed to a chat known from context.
	PostMessageInput struct {
		Content  string `json:"content" validate:"required"`
		SenderID int64  `json:"senderId" validate:"required,gt=0"`
	}

	UpdateMessageInput struct {
		Content   *string    `json:"content" validate:"omitempty,min=1"`
		Timestamp *time.Time `json:"timestamp"`
	}
)

func (svc *Service) ListMessages(ctx context.Context) ([]model.Message, error) {
	return svc.store.ListMessages(ctx)
}

func (svc *Service) GetMessage(ctx context.Context, id int64) (model.Message, error) {
	return svc.store.GetMessage(ctx, id)
}

func (svc *Service) ListChatMessages(ctx context.Context, chatID int64) ([]model.Message, error) {
	return svc.store.ListChatMessages(ctx, chatID)
}

func (svc *Service) CreateMessage(ctx context.Context, in CreateMessageInput) (model.Message, error) {
	if err := svc.check(in); err != nil {
		return model.Message{}, err
	}
	return svc.createMessage(ctx, in.ChatID, PostMessageInput{Content: in.Content, SenderID: in.SenderID})
}

// SendMessage posts a message on behalf of a chat member.
func (svc *Service) SendMessage(ctx context.Context, chatID int64, in PostMessageInput) (model.Message, error) {
	if err := svc.check(in); err != nil {
		return model.Message{}, err
	}
	chat, err := svc.store.GetChat(ctx, chatID)
	if err != nil {
		return model.Message{}, err
	}
	if !slices.ContainsFunc(chat.Users, func(u model.User) bool { return u.ID == in.SenderID }) {
		return model.Message{}, ErrNotAMember
	}
	return svc.createMessage(ctx, chatID, in)
}

func (svc *Service) UpdateMessage(ctx context.Context, id int64, in UpdateMessageInput) (model.Message, error) {
	if err := svc.check(in); err != nil {
		return model.Message{}, err
	}
	m, err := svc.store.UpdateMessage(ctx, id, model.MessagePatch{
		Content:   in.Content,
		Timestamp: in.Timestamp,
	})
	if err != nil {
		return model.Message{}, err
	}
	svc.logger.Debug().Int64("messageID", id).Msg("message updated")
	return m, nil
}

func (svc *Service) DeleteMessage(ctx context.Context, id int64) (model.Message, error) {
	m, err := svc.store.DeleteMessage(ctx, id)
	if err != nil {
		return model.Message{}, err
	}
	svc.logger.Debug().Int64("messageID", id).Msg("message deleted")
	return m, nil
}

func (svc *Service) createMessage(ctx context.Context, chatID int64, in PostMessageInput) (model.Message, error) {
	m, err := svc.store.CreateMessage(ctx, model.MessageDraft{
		Content:   in.Content,
		ChatID:    chatID,
		SenderID:  in.SenderID,
		Timestamp: svc.now().UTC(),
	})
	if err != nil {
		return model.Message{}, err
	}
	svc.logger.Debug().
		Int64("messageID", m.ID).
		Int64("chatID", chatID).
		Int64("senderID", in.SenderID).
		Msg("message created")
	return m, nil
}
