package service

import (
	"context"
	"slices"

	"github.com/adwski/chatapp/backend/model"
)

type (
	CreateChatInput struct {
		ChatName     string  `json:"chatName"`
		IsGroupChat  bool    `json:"isGroupChat"`
		UserIDs      []int64 `json:"userIds" validate:"required,min=1,dive,gt=0"`
		GroupAdminID *int64  `json:"groupAdminId" validate:"omitempty,gt=0"`
	}

	UpdateChatInput struct {
		ChatName     *string `json:"chatName"`
		IsGroupChat  *bool   `json:"isGroupChat"`
		UserIDs      []int64 `json:"userIds" validate:"omitempty,dive,gt=0"`
		GroupAdminID *int64  `json:"groupAdminId" validate:"omitempty,gt=0"`
	}

	ChatUsersInput struct {
		UserIDs []int64 `json:"userIds" validate:"required,min=1,dive,gt=0"`
	}

	RenameChatInput struct {
		ChatName string `json:"chatName" validate:"required"`
	}
)

func (svc *Service) ListChats(ctx context.Context) ([]model.Chat, error) {
	return svc.store.ListChats(ctx)
}

func (svc *Service) GetChat(ctx context.Context, id int64) (model.Chat, error) {
	return svc.store.GetChat(ctx, id)
}

func (svc *Service) ListUserChats(ctx context.Context, userID int64) ([]model.Chat, error) {
	if _, err := svc.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return svc.store.ListUserChats(ctx, userID)
}

// CreateChat creates a chat. A one-on-one chat created without a name
// between exactly two users is named after the second of them by id.
func (svc *Service) CreateChat(ctx context.Context, in CreateChatInput) (model.Chat, error) {
	if err := svc.check(in); err != nil {
		return model.Chat{}, err
	}
	name := in.ChatName
	if !in.IsGroupChat && name == "" {
		ids := slices.Compact(slices.Sorted(slices.Values(in.UserIDs)))
		if len(ids) == 2 {
			second, err := svc.store.GetUser(ctx, ids[1])
			if err != nil {
				return model.Chat{}, err
			}
			name = "Chat with " + second.Name
		}
	}
	chat, err := svc.store.CreateChat(ctx, model.ChatDraft{
		ChatName:     name,
		IsGroupChat:  in.IsGroupChat,
		UserIDs:      in.UserIDs,
		GroupAdminID: in.GroupAdminID,
	})
	if err != nil {
		return model.Chat{}, err
	}
	svc.logger.Debug().Int64("chatID", chat.ID).Str("name", chat.ChatName).Msg("chat created")
	return chat, nil
}

func (svc *Service) UpdateChat(ctx context.Context, id int64, in UpdateChatInput) (model.Chat, error) {
	if err := svc.check(in); err != nil {
		return model.Chat{}, err
	}
	chat, err := svc.store.UpdateChat(ctx, id, model.ChatPatch{
		ChatName:     in.ChatName,
		IsGroupChat:  in.IsGroupChat,
		UserIDs:      in.UserIDs,
		GroupAdminID: in.GroupAdminID,
	})
	if err != nil {
		return model.Chat{}, err
	}
	svc.logger.Debug().Int64("chatID", id).Msg("chat updated")
	return chat, nil
}

func (svc *Service) DeleteChat(ctx context.Context, id int64) (model.Chat, error) {
	chat, err := svc.store.DeleteChat(ctx, id)
	if err != nil {
		return model.Chat{}, err
	}
	svc.logger.Debug().Int64("chatID", id).Msg("chat deleted")
	return chat, nil
}

func (svc *Service) AddUsersToChat(ctx context.Context, chatID int64, in ChatUsersInput) (model.Chat, error) {
	if err := svc.check(in); err != nil {
		return model.Chat{}, err
	}
	return svc.store.AddChatUsers(ctx, chatID, in.UserIDs)
}

func (svc *Service) RemoveUsersFromChat(ctx context.Context, chatID int64, in ChatUsersInput) (model.Chat, error) {
	if err := svc.check(in); err != nil {
		return model.Chat{}, err
	}
	return svc.store.RemoveChatUsers(ctx, chatID, in.UserIDs)
}

func (svc *Service) RenameGroupChat(ctx context.Context, id int64, in RenameChatInput) (model.Chat, error) {
	if err := svc.check(in); err != nil {
		return model.Chat{}, err
	}
	return svc.store.UpdateChat(ctx, id, model.ChatPatch{ChatName: &in.ChatName})
}

// DeleteGroupChat deletes a chat only if it is a group chat.
func (svc *Service) DeleteGroupChat(ctx context.Context, id int64) (model.Chat, error) {
	chat, err := svc.store.GetChat(ctx, id)
	if err != nil {
		return model.Chat{}, err
	}
	if !chat.IsGroupChat {
		return model.Chat{}, ErrNotGroupChat
	}
	return svc.DeleteChat(ctx, id)
}

// AddMessageToChat posts a message to an existing chat without membership check.
func (svc *Service) AddMessageToChat(ctx context.Context, chatID int64, in PostMessageInput) (model.Message, error) {
	if err := svc.check(in); err != nil {
		return model.Message{}, err
	}
	if _, err := svc.store.GetChat(ctx, chatID); err != nil {
		return model.Message{}, err
	}
	return svc.createMessage(ctx, chatID, in)
}
