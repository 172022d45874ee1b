package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/adwski/chatapp/backend/model"
)

func (s *Store) CreateChat(ctx context.Context, d model.ChatDraft) (model.Chat, error) {
	var chat model.Chat
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO chats (chat_name, is_group_chat, group_admin_id) VALUES (?, ?, ?)",
			d.ChatName, d.IsGroupChat, d.GroupAdminID)
		if err != nil {
			return translate(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if err = addMembers(ctx, tx, id, d.UserIDs); err != nil {
			return err
		}
		chat, err = loadChat(ctx, tx, id)
		return err
	})
	return chat, err
}

func (s *Store) GetChat(ctx context.Context, id int64) (model.Chat, error) {
	return loadChat(ctx, s.db, id)
}

func (s *Store) ListChats(ctx context.Context) ([]model.Chat, error) {
	return s.loadChats(ctx, "SELECT id FROM chats ORDER BY id")
}

func (s *Store) ListUserChats(ctx context.Context, userID int64) ([]model.Chat, error) {
	return s.loadChats(ctx,
		"SELECT chat_id FROM chat_users WHERE user_id = ? ORDER BY chat_id", userID)
}

func (s *Store) UpdateChat(ctx context.Context, id int64, p model.ChatPatch) (model.Chat, error) {
	var chat model.Chat
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE chats SET
			chat_name = COALESCE(?, chat_name),
			is_group_chat = COALESCE(?, is_group_chat),
			group_admin_id = COALESCE(?, group_admin_id)
			WHERE id = ?`,
			p.ChatName, p.IsGroupChat, p.GroupAdminID, id)
		if err != nil {
			return translate(err)
		}
		if err = mustAffect(res); err != nil {
			return err
		}
		if p.UserIDs != nil {
			if _, err = tx.ExecContext(ctx, "DELETE FROM chat_users WHERE chat_id = ?", id); err != nil {
				return fmt.Errorf("reset chat members: %w", err)
			}
			if err = addMembers(ctx, tx, id, p.UserIDs); err != nil {
				return err
			}
		}
		chat, err = loadChat(ctx, tx, id)
		return err
	})
	return chat, err
}

// DeleteChat removes the chat with its messages and returns its last state.
func (s *Store) DeleteChat(ctx context.Context, id int64) (model.Chat, error) {
	var chat model.Chat
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if chat, err = loadChat(ctx, tx, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
		return translate(err)
	})
	return chat, err
}

func (s *Store) AddChatUsers(ctx context.Context, chatID int64, userIDs []int64) (model.Chat, error) {
	var chat model.Chat
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := chatExists(ctx, tx, chatID); err != nil {
			return err
		}
		if err := addMembers(ctx, tx, chatID, userIDs); err != nil {
			return err
		}
		var err error
		chat, err = loadChat(ctx, tx, chatID)
		return err
	})
	return chat, err
}

func (s *Store) RemoveChatUsers(ctx context.Context, chatID int64, userIDs []int64) (model.Chat, error) {
	var chat model.Chat
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := chatExists(ctx, tx, chatID); err != nil {
			return err
		}
		if len(userIDs) > 0 {
			args := make([]any, 0, len(userIDs)+1)
			args = append(args, chatID)
			for _, id := range userIDs {
				args = append(args, id)
			}
			_, err := tx.ExecContext(ctx,
				"DELETE FROM chat_users WHERE chat_id = ? AND user_id IN ("+placeholders(len(userIDs))+")",
				args...)
			if err != nil {
				return fmt.Errorf("remove chat members: %w", err)
			}
		}
		var err error
		chat, err = loadChat(ctx, tx, chatID)
		return err
	})
	return chat, err
}

func (s *Store) loadChats(ctx context.Context, query string, args ...any) ([]model.Chat, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	chats := make([]model.Chat, 0, len(ids))
	for _, id := range ids {
		chat, err := loadChat(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// loadChat reads a chat with its members, admin and latest message.
func loadChat(ctx context.Context, q querier, id int64) (model.Chat, error) {
	var (
		chat    model.Chat
		adminID sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, chat_name, is_group_chat, group_admin_id FROM chats WHERE id = ?", id).
		Scan(&chat.ID, &chat.ChatName, &chat.IsGroupChat, &adminID)
	if err != nil {
		return model.Chat{}, translate(err)
	}

	chat.Users, err = queryUsers(ctx, q,
		`SELECT u.id, u.name, u.email, u.password, u.profile_pic
		FROM users u JOIN chat_users cu ON cu.user_id = u.id
		WHERE cu.chat_id = ? ORDER BY u.id`, id)
	if err != nil {
		return model.Chat{}, err
	}

	if adminID.Valid {
		admin, err := getUser(ctx, q, adminID.Int64)
		if err != nil {
			return model.Chat{}, err
		}
		chat.GroupAdmin = &admin
	}

	latest, err := queryMessages(ctx, q,
		messageSelect+" WHERE m.chat_id = ? ORDER BY m.id DESC LIMIT 1", id)
	if err != nil {
		return model.Chat{}, err
	}
	if len(latest) > 0 {
		chat.LatestMessage = &latest[0]
	}
	return chat, nil
}

func chatExists(ctx context.Context, q querier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM chats WHERE id = ?", id).Scan(&one)
	return translate(err)
}

func addMembers(ctx context.Context, q querier, chatID int64, userIDs []int64) error {
	for _, uid := range userIDs {
		_, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO chat_users (chat_id, user_id) VALUES (?, ?)", chatID, uid)
		if err != nil {
			return translate(err)
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
