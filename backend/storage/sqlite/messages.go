package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adwski/chatapp/backend/model"
)

const messageSelect = `SELECT m.id, m.content, m.timestamp, m.chat_id,
	u.id, u.name, u.email, u.password, u.profile_pic
	FROM messages m JOIN users u ON u.id = m.sender_id`

func scanMessage(row scanner) (model.Message, error) {
	var (
		m   model.Message
		pic sql.NullString
	)
	err := row.Scan(&m.ID, &m.Content, &m.Timestamp, &m.ChatID,
		&m.Sender.ID, &m.Sender.Name, &m.Sender.Email, &m.Sender.PasswordHash, &pic)
	if err != nil {
		return model.Message{}, err
	}
	if pic.Valid {
		m.Sender.ProfilePic = &pic.String
	}
	return m, nil
}

func queryMessages(ctx context.Context, q querier, query string, args ...any) ([]model.Message, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := make([]model.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func getMessage(ctx context.Context, q querier, id int64) (model.Message, error) {
	m, err := scanMessage(q.QueryRowContext(ctx, messageSelect+" WHERE m.id = ?", id))
	if err != nil {
		return model.Message{}, translate(err)
	}
	return m, nil
}

// CreateMessage stores a message. Unknown sender or chat yields model.ErrNotFound.
func (s *Store) CreateMessage(ctx context.Context, d model.MessageDraft) (model.Message, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (content, timestamp, sender_id, chat_id) VALUES (?, ?, ?, ?)",
		d.Content, d.Timestamp.UTC(), d.SenderID, d.ChatID)
	if err != nil {
		return model.Message{}, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Message{}, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetMessage(ctx, id)
}

func (s *Store) GetMessage(ctx context.Context, id int64) (model.Message, error) {
	return getMessage(ctx, s.db, id)
}

func (s *Store) ListMessages(ctx context.Context) ([]model.Message, error) {
	return queryMessages(ctx, s.db, messageSelect+" ORDER BY m.id")
}

// ListChatMessages returns messages of a chat in insertion order.
func (s *Store) ListChatMessages(ctx context.Context, chatID int64) ([]model.Message, error) {
	if err := chatExists(ctx, s.db, chatID); err != nil {
		return nil, err
	}
	return queryMessages(ctx, s.db, messageSelect+" WHERE m.chat_id = ? ORDER BY m.id", chatID)
}

func (s *Store) UpdateMessage(ctx context.Context, id int64, p model.MessagePatch) (model.Message, error) {
	var ts any
	if p.Timestamp != nil {
		ts = p.Timestamp.UTC()
	}
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET
		content = COALESCE(?, content),
		timestamp = COALESCE(?, timestamp)
		WHERE id = ?`,
		p.Content, ts, id)
	if err != nil {
		return model.Message{}, translate(err)
	}
	if err = mustAffect(res); err != nil {
		return model.Message{}, err
	}
	return s.GetMessage(ctx, id)
}

// DeleteMessage removes the message and returns its last state.
func (s *Store) DeleteMessage(ctx context.Context, id int64) (model.Message, error) {
	var m model.Message
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if m, err = getMessage(ctx, tx, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
		return translate(err)
	})
	return m, err
}
