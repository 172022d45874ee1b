package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adwski/chatapp/backend/model"
)

const userColumns = "id, name, email, password, profile_pic"

func scanUser(row scanner) (model.User, error) {
	var (
		u   model.User
		pic sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &pic); err != nil {
		return model.User{}, err
	}
	if pic.Valid {
		u.ProfilePic = &pic.String
	}
	return u, nil
}

func queryUsers(ctx context.Context, q querier, query string, args ...any) ([]model.User, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func getUser(ctx context.Context, q querier, id int64) (model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		return model.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (name, email, password, profile_pic) VALUES (?, ?, ?, ?)",
		u.Name, u.Email, u.PasswordHash, u.ProfilePic)
	if err != nil {
		return model.User{}, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	return getUser(ctx, s.db, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if err != nil {
		return model.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	return queryUsers(ctx, s.db, "SELECT "+userColumns+" FROM users ORDER BY id")
}

// SearchUsers matches name substring, case-insensitive for ASCII.
func (s *Store) SearchUsers(ctx context.Context, name string) ([]model.User, error) {
	return queryUsers(ctx, s.db,
		"SELECT "+userColumns+" FROM users WHERE name LIKE '%' || ? || '%' ESCAPE '\\' ORDER BY id",
		escapeLike(name))
}

// UpdateUser applies non-nil fields. An empty ProfilePic clears the picture.
func (s *Store) UpdateUser(ctx context.Context, id int64, p model.UserPatch) (model.User, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET
		name = COALESCE(?, name),
		email = COALESCE(?, email),
		password = COALESCE(?, password),
		profile_pic = CASE WHEN ? IS NULL THEN profile_pic ELSE NULLIF(?, '') END
		WHERE id = ?`,
		p.Name, p.Email, p.PasswordHash, p.ProfilePic, p.ProfilePic, id)
	if err != nil {
		return model.User{}, translate(err)
	}
	if err = mustAffect(res); err != nil {
		return model.User{}, err
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes the user and returns its last state.
func (s *Store) DeleteUser(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if u, err = getUser(ctx, tx, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
		return translate(err)
	})
	return u, err
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
