// Package sqlite persists users, chats and messages in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/adwski/chatapp/backend/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Config struct {
	Logger *zerolog.Logger
	// Path is a database file, created if missing.
	Path string
}

type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// New opens the database and applies pending migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	s := &Store{
		logger: cfg.Logger.With().Str("component", "sqlite").Logger(),
	}

	db, err := sql.Open("sqlite3", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s.db = db

	if err = s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug().Str("path", cfg.Path).Msg("database ready")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func dsn(path string) string {
	var sb strings.Builder
	sb.WriteString("file:")
	sb.WriteString(path)
	sb.WriteString("?_foreign_keys=on")
	sb.WriteString("&_journal_mode=WAL")
	sb.WriteString("&_busy_timeout=5000")
	return sb.String()
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: s.logger})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err = f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// translate maps driver errors onto model errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return errors.Join(model.ErrConflict, err)
		case sqlite3.ErrConstraintForeignKey:
			return errors.Join(model.ErrNotFound, err)
		}
	}
	return err
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
