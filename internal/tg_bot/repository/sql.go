package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Supported SQL drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

const selectSessionQuery = `SELECT chat_id, last_message_id FROM chat_sessions WHERE chat_id = ?`

// upsertSessionQueries holds the dialect specific upsert of a chat session.
var upsertSessionQueries = map[string]string{
	DriverMySQL: `INSERT INTO chat_sessions (chat_id, last_message_id, updated_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE last_message_id = VALUES(last_message_id), updated_at = VALUES(updated_at)`,
	DriverPostgres: `INSERT INTO chat_sessions (chat_id, last_message_id, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (chat_id) DO UPDATE SET last_message_id = EXCLUDED.last_message_id, updated_at = EXCLUDED.updated_at`,
}

// SQLSessions stores chat sessions in a MySQL or PostgreSQL table.
type SQLSessions struct {
	db     *sqlx.DB
	driver string
	upsert string
	get    string
}

// OpenSQL connects to the database and checks the connection.
// Arguments:
//   - ctx: bounds the connection check.
//   - driver: "mysql" or "postgres".
//   - dsn: data source name in the driver's format.
func OpenSQL(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if _, ok := upsertSessionQueries[driver]; !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Infof("Connected to %s database", driver)
	return db, nil
}

// NewSQLSessions creates a new SQLSessions on top of an open connection.
// The chat_sessions table must exist, see Migrate.
func NewSQLSessions(db *sqlx.DB) (*SQLSessions, error) {
	upsert, ok := upsertSessionQueries[db.DriverName()]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", db.DriverName())
	}
	return &SQLSessions{
		db:     db,
		driver: db.DriverName(),
		upsert: upsert,
		get:    db.Rebind(selectSessionQuery),
	}, nil
}

// GetSession returns the session of a chat, or a zero session for an unknown chat.
func (s *SQLSessions) GetSession(ctx context.Context, chatID int64) (models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.GetContext(ctx, &session, s.get, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatSession{ChatID: chatID}, nil
	}
	if err != nil {
		logrus.WithError(err).Errorf("Failed to select session of chat %d", chatID)
		return models.ChatSession{}, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// UpdateSession inserts the session or updates the last message id of an existing one.
func (s *SQLSessions) UpdateSession(ctx context.Context, session models.ChatSession) error {
	if _, err := s.db.ExecContext(ctx, s.upsert, session.ChatID, session.LastMessageID, time.Now().UTC()); err != nil {
		logrus.WithError(err).Errorf("Failed to upsert session of chat %d", session.ChatID)
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLSessions) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s connection: %w", s.driver, err)
	}
	logrus.Infof("%s connection closed", s.driver)
	return nil
}
