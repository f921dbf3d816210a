package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const lastMessageField = "last_message_id"

// RedisSessions stores every chat session in a redis hash.
type RedisSessions struct {
	client *redis.Client
	prefix string // Key prefix, e.g. "keenetic:"
}

// OpenRedis connects to redis and checks the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logrus.Infof("Connected to redis at %s (db %d)", addr, db)
	return client, nil
}

// NewRedisSessions creates a new RedisSessions.
// Arguments:
//   - client: connected redis client.
//   - prefix: prepended to every key.
//
// Returns a pointer to a RedisSessions.
func NewRedisSessions(client *redis.Client, prefix string) *RedisSessions {
	return &RedisSessions{client: client, prefix: prefix}
}

// key returns the hash key of a chat.
func (r *RedisSessions) key(chatID int64) string {
	return r.prefix + "chat:" + strconv.FormatInt(chatID, 10)
}

// GetSession returns the session of a chat, or a zero session for an unknown chat.
func (r *RedisSessions) GetSession(ctx context.Context, chatID int64) (models.ChatSession, error) {
	id, err := r.client.HGet(ctx, r.key(chatID), lastMessageField).Int()
	if errors.Is(err, redis.Nil) {
		return models.ChatSession{ChatID: chatID}, nil
	}
	if err != nil {
		logrus.WithError(err).Errorf("Failed to read session of chat %d", chatID)
		return models.ChatSession{}, fmt.Errorf("failed to get session: %w", err)
	}
	return models.ChatSession{ChatID: chatID, LastMessageID: id}, nil
}

// UpdateSession sets the last message id field of the chat's hash.
func (r *RedisSessions) UpdateSession(ctx context.Context, session models.ChatSession) error {
	if err := r.client.HSet(ctx, r.key(session.ChatID), lastMessageField, session.LastMessageID).Err(); err != nil {
		logrus.WithError(err).Errorf("Failed to write session of chat %d", session.ChatID)
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (r *RedisSessions) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	logrus.Info("Redis connection closed")
	return nil
}
