// Package tbot provides dependency injection and service management for Telegram bot components.
// It initializes and provides access to the router client, the Telegram adapter,
// the session storage and the update dispatcher.
package tbot

import (
	"context"
	"fmt"
	"sync"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/api"
	botHand "github.com/DenisKhanov/KeeneticBot/internal/tg_bot/api/http"
	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/config"
	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/repository"
	botServ "github.com/DenisKhanov/KeeneticBot/internal/tg_bot/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionStore is a session repository owning a connection or a file.
type SessionStore interface {
	botServ.SessionRepository
	Close() error
}

// ServiceProvider manages the dependency injection for Telegram bot components.
type ServiceProvider struct {
	config *config.Config

	// Router
	keenetic *api.Keenetic

	// Telegram
	botAPI   *tgbotapi.BotAPI
	queue    *api.WebhookQueue
	telegram *api.Telegram
	handler  *botHand.Handler

	// Storage
	sessions     SessionStore
	fileSessions *repository.FileSessions // Set for the file driver only

	// Bot service
	dispatcher *botServ.Dispatcher

	keeneticOnce   sync.Once
	botAPIOnce     sync.Once
	queueOnce      sync.Once
	telegramOnce   sync.Once
	handlerOnce    sync.Once
	sessionsOnce   sync.Once
	dispatcherOnce sync.Once
}

// NewServiceProvider creates a new instance of the service provider.
func NewServiceProvider(cfg *config.Config) *ServiceProvider {
	if cfg == nil {
		logrus.Fatal("ServiceProvider requires a configuration")
	}
	return &ServiceProvider{config: cfg}
}

// Keenetic returns the router client with an opened session.
func (s *ServiceProvider) Keenetic(ctx context.Context) (*api.Keenetic, error) {
	var err error
	s.keeneticOnce.Do(func() {
		var k *api.Keenetic
		k, err = api.NewKeeneticAPI(
			s.config.EnvKeeneticEndpoint,
			s.config.EnvKeeneticLogin,
			s.config.EnvKeeneticPassword,
			s.config.Favorites,
			s.config.KeeneticTimeout,
		)
		if err != nil {
			return
		}
		if err = k.Auth(ctx); err != nil {
			return
		}
		s.keenetic = k
		logrus.Info("Keenetic client initialized")
	})
	if s.keenetic == nil {
		return nil, fmt.Errorf("keenetic client not initialized: %w", err)
	}
	return s.keenetic, nil
}

// BotAPI returns the Telegram Bot API instance.
func (s *ServiceProvider) BotAPI() (*tgbotapi.BotAPI, error) {
	var err error
	s.botAPIOnce.Do(func() {
		s.botAPI, err = tgbotapi.NewBotAPI(s.config.EnvBotToken)
		if err != nil {
			logrus.Errorf("Failed to initialize BotAPI: %v", err)
			s.botAPI = nil
			return
		}
		s.botAPI.Debug = logrus.IsLevelEnabled(logrus.TraceLevel)
		logrus.Infof("Bot API created successfully for %s", s.botAPI.Self.UserName)
	})
	if s.botAPI == nil {
		return nil, fmt.Errorf("bot API not initialized: %w", err)
	}
	return s.botAPI, nil
}

// WebhookQueue returns the queue between the webhook handler and the dispatcher.
func (s *ServiceProvider) WebhookQueue() *api.WebhookQueue {
	s.queueOnce.Do(func() {
		s.queue = api.NewWebhookQueue(s.config.EnvWebhookQueueSize)
	})
	return s.queue
}

// Telegram returns the Telegram adapter reading updates in the configured run mode.
func (s *ServiceProvider) Telegram() (*api.Telegram, error) {
	botAPI, err := s.BotAPI()
	if err != nil {
		return nil, err
	}
	s.telegramOnce.Do(func() {
		var source api.UpdateSource
		if s.config.EnvRunMode == config.RunModeWebhook {
			source = s.WebhookQueue()
		} else {
			source = api.NewLongPoller(botAPI, s.config.EnvLongPollTimeout)
		}
		s.telegram = api.NewTelegram(botAPI, source)
		logrus.Infof("Telegram adapter initialized in %s mode", s.config.EnvRunMode)
	})
	return s.telegram, nil
}

// Handler returns the webhook HTTP handler.
func (s *ServiceProvider) Handler() *botHand.Handler {
	s.handlerOnce.Do(func() {
		s.handler = botHand.NewHandler(s.WebhookQueue(), s.WebhookSecret())
		logrus.Info("Webhook handler initialized")
	})
	return s.handler
}

// WebhookSecret returns the secret webhook path segment, generating one when none is configured.
func (s *ServiceProvider) WebhookSecret() string {
	if s.config.EnvWebhookSecret == "" {
		s.config.EnvWebhookSecret = uuid.NewString()
	}
	return s.config.EnvWebhookSecret
}

// Sessions returns the chat session storage selected by the storage driver.
func (s *ServiceProvider) Sessions(ctx context.Context) (SessionStore, error) {
	var err error
	s.sessionsOnce.Do(func() {
		s.sessions, err = s.openSessions(ctx)
		if err != nil {
			s.sessions = nil
			return
		}
		logrus.Infof("Session storage initialized with %s driver", s.config.EnvStorageDriver)
	})
	if s.sessions == nil {
		return nil, fmt.Errorf("session storage not initialized: %w", err)
	}
	return s.sessions, nil
}

func (s *ServiceProvider) openSessions(ctx context.Context) (SessionStore, error) {
	switch s.config.EnvStorageDriver {
	case config.StorageMySQL, config.StoragePostgres:
		db, err := repository.OpenSQL(ctx, s.config.EnvStorageDriver, s.config.EnvStorageDSN)
		if err != nil {
			return nil, err
		}
		if err = repository.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return repository.NewSQLSessions(db)
	case config.StorageRedis:
		client, err := repository.OpenRedis(ctx, s.config.EnvRedisAddr, s.config.EnvRedisPassword, s.config.EnvRedisDB)
		if err != nil {
			return nil, err
		}
		return repository.NewRedisSessions(client, s.config.EnvRedisPrefix), nil
	default:
		s.fileSessions = repository.NewFileSessions(s.config.EnvStoragePath)
		if err := s.fileSessions.Load(); err != nil {
			logrus.Errorf("Failed to read chat sessions from file: %v", err)
		}
		return s.fileSessions, nil
	}
}

// FileSessions returns the file storage, or nil when another driver is used.
func (s *ServiceProvider) FileSessions() *repository.FileSessions {
	return s.fileSessions
}

// Dispatcher returns the update dispatcher wired to the router, Telegram and the session storage.
func (s *ServiceProvider) Dispatcher(ctx context.Context) (*botServ.Dispatcher, error) {
	keenetic, err := s.Keenetic(ctx)
	if err != nil {
		return nil, err
	}
	telegram, err := s.Telegram()
	if err != nil {
		return nil, err
	}
	sessions, err := s.Sessions(ctx)
	if err != nil {
		return nil, err
	}

	s.dispatcherOnce.Do(func() {
		s.dispatcher = botServ.NewDispatcher(keenetic, telegram, sessions, models.Policy(s.config.EnvRestrictedPolicy))
		logrus.Info("Dispatcher initialized")
	})
	return s.dispatcher, nil
}
