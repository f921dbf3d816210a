package service

import (
	"context"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
	"github.com/stretchr/testify/mock"
)

type MockRouter struct {
	mock.Mock
	calls *[]string
}

func (m *MockRouter) GetDevices(ctx context.Context) ([]models.Device, error) {
	args := m.Called(ctx)
	devices, _ := args.Get(0).([]models.Device)
	return devices, args.Error(1)
}

func (m *MockRouter) GetFavDevices(devices []models.Device) models.FavoriteDevices {
	args := m.Called(devices)
	fav, _ := args.Get(0).(models.FavoriteDevices)
	return fav
}

func (m *MockRouter) SetPolicy(ctx context.Context, mac string, policy models.Policy) error {
	record(m.calls, "SetPolicy")
	args := m.Called(ctx, mac, policy)
	return args.Error(0)
}

type MockChat struct {
	mock.Mock
	calls *[]string
}

func (m *MockChat) GetUpdate(ctx context.Context) (models.Update, error) {
	args := m.Called(ctx)
	update, _ := args.Get(0).(models.Update)
	return update, args.Error(1)
}

func (m *MockChat) SendMessage(ctx context.Context, chatID int64, text string, keyboard *models.Keyboard) (int, error) {
	record(m.calls, "SendMessage")
	args := m.Called(ctx, chatID, text, keyboard)
	return args.Int(0), args.Error(1)
}

func (m *MockChat) EditMessageReplyMarkup(ctx context.Context, chatID int64, messageID int, keyboard models.Keyboard) error {
	record(m.calls, "EditMessageReplyMarkup")
	args := m.Called(ctx, chatID, messageID, keyboard)
	return args.Error(0)
}

func (m *MockChat) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	record(m.calls, "DeleteMessage")
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

func (m *MockChat) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string, showAlert bool) error {
	record(m.calls, "AnswerCallbackQuery")
	args := m.Called(ctx, callbackQueryID, text, showAlert)
	return args.Error(0)
}

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) GetSession(ctx context.Context, chatID int64) (models.ChatSession, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(models.ChatSession), args.Error(1)
}

func (m *MockSessions) UpdateSession(ctx context.Context, session models.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

// memorySessions is a map backed SessionRepository for multi-update scenarios.
type memorySessions struct {
	sessions map[int64]models.ChatSession
	reads    int
	writes   int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[int64]models.ChatSession)}
}

func (m *memorySessions) GetSession(_ context.Context, chatID int64) (models.ChatSession, error) {
	m.reads++
	session, ok := m.sessions[chatID]
	if !ok {
		return models.ChatSession{ChatID: chatID}, nil
	}
	return session, nil
}

func (m *memorySessions) UpdateSession(_ context.Context, session models.ChatSession) error {
	m.writes++
	m.sessions[session.ChatID] = session
	return nil
}

func record(calls *[]string, name string) {
	if calls != nil {
		*calls = append(*calls, name)
	}
}
