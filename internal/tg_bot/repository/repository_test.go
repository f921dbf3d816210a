package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSessions_UnknownChat(t *testing.T) {
	sessions := NewFileSessions(filepath.Join(t.TempDir(), "sessions.json"))

	session, err := sessions.GetSession(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, models.ChatSession{ChatID: 42}, session)
	assert.False(t, session.HasPanel())
}

func TestFileSessions_UpdateAndGet(t *testing.T) {
	sessions := NewFileSessions(filepath.Join(t.TempDir(), "sessions.json"))
	ctx := context.Background()

	require.NoError(t, sessions.UpdateSession(ctx, models.ChatSession{ChatID: 42, LastMessageID: 10}))
	require.NoError(t, sessions.UpdateSession(ctx, models.ChatSession{ChatID: 42, LastMessageID: 11}))

	session, err := sessions.GetSession(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 11, session.LastMessageID)
}

func TestFileSessions_FlushAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()

	sessions := NewFileSessions(path)
	require.NoError(t, sessions.UpdateSession(ctx, models.ChatSession{ChatID: 42, LastMessageID: 10}))
	require.NoError(t, sessions.UpdateSession(ctx, models.ChatSession{ChatID: -100500, LastMessageID: 7}))
	require.NoError(t, sessions.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":{"42":{"last_message_id":10},"-100500":{"last_message_id":7}}}`, string(data))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed")

	reloaded := NewFileSessions(path)
	require.NoError(t, reloaded.Load())
	session, err := reloaded.GetSession(ctx, -100500)
	require.NoError(t, err)
	assert.Equal(t, models.ChatSession{ChatID: -100500, LastMessageID: 7}, session)
}

func TestFileSessions_LoadMissingOrEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	assert.NoError(t, NewFileSessions(filepath.Join(dir, "missing.json")).Load())
	assert.NoError(t, NewFileSessions(empty).Load())
}

func TestFileSessions_LoadCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users":`), 0o600))

	err := NewFileSessions(path).Load()

	assert.ErrorContains(t, err, "failed to unmarshal")
}

func TestFileSessions_CloseFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	sessions := NewFileSessions(path)
	require.NoError(t, sessions.UpdateSession(context.Background(), models.ChatSession{ChatID: 1, LastMessageID: 2}))

	require.NoError(t, sessions.Close())

	assert.FileExists(t, path)
}
