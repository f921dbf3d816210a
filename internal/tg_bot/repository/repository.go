// Package repository stores the chat sessions of the bot: the id of the control
// panel message last sent to every chat.
package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
	"github.com/sirupsen/logrus"
)

// fileState is the layout of the sessions file.
type fileState struct {
	Users map[int64]*models.ChatSession `json:"users"`
}

// FileSessions keeps chat sessions in memory and persists them to a JSON file.
type FileSessions struct {
	sessions        map[int64]*models.ChatSession // In-memory store of sessions by chat ID.
	storageFilePath string                        // File path for persisting sessions.
	mu              sync.RWMutex                  // Protects sessions from concurrent access
}

// NewFileSessions creates a new FileSessions instance with an empty memory buffer.
// Arguments:
//   - storageFilePath: file path where sessions are persisted.
//
// Returns a pointer to a FileSessions.
func NewFileSessions(storageFilePath string) *FileSessions {
	return &FileSessions{
		sessions:        make(map[int64]*models.ChatSession),
		storageFilePath: storageFilePath,
	}
}

// Load reads sessions from the storage file into memory. A missing or empty file
// leaves the buffer empty.
func (f *FileSessions) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.storageFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Infof("Storage file %s does not exist, starting with empty buffer", f.storageFilePath)
			return nil
		}
		err = fmt.Errorf("failed to read storage file %s: %w", f.storageFilePath, err)
		logrus.WithError(err).Error("Error reading storage file")
		return err
	}

	if len(data) == 0 {
		logrus.Infof("Storage file %s is empty, starting with empty buffer", f.storageFilePath)
		return nil
	}

	var state fileState
	if err = json.Unmarshal(data, &state); err != nil {
		err = fmt.Errorf("failed to unmarshal storage file %s: %w", f.storageFilePath, err)
		logrus.WithError(err).Error("Error parsing storage file")
		return err
	}

	f.sessions = make(map[int64]*models.ChatSession, len(state.Users))
	for chatID, session := range state.Users {
		if session == nil {
			continue
		}
		session.ChatID = chatID
		f.sessions[chatID] = session
	}
	logrus.Infof("Loaded %d chat sessions from %s", len(f.sessions), f.storageFilePath)
	return nil
}

// GetSession returns the session of a chat, or a zero session for an unknown chat.
func (f *FileSessions) GetSession(_ context.Context, chatID int64) (models.ChatSession, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	session, ok := f.sessions[chatID]
	if !ok {
		return models.ChatSession{ChatID: chatID}, nil
	}
	return *session, nil
}

// UpdateSession merges the last message id into the chat's session.
func (f *FileSessions) UpdateSession(_ context.Context, session models.ChatSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.sessions[session.ChatID]
	if !ok {
		stored = &models.ChatSession{ChatID: session.ChatID}
		f.sessions[session.ChatID] = stored
	}
	stored.LastMessageID = session.LastMessageID
	return nil
}

// Flush persists the in-memory sessions to the storage file.
// Returns an error if the file cannot be written.
func (f *FileSessions) Flush() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	startTime := time.Now()

	// Write to a temporary file first
	tempPath := f.storageFilePath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		err = fmt.Errorf("failed to open temp file %s: %w", tempPath, err)
		logrus.WithError(err).Error("Error saving sessions to file")
		return err
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	if err = encoder.Encode(fileState{Users: f.sessions}); err != nil {
		_ = file.Close()
		err = fmt.Errorf("failed to encode sessions to temp file %s: %w", tempPath, err)
		logrus.WithError(err).Error("Error encoding sessions")
		return err
	}
	if err = writer.Flush(); err != nil {
		_ = file.Close()
		err = fmt.Errorf("failed to flush temp file %s: %w", tempPath, err)
		logrus.WithError(err).Error("Error flushing sessions")
		return err
	}
	if err = file.Close(); err != nil {
		err = fmt.Errorf("failed to close temp file %s: %w", tempPath, err)
		logrus.WithError(err).Error("Error closing sessions file")
		return err
	}

	// Atomically rename a temp file to final destination
	if err = os.Rename(tempPath, f.storageFilePath); err != nil {
		err = fmt.Errorf("failed to rename temp file %s to %s: %w", tempPath, f.storageFilePath, err)
		logrus.WithError(err).Error("Error finalizing sessions save")
		return err
	}

	logrus.Infof("Saved %d chat sessions to %s in %v", len(f.sessions), f.storageFilePath, time.Since(startTime))
	return nil
}

// Close flushes the sessions one last time.
func (f *FileSessions) Close() error {
	return f.Flush()
}
