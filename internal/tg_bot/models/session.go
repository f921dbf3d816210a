package models

// ChatSession is the persisted per-chat record. LastMessageID is the id of the
// control panel message currently shown in the chat, 0 when there is none.
type ChatSession struct {
	ChatID        int64 `json:"-" db:"chat_id"`
	LastMessageID int   `json:"last_message_id" db:"last_message_id"`
}

// HasPanel reports whether a control panel message is recorded for the chat.
func (s ChatSession) HasPanel() bool {
	return s.LastMessageID > 0
}
