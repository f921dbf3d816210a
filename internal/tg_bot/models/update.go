package models

// Update is one inbound chat event. It is either *CallbackQuery or *Message;
// a nil Update means there was nothing to handle.
type Update interface {
	isUpdate()
}

// CallbackQuery is an inline button press. Data carries the device MAC.
type CallbackQuery struct {
	ID        string
	ChatID    int64
	MessageID int
	Data      string
}

// Message is a text message typed by the user.
type Message struct {
	ChatID int64
	Text   string
}

func (*CallbackQuery) isUpdate() {}
func (*Message) isUpdate()       {}

// Button is a single inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard layout independent of the chat transport.
type Keyboard struct {
	Rows [][]Button
}
