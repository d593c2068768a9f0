package remindertest

import (
	"context"
	"sync"

	"remindbot/internal/reminder"
)

// Sent is one captured chat message.
type Sent struct {
	UserID int64
	Msg    reminder.Message
}

// Push is one captured push notification.
type Push struct {
	UserID      int64
	Title, Body string
	Data        map[string]string
}

// Sender records everything it is asked to deliver.
type Sender struct {
	mu       sync.Mutex
	messages []Sent
	pushes   []Push

	// Err is returned by SendMessage when set.
	Err error
}

func (s *Sender) SendMessage(_ context.Context, userID int64, msg reminder.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Sent{UserID: userID, Msg: msg})
	return s.Err
}

func (s *Sender) SendPush(_ context.Context, userID int64, title, body string, data map[string]string) {
	s.mu.Lock()
	s.pushes = append(s.pushes, Push{UserID: userID, Title: title, Body: body, Data: data})
	s.mu.Unlock()
}

func (s *Sender) Messages() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.messages...)
}

func (s *Sender) Pushes() []Push {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Push(nil), s.pushes...)
}
