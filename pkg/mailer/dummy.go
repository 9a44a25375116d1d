package mailer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dummy logs messages instead of delivering them. It records everything it
// receives so tests can assert on emitted mail.
type Dummy struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Mailer = (*Dummy)(nil)

// NewDummy constructs a logging mailer.
func NewDummy(logger *zap.Logger) *Dummy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dummy{logger: logger}
}

// Send records the message and logs it.
func (m *Dummy) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	m.logger.Info("mail message",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Sent returns a copy of all recorded messages.
func (m *Dummy) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
