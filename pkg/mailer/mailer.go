package mailer

import "context"

// Message is an outbound email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Body    string
}

// Mailer is any service that can deliver email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
