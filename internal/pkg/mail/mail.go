package mail

import (
	"context"
	"io"
)

// Message is an email payload. When both bodies are set the message is sent
// as multipart/alternative.
type Message struct {
	// From overrides the configured sender.
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mail sends email messages.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
