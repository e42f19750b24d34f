// Package mail abstracts the outbound SMTP and inbound IMAP sides of
// the approval loop so the services above it can be tested without a
// live mail server.
package mail

import (
	"context"
	"time"
)

type Attachment struct {
	Filename string
	Content  []byte
}

type Message struct {
	To          string
	ToName      string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// InboundMessage is one unread reply fetched from the inbox. Subject is
// the raw envelope subject, UID identifies the message for MarkSeen.
type InboundMessage struct {
	UID     uint32
	From    string
	Subject string
	Date    time.Time
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Inbox interface {
	// FetchUnseenReplies returns unread messages whose subject starts
	// with "RE:". It does not mark them seen; callers confirm each one
	// with MarkSeen after processing.
	FetchUnseenReplies(ctx context.Context) ([]InboundMessage, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}
