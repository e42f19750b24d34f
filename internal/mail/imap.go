package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"fmeaflow/internal/model"
)

// IMAPInbox is a live connection to the reply mailbox. One connection
// serves one poll cycle; callers dial, drain, and Close.
type IMAPInbox struct {
	c *client.Client
}

// DialInbox connects over implicit TLS, authenticates with the sender
// credentials and selects INBOX. The stored settings must have UseTLS
// enabled; plaintext IMAP is refused before any dial is attempted.
func DialInbox(cfg model.EmailSetting) (*IMAPInbox, error) {
	if !cfg.UseTLS {
		return nil, fmt.Errorf("imap: refusing plaintext connection to %s", cfg.IMAPHost)
	}

	addr := fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	if err := c.Login(cfg.SenderEmail, cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select("INBOX", false); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap select: %w", err)
	}
	return &IMAPInbox{c: c}, nil
}

func (in *IMAPInbox) FetchUnseenReplies(ctx context.Context) ([]InboundMessage, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := in.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- in.c.UidFetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, messages)
	}()

	var replies []InboundMessage
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		subject := msg.Envelope.Subject
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(subject)), "RE:") {
			continue
		}
		var from string
		if len(msg.Envelope.From) > 0 {
			from = msg.Envelope.From[0].Address()
		}
		replies = append(replies, InboundMessage{
			UID:     msg.Uid,
			From:    from,
			Subject: subject,
			Date:    msg.Envelope.Date,
		})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return replies, nil
}

func (in *IMAPInbox) MarkSeen(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := in.c.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("imap store: %w", err)
	}
	return nil
}

func (in *IMAPInbox) Close() error {
	return in.c.Logout()
}
