package mail

import (
	"bytes"
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"fmeaflow/internal/model"
)

const sendTimeout = 20 * time.Second

// SMTPSender sends through the server described by the stored email
// settings. Port 465 uses implicit TLS; any other port negotiates
// STARTTLS when UseTLS is set.
type SMTPSender struct {
	cfg model.EmailSetting
}

func NewSMTPSender(cfg model.EmailSetting) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func newSMTPClient(cfg model.EmailSetting) (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.SenderEmail),
		gomail.WithPassword(cfg.Password),
		gomail.WithTimeout(sendTimeout),
	}
	switch {
	case cfg.SMTPPort == 465:
		opts = append(opts, gomail.WithSSL())
	case cfg.UseTLS:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	return gomail.NewClient(cfg.SMTPHost, opts...)
}

// ProbeSMTP dials and authenticates without sending anything. Used by the
// settings connectivity test.
func ProbeSMTP(ctx context.Context, cfg model.EmailSetting) error {
	client, err := newSMTPClient(cfg)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	return client.Close()
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	client, err := newSMTPClient(s.cfg)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	m := gomail.NewMsg()
	if err := m.FromFormat(s.cfg.SenderName, s.cfg.SenderEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	for _, att := range msg.Attachments {
		if err := m.AttachReader(att.Filename, bytes.NewReader(att.Content)); err != nil {
			return fmt.Errorf("smtp attach %s: %w", att.Filename, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
