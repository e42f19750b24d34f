package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"net/url"

	"fmeaflow/internal/mail"
	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

// SenderFactory builds an outbound sender from the stored settings. The
// indirection exists so tests can swap the SMTP transport out.
type SenderFactory func(model.EmailSetting) mail.Sender

// Notifier composes and sends the approval-request email. It validates the
// stored settings and the approver's address before touching the network,
// and wraps transport failures in NotificationError so the submit
// transaction knows to roll back.
type Notifier struct {
	settings  repository.SettingsRepository
	newSender SenderFactory
}

func NewNotifier(settings repository.SettingsRepository) *Notifier {
	return &Notifier{
		settings: settings,
		newSender: func(cfg model.EmailSetting) mail.Sender {
			return mail.NewSMTPSender(cfg)
		},
	}
}

// RequestApproval emails the approver one message carrying the rendered
// document and two tokenized reply actions.
func (n *Notifier) RequestApproval(ctx context.Context, doc *model.Document, approver *model.User, tokens [2]model.ApprovalToken) error {
	cfg, err := n.settings.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMailNotConfigured
		}
		return fmt.Errorf("load email settings: %w", err)
	}
	if !cfg.SenderConfigured() {
		return ErrMailNotConfigured
	}
	if approver == nil || !model.ValidEmail(approver.Email) {
		return fmt.Errorf("%w: approver has no usable email address", ErrInvalidInput)
	}

	msg := composeApprovalRequest(cfg, doc, approver, tokens)
	if err := n.newSender(*cfg).Send(ctx, msg); err != nil {
		return &NotificationError{Err: err}
	}
	return nil
}

func composeApprovalRequest(cfg *model.EmailSetting, doc *model.Document, approver *model.User, tokens [2]model.ApprovalToken) mail.Message {
	var approveID, rejectID string
	for _, t := range tokens {
		switch t.Action {
		case model.ActionApprove:
			approveID = t.ID
		case model.ActionReject:
			rejectID = t.ID
		}
	}

	body := fmt.Sprintf(`<html><body>
<p>Hello %s,</p>
<p>The document <b>%s</b> (version %s) has been submitted for your review.
The current revision is attached.</p>
<p>
<a href="%s">Approve</a> &nbsp;|&nbsp; <a href="%s">Reject</a>
</p>
<p>Replying through either link sends a confirmation from your mail client.
The links remain valid for seven days.</p>
</body></html>`,
		html.EscapeString(approver.Name),
		html.EscapeString(doc.Name),
		html.EscapeString(doc.Version),
		replyLink(cfg.SenderEmail, approveID),
		replyLink(cfg.SenderEmail, rejectID),
	)

	return mail.Message{
		To:       approver.Email,
		ToName:   approver.Name,
		Subject:  fmt.Sprintf("Approval requested: %s (v%s)", doc.Name, doc.Version),
		HTMLBody: body,
		Attachments: []mail.Attachment{{
			Filename: fmt.Sprintf("%s_v%s.xlsx", doc.Name, doc.Version),
			Content:  doc.Content,
		}},
	}
}

// replyLink builds the mailto action whose reply subject carries the token.
// The reconciler strips the "RE: " prefix and parses the remainder as the
// token UUID, so the subject must be exactly "RE: <token>".
func replyLink(to, tokenID string) string {
	return fmt.Sprintf("mailto:%s?subject=%s", to, url.PathEscape("RE: "+tokenID))
}
