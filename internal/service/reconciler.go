package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fmeaflow/internal/mail"
	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
)

var (
	reconcilerProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fmeaflow_reconciler_processed_total",
		Help: "Approval replies successfully applied.",
	})
	reconcilerFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fmeaflow_reconciler_failed_total",
		Help: "Approval replies that errored while being applied.",
	})
)

// InboxDialer opens an inbound connection from the stored settings.
type InboxDialer func(model.EmailSetting) (mail.Inbox, error)

// Reconciler drains the reply mailbox and applies the decisions it finds.
// Each message is processed in isolation: a bad or malicious reply is
// skipped, a panic is contained, and the rest of the batch continues.
type Reconciler struct {
	settings repository.SettingsRepository
	tokens   *TokenService
	wf       *Workflow
	dial     InboxDialer
	now      func() time.Time

	mu        sync.Mutex
	lastCheck time.Time
}

func NewReconciler(settings repository.SettingsRepository, tokens *TokenService, wf *Workflow) *Reconciler {
	return &Reconciler{
		settings: settings,
		tokens:   tokens,
		wf:       wf,
		dial: func(cfg model.EmailSetting) (mail.Inbox, error) {
			return mail.DialInbox(cfg)
		},
		now: time.Now,
	}
}

// PollAndApply runs one reconciliation pass and returns a human-readable
// summary. Missing configuration and disabled TLS are reported in the
// summary, not as errors; only transport and store failures error out.
func (r *Reconciler) PollAndApply(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "reconciler.PollAndApply")
	defer span.End()

	cfg, err := r.settings.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "Email receiving is not configured.", nil
		}
		return "", fmt.Errorf("load email settings: %w", err)
	}
	if !cfg.ReceiverConfigured() {
		return "Email receiving is not configured.", nil
	}
	if !cfg.UseTLS {
		return "Email check skipped: TLS is disabled in the email settings.", nil
	}

	inbox, err := r.dial(*cfg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("connect inbox: %w", err)
	}
	defer inbox.Close()

	msgs, err := inbox.FetchUnseenReplies(ctx)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("fetch replies: %w", err)
	}

	processed := 0
	for _, msg := range msgs {
		if r.processReply(ctx, inbox, msg) {
			processed++
		}
	}

	r.mu.Lock()
	r.lastCheck = r.now()
	r.mu.Unlock()

	return fmt.Sprintf("Check complete. %d new approval(s) processed.", processed), nil
}

// processReply applies one reply. Returns true only when a decision was
// actually applied, and only then is the message flagged seen; anything the
// pass could not redeem (garbage subject, unknown, spent or expired token,
// a failed store) stays unread in the mailbox.
func (r *Reconciler) processReply(ctx context.Context, inbox mail.Inbox, msg mail.InboundMessage) (applied bool) {
	defer func() {
		if rec := recover(); rec != nil {
			reconcilerFailed.Inc()
			logEvent("reconciler.panic", map[string]any{"uid": msg.UID, "panic": fmt.Sprint(rec)})
			applied = false
		}
	}()

	raw := strings.TrimSpace(msg.Subject)
	if len(raw) < 3 || !strings.EqualFold(raw[:3], "RE:") {
		return false
	}
	raw = strings.TrimSpace(raw[3:])

	tok, err := r.tokens.Resolve(ctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput),
			errors.Is(err, ErrNotFound),
			errors.Is(err, ErrTokenExpired),
			errors.Is(err, repository.ErrTokenSpent):
			// Not redeemable; skip without touching the message.
		default:
			reconcilerFailed.Inc()
			logEvent("reconciler.resolve_error", map[string]any{"uid": msg.UID, "error": err.Error()})
		}
		return false
	}

	if err := r.wf.ApplyTokenDecision(ctx, tok); err != nil {
		if errors.Is(err, repository.ErrTokenSpent) || errors.Is(err, ErrDenied) {
			// Lost the redemption race, or the document moved on.
			return false
		}
		reconcilerFailed.Inc()
		logEvent("reconciler.apply_error", map[string]any{
			"uid":      msg.UID,
			"document": tok.DocumentID,
			"error":    err.Error(),
		})
		return false
	}

	r.markSeen(ctx, inbox, msg.UID)
	reconcilerProcessed.Inc()
	logEvent("reconciler.applied", map[string]any{
		"document": tok.DocumentID,
		"action":   string(tok.Action),
	})
	return true
}

func (r *Reconciler) markSeen(ctx context.Context, inbox mail.Inbox, uid uint32) {
	if err := inbox.MarkSeen(ctx, uid); err != nil {
		logEvent("reconciler.mark_seen_error", map[string]any{"uid": uid, "error": err.Error()})
	}
}

// LastCheckTime returns when the last pass completed; zero if never.
func (r *Reconciler) LastCheckTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastCheck
}

// logEvent emits a one-line JSON log record.
func logEvent(event string, fields map[string]any) {
	payload := map[string]any{"event": event, "time": time.Now().UTC().Format(time.RFC3339Nano)}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf(`{"event":%q}`, event)
		return
	}
	log.Println(string(b))
}
