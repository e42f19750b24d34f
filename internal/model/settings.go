package model

import "strings"

// EmailSetting is the singleton mail-server configuration row read by the
// outbound notifier and inbound reconciler. Mutated only through the
// explicit settings-save action.
type EmailSetting struct {
	SMTPHost    string `json:"smtp_host"`
	SMTPPort    int    `json:"smtp_port"`
	IMAPHost    string `json:"imap_host"`
	IMAPPort    int    `json:"imap_port"`
	SenderEmail string `json:"sender_email"`
	SenderName  string `json:"sender_name"`
	Password    string `json:"-"`
	UseTLS      bool   `json:"use_tls"`
}

// SenderConfigured reports whether the outbound side has everything the
// notifier needs before it attempts any network I/O.
func (s *EmailSetting) SenderConfigured() bool {
	return s != nil &&
		s.SMTPHost != "" &&
		s.Password != "" &&
		ValidEmail(s.SenderEmail)
}

// ReceiverConfigured reports whether the inbound side can be polled at all.
func (s *EmailSetting) ReceiverConfigured() bool {
	return s != nil && s.IMAPHost != "" && s.Password != ""
}

// ValidEmail is the same loose shape check the rest of the workflow relies
// on: a non-empty address containing "@".
func ValidEmail(addr string) bool {
	return strings.TrimSpace(addr) != "" && strings.Contains(addr, "@")
}
