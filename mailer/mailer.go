package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/cernopendata/coldstore/config"
)

// This interface is the mail transport used to notify request subscribers.
// Delivery is best-effort: a failed notification is logged by the caller
// and never rolls anything back.
type Mailer interface {
	Send(subject, body string, recipients []string) error
}

// creates a mailer from the configuration; without an SMTP host the mailer
// only logs the notifications it would have sent
func New() Mailer {
	if config.Mail.Host == "" {
		return &LogMailer{}
	}
	return &SMTPMailer{
		Addr:     fmt.Sprintf("%s:%d", config.Mail.Host, config.Mail.Port),
		Host:     config.Mail.Host,
		Login:    config.Mail.Login,
		Password: config.Mail.Password,
		Sender:   config.Mail.Sender,
	}
}

// the subject and body of a request completion notification
func CompletionMessage(requestID uint) (string, string) {
	subject := fmt.Sprintf("Transfer %d Completed", requestID)
	body := fmt.Sprintf("Hello,\n\nYour transfer with ID %d has been completed "+
		"successfully.\n\nBest regards.", requestID)
	return subject, body
}

// This type delivers mail over SMTP.
type SMTPMailer struct {
	Addr     string
	Host     string
	Login    string
	Password string
	Sender   string
}

func (m *SMTPMailer) Send(subject, body string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}
	message := strings.Join([]string{
		fmt.Sprintf("From: %s", m.Sender),
		fmt.Sprintf("To: %s", strings.Join(recipients, ", ")),
		fmt.Sprintf("Subject: %s", subject),
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.Login != "" {
		auth = smtp.PlainAuth("", m.Login, m.Password, m.Host)
	}
	return smtp.SendMail(m.Addr, auth, m.Sender, recipients, []byte(message))
}

// This type only logs notifications; it serves deployments without an SMTP
// relay.
type LogMailer struct{}

func (m *LogMailer) Send(subject, body string, recipients []string) error {
	slog.Info(fmt.Sprintf("Mail '%s' for %s (no SMTP host configured)",
		subject, strings.Join(recipients, ", ")))
	return nil
}
