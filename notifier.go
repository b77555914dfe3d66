package rbac

import (
	"bytes"
	"context"
	"crypto/tls"
	"text/template"

	mail "github.com/go-mail/mail"
	goerrors "github.com/goliatone/go-errors"
)

// MailSender delivers a rendered message. SMTPSender is the production
// implementation; tests stub this out.
type MailSender interface {
	Send(to, subject, body string) error
}

// TemplateNotifier renders the auth_templates row registered for an
// event and hands the result to a MailSender. Subject and body are Go
// templates over the notification variables.
type TemplateNotifier struct {
	repos  RepositoryManager
	sender MailSender
	logger Logger
}

func NewTemplateNotifier(repos RepositoryManager, sender MailSender) *TemplateNotifier {
	return &TemplateNotifier{
		repos:  repos,
		sender: sender,
		logger: defLogger{},
	}
}

func (n *TemplateNotifier) WithLogger(logger Logger) *TemplateNotifier {
	if logger != nil {
		n.logger = logger
	}
	return n
}

// Notify satisfies the Notifier interface.
func (n *TemplateNotifier) Notify(ctx context.Context, event string, to string, variables map[string]string) error {
	record, err := n.repos.AuthTemplates().GetByEvent(ctx, event)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryNotFound, "no template registered for event").
			WithMetadata(map[string]any{"event": event})
	}

	subject, err := renderTemplate("subject", record.Subject, variables)
	if err != nil {
		return err
	}

	body, err := renderTemplate("body", record.Body, variables)
	if err != nil {
		return err
	}

	if err := n.sender.Send(to, subject, body); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "notification delivery failed").
			WithMetadata(map[string]any{"event": event})
	}

	n.logger.Debug("notification sent event=%s to=%s", event, to)
	return nil
}

func renderTemplate(name, text string, variables map[string]string) (string, error) {
	tpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "notification template is invalid")
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, variables); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "notification template render failed")
	}

	return buf.String(), nil
}

// SMTPSender implements MailSender over SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	SSL                bool
	InsecureSkipVerify bool
}

func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{
		Host: host,
		Port: port,
		From: from,
		User: user,
		Pass: pass,
	}
}

// Send delivers one plain-text message.
func (s *SMTPSender) Send(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.SSL = s.SSL
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify,
	}

	if err := d.DialAndSend(m); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp send failed")
	}

	return nil
}

// NoopNotifier drops every notification. Useful in tests and local
// setups without an SMTP relay.
type NoopNotifier struct{}

// Notify satisfies the Notifier interface.
func (NoopNotifier) Notify(context.Context, string, string, map[string]string) error {
	return nil
}
