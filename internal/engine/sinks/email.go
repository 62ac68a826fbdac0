package sinks

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/pdfebc/pdfebc-web/internal/engine"
	"github.com/wneessen/go-mail"
)

const (
	EmailSinkKind = "email"

	DefaultEmailSubject = "Your compressed PDF files"
)

// MailSender sends fully built messages. *mail.Client satisfies it.
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Subject  string
	TLS      string
}

// NewMailClient builds an SMTP client from cfg. Authentication is only enabled when a
// username is set.
func NewMailClient(cfg EmailConfig) (*mail.Client, error) {
	var opts []mail.Option
	if cfg.Port != 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}

	switch cfg.TLS {
	case "", "opportunistic":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	case "mandatory":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		return nil, fmt.Errorf("unsupported tls policy %q", cfg.TLS)
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return client, nil
}

// EmailSink attaches every written artifact to one message and sends it on Close.
type EmailSink struct {
	sender      MailSender
	to          []string
	msg         *mail.Msg
	attachments []string
	closed      bool
}

func NewEmailSink(sender MailSender, cfg EmailConfig) (*EmailSink, error) {
	msg := mail.NewMsg()
	if err := msg.From(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", cfg.From, err)
	}
	if len(cfg.To) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	if err := msg.To(cfg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultEmailSubject
	}
	msg.Subject(subject)

	return &EmailSink{
		sender: sender,
		to:     cfg.To,
		msg:    msg,
	}, nil
}

func (s *EmailSink) Name() string {
	return fmt.Sprintf("email(%s)", strings.Join(s.to, ","))
}

func (s *EmailSink) Kind() string {
	return EmailSinkKind
}

// Message exposes the message being assembled.
func (s *EmailSink) Message() *mail.Msg {
	return s.msg
}

func (s *EmailSink) Write(ctx context.Context, p string, data io.Reader) error {
	if s.closed {
		return fmt.Errorf("email sink is closed")
	}

	name := path.Base(p)
	if err := s.msg.AttachReader(name, data); err != nil {
		return fmt.Errorf("failed to attach %s: %w", name, err)
	}
	s.attachments = append(s.attachments, name)
	return nil
}

// Close sends the message. A sink with nothing attached sends nothing and fails.
func (s *EmailSink) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	if len(s.attachments) == 0 {
		return &DeliveryError{Sink: s.Name(), Err: fmt.Errorf("no attachments to send")}
	}

	s.msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Hello,\n\nThe compressed files are attached:\n\n  %s\n",
		strings.Join(s.attachments, "\n  "),
	))

	if err := s.sender.DialAndSendWithContext(ctx, s.msg); err != nil {
		return &DeliveryError{Sink: s.Name(), Err: err}
	}
	return nil
}

var _ engine.Sink = (*EmailSink)(nil)
