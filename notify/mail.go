package notify

import (
	"context"
	"net/url"
	"strings"
	"time"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
)

// Mail is a rendered message ready for delivery.
type Mail struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers a Mail.
type Mailer interface {
	Deliver(ctx context.Context, m Mail) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, m Mail) error

// Deliver implements Mailer.
func (f MailerFunc) Deliver(ctx context.Context, m Mail) error {
	return f(ctx, m)
}

// LogMailer writes mail to a logger. Meant for development, the body
// carries the activation link.
type LogMailer struct {
	logger accounts.Logger
}

// NewLogMailer returns a LogMailer.
func NewLogMailer(logger accounts.Logger) *LogMailer {
	if logger == nil {
		logger = nopLogger{}
	}
	return &LogMailer{logger: logger}
}

// Deliver implements Mailer.
func (m *LogMailer) Deliver(ctx context.Context, mail Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("mail", "to", mail.To, "from", mail.From, "subject", mail.Subject, "body", mail.Text)
	return nil
}

// MailNotifier renders a Notification into a Mail and hands it to a Mailer.
type MailNotifier struct {
	mailer   Mailer
	renderer *Renderer
	from     string
	baseURL  string
	ttl      time.Duration
	logger   accounts.Logger
}

// Option configures a MailNotifier.
type Option func(*MailNotifier)

// WithFrom sets the sender address.
func WithFrom(from string) Option {
	return func(n *MailNotifier) {
		n.from = from
	}
}

// WithBaseURL sets the public URL the activation link is built on.
func WithBaseURL(base string) Option {
	return func(n *MailNotifier) {
		n.baseURL = strings.TrimRight(base, "/")
	}
}

// WithTokenTTL sets the lifetime quoted in the message.
func WithTokenTTL(ttl time.Duration) Option {
	return func(n *MailNotifier) {
		n.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l accounts.Logger) Option {
	return func(n *MailNotifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewMailNotifier returns a Notifier delivering through mailer.
func NewMailNotifier(mailer Mailer, renderer *Renderer, opts ...Option) (*MailNotifier, error) {
	if mailer == nil {
		return nil, goerrors.New("mailer is required", goerrors.CategoryBadInput)
	}
	if renderer == nil {
		return nil, goerrors.New("renderer is required", goerrors.CategoryBadInput)
	}

	n := &MailNotifier{
		mailer:   mailer,
		renderer: renderer,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n, nil
}

// Link returns the URL that redeems the token of note.
func (n *MailNotifier) Link(note accounts.Notification) string {
	switch note.Purpose {
	case accounts.PurposeActivation:
		return n.baseURL + "/activate/" + url.PathEscape(note.Token)
	default:
		return n.baseURL + "/" + url.PathEscape(note.Purpose.String()) + "/" + url.PathEscape(note.Token)
	}
}

// Send implements accounts.Notifier.
func (n *MailNotifier) Send(ctx context.Context, note accounts.Notification) error {
	if note.Destination == "" {
		return goerrors.New("notification has no destination", goerrors.CategoryBadInput).
			WithTextCode("NOTIFICATION_INVALID").
			WithMetadata(map[string]any{"account_id": note.AccountID})
	}

	rendered, err := n.renderer.Render(note.Purpose, map[string]any{
		"destination": note.Destination,
		"purpose":     note.Purpose.String(),
		"link":        n.Link(note),
		"expires_in":  ExpiresIn(n.ttl),
	})
	if err != nil {
		return err
	}

	mail := Mail{
		To:      note.Destination,
		From:    n.from,
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	}

	if err := n.mailer.Deliver(ctx, mail); err != nil {
		n.logger.Warn("mail delivery failed", "account_id", note.AccountID, "purpose", note.Purpose.String(), "error", err)
		return err
	}

	n.logger.Debug("mail delivered", "account_id", note.AccountID, "purpose", note.Purpose.String())
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
