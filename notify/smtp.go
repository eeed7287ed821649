package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SMTPMailer delivers mail through an SMTP relay. STARTTLS and AUTH are used
// when the server advertises them.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	tls      *tls.Config
	clock    func() time.Time
}

// SMTPOption configures an SMTPMailer.
type SMTPOption func(*SMTPMailer)

// WithSMTPAuth sets PLAIN auth credentials.
func WithSMTPAuth(username, password string) SMTPOption {
	return func(m *SMTPMailer) {
		m.username = username
		m.password = password
	}
}

// WithSMTPTLSConfig overrides the STARTTLS configuration.
func WithSMTPTLSConfig(cfg *tls.Config) SMTPOption {
	return func(m *SMTPMailer) {
		m.tls = cfg
	}
}

// NewSMTPMailer returns a Mailer for host:port.
func NewSMTPMailer(host string, port int, opts ...SMTPOption) *SMTPMailer {
	m := &SMTPMailer{
		host:  host,
		port:  port,
		tls:   &tls.Config{ServerName: host},
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Deliver implements Mailer.
func (m *SMTPMailer) Deliver(ctx context.Context, mail Mail) error {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return smtpError(err, "dial", addr)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return smtpError(err, "handshake", addr)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok && m.tls != nil {
		if err := client.StartTLS(m.tls); err != nil {
			return smtpError(err, "starttls", addr)
		}
	}

	if m.username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
				return smtpError(err, "auth", addr)
			}
		}
	}

	if err := client.Mail(mail.From); err != nil {
		return smtpError(err, "mail from", addr)
	}
	if err := client.Rcpt(mail.To); err != nil {
		return smtpError(err, "rcpt to", addr)
	}

	w, err := client.Data()
	if err != nil {
		return smtpError(err, "data", addr)
	}

	body, err := buildMessage(mail, m.clock())
	if err != nil {
		w.Close()
		return err
	}

	if _, err := w.Write(body); err != nil {
		w.Close()
		return smtpError(err, "write", addr)
	}
	if err := w.Close(); err != nil {
		return smtpError(err, "data close", addr)
	}

	return client.Quit()
}

func smtpError(err error, stage, addr string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp delivery failed").
		WithTextCode("SMTP_FAILED").
		WithMetadata(map[string]any{"stage": stage, "addr": addr})
}

// buildMessage renders mail as an RFC 5322 message. A text/plain body is
// sent alone, otherwise text and html go in a multipart/alternative.
func buildMessage(mail Mail, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	header := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}

	header("From", mail.From)
	header("To", mail.To)
	header("Subject", mime.QEncoding.Encode("utf-8", mail.Subject))
	header("Date", now.UTC().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@go-accounts>", uuid.NewString()))
	header("MIME-Version", "1.0")

	if mail.HTML == "" {
		header("Content-Type", `text/plain; charset="utf-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(mail.Text)
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header("Content-Type", fmt.Sprintf(`multipart/alternative; boundary="%s"`, mw.Boundary()))
	buf.WriteString("\r\n")

	parts := []struct{ kind, content string }{
		{"text/plain", mail.Text},
		{"text/html", mail.HTML},
	}
	for _, p := range parts {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type": {p.kind + `; charset="utf-8"`},
		})
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "build mail body")
		}
		if _, err := pw.Write([]byte(p.content)); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "build mail body")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "build mail body")
	}

	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}
