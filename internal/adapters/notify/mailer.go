// Package notify delivers rendered reports by email.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

const (
	defaultDialTimeout = 30 * time.Second
	subjectBase        = "Family League - "
	subjectDateLayout  = "January 02, 2006"
)

// Config holds the SMTP settings.
type Config struct {
	Server     string
	Port       int
	Sender     string
	Password   string
	Recipients []string
}

// Complete reports whether every setting needed to send is present.
func (c Config) Complete() bool {
	return c.Server != "" && c.Port > 0 && c.Sender != "" && c.Password != "" && len(c.Recipients) > 0
}

// Message is one report email. Either body may be empty.
type Message struct {
	// SubjectPrefix is placed before the date, e.g. "Weekly Report - ".
	SubjectPrefix string
	Date          model.Date
	Text          string
	HTML          string
}

// Subject returns "Family League - <prefix><Month DD, YYYY>".
func (m Message) Subject() string {
	return subjectBase + m.SubjectPrefix + m.Date.Time().Format(subjectDateLayout)
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type transport func(ctx context.Context, cfg Config, raw []byte) error

// Mailer sends reports over SMTP with STARTTLS.
type Mailer struct {
	cfg  Config
	log  logger.Logger
	send transport
	now  func() time.Time
}

var _ Sender = (*Mailer)(nil)

// NewMailer returns a Mailer for cfg.
func NewMailer(cfg Config, log logger.Logger) *Mailer {
	if log == nil {
		log = logger.Nop()
	}
	return &Mailer{cfg: cfg, log: log, send: sendSMTP, now: time.Now}
}

// Send builds a multipart/alternative message and delivers it to every
// recipient in one transaction.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Complete() {
		metrics.RecordEmail("not_configured")
		return ErrNotConfigured
	}
	raw, err := buildMessage(m.cfg, msg, m.now())
	if err != nil {
		metrics.RecordEmail("error")
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	if err := m.send(ctx, m.cfg, raw); err != nil {
		metrics.RecordEmail("error")
		m.log.Error(ctx, "email delivery failed", logger.Error(err))
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	metrics.RecordEmail("sent")
	m.log.Info(ctx, "report email sent",
		logger.String("subject", msg.Subject()),
		logger.Int("recipients", len(m.cfg.Recipients)),
	)
	return nil
}

func buildMessage(cfg Config, msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }

	header("From", cfg.Sender)
	header("To", strings.Join(cfg.Recipients, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject()))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	mw := multipart.NewWriter(&buf)
	header("Content-Type", "multipart/alternative; boundary="+strconv.Quote(mw.Boundary()))
	buf.WriteString("\r\n")

	parts := []struct{ typ, body string }{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.typ + "; charset=UTF-8"},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sendSMTP(ctx context.Context, cfg Config, raw []byte) error {
	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port))
	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, cfg.Server)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: cfg.Server, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("start TLS: %w", err)
		}
	}
	if err := client.Auth(smtp.PlainAuth("", cfg.Sender, cfg.Password, cfg.Server)); err != nil {
		return fmt.Errorf("SMTP authentication: %w", err)
	}
	if err := client.Mail(cfg.Sender); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	for _, rcpt := range cfg.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("set recipient %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start message: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	_ = client.Quit()
	return nil
}
