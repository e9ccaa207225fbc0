package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// EmailConfig is the SMTP account used for notifications.
type EmailConfig struct {
	Host      string
	Port      int
	Sender    string
	Password  string
	Recipient string
	Subject   string
}

// Email sends notifications through an SMTP server. Port 465 uses implicit
// TLS; other ports use STARTTLS when the server offers it.
type Email struct {
	cfg     EmailConfig
	timeout time.Duration
}

// NewEmail validates cfg and constructs the channel.
func NewEmail(cfg EmailConfig) (*Email, error) {
	if cfg.Host == "" || cfg.Sender == "" || cfg.Recipient == "" || cfg.Password == "" {
		return nil, errors.New("email channel: host, sender, password and recipient required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 465
	}
	return &Email{cfg: cfg, timeout: 15 * time.Second}, nil
}

// Name implements Sink.
func (e *Email) Name() string {
	return "email"
}

func (e *Email) message(text string, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + e.cfg.Sender + "\r\n")
	b.WriteString("To: " + e.cfg.Recipient + "\r\n")
	b.WriteString("Subject: " + e.cfg.Subject + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(text)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// Send delivers text as a plain mail.
func (e *Email) Send(ctx context.Context, text string) error {
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	dialer := &net.Dialer{Timeout: e.timeout}

	var conn net.Conn
	var err error
	if e.cfg.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: e.cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(e.timeout))
	}

	c, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if e.cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: e.cfg.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if err := c.Auth(smtp.PlainAuth("", e.cfg.Sender, e.cfg.Password, e.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(e.cfg.Sender); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := c.Rcpt(e.cfg.Recipient); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(e.message(text, time.Now())); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}
