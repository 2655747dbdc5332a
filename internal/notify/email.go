package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/chartpulse/internal/markdown"
)

// EmailConfig holds SMTP settings with credentials already resolved.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	To       []string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends HTML mail over SMTP. smtp.SendMail upgrades with STARTTLS
// when the server offers it, and PlainAuth refuses to run without TLS
// except against localhost.
type Email struct {
	cfg  EmailConfig
	send sendFunc
	now  func() time.Time
}

// NewEmail creates an Email notifier. Missing host, credentials or
// recipients disable it.
func NewEmail(cfg EmailConfig) *Email {
	return &Email{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Enabled() bool {
	return e.cfg.Host != "" && e.cfg.User != "" && e.cfg.Password != "" && len(e.cfg.To) > 0
}

// Send renders the markdown to HTML and mails it.
func (e *Email) Send(_ context.Context, title, body string) error {
	if !e.Enabled() {
		return nil
	}
	port := e.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(port))
	auth := smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)

	if err := e.send(addr, auth, e.cfg.User, e.cfg.To, e.message(title, body)); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}

func (e *Email) message(title, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.User)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", title)
	fmt.Fprintf(&b, "Date: %s\r\n", e.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString("<html><body>\n")
	b.WriteString(markdown.ToHTML(body))
	b.WriteString("\n</body></html>\r\n")
	return []byte(b.String())
}
