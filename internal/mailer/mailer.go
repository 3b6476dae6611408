package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Sender delivers one email, best effort.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends through an authenticated SMTP submission endpoint.
type SMTPSender struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

func NewSMTPSender(addr, from, username, password string) *SMTPSender {
	return &SMTPSender{Addr: addr, From: from, Username: username, Password: password}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("smtp send: empty recipient")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	host := s.Addr
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}

	// port 465 is implicit TLS; submission ports (587 and friends)
	// upgrade with STARTTLS
	var c *smtp.Client
	var err error
	if implicitTLS(s.Addr) {
		c, err = smtp.DialTLS(s.Addr, tlsCfg)
	} else {
		c, err = smtp.DialStartTLS(s.Addr, tlsCfg)
	}
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer c.Close()

	// tear the connection down if the context dies mid-send
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()

	if err := c.Auth(sasl.NewPlainClient("", s.Username, s.Password)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.SendMail(s.From, []string{to}, strings.NewReader(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return c.Quit()
}

// implicitTLS reports whether addr targets an implicit-TLS endpoint.
func implicitTLS(addr string) bool {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return true
	}
	return addr[i+1:] == "465" || addr[i+1:] == "smtps"
}
