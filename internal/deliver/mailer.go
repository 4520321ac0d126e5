package deliver

import (
	"fmt"
	"os"

	"github.com/wneessen/go-mail"
)

// Transport sends one outgoing message. Satisfied by Mailer in
// production and by fakes in tests.
type Transport interface {
	Send(subject, textBody, htmlBody string, attachments []string) error
}

// SMTPConfig holds the delivery endpoint. Credentials are resolved from
// the named environment variables at construction time.
type SMTPConfig struct {
	Server  string
	Port    int
	UserEnv string
	PassEnv string
	To      string
}

// Mailer sends digests over SMTP with implicit TLS.
type Mailer struct {
	server   string
	port     int
	username string
	password string
	to       string
}

func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{
		server:   cfg.Server,
		port:     cfg.Port,
		username: os.Getenv(cfg.UserEnv),
		password: os.Getenv(cfg.PassEnv),
		to:       cfg.To,
	}
}

// Send builds and sends one message. htmlBody, when non-empty, rides
// along as the multipart alternative.
func (m *Mailer) Send(subject, textBody, htmlBody string, attachments []string) error {
	if m.username == "" || m.password == "" {
		return fmt.Errorf("smtp credentials not set in environment")
	}
	to := m.to
	if to == "" {
		to = m.username
	}

	msg := mail.NewMsg()
	if err := msg.From(m.username); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.username, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	if htmlBody != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	}
	for _, path := range attachments {
		msg.AttachFile(path)
	}

	client, err := mail.NewClient(m.server,
		mail.WithPort(m.port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.username),
		mail.WithPassword(m.password),
	)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}
