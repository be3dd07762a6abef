package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	auth "github.com/goliatone/go-portal-auth"
)

// Sender delivers messages, *gomail.Dialer satisfies it
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Config holds the SMTP settings
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	VerifyURL string
	Subject   string
	// SendTimeout caps how long SendVerification waits for the server
	SendTimeout time.Duration
}

// Notifier sends verification links over SMTP
type Notifier struct {
	config Config
	sender Sender
}

var _ auth.Notifier = (*Notifier)(nil)

// New creates a Notifier that dials the configured SMTP server
func New(cfg Config) *Notifier {
	return NewWithSender(cfg, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password))
}

// NewWithSender creates a Notifier on top of sender
func NewWithSender(cfg Config, sender Sender) *Notifier {
	if cfg.Subject == "" {
		cfg.Subject = "Verify your email address"
	}
	return &Notifier{config: cfg, sender: sender}
}

// SendVerification mails the verification link for token to recipient
func (n *Notifier) SendVerification(ctx context.Context, recipient, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if recipient == "" {
		return fmt.Errorf("no recipients specified")
	}

	link, err := VerificationLink(n.config.VerifyURL, token)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.config.From)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", n.config.Subject)
	msg.SetBody("text/plain", plainBody(link))
	msg.AddAlternative("text/html", htmlBody(link))

	if n.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.config.SendTimeout)
		defer cancel()
	}

	// gomail does not take a context, stop waiting once ctx is done
	done := make(chan error, 1)
	go func() {
		done <- n.sender.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send verification email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("verification email not confirmed: %w", ctx.Err())
	}
}

// VerificationLink appends token to base as the token query parameter
func VerificationLink(base, token string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("verification url is not configured")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid verification url: %w", err)
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func plainBody(link string) string {
	var b strings.Builder
	b.WriteString("Confirm your email address by opening the link below.\n\n")
	b.WriteString(link)
	b.WriteString("\n\nThe link expires in 24 hours.\n")
	return b.String()
}

func htmlBody(link string) string {
	return fmt.Sprintf(
		`<p>Confirm your email address by opening the link below.</p><p><a href="%s">Verify email</a></p><p>The link expires in 24 hours.</p>`,
		link,
	)
}

// LogNotifier writes the verification link to the logger. Use it in
// development when no SMTP server is available.
type LogNotifier struct {
	VerifyURL string
	Logger    auth.Logger
}

var _ auth.Notifier = LogNotifier{}

func (n LogNotifier) SendVerification(_ context.Context, recipient, token string) error {
	link, err := VerificationLink(n.VerifyURL, token)
	if err != nil {
		return err
	}

	if n.Logger != nil {
		n.Logger.Info("verification link", "recipient", recipient, "link", link)
	}

	return nil
}
