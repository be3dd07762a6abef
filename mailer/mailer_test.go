package mailer_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/goliatone/go-portal-auth/mailer"
)

type recordingSender struct {
	messages []*gomail.Message
	err      error
}

func (r *recordingSender) DialAndSend(m ...*gomail.Message) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, m...)
	return nil
}

func TestNotifier_SendVerification(t *testing.T) {
	sender := &recordingSender{}
	n := mailer.NewWithSender(mailer.Config{
		From:      "noreply@example.com",
		VerifyURL: "https://portal.example.com/verify-email",
	}, sender)

	err := n.SendVerification(context.Background(), "alice@example.com", "abc123")
	require.NoError(t, err)
	require.Len(t, sender.messages, 1)

	msg := sender.messages[0]
	assert.Equal(t, []string{"alice@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Verify your email address"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "portal.example.com/verify-email")
	assert.Contains(t, buf.String(), "abc123")
}

func TestNotifier_SenderFailure(t *testing.T) {
	n := mailer.NewWithSender(mailer.Config{VerifyURL: "https://portal.example.com/verify-email"}, &recordingSender{err: errors.New("smtp down")})

	err := n.SendVerification(context.Background(), "alice@example.com", "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestNotifier_CancelledContext(t *testing.T) {
	sender := &recordingSender{}
	n := mailer.NewWithSender(mailer.Config{VerifyURL: "https://portal.example.com/verify-email"}, sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.SendVerification(ctx, "alice@example.com", "abc123")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sender.messages)
}

type blockingSender struct {
	release chan struct{}
}

func (b blockingSender) DialAndSend(m ...*gomail.Message) error {
	<-b.release
	return nil
}

func TestNotifier_SendTimeout(t *testing.T) {
	sender := blockingSender{release: make(chan struct{})}
	defer close(sender.release)

	n := mailer.NewWithSender(mailer.Config{
		VerifyURL:   "https://portal.example.com/verify-email",
		SendTimeout: 20 * time.Millisecond,
	}, sender)

	start := time.Now()
	err := n.SendVerification(context.Background(), "alice@example.com", "abc123")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestVerificationLink(t *testing.T) {
	link, err := mailer.VerificationLink("https://portal.example.com/verify-email?lang=en", "tok")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com/verify-email?lang=en&token=tok", link)

	_, err = mailer.VerificationLink("", "tok")
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	n := mailer.LogNotifier{VerifyURL: "http://localhost:3000/verify-email"}
	assert.NoError(t, n.SendVerification(context.Background(), "bob@example.com", "tok"))
}
