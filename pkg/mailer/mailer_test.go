package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/pkg/config"
)

func TestNewPicksImplementation(t *testing.T) {
	_, isLog := New(config.MailConfig{}, nil).(*LogMailer)
	assert.True(t, isLog)

	_, isSMTP := New(config.MailConfig{Host: "smtp.example", Port: 587, From: "a@example.com"}, nil).(*SMTPMailer)
	assert.True(t, isSMTP)
}

func TestLogMailerNeverFails(t *testing.T) {
	m := New(config.MailConfig{}, nil)
	require.NoError(t, m.Send(context.Background(), Message{To: "s@example.com", Subject: "hi"}))
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage("no-reply@tutorhub.local", Message{To: "s@example.com", ToName: "Sam", Subject: "Review", HTML: "<p>hi</p>"})
	assert.Equal(t, []string{"Review"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Sam")
	assert.Contains(t, buf.String(), "s@example.com")
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	m := New(config.MailConfig{Host: "smtp.invalid", Port: 25}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "s@example.com"}), context.Canceled)
}
