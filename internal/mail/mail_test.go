package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

type fakeSender struct {
	sent []*sgmail.SGMailV3
	resp *rest.Response
	err  error
}

func (f *fakeSender) SendWithContext(_ context.Context, email *sgmail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &rest.Response{StatusCode: 202}, nil
}

func TestSend(t *testing.T) {
	fake := &fakeSender{}
	m := NewWithSender(fake, "Railway-Stations", "info@example.org")

	err := m.Send(context.Background(), core.User{Name: "nickname", Email: "nick@example.org"}, "Review result", "Hello")
	require.NoError(t, err)

	require.Len(t, fake.sent, 1)
	msg := fake.sent[0]
	assert.Equal(t, "Review result", msg.Subject)
	assert.Equal(t, "info@example.org", msg.From.Address)
	require.Len(t, msg.Personalizations, 1)
	assert.Equal(t, "nick@example.org", msg.Personalizations[0].To[0].Address)
	require.Len(t, msg.Content, 1)
	assert.Equal(t, "text/plain", msg.Content[0].Type)
	assert.Equal(t, "Hello", msg.Content[0].Value)
}

func TestSend_Failures(t *testing.T) {
	user := core.User{Name: "nickname", Email: "nick@example.org"}

	m := NewWithSender(&fakeSender{err: errors.New("network")}, "a", "b")
	assert.Error(t, m.Send(context.Background(), user, "s", "b"))

	m = NewWithSender(&fakeSender{resp: &rest.Response{StatusCode: 401, Body: "unauthorized"}}, "a", "b")
	err := m.Send(context.Background(), user, "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	assert.Error(t, m.Send(context.Background(), core.User{Name: "no mail"}, "s", "b"))
}
