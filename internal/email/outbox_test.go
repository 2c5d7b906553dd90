package email

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/triage/internal/history"
	"github.com/supportdesk/triage/internal/inbox"
	"github.com/supportdesk/triage/internal/source"
)

type fakeSender struct {
	fail bool
	sent []Message
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(ctx context.Context, msg Message) Result {
	if f.fail {
		return Result{Success: false, Error: errors.New("SMTP error: check your configuration")}
	}
	f.sent = append(f.sent, msg)
	return Result{Success: true, MessageID: msg.ID}
}

func newTestOutbox(t *testing.T, sender Sender) (*Outbox, *history.Store) {
	t.Helper()

	proc, err := inbox.NewProcessor(nil, nil)
	require.NoError(t, err)
	store := inbox.NewStore(source.StaticSource{{
		ID: "email_1",
		Fields: map[string]string{
			source.FieldSender:   "jane@example.com",
			source.FieldSubject:  "Login issue",
			source.FieldBody:     "I need help resetting my password",
			source.FieldSentDate: "2024-01-01",
		},
	}}, proc)
	_, err = store.Load(context.Background())
	require.NoError(t, err)

	hist, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	return &Outbox{Sender: sender, Store: store, History: hist, From: "support@acme.io"}, hist
}

func TestOutboxSendResolves(t *testing.T) {
	sender := &fakeSender{}
	o, hist := newTestOutbox(t, sender)

	res, err := o.Send(context.Background(), "email_1", "")
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "jane@example.com", sender.sent[0].To)
	assert.Equal(t, "Re: Login issue", sender.sent[0].Subject)

	e, _ := o.Store.Get("email_1")
	assert.Equal(t, inbox.StatusResolved, e.Status)
	assert.Equal(t, sender.sent[0].Body, e.AIResponse)

	last, err := hist.LastForEmail("email_1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, history.StatusSent, last.Status)
	assert.False(t, last.Edited)
	assert.Equal(t, "Account Access", last.Category)
}

func TestOutboxSendFailureLeavesPending(t *testing.T) {
	o, hist := newTestOutbox(t, &fakeSender{fail: true})

	res, err := o.Send(context.Background(), "email_1", "Custom body")
	require.NoError(t, err)
	assert.False(t, res.Success)

	e, _ := o.Store.Get("email_1")
	assert.Equal(t, inbox.StatusPending, e.Status)

	last, err := hist.LastForEmail("email_1")
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, last.Status)
	assert.True(t, last.Edited)
	assert.NotEmpty(t, last.Error)
}

func TestOutboxUnknownID(t *testing.T) {
	o, _ := newTestOutbox(t, &fakeSender{})

	_, err := o.Send(context.Background(), "email_404", "")
	assert.ErrorIs(t, err, ErrEmailNotFound)

	_, err = o.Preview("email_404", "")
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestOutboxPreview(t *testing.T) {
	o, _ := newTestOutbox(t, &fakeSender{})

	msg, err := o.Preview("email_1", "")
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "Regarding your login/access issue")
}
