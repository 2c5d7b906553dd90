package email

import (
	"context"
	"errors"
	"time"

	"github.com/supportdesk/triage/internal/history"
	"github.com/supportdesk/triage/internal/inbox"
	"github.com/supportdesk/triage/internal/logger"
	"github.com/supportdesk/triage/internal/metrics"
)

// ErrEmailNotFound is returned when the id is not in the collection.
var ErrEmailNotFound = errors.New("email not found")

const sendTimeout = 30 * time.Second

// Outbox sends a reply for one collection record, logs the attempt and marks
// the record resolved on success.
type Outbox struct {
	Sender   Sender
	Store    *inbox.Store
	History  *history.Store // optional
	From     string
	FromName string
	Metrics  *metrics.Metrics
	Log      logger.Logger
}

// Preview returns the message that Send would deliver, without sending.
func (o *Outbox) Preview(id, body string) (Message, error) {
	e, ok := o.Store.Get(id)
	if !ok {
		return Message{}, ErrEmailNotFound
	}
	return NewReply(e, body, o.From, o.FromName), nil
}

// Send delivers a reply to record id. An empty body sends the drafted
// response. Delivery failures are returned in Result and leave the record
// pending.
func (o *Outbox) Send(ctx context.Context, id, body string) (Result, error) {
	log := logger.OrNop(o.Log)

	e, ok := o.Store.Get(id)
	if !ok {
		return Result{}, ErrEmailNotFound
	}
	msg := NewReply(e, body, o.From, o.FromName)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	result := o.Sender.Send(ctx, msg)
	o.Metrics.RecordReply(o.Sender.Name(), result.Success)

	record := &history.Reply{
		EmailID:   e.ID,
		Recipient: msg.To,
		Subject:   msg.Subject,
		Category:  e.Category,
		Provider:  o.Sender.Name(),
		Edited:    msg.Body != e.AIResponse,
		SentAt:    time.Now(),
	}
	if result.Success {
		record.Status = history.StatusSent
		record.MessageID = result.MessageID
	} else {
		record.Status = history.StatusFailed
		if result.Error != nil {
			record.Error = result.Error.Error()
		}
	}

	if o.History != nil {
		if err := o.History.Add(record); err != nil {
			log.Warn("Failed to record reply", logger.String("id", id), logger.Error(err))
		}
	}

	if !result.Success {
		log.Warn("Reply delivery failed",
			logger.String("id", id),
			logger.String("provider", o.Sender.Name()),
			logger.Error(result.Error),
		)
		return result, nil
	}

	o.Store.MarkResolved(id)
	log.Info("Reply sent",
		logger.String("id", id),
		logger.String("provider", o.Sender.Name()),
		logger.String("message_id", result.MessageID),
	)
	return result, nil
}
