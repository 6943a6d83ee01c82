// Package queue long-polls an SQS queue carrying object-created notifications and
// hands each one to the event handler.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/shpitdev/company-enricher/internal/event"
	"github.com/shpitdev/company-enricher/pkg/pipeline/redact"
)

// SQSAPI is the subset of *sqs.Client used by Poller.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// EventHandler is implemented by *event.Handler.
type EventHandler interface {
	Handle(ctx context.Context, ev events.S3Event) (event.Response, error)
}

type Config struct {
	QueueURL string
	// WaitTime is the long-poll duration, capped at 20s by SQS.
	WaitTime time.Duration
	// VisibilityTimeout overrides the queue default when > 0.
	VisibilityTimeout time.Duration
	MaxMessages       int32
	Logger            *slog.Logger
}

// Poller processes messages one at a time, in receive order.
type Poller struct {
	client  SQSAPI
	handler EventHandler
	cfg     Config
	logger  *slog.Logger
}

func NewPoller(client SQSAPI, handler EventHandler, cfg Config) *Poller {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 1
	}
	if cfg.WaitTime > 20*time.Second {
		cfg.WaitTime = 20 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{client: client, handler: handler, cfg: cfg, logger: logger.With("queue_url", cfg.QueueURL)}
}

// Run polls until ctx is done. It returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	if p.cfg.QueueURL == "" {
		return errors.New("queue URL is not set")
	}
	p.logger.Info("polling queue", "wait_time", p.cfg.WaitTime, "max_messages", p.cfg.MaxMessages)

	sleep := 500 * time.Millisecond
	for {
		if ctx.Err() != nil {
			p.logger.Info("queue polling stopped")
			return nil
		}

		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("queue polling stopped")
				return nil
			}
			p.logger.Error("receive failed", "error", redact.Secrets(err.Error()), "retry_in", sleep)
			t := time.NewTimer(sleep)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
			}
			if sleep < 5*time.Second {
				sleep *= 2
			}
			continue
		}
		sleep = 500 * time.Millisecond
	}
}

// PollOnce receives one batch and handles every message in it. It returns the number
// of messages received.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.cfg.QueueURL),
		MaxNumberOfMessages: p.cfg.MaxMessages,
		WaitTimeSeconds:     int32(p.cfg.WaitTime / time.Second),
	}
	if p.cfg.VisibilityTimeout > 0 {
		in.VisibilityTimeout = int32(p.cfg.VisibilityTimeout / time.Second)
	}

	out, err := p.client.ReceiveMessage(ctx, in)
	if err != nil {
		return 0, err
	}
	for _, msg := range out.Messages {
		p.handle(ctx, msg)
	}
	return len(out.Messages), nil
}

func (p *Poller) handle(ctx context.Context, msg types.Message) {
	logger := p.logger.With("message_id", aws.ToString(msg.MessageId))

	ev, err := DecodeS3Event(aws.ToString(msg.Body))
	if err != nil {
		logger.Warn("dropping malformed message", "error", err)
	} else {
		resp, err := p.handler.Handle(ctx, ev)
		if err != nil {
			// Leave the message for redelivery after the visibility timeout.
			logger.Error("event handler failed", "error", redact.Secrets(err.Error()))
			return
		}
		if ctx.Err() != nil {
			// Interrupted mid-run; let the message become visible again.
			return
		}
		logger.Info("handled message", "status_code", resp.StatusCode, "body", resp.Body)
	}

	if _, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.cfg.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		logger.Error("failed to delete message", "error", err)
	}
}

type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// DecodeS3Event parses a message body holding an S3 event notification, either
// delivered directly or wrapped in an SNS notification envelope.
func DecodeS3Event(body string) (events.S3Event, error) {
	var env snsEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return events.S3Event{}, err
	}
	if env.Type == "Notification" && env.Message != "" {
		body = env.Message
	}

	var ev events.S3Event
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return events.S3Event{}, err
	}
	return ev, nil
}
