package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/company-enricher/internal/event"
	"github.com/shpitdev/company-enricher/internal/queue"
)

type fakeSQS struct {
	mu       sync.Mutex
	batches  [][]types.Message
	inputs   []*sqs.ReceiveMessageInput
	deleted  []string
	recvErr  error
	received chan struct{}
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	if f.recvErr != nil {
		err := f.recvErr
		f.mu.Unlock()
		return nil, err
	}
	if len(f.batches) == 0 {
		f.mu.Unlock()
		if f.received != nil {
			select {
			case f.received <- struct{}{}:
			default:
			}
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	f.mu.Unlock()
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type recordingHandler struct {
	events []events.S3Event
	err    error
}

func (h *recordingHandler) Handle(_ context.Context, ev events.S3Event) (event.Response, error) {
	h.events = append(h.events, ev)
	if h.err != nil {
		return event.Response{}, h.err
	}
	return event.Response{StatusCode: 200, Body: `{"message":"ok"}`}, nil
}

func message(id, body string) types.Message {
	return types.Message{MessageId: aws.String(id), ReceiptHandle: aws.String("rh-" + id), Body: aws.String(body)}
}

const s3Body = `{"Records":[{"s3":{"bucket":{"name":"data"},"object":{"key":"in.csv"}}}]}`

func TestPollOnce(t *testing.T) {
	fake := &fakeSQS{batches: [][]types.Message{{
		message("1", s3Body),
		message("2", "not json"),
	}}}
	h := &recordingHandler{}
	p := queue.NewPoller(fake, h, queue.Config{
		QueueURL:          "https://sqs.example/queue",
		WaitTime:          time.Minute,
		VisibilityTimeout: 90 * time.Second,
		MaxMessages:       5,
	})

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, h.events, 1)
	assert.Equal(t, "data", h.events[0].Records[0].S3.Bucket.Name)
	assert.Equal(t, []string{"rh-1", "rh-2"}, fake.deleted, "handled and malformed messages are deleted")

	in := fake.inputs[0]
	assert.Equal(t, "https://sqs.example/queue", aws.ToString(in.QueueUrl))
	assert.Equal(t, int32(20), in.WaitTimeSeconds, "wait time is capped at 20s")
	assert.Equal(t, int32(90), in.VisibilityTimeout)
	assert.Equal(t, int32(5), in.MaxNumberOfMessages)
}

func TestPollOnce_HandlerErrorKeepsMessage(t *testing.T) {
	fake := &fakeSQS{batches: [][]types.Message{{message("1", s3Body)}}}
	p := queue.NewPoller(fake, &recordingHandler{err: errors.New("boom")}, queue.Config{QueueURL: "q"})

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fake.deleted)
}

func TestPollOnce_ReceiveError(t *testing.T) {
	fake := &fakeSQS{recvErr: errors.New("throttled")}
	p := queue.NewPoller(fake, &recordingHandler{}, queue.Config{QueueURL: "q"})

	_, err := p.PollOnce(context.Background())
	assert.ErrorContains(t, err, "throttled")
}

func TestRun_StopsOnCancel(t *testing.T) {
	fake := &fakeSQS{
		batches:  [][]types.Message{{message("1", s3Body)}},
		received: make(chan struct{}, 1),
	}
	h := &recordingHandler{}
	p := queue.NewPoller(fake, h, queue.Config{QueueURL: "q"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-fake.received:
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not drain the queue")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Len(t, h.events, 1)
	assert.Equal(t, []string{"rh-1"}, fake.deleted)
}

func TestRun_RequiresQueueURL(t *testing.T) {
	p := queue.NewPoller(&fakeSQS{}, &recordingHandler{}, queue.Config{})
	assert.Error(t, p.Run(context.Background()))
}

func TestDecodeS3Event(t *testing.T) {
	ev, err := queue.DecodeS3Event(s3Body)
	require.NoError(t, err)
	require.Len(t, ev.Records, 1)

	wrapped := `{"Type":"Notification","Message":"{\"Records\":[{\"s3\":{\"bucket\":{\"name\":\"b\"},\"object\":{\"key\":\"k.csv\"}}}]}"}`
	ev, err = queue.DecodeS3Event(wrapped)
	require.NoError(t, err)
	require.Len(t, ev.Records, 1)
	assert.Equal(t, "b", ev.Records[0].S3.Bucket.Name)
	assert.Equal(t, "k.csv", ev.Records[0].S3.Object.Key)

	_, err = queue.DecodeS3Event("{")
	assert.Error(t, err)
}
