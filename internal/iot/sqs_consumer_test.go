package iot

import (
	"context"
	"errors"
	"tea_refill/internal/config"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQS struct {
	batches    [][]types.Message
	receiveErr error
	deleted    []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if len(f.batches) == 0 {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type handlerFunc func(ctx context.Context, body string) error

func (h handlerFunc) HandleDeviceEvent(ctx context.Context, body string) error { return h(ctx, body) }

func TestSQSConsumerDeletesOnlyHandledMessages(t *testing.T) {
	client := &fakeSQS{batches: [][]types.Message{{
		{MessageId: aws.String("1"), ReceiptHandle: aws.String("r-ok"), Body: aws.String(`ok`)},
		{MessageId: aws.String("2"), ReceiptHandle: aws.String("r-retry"), Body: aws.String(`retry`)},
		{MessageId: aws.String("3"), ReceiptHandle: aws.String("r-empty")},
	}}}
	var seen []string
	handler := handlerFunc(func(ctx context.Context, body string) error {
		seen = append(seen, body)
		if body == "retry" {
			return errors.New("store unavailable")
		}
		return nil
	})

	c := NewSQSConsumer(client, &config.Config{SQSEventQueueURL: "https://sqs.local/q"}, handler)
	if !c.poll(context.Background()) {
		t.Fatal("poll returned false with a live context")
	}

	if len(seen) != 2 {
		t.Errorf("handled %v, want two bodies", seen)
	}
	want := []string{"r-ok", "r-empty"}
	if len(client.deleted) != len(want) {
		t.Fatalf("deleted = %v, want %v", client.deleted, want)
	}
	for i := range want {
		if client.deleted[i] != want[i] {
			t.Errorf("deleted[%d] = %s, want %s", i, client.deleted[i], want[i])
		}
	}
}

func TestSQSConsumerStopsOnCancelledContext(t *testing.T) {
	client := &fakeSQS{receiveErr: errors.New("connection reset")}
	c := NewSQSConsumer(client, &config.Config{}, handlerFunc(func(context.Context, string) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if c.poll(ctx) {
		t.Error("poll should stop once the context is cancelled")
	}
	c.Start(ctx)
}
