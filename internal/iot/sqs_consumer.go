package iot

import (
	"context"
	"log"
	"tea_refill/internal/config"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSAPI is the part of *sqs.Client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// EventHandler processes one message body; a nil return acknowledges the message.
type EventHandler interface {
	HandleDeviceEvent(ctx context.Context, body string) error
}

type SQSConsumer struct {
	sqsClient  SQSAPI
	queueURL   string
	handler    EventHandler
	retryDelay time.Duration
}

func NewSQSConsumer(client SQSAPI, cfg *config.Config, handler EventHandler) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:  client,
		queueURL:   cfg.SQSEventQueueURL,
		handler:    handler,
		retryDelay: 5 * time.Second,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	log.Printf("SQS Consumer: listening on queue %s", c.queueURL)
	for {
		select {
		case <-ctx.Done():
			log.Println("SQS Consumer: context cancelled, stopping.")
			return
		default:
			if !c.poll(ctx) {
				return
			}
		}
	}
}

// poll runs one long-poll round. It returns false once ctx is done.
func (c *SQSConsumer) poll(ctx context.Context) bool {
	receiveInput := &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   60,
	}

	result, err := c.sqsClient.ReceiveMessage(ctx, receiveInput)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		log.Printf("SQS Consumer: receive failed: %v", err)
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			log.Println("SQS Consumer: context cancelled while waiting for retry.")
			return false
		}
		return true
	}

	if len(result.Messages) == 0 {
		return true
	}
	log.Printf("SQS Consumer: received %d message(s)", len(result.Messages))

	for _, message := range result.Messages {
		if message.Body == nil {
			log.Println("SQS Consumer: empty message body, deleting.")
			c.deleteMessage(ctx, message.ReceiptHandle)
			continue
		}

		if processingErr := c.handler.HandleDeviceEvent(ctx, *message.Body); processingErr != nil {
			id := ""
			if message.MessageId != nil {
				id = *message.MessageId
			}
			log.Printf("SQS Consumer: message %s failed: %v. It will be redelivered after the visibility timeout.", id, processingErr)
			continue
		}
		c.deleteMessage(ctx, message.ReceiptHandle)
	}
	return true
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Println("SQS Consumer: missing receipt handle, cannot delete message.")
		return
	}
	_, delErr := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if delErr != nil {
		log.Printf("SQS Consumer: delete failed: %v", delErr)
	}
}
