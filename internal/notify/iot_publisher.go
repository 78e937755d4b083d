package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"tea_refill/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
)

// IoTMachinePublisher publishes request status to <prefix>/<machineId>/requests.
type IoTMachinePublisher struct {
	client      *iotdataplane.Client
	topicPrefix string
}

func NewIoTMachinePublisher(client *iotdataplane.Client, topicPrefix string) *IoTMachinePublisher {
	return &IoTMachinePublisher{client: client, topicPrefix: topicPrefix}
}

func (p *IoTMachinePublisher) Topic(machineID string) string {
	return fmt.Sprintf("%s/%s/requests", p.topicPrefix, machineID)
}

func (p *IoTMachinePublisher) PublishToMachine(ctx context.Context, machineID string, payload domain.MachineCommandPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal machine payload: %w", err)
	}

	topic := p.Topic(machineID)
	_, err = p.client.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: payloadBytes,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	log.Printf("IoT: published %s (%s) to %s", payload.RequestID, payload.Status, topic)
	return nil
}
