// Package queue is the durable task transport: one Redis stream per task
// variant, consumer groups for delivery, manual acks, and a dead-letter
// stream per topic for messages that cannot be processed.
package queue

import (
	"encoding/json"
	"fmt"

	"storyboard-server/internal/domain"
)

// Group is the consumer group every dispatcher worker joins.
const Group = "dispatch"

const payloadField = "payload"

// DeadTopic names the dead-letter stream paired with a topic.
func DeadTopic(topic string) string {
	return topic + ":dead"
}

func encodeMessage(msg *domain.TaskMessage) (map[string]any, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("queue: encode task: %w", err)
	}
	return map[string]any{payloadField: string(payload)}, nil
}

func decodeMessage(values map[string]any) (*domain.TaskMessage, error) {
	raw, ok := values[payloadField].(string)
	if !ok {
		return nil, fmt.Errorf("queue: message has no %s field", payloadField)
	}
	var msg domain.TaskMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("queue: decode task: %w", err)
	}
	return &msg, nil
}
