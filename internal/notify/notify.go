// Package notify delivers user-facing notifications (payment receipts) to the
// notification pipeline over Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pairly/wallet/internal/infra"
)

// KindPaymentSucceeded is the notification kind for a credited purchase.
const KindPaymentSucceeded = "payment_succeeded"

// Message is the envelope written to the notifications topic.
type Message struct {
	ID         uuid.UUID              `json:"id"`
	Kind       string                 `json:"kind"`
	UserID     string                 `json:"user_id"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// KafkaNotifier publishes notifications to a single topic keyed by user id.
type KafkaNotifier struct {
	publisher infra.Publisher
	topic     string
	logger    *slog.Logger
}

// NewKafkaNotifier creates a notifier writing to topic.
func NewKafkaNotifier(publisher infra.Publisher, topic string, logger *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, topic: topic, logger: logger}
}

// PaymentSucceeded tells the user their purchased credits arrived.
func (n *KafkaNotifier) PaymentSucceeded(ctx context.Context, userID string, credits, balance int64) error {
	return n.send(ctx, Message{
		ID:     uuid.New(),
		Kind:   KindPaymentSucceeded,
		UserID: userID,
		Data: map[string]interface{}{
			"credits": credits,
			"balance": balance,
		},
		OccurredAt: time.Now().UTC(),
	})
}

func (n *KafkaNotifier) send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	headers := map[string]string{"kind": msg.Kind, "message_id": msg.ID.String()}
	if err := n.publisher.Publish(ctx, n.topic, []byte(msg.UserID), value, headers); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	n.logger.Debug("notification published", "kind", msg.Kind, "user_id", msg.UserID)
	return nil
}
