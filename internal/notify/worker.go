package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/anonto42/minitwitter/backend/internal/repositories"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const queueGroup = "notifier"

// Worker turns follow events into notification rows.
type Worker struct {
	users         repositories.UserRepository
	notifications repositories.NotificationRepository
	timeout       time.Duration
}

func NewWorker(users repositories.UserRepository, notifications repositories.NotificationRepository, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Worker{users: users, notifications: notifications, timeout: timeout}
}

// Subscribe joins the worker queue group so each event is handled once
// across replicas.
func (w *Worker) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.QueueSubscribe(SubjectFollowCreated, queueGroup, w.HandleMsg)
}

func (w *Worker) HandleMsg(msg *nats.Msg) {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Header))
	ctx, span := otel.Tracer("notifier").Start(ctx, "process_follow_created", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.Handle(ctx, msg.Data); err != nil {
		span.RecordError(err)
		slog.Error("failed to handle follow event", "error", err)
	}
}

// Handle stores a "started following you" notification for the followed user.
func (w *Worker) Handle(ctx context.Context, data []byte) error {
	var event FollowCreatedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("invalid follow event: %w", err)
	}
	if event.FollowerID == "" || event.FollowedID == "" {
		return fmt.Errorf("invalid follow event: missing user id")
	}

	follower, err := w.users.GetUserByID(ctx, event.FollowerID)
	if err != nil {
		return fmt.Errorf("loading follower %s: %w", event.FollowerID, err)
	}

	notification := &models.Notification{
		Type:        models.NotificationTypeFollow,
		ActorID:     event.FollowerID,
		RecipientID: event.FollowedID,
		Message:     follower.Username + " started following you",
	}
	if err := w.notifications.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("storing notification: %w", err)
	}
	slog.Info("follow notification stored", "recipient_id", event.FollowedID, "actor_id", event.FollowerID)
	return nil
}
